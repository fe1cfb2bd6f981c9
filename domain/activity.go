package domain

// ActivityEntry is one append-only audit record. Entries are handed off to
// the activity sink and never read back or mutated by the board core.
type ActivityEntry struct {
	UserID string `json:"userId"`
	Action string `json:"action"`
	TaskID string `json:"taskId,omitempty"`
	Time   int64  `json:"time"`
}
