package domain

// Event is the payload broadcast to every connected session after a
// successful mutation. Deletions carry only the task id as a tombstone;
// every other mutation carries the full task. Receivers treat the event as
// a signal to refresh, not as an authoritative state delta.
type Event struct {
	Message string `json:"message"`
	Task    *Task  `json:"task,omitempty"`
	TaskID  string `json:"taskId,omitempty"`
}
