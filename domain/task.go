package domain

import "strings"

// Priority of a board task.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Status is the board column a task lives in.
type Status string

const (
	StatusTodo       Status = "Todo"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

// Task represents a single item on the shared board.
type Task struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Priority     Priority `json:"priority"`
	Status       Status   `json:"status"`
	AssignedUser string   `json:"assignedUser,omitempty"`
	CreatedBy    string   `json:"createdBy"`
	// Version is a strictly increasing token bumped on every successful
	// mutation. Clients echo it back on full updates for conflict detection.
	Version   int64 `json:"version"`
	CreatedAt int64 `json:"createdAt"`
}

// Open reports whether the task counts toward its assignee's workload.
func (t Task) Open() bool {
	return t.Status != StatusDone
}

// ValidStatus reports whether s is one of the three board columns.
func ValidStatus(s Status) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known priority level.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// NormalizeTitle returns a title the way it is stored: surrounding
// whitespace removed.
func NormalizeTitle(title string) string {
	return strings.TrimSpace(title)
}

// TitleKey folds a title for board-wide uniqueness comparison.
func TitleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// ReservedTitle reports whether the title collides with a column label.
// The board UI renders column names from these labels, so tasks may not
// reuse them.
func ReservedTitle(title string) bool {
	switch TitleKey(title) {
	case "todo", "in progress", "done":
		return true
	}
	return false
}
