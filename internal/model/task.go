package model

import "time"

// Payload is a raw task object as returned by the remote task API.
// Numbers are decoded as json.Number so identifiers and timestamps keep
// their exact textual form.
type Payload map[string]any

// Normalized status constants.
const (
	StatusPending    = "pending"
	StatusOpen       = "open"
	StatusTodo       = "todo"
	StatusCompleted  = "completed"
	StatusDone       = "done"
	StatusCancelled  = "cancelled"
	StatusCanceled   = "canceled"
	StatusArchived   = "archived"
	UntitledTaskName = "Tarefa sem nome"
)

// ExcludedStatuses lists the statuses hidden from every display view.
var ExcludedStatuses = []string{
	StatusCompleted,
	StatusDone,
	StatusCancelled,
	StatusCanceled,
	StatusArchived,
}

// Task is the normalized local record of a remote task.
type Task struct {
	// ID is the stable identifier: the remote id when present, otherwise
	// a SHA-1 of the canonical payload JSON.
	ID string `json:"task_id"`

	// Title is the human-readable name of the task.
	Title string `json:"title"`

	// Subtitle is a best-effort secondary line (labels, note or project).
	Subtitle string `json:"subtitle"`

	// DueDate is an ISO-8601 date or datetime in local time, or nil.
	DueDate *string `json:"due_date"`

	// Status is the lowercase normalized status.
	Status string `json:"status"`

	// Raw holds the original JSON payload.
	Raw string `json:"raw"`

	// UpdatedAt is the ingestion time of the last upsert.
	UpdatedAt time.Time `json:"updated_at"`
}

// HasDueDate reports whether the task carries a due date.
func (t Task) HasDueDate() bool {
	return t.DueDate != nil && *t.DueDate != ""
}
