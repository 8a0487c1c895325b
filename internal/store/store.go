package store

import (
	"context"

	"github.com/nhle/pi-productivity/internal/model"
)

// Default row limits for the display views.
const (
	DefaultDisplayLimit  = 6
	DefaultCalendarLimit = 100
)

// TaskFilter controls filtering, sorting, and pagination for task queries.
type TaskFilter struct {
	Status      *string
	Query       *string
	PendingOnly bool
	SortBy      string
	SortDesc    bool
	Limit       int
	Offset      int
}

// Store is the task persistence interface shared by the sync loop and
// every display surface.
type Store interface {
	// UpsertTasks normalizes raw payloads and inserts or overwrites them
	// keyed by task id. Write errors are returned.
	UpsertTasks(ctx context.Context, payloads []model.Payload) (int, error)

	// FetchItemsForDisplay never fails: storage errors and empty results
	// come back as a single placeholder item.
	FetchItemsForDisplay(ctx context.Context, limit int) []model.DisplayItem

	// FetchWeekCalendar never fails: storage errors set the Error field.
	FetchWeekCalendar(ctx context.Context, limit int) model.WeekCalendar

	GetTasks(ctx context.Context, opts TaskFilter) ([]model.Task, error)
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)
	CountTasks(ctx context.Context) (int, error)

	Close() error
}
