package model

// DisplayItemKind tells a display consumer what a DisplayItem represents.
type DisplayItemKind string

const (
	DisplayItemTask  DisplayItemKind = "task"
	DisplayItemEmpty DisplayItemKind = "empty"
	DisplayItemError DisplayItemKind = "error"
)

// DisplayItem is one line of the compact task list shown on the
// e-paper panel, LED matrix and web status endpoint.
type DisplayItem struct {
	TaskID   string          `json:"task_id,omitempty"`
	Title    string          `json:"title"`
	Subtitle string          `json:"subtitle"`
	Right    string          `json:"right"`
	Status   string          `json:"status,omitempty"`
	Kind     DisplayItemKind `json:"kind"`
}

// WeekCalendar groups the pending tasks of the current week by day.
type WeekCalendar struct {
	WeekStart string        `json:"week_start"`
	WeekEnd   string        `json:"week_end"`
	Days      []CalendarDay `json:"days"`
	Error     string        `json:"error,omitempty"`
}

// CalendarDay is a single Monday..Sunday bucket of a WeekCalendar.
type CalendarDay struct {
	Date      string         `json:"date"`
	DayName   string         `json:"day_name"`
	DayNumber int            `json:"day_number"`
	IsToday   bool           `json:"is_today"`
	Tasks     []CalendarTask `json:"tasks"`
}

// CalendarTask is the per-task entry inside a CalendarDay.
type CalendarTask struct {
	TaskID   string `json:"task_id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Status   string `json:"status"`
}
