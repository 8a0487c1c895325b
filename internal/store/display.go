package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/nhle/pi-productivity/internal/model"
)

// Display labels. The dashboard is shown in Portuguese.
const (
	labelToday     = "HOJE"
	labelTomorrow  = "Amanhã"
	labelYesterday = "Ontem"
	emptyTitle     = "Sem tarefas pendentes"
	emptySubtitle  = "Aproveite para planejar ou descansar!"
	errorTitle     = "Erro ao ler tarefas"
)

const secondsPerDay = 24 * 60 * 60

// weekdayNames is indexed by time.Weekday.
var weekdayNames = [7]string{"Dom", "Seg", "Ter", "Qua", "Qui", "Sex", "Sáb"}

// quietStatuses are not tagged onto the subtitle.
var quietStatuses = map[string]bool{
	model.StatusPending: true,
	model.StatusOpen:    true,
	model.StatusTodo:    true,
}

// FetchItemsForDisplay returns up to limit pending tasks for the compact
// task list: dated tasks first by due date, then undated ones, ties broken
// by the most recent update. It always returns at least one item.
func (s *SQLiteStore) FetchItemsForDisplay(ctx context.Context, limit int) []model.DisplayItem {
	if limit <= 0 {
		limit = DefaultDisplayLimit
	}
	today := s.today()

	query, args, err := sqlx.In(`
		SELECT `+taskColumns+`
		FROM tasks
		WHERE `+pendingCondition+`
		ORDER BY due_date IS NULL, `+dueOrder+`, updated_at DESC
		LIMIT ?`, model.ExcludedStatuses, limit)
	var rows []taskRow
	if err == nil {
		err = s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...)
	}
	if err != nil {
		log.Err(err).Msg("reading tasks for display")
		return []model.DisplayItem{{
			Title:    errorTitle,
			Subtitle: err.Error(),
			Kind:     model.DisplayItemError,
		}}
	}

	if len(rows) == 0 {
		return []model.DisplayItem{{
			Title:    emptyTitle,
			Subtitle: emptySubtitle,
			Kind:     model.DisplayItemEmpty,
		}}
	}

	items := make([]model.DisplayItem, 0, len(rows))
	for _, r := range rows {
		t := r.toModel()
		status := t.Status
		if status == "" {
			status = model.StatusPending
		}
		subtitle := t.Subtitle
		if !quietStatuses[status] {
			subtitle = strings.TrimSpace(subtitle + " [" + strings.ToUpper(status) + "]")
		}
		right := ""
		if t.HasDueDate() {
			right = DueLabel(*t.DueDate, today)
		}
		items = append(items, model.DisplayItem{
			TaskID:   t.ID,
			Title:    t.Title,
			Subtitle: subtitle,
			Right:    right,
			Status:   status,
			Kind:     model.DisplayItemTask,
		})
	}
	return items
}

// DueLabel renders a stored due value relative to today: "HOJE",
// "Amanhã", a weekday within the next week, "dd/mm" further out, "Ontem"
// or "-Nd" when overdue.
func DueLabel(due string, today time.Time) string {
	d, ok := localDate(due)
	if !ok {
		if len(due) > len(dateLayout) {
			return due[:len(dateLayout)]
		}
		return due
	}

	todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	delta := int((d.Unix() - todayDate.Unix()) / secondsPerDay)
	switch {
	case delta == 0:
		return labelToday
	case delta == -1:
		return labelYesterday
	case delta < 0:
		return fmt.Sprintf("-%dd", -delta)
	case delta == 1:
		return labelTomorrow
	case delta <= 7:
		return weekdayNames[d.Weekday()]
	default:
		return d.Format("02/01")
	}
}

// today is the current local time according to the store's clock.
func (s *SQLiteStore) today() time.Time {
	return s.now().In(s.loc)
}
