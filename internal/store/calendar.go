package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/nhle/pi-productivity/internal/model"
)

// weekRange returns the Monday and Sunday of the week containing today.
func weekRange(today time.Time) (time.Time, time.Time) {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	sinceMonday := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -sinceMonday)
	return start, start.AddDate(0, 0, 6)
}

// FetchWeekCalendar groups the pending tasks due this week (Monday to
// Sunday, local time) into seven day buckets. Storage errors are reported
// in the Error field with an empty Days list.
func (s *SQLiteStore) FetchWeekCalendar(ctx context.Context, limit int) model.WeekCalendar {
	if limit <= 0 {
		limit = DefaultCalendarLimit
	}
	today := s.today()
	start, end := weekRange(today)
	cal := model.WeekCalendar{
		WeekStart: start.Format(dateLayout),
		WeekEnd:   end.Format(dateLayout),
	}

	query, args, err := sqlx.In(`
		SELECT `+taskColumns+`
		FROM tasks
		WHERE `+pendingCondition+`
		  AND due_date IS NOT NULL
		  AND substr(due_date, 1, 10) BETWEEN ? AND ?
		ORDER BY `+dueOrder+`, updated_at DESC
		LIMIT ?`, model.ExcludedStatuses, cal.WeekStart, cal.WeekEnd, limit)
	var rows []taskRow
	if err == nil {
		err = s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...)
	}
	if err != nil {
		log.Err(err).Str("week_start", cal.WeekStart).Msg("reading week calendar")
		cal.Days = []model.CalendarDay{}
		cal.Error = err.Error()
		return cal
	}

	byDate := make(map[string][]model.CalendarTask)
	for _, r := range rows {
		t := r.toModel()
		if !t.HasDueDate() || len(*t.DueDate) < len(dateLayout) {
			continue
		}
		status := t.Status
		if status == "" {
			status = model.StatusPending
		}
		key := (*t.DueDate)[:len(dateLayout)]
		byDate[key] = append(byDate[key], model.CalendarTask{
			TaskID:   t.ID,
			Title:    t.Title,
			Subtitle: t.Subtitle,
			Status:   status,
		})
	}

	todayKey := today.Format(dateLayout)
	cal.Days = make([]model.CalendarDay, 0, 7)
	for i := 0; i < 7; i++ {
		day := start.AddDate(0, 0, i)
		key := day.Format(dateLayout)
		tasks := byDate[key]
		if tasks == nil {
			tasks = []model.CalendarTask{}
		}
		cal.Days = append(cal.Days, model.CalendarDay{
			Date:      key,
			DayName:   weekdayNames[day.Weekday()],
			DayNumber: day.Day(),
			IsToday:   key == todayKey,
			Tasks:     tasks,
		})
	}
	return cal
}
