package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/nhle/pi-productivity/internal/model"
	"github.com/nhle/pi-productivity/internal/store"
	"github.com/nhle/pi-productivity/tests/testutil"
)

func TestDueLabel(t *testing.T) {
	today := time.Date(2025, 6, 10, 9, 0, 0, 0, brt)

	tests := []struct {
		due  string
		want string
	}{
		{"2025-06-10", "HOJE"},
		{"2025-06-10T23:59:00-03:00", "HOJE"},
		{"2025-06-11T08:00:00-03:00", "Amanhã"},
		{"2025-06-09", "Ontem"},
		{"2025-06-07", "-3d"},
		{"2025-05-31", "-10d"},
		{"2025-06-13", "Sex"},
		{"2025-06-17", "Ter"},
		{"2025-06-18", "18/06"},
		{"2025-12-25", "25/12"},
		{"0001-01-01", "-739411d"},
		{"9999-12-31", "31/12"},
		{"garbage-value-here", "garbage-va"},
		{"abc", "abc"},
	}

	for _, tt := range tests {
		if got := store.DueLabel(tt.due, today); got != tt.want {
			t.Errorf("DueLabel(%q) = %q, want %q", tt.due, got, tt.want)
		}
	}
}

func TestFetchItemsForDisplayEmpty(t *testing.T) {
	s, _ := newStore(t)

	items := s.FetchItemsForDisplay(context.Background(), 6)
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1 placeholder", len(items))
	}
	if items[0].Kind != model.DisplayItemEmpty || items[0].Title != "Sem tarefas pendentes" {
		t.Errorf("placeholder = %+v", items[0])
	}
}

func TestFetchItemsForDisplayExcludesFinishedTasks(t *testing.T) {
	s, _ := newStore(t)

	upsert(t, s,
		`{"id":"1","name":"Done upper","status":"Completed","dueDate":"2025-06-10"}`,
		`{"id":"2","name":"Done","status":"done"}`,
		`{"id":"3","name":"Cancelled","status":"CANCELED"}`,
		`{"id":"4","name":"Archived","status":"archived"}`,
		`{"id":"5","name":"Checked off","completed":true}`,
	)

	items := s.FetchItemsForDisplay(context.Background(), 6)
	if len(items) != 1 || items[0].Kind != model.DisplayItemEmpty {
		t.Fatalf("items = %+v, want only the empty placeholder", items)
	}
}

func TestFetchItemsForDisplayOrdering(t *testing.T) {
	s, clock := newStore(t)
	ctx := context.Background()

	upsert(t, s, `{"id":"undated-old","name":"Someday"}`)
	clock.Advance(time.Minute)
	upsert(t, s,
		`{"id":"thu","name":"Review PR","labels":["Work"],"status":"In Progress","dueDate":"2025-06-12"}`,
		`{"id":"yesterday","name":"Pay bill","dueDate":"2025-06-09"}`,
		`{"id":"today","name":"Standup","dueDate":"2025-06-10T13:00:00Z","status":"todo"}`,
	)
	clock.Advance(time.Minute)
	upsert(t, s, `{"id":"undated-new","name":"Read book"}`)

	items := s.FetchItemsForDisplay(ctx, 0)

	want := []struct {
		id       string
		right    string
		subtitle string
	}{
		{"yesterday", "Ontem", ""},
		{"today", "HOJE", ""},
		{"thu", "Qui", "Work [IN PROGRESS]"},
		{"undated-new", "", ""},
		{"undated-old", "", ""},
	}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d: %+v", len(items), len(want), items)
	}
	for i, w := range want {
		got := items[i]
		if got.TaskID != w.id || got.Right != w.right || got.Subtitle != w.subtitle {
			t.Errorf("item %d = %+v, want id=%s right=%q subtitle=%q", i, got, w.id, w.right, w.subtitle)
		}
		if got.Kind != model.DisplayItemTask {
			t.Errorf("item %d kind = %s", i, got.Kind)
		}
	}
}

func TestFetchItemsForDisplayLimit(t *testing.T) {
	s, _ := newStore(t)

	upsert(t, s,
		`{"id":"1","name":"a"}`, `{"id":"2","name":"b"}`, `{"id":"3","name":"c"}`,
		`{"id":"4","name":"d"}`, `{"id":"5","name":"e"}`, `{"id":"6","name":"f"}`,
		`{"id":"7","name":"g"}`,
	)

	if got := len(s.FetchItemsForDisplay(context.Background(), 3)); got != 3 {
		t.Errorf("limit 3 returned %d items", got)
	}
	if got := len(s.FetchItemsForDisplay(context.Background(), 0)); got != store.DefaultDisplayLimit {
		t.Errorf("default limit returned %d items, want %d", got, store.DefaultDisplayLimit)
	}
}

func TestFetchItemsForDisplayStorageError(t *testing.T) {
	s, err := store.NewSQLiteStore(t.TempDir() + "/tasks.db")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	items := s.FetchItemsForDisplay(context.Background(), 6)
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1 placeholder", len(items))
	}
	if items[0].Kind != model.DisplayItemError || items[0].Title != "Erro ao ler tarefas" {
		t.Errorf("placeholder = %+v", items[0])
	}
	if items[0].Subtitle == "" {
		t.Error("error placeholder has no description")
	}
}

func TestDueOrderFollowsInstantsAcrossFallBack(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("loading zone: %v", err)
	}
	// Saturday before the 2025-11-02 fall-back; the repeated hour is 01:00-02:00.
	clock := testutil.NewClock(time.Date(2025, 11, 1, 16, 0, 0, 0, time.UTC))
	s := testutil.NewTestStore(t, store.WithClock(clock.Now), store.WithLocation(ny))
	ctx := context.Background()

	upsert(t, s,
		`{"id":"est","name":"Second 01:15","dueDate":"2025-11-02T06:15:00Z"}`,
		`{"id":"edt","name":"First 01:30","dueDate":"2025-11-02T05:30:00Z"}`,
		`{"id":"allday","name":"All day","dueDate":"2025-11-02"}`,
	)

	est, err := s.GetTaskByID(ctx, "est")
	if err != nil {
		t.Fatalf("GetTaskByID: %v", err)
	}
	if est.DueDate == nil || *est.DueDate != "2025-11-02T01:15:00-05:00" {
		t.Fatalf("stored due = %v, want the EST wall time", est.DueDate)
	}

	want := []string{"allday", "edt", "est"}

	var got []string
	for _, item := range s.FetchItemsForDisplay(ctx, 0) {
		got = append(got, item.TaskID)
	}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("display order = %v, want %v", got, want)
	}

	cal := s.FetchWeekCalendar(ctx, 0)
	got = got[:0]
	for _, task := range cal.Days[6].Tasks {
		got = append(got, task.TaskID)
	}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("calendar order = %v, want %v", got, want)
	}

	for _, tt := range []struct {
		desc bool
		want []string
	}{
		{false, want},
		{true, []string{"est", "edt", "allday"}},
	} {
		tasks, err := s.GetTasks(ctx, store.TaskFilter{SortBy: "due_date", SortDesc: tt.desc})
		if err != nil {
			t.Fatalf("GetTasks: %v", err)
		}
		got = got[:0]
		for _, task := range tasks {
			got = append(got, task.ID)
		}
		if fmt.Sprint(got) != fmt.Sprint(tt.want) {
			t.Errorf("GetTasks desc=%v order = %v, want %v", tt.desc, got, tt.want)
		}
	}
}
