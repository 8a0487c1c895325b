package testutil

import (
	"context"
	"sync"

	"github.com/nhle/pi-productivity/internal/model"
)

// FakeSource is an in-memory source.TaskSource.
type FakeSource struct {
	mu    sync.Mutex
	tasks []model.Payload
	err   error
	calls int
}

// SetTasks replaces the tasks returned by ListAllTasks.
func (f *FakeSource) SetTasks(tasks ...model.Payload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = tasks
}

// SetError makes ListAllTasks fail with err until cleared with nil.
func (f *FakeSource) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Calls returns how many times ListAllTasks ran.
func (f *FakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// ListAllTasks implements source.TaskSource.
func (f *FakeSource) ListAllTasks(ctx context.Context, limit int) ([]model.Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := f.tasks
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]model.Payload(nil), out...), nil
}
