package testutil

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nhle/pi-productivity/internal/model"
	"github.com/nhle/pi-productivity/internal/store"
)

// NewTestStore creates a SQLiteStore in a temporary directory with all
// migrations applied. It automatically closes the store when the test
// completes.
func NewTestStore(t *testing.T, opts ...store.Option) *store.SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data", "tasks.db")
	s, err := store.NewSQLiteStore(path, opts...)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// Clock is a settable time source for store.WithClock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock frozen at now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Payload decodes a JSON object the same way the remote client does.
func Payload(t *testing.T, s string) model.Payload {
	t.Helper()

	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var p model.Payload
	if err := dec.Decode(&p); err != nil {
		t.Fatalf("decoding payload %s: %v", s, err)
	}
	return p
}
