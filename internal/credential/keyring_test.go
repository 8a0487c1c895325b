package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(keyring.NewArrayKeyring(nil))
}

func TestSetGetDelete(t *testing.T) {
	s := newTestStore(t)

	if err := s.Set(MotionAPIKey, "abc123"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(MotionAPIKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "abc123" {
		t.Errorf("Get = %q, want abc123", got)
	}

	if err := s.Delete(MotionAPIKey); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(MotionAPIKey); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: err = %v, want ErrNotFound", err)
	}
}

func TestResolveAPIKey(t *testing.T) {
	s := newTestStore(t)

	got, err := s.ResolveAPIKey("")
	if err != nil {
		t.Fatalf("ResolveAPIKey with empty keyring: %v", err)
	}
	if got != "" {
		t.Errorf("ResolveAPIKey = %q, want empty", got)
	}

	if err := s.Set(MotionAPIKey, "stored"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, _ := s.ResolveAPIKey(""); got != "stored" {
		t.Errorf("ResolveAPIKey = %q, want stored", got)
	}
	if got, _ := s.ResolveAPIKey("configured"); got != "configured" {
		t.Errorf("ResolveAPIKey = %q, want configured value to win", got)
	}
}
