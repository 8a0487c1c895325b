package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/99designs/keyring"

	"github.com/nhle/pi-productivity/internal/credential"
	"github.com/nhle/pi-productivity/internal/source"
	"github.com/nhle/pi-productivity/internal/store"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("PI_PRODUCTIVITY_CONFIG", filepath.Join(dir, "missing.yaml"))
	t.Setenv("PI_PRODUCTIVITY_DB", filepath.Join(dir, "data", "tasks.db"))
	t.Setenv("PI_PRODUCTIVITY_SNAPSHOT", "")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func runOut(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(args, &out)
	return out.String(), err
}

func taskServer(t *testing.T, key string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != key {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tasks":[{"id":"a","name":"Water plants"},{"id":"b","name":"Old","status":"done"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunUnknownCommand(t *testing.T) {
	isolate(t)
	if _, err := runOut(t, "explode"); err == nil {
		t.Fatal("run accepted an unknown command")
	}
	out, err := runOut(t)
	if err != nil {
		t.Fatalf("run with no arguments: %v", err)
	}
	for _, name := range []string{"show", "logout", "tasks"} {
		if !strings.Contains(out, name) {
			t.Errorf("help does not mention %q:\n%s", name, out)
		}
	}
}

func TestRunSyncThenRead(t *testing.T) {
	dir := isolate(t)
	srv := taskServer(t, "secret")

	t.Setenv("MOTION_API_BASE", srv.URL)
	t.Setenv("MOTION_API_KEY", "secret")
	snapshot := filepath.Join(dir, "web", "status.json")
	t.Setenv("PI_PRODUCTIVITY_SNAPSHOT", snapshot)

	out, err := runOut(t, "sync")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !strings.Contains(out, "synced 2 tasks, 2 stored") {
		t.Errorf("sync output = %q", out)
	}
	if _, err := runOut(t, "week"); err != nil {
		t.Fatalf("week: %v", err)
	}

	s, err := store.NewSQLiteStore(filepath.Join(dir, "data", "tasks.db"))
	if err != nil {
		t.Fatalf("opening synced store: %v", err)
	}
	defer s.Close()
	if n, _ := s.CountTasks(context.Background()); n != 2 {
		t.Errorf("CountTasks = %d, want 2", n)
	}
	if _, err := os.Stat(snapshot); err != nil {
		t.Errorf("snapshot missing: %v", err)
	}
}

func TestRunTasksListing(t *testing.T) {
	isolate(t)
	srv := taskServer(t, "secret")
	t.Setenv("MOTION_API_BASE", srv.URL)
	t.Setenv("MOTION_API_KEY", "secret")
	if _, err := runOut(t, "sync"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	tests := []struct {
		args    []string
		want    []string
		notWant []string
	}{
		{[]string{"tasks"}, []string{"Water plants"}, []string{"Old"}},
		{[]string{"tasks", "--all"}, []string{"Water plants", "Old", "done"}, nil},
		{[]string{"tasks", "--status", "DONE"}, []string{"Old"}, []string{"Water plants"}},
		{[]string{"tasks", "--query", "plant"}, []string{"Water plants"}, []string{"Old"}},
		{[]string{"tasks", "--sort", "title", "--limit", "1"}, []string{"Old"}, []string{"Water plants"}},
		{[]string{"tasks", "--sort", "title", "--desc", "--limit", "1"}, []string{"Water plants"}, []string{"Old"}},
	}

	for _, tt := range tests {
		out, err := runOut(t, tt.args...)
		if err != nil {
			t.Fatalf("%v: %v", tt.args, err)
		}
		for _, w := range tt.want {
			if !strings.Contains(out, w) {
				t.Errorf("%v output lacks %q:\n%s", tt.args, w, out)
			}
		}
		for _, nw := range tt.notWant {
			if strings.Contains(out, nw) {
				t.Errorf("%v output has %q:\n%s", tt.args, nw, out)
			}
		}
	}
}

func TestRunShow(t *testing.T) {
	isolate(t)
	srv := taskServer(t, "secret")
	t.Setenv("MOTION_API_BASE", srv.URL)
	t.Setenv("MOTION_API_KEY", "secret")
	if _, err := runOut(t, "sync"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	out, err := runOut(t, "show", "a")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	var shown struct {
		TaskID string         `json:"task_id"`
		Title  string         `json:"title"`
		Raw    map[string]any `json:"raw"`
	}
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("decoding show output %q: %v", out, err)
	}
	if shown.TaskID != "a" || shown.Title != "Water plants" || shown.Raw["name"] != "Water plants" {
		t.Errorf("show = %+v", shown)
	}

	if _, err := runOut(t, "show", "missing"); err == nil {
		t.Error("show accepted an unknown id")
	}
}

func TestRunLoginLogout(t *testing.T) {
	isolate(t)
	ring := credential.New(keyring.NewArrayKeyring(nil))
	prev := openCredentials
	openCredentials = func() (*credential.Store, error) { return ring, nil }
	t.Cleanup(func() { openCredentials = prev })

	srv := taskServer(t, "from-keyring")
	t.Setenv("MOTION_API_BASE", srv.URL)

	t.Setenv("MOTION_API_KEY", "from-keyring")
	if _, err := runOut(t, "login"); err != nil {
		t.Fatalf("login: %v", err)
	}

	t.Setenv("MOTION_API_KEY", "")
	if _, err := runOut(t, "sync"); err != nil {
		t.Fatalf("sync with the stored key: %v", err)
	}

	out, err := runOut(t, "logout")
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if !strings.Contains(out, "removed") {
		t.Errorf("logout output = %q", out)
	}
	if _, err := ring.Get(credential.MotionAPIKey); !errors.Is(err, credential.ErrNotFound) {
		t.Errorf("key still stored after logout: %v", err)
	}

	_, err = runOut(t, "sync")
	if !errors.Is(err, source.ErrMissingAPIKey) {
		t.Errorf("sync after logout = %v, want ErrMissingAPIKey", err)
	}
}

func TestRunSyncAuthFailure(t *testing.T) {
	isolate(t)

	srv := taskServer(t, "secret")
	t.Setenv("MOTION_API_BASE", srv.URL)
	t.Setenv("MOTION_API_KEY", "wrong")

	_, err := runOut(t, "sync")
	if !source.IsAuthError(err) {
		t.Fatalf("sync with a rejected key = %v, want an auth error", err)
	}
}

func TestRunArgumentValidation(t *testing.T) {
	isolate(t)
	t.Setenv("MOTION_API_KEY", "secret")
	t.Setenv("MOTION_API_BASE", "http://127.0.0.1:1")

	for _, args := range [][]string{
		{"find"},
		{"add"},
		{"complete"},
		{"complete", "a", "b"},
		{"show"},
	} {
		if _, err := runOut(t, args...); err == nil {
			t.Errorf("run(%v) accepted missing arguments", args)
		}
	}
}
