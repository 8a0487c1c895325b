package motion

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("decoding %s: %v", s, err)
	}
	return v
}

func TestExtractTasks(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"top-level array", `[{"id":1},{"id":2}]`, 2},
		{"tasks key", `{"tasks":[{"id":1}]}`, 1},
		{"items key", `{"items":[{"id":1},{"id":2},{"id":3}]}`, 3},
		{"data key", `{"data":[{"id":1}]}`, 1},
		{"results key", `{"results":[{"id":1}]}`, 1},
		{"non-object entries skipped", `[{"id":1},"junk",3]`, 1},
		{"unknown shape", `{"something":[{"id":1}]}`, 0},
		{"scalar body", `"nope"`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractTasks(decode(t, tt.body)); len(got) != tt.want {
				t.Errorf("extractTasks() returned %d tasks, want %d", len(got), tt.want)
			}
		})
	}
}

func TestExtractCursor(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantOK    bool
		wantParam string
		wantValue string
	}{
		{"nested meta", `{"tasks":[],"meta":{"nextCursor":"abc"}}`, true, "cursor", "abc"},
		{"top-level nextCursor", `{"nextCursor":"n1"}`, true, "cursor", "n1"},
		{"snake case", `{"next_cursor":"n2"}`, true, "cursor", "n2"},
		{"page token", `{"nextPageToken":"p"}`, true, "pageToken", "p"},
		{"snake page token", `{"next_page_token":"q"}`, true, "page_token", "q"},
		{"numeric cursor", `{"cursor":42}`, true, "cursor", "42"},
		{"meta wins over top level", `{"meta":{"nextCursor":"m"},"nextCursor":"t"}`, true, "cursor", "m"},
		{"empty cursor skipped", `{"meta":{"nextCursor":""},"next_cursor":"x"}`, true, "cursor", "x"},
		{"null cursor", `{"meta":{"nextCursor":null}}`, false, "", ""},
		{"array body", `[{"id":1}]`, false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractCursor(decode(t, tt.body))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got.param != tt.wantParam || got.value != tt.wantValue {
				t.Errorf("cursor = %+v, want %s=%s", got, tt.wantParam, tt.wantValue)
			}
		})
	}
}
