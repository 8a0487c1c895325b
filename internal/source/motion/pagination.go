package motion

import (
	"encoding/json"
	"fmt"

	"github.com/nhle/pi-productivity/internal/model"
)

// cursorField pairs a response field holding the next-page cursor with the
// query parameter the server expects it back in.
type cursorField struct {
	path  []string
	param string
}

// cursorFields is tried in order; the first non-empty match wins. The remote
// pagination contract is not documented precisely, so this table is a
// best-effort list of the shapes seen in practice.
var cursorFields = []cursorField{
	{path: []string{"meta", "nextCursor"}, param: "cursor"},
	{path: []string{"meta", "next_cursor"}, param: "cursor"},
	{path: []string{"nextCursor"}, param: "cursor"},
	{path: []string{"next_cursor"}, param: "cursor"},
	{path: []string{"cursor"}, param: "cursor"},
	{path: []string{"nextPageToken"}, param: "pageToken"},
	{path: []string{"next_page_token"}, param: "page_token"},
}

// listKeys are the object keys that may hold the task array when the
// response is not a bare array.
var listKeys = []string{"tasks", "items", "data", "results"}

// pageCursor is the continuation extracted from a page.
type pageCursor struct {
	param string
	value string
}

// extractTasks returns the task objects of a decoded page. Non-object
// entries are skipped.
func extractTasks(body any) []model.Payload {
	var list []any
	switch v := body.(type) {
	case []any:
		list = v
	case map[string]any:
		for _, key := range listKeys {
			if l, ok := v[key].([]any); ok {
				list = l
				break
			}
		}
	}

	tasks := make([]model.Payload, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			tasks = append(tasks, model.Payload(obj))
		}
	}
	return tasks
}

// extractCursor finds the next-page cursor of a decoded page.
func extractCursor(body any) (pageCursor, bool) {
	obj, ok := body.(map[string]any)
	if !ok {
		return pageCursor{}, false
	}
	for _, f := range cursorFields {
		if value := lookupScalar(obj, f.path); value != "" {
			return pageCursor{param: f.param, value: value}, true
		}
	}
	return pageCursor{}, false
}

func lookupScalar(obj map[string]any, path []string) string {
	var cur any = obj
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = m[key]
	}
	switch v := cur.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}
