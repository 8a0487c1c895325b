package store

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nhle/pi-productivity/internal/model"
)

// Ordered fallback lists for each normalized field.
var (
	idFields       = []string{"id", "taskId", "uid", "_id"}
	titleFields    = []string{"name", "title", "summary", "description"}
	labelFields    = []string{"labels", "labelNames"}
	noteFields     = []string{"description", "note"}
	projectFields  = []string{"projectName", "project"}
	dueFields      = []string{"dueDate", "due", "due_date", "deadline", "end"}
	nestedDueField = []string{"datetime", "date", "dueDate"}
)

const (
	maxLabels       = 3
	maxSubtitleRune = 60
)

// Normalize maps a raw payload onto the fixed task schema. Missing or
// malformed fields fall back to defaults; the only error is a payload that
// cannot be serialized to JSON at all.
func Normalize(p model.Payload, ingestedAt time.Time, loc *time.Location) (model.Task, error) {
	raw, err := canonicalJSON(p)
	if err != nil {
		return model.Task{}, fmt.Errorf("serializing payload: %w", err)
	}

	id := firstScalar(p, idFields)
	if id == "" {
		sum := sha1.Sum(raw)
		id = hex.EncodeToString(sum[:])
	}

	title := firstScalar(p, titleFields)
	if title == "" {
		title = model.UntitledTaskName
	}

	return model.Task{
		ID:        id,
		Title:     title,
		Subtitle:  extractSubtitle(p),
		DueDate:   extractDueDate(p, loc),
		Status:    extractStatus(p),
		Raw:       string(raw),
		UpdatedAt: ingestedAt,
	}, nil
}

// TaskID returns the identifier Normalize would assign to p.
func TaskID(p model.Payload) (string, error) {
	t, err := Normalize(p, time.Time{}, time.UTC)
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

// canonicalJSON serializes p with keys sorted at every depth, compact
// separators and no HTML escaping, so equal content hashes equally.
func canonicalJSON(p model.Payload) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]any(p)); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// scalarString renders strings and numbers; anything else is "".
func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	default:
		return ""
	}
}

func firstScalar(p model.Payload, keys []string) string {
	for _, k := range keys {
		if s := scalarString(p[k]); s != "" {
			return s
		}
	}
	return ""
}

// nameOf returns a scalar as text, or the "name" of an object.
func nameOf(v any) string {
	if obj, ok := v.(map[string]any); ok {
		return scalarString(obj["name"])
	}
	return scalarString(v)
}

func extractSubtitle(p model.Payload) string {
	for _, k := range labelFields {
		switch v := p[k].(type) {
		case []any:
			var clean []string
			for _, l := range v {
				if s := nameOf(l); s != "" {
					clean = append(clean, s)
				}
			}
			if len(clean) > maxLabels {
				clean = clean[:maxLabels]
			}
			if len(clean) > 0 {
				return strings.Join(clean, ", ")
			}
		case nil:
		default:
			if s := nameOf(v); s != "" {
				return s
			}
		}
	}

	for _, k := range noteFields {
		note, ok := p[k].(string)
		if !ok {
			continue
		}
		line, _, _ := strings.Cut(strings.TrimSpace(note), "\n")
		if line = strings.TrimSpace(line); line != "" {
			return truncateRunes(line, maxSubtitleRune)
		}
	}

	for _, k := range projectFields {
		if s := nameOf(p[k]); s != "" {
			return s
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func extractStatus(p model.Payload) string {
	var status string
	switch v := p["status"].(type) {
	case string:
		status = v
	case map[string]any:
		status, _ = v["name"].(string)
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if status != "" {
		return status
	}
	if done, ok := p["completed"].(bool); ok && done {
		return model.StatusCompleted
	}
	return model.StatusPending
}

func extractDueDate(p model.Payload, loc *time.Location) *string {
	for _, k := range dueFields {
		if due, ok := parseDue(p[k], loc); ok {
			return &due
		}
	}
	return nil
}
