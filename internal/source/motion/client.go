package motion

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"

	"github.com/nhle/pi-productivity/internal/model"
	"github.com/nhle/pi-productivity/internal/source"
)

var _ source.TaskSource = (*Client)(nil)

const (
	sourceName      = "motion"
	DefaultBaseURL  = "https://api.usemotion.com/v1"
	DefaultTimeout  = 15 * time.Second
	DefaultMaxPages = 1000
	tasksPath       = "/tasks"
	apiKeyHeader    = "X-API-Key"
)

// Config is everything the client needs. It is built once by the caller
// at startup; the client reads nothing from the environment.
type Config struct {
	BaseURL     string
	APIKey      string
	WorkspaceID string
	Timeout     time.Duration

	// MaxPages bounds an unlimited ListAllTasks call.
	MaxPages int
}

// Client talks to the Motion REST API.
type Client struct {
	rc          *resty.Client
	apiKey      string
	workspaceID string
	maxPages    int
}

// NewTask holds the fields of a task to create. Zero-valued optional
// fields are not sent.
type NewTask struct {
	Name            string
	Description     string
	DueDate         string
	Labels          []string
	DurationMinutes int
}

// NewClient builds a client from cfg, filling in defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	return &Client{
		rc: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(cfg.Timeout).
			SetHeader(apiKeyHeader, apiKey).
			SetHeader("Accept", "application/json"),
		apiKey:      apiKey,
		workspaceID: cfg.WorkspaceID,
		maxPages:    cfg.MaxPages,
	}
}

// HasAPIKey reports whether remote calls can be made.
func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

// ListAllTasks pages through GET /tasks until limit tasks are collected,
// the server stops returning a cursor, or a page comes back empty.
// A limit <= 0 fetches everything, bounded by MaxPages.
func (c *Client) ListAllTasks(ctx context.Context, limit int) ([]model.Payload, error) {
	if !c.HasAPIKey() {
		return nil, source.ErrMissingAPIKey
	}

	base := map[string]string{}
	if c.workspaceID != "" {
		base["workspaceId"] = c.workspaceID
	}
	query := base

	var out []model.Payload
	for page := 1; ; page++ {
		if limit <= 0 && page > c.maxPages {
			log.Warn().Int("pages", c.maxPages).Int("tasks", len(out)).
				Msg("task listing hit the page cap, stopping")
			break
		}

		body, err := c.do(ctx, http.MethodGet, tasksPath, query, nil)
		if err != nil {
			return nil, err
		}
		tasks := extractTasks(body)
		out = append(out, tasks...)
		log.Debug().Int("page", page).Int("tasks", len(tasks)).Msg("fetched task page")

		if limit > 0 && len(out) >= limit {
			return out[:limit], nil
		}
		next, ok := extractCursor(body)
		if !ok || len(tasks) == 0 {
			break
		}

		query = make(map[string]string, len(base)+1)
		for k, v := range base {
			query[k] = v
		}
		query[next.param] = next.value
	}
	return out, nil
}

// FindTaskByName returns the first task whose name (or title) contains
// needle, ignoring case. It scans the full task list.
func (c *Client) FindTaskByName(ctx context.Context, needle string) (model.Payload, bool, error) {
	if !c.HasAPIKey() {
		return nil, false, source.ErrMissingAPIKey
	}
	if strings.TrimSpace(needle) == "" {
		return nil, false, nil
	}

	tasks, err := c.ListAllTasks(ctx, 0)
	if err != nil {
		return nil, false, errors.Wrap(err, "error searching tasks")
	}

	fold := cases.Fold()
	want := fold.String(needle)
	for _, t := range tasks {
		name, _ := t["name"].(string)
		if name == "" {
			name, _ = t["title"].(string)
		}
		if strings.Contains(fold.String(name), want) {
			return t, true, nil
		}
	}
	return nil, false, nil
}

// CreateTask issues POST /tasks.
func (c *Client) CreateTask(ctx context.Context, task NewTask) (model.Payload, error) {
	if !c.HasAPIKey() {
		return nil, source.ErrMissingAPIKey
	}

	body := map[string]any{"name": task.Name}
	if task.Description != "" {
		body["description"] = task.Description
	}
	if task.DueDate != "" {
		body["dueDate"] = task.DueDate
	}
	if len(task.Labels) > 0 {
		body["labels"] = task.Labels
	}
	if task.DurationMinutes > 0 {
		body["duration"] = task.DurationMinutes
	}
	if c.workspaceID != "" {
		body["workspaceId"] = c.workspaceID
	}

	resp, err := c.do(ctx, http.MethodPost, tasksPath, nil, body)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating task %q", task.Name)
	}
	return asPayload(resp), nil
}

// CompleteTask marks a task as completed with PATCH /tasks/{id}.
func (c *Client) CompleteTask(ctx context.Context, taskID string) (model.Payload, error) {
	if !c.HasAPIKey() {
		return nil, source.ErrMissingAPIKey
	}

	resp, err := c.do(ctx, http.MethodPatch, tasksPath+"/"+url.PathEscape(taskID), nil, map[string]any{"completed": true})
	if err != nil {
		return nil, errors.Wrapf(err, "error completing task %s", taskID)
	}
	return asPayload(resp), nil
}

// do sends one request and decodes the JSON response. Numbers are kept as
// json.Number.
func (c *Client) do(ctx context.Context, method, path string, query map[string]string, body any) (any, error) {
	req := c.rc.R().
		SetContext(ctx).
		SetHeader("X-Request-Id", uuid.NewString())
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, errors.Wrapf(err, "error calling %s %s", method, path)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		httpErr := &source.HTTPError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode(),
			Body:       strings.TrimSpace(string(resp.Body())),
		}
		if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
			return nil, &source.AuthError{Source: sourceName, Err: httpErr}
		}
		return nil, httpErr
	}

	raw := bytes.TrimSpace(resp.Body())
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, errors.Wrapf(err, "error decoding %s %s response", method, path)
	}
	return out, nil
}

func asPayload(v any) model.Payload {
	if obj, ok := v.(map[string]any); ok {
		return model.Payload(obj)
	}
	return model.Payload{}
}
