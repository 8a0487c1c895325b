package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/pi-productivity/internal/model"
)

// ErrMissingAPIKey is returned by every remote operation when the client
// was built without an API key.
var ErrMissingAPIKey = errors.New("task API key is not configured")

// HTTPError is a non-2xx response from the remote task API.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// AuthError indicates that the remote API rejected the credentials.
// It is returned for 401 and 403 responses and wraps the HTTPError.
type AuthError struct {
	Source string
	Err    *HTTPError
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %v", e.Source, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// TaskSource lists raw task payloads from a remote task manager.
type TaskSource interface {
	// ListAllTasks pages through the remote task list. A limit <= 0
	// fetches every page.
	ListAllTasks(ctx context.Context, limit int) ([]model.Payload, error)
}
