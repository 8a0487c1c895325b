package source

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIsAuthError(t *testing.T) {
	httpErr := &HTTPError{Method: "GET", Path: "/tasks", StatusCode: 401, Body: `{"message":"bad key"}`}
	wrapped := fmt.Errorf("syncing: %w", &AuthError{Source: "motion", Err: httpErr})

	if !IsAuthError(wrapped) {
		t.Error("IsAuthError(wrapped AuthError) = false")
	}
	if IsAuthError(httpErr) {
		t.Error("IsAuthError(plain HTTPError) = true")
	}

	var got *HTTPError
	if !errors.As(wrapped, &got) || got.StatusCode != 401 {
		t.Errorf("errors.As did not reach the HTTPError: %v", got)
	}
	if !strings.Contains(wrapped.Error(), "bad key") {
		t.Errorf("error text lost the response body: %s", wrapped)
	}
}
