package platform

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
)

// APIError is a non-2xx response from the agent service.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
	err        error
}

// Error implements the error interface for APIError
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: agent service error %d: %s", e.Op, e.StatusCode, e.Message)
}

// Unwrap returns the underlying SDK error.
func (e *APIError) Unwrap() error {
	return e.err
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var sdkErr *openai.Error
	if errors.As(err, &sdkErr) {
		msg := sdkErr.Message
		if msg == "" {
			msg = http.StatusText(sdkErr.StatusCode)
		}
		return &APIError{Op: op, StatusCode: sdkErr.StatusCode, Message: msg, err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
