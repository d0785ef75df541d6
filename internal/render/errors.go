package render

import (
	"encoding/json"
	"fmt"
	"time"
)

// render reached failed or cancelled
type RenderError struct {
	ID      string
	Status  string
	Message string
	// remote status payload as returned by the API
	Response json.RawMessage
}

func (e *RenderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("render %s %s: %s", e.ID, e.Status, e.Message)
	}
	return fmt.Sprintf("render %s did not complete successfully: %s", e.ID, e.Status)
}

// render still running when the poll timeout expired
type RenderTimeoutError struct {
	ID      string
	Timeout time.Duration
	Err     error
}

func (e *RenderTimeoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("render %s: stopped waiting: %v", e.ID, e.Err)
	}
	return fmt.Sprintf("timed out after %s waiting for render %s", e.Timeout, e.ID)
}

func (e *RenderTimeoutError) Unwrap() error { return e.Err }
