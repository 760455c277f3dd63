package scrape

import (
	"errors"
	"fmt"
)

// ErrBrowserUnavailable marks the one fatal stage condition: the browser
// session could not be acquired at all. It aborts the stage immediately and
// is retried only at the whole-stage level by the orchestrator.
var ErrBrowserUnavailable = errors.New("browser session unavailable")

// ConfigError reports invalid operator input (missing required column, empty
// input list). It is surfaced immediately and never retried.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}

// NewConfigError builds a ConfigError with a formatted reason.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ExtractionError wraps a per-item extraction failure with the stage and
// item identity so the run log can locate the offending work item.
type ExtractionError struct {
	Stage string
	Item  string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("stage %s: item %q: %v", e.Stage, e.Item, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the error must abort the stage rather than demote
// to a recorded item failure.
func IsFatal(err error) bool {
	return errors.Is(err, ErrBrowserUnavailable) || IsConfigError(err)
}
