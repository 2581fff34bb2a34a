package playback

import (
	"fmt"
)

// Error is a media or source failure reported by an engine.
// Native engines fill Code and Extra, rich engines wrap their own error in Cause.
type Error struct {
	Code  int
	Extra int
	Cause error
}

// NewNativeError creates an error from a native what/extra pair.
func NewNativeError(code, extra int) *Error {
	return &Error{Code: code, Extra: extra}
}

// NewEngineError wraps an engine failure.
func NewEngineError(cause error) *Error {
	return &Error{Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("playback error: %v", e.Cause)
	}
	return fmt.Sprintf("playback error: code=%d extra=%d", e.Code, e.Extra)
}

// Unwrap returns the wrapped engine failure, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}
