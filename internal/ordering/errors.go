// ABOUTME: Validation errors raised by the executor before any backend call.
// ABOUTME: Never retried; messages are written for the assistant to relay.

package ordering

import (
	"errors"
	"fmt"
)

// ValidationError reports bad or missing tool arguments, an unknown tool,
// or a menu item id that is not in the latest search results.
type ValidationError struct {
	Tool    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(tool, format string, args ...any) *ValidationError {
	return &ValidationError{Tool: tool, Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// ErrOrderRejected is wrapped when the backend answers submit with success=false.
var ErrOrderRejected = errors.New("order was not accepted")

// ErrVerificationFailed is wrapped when OTP verification yields no token.
var ErrVerificationFailed = errors.New("verification failed")

// ErrOTPNotSent is wrapped when the backend declines to send a code.
var ErrOTPNotSent = errors.New("could not send verification code")
