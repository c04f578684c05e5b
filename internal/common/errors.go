package common

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInternal         = errors.New("internal error")
	ErrConfig           = errors.New("invalid configuration")
	ErrRasterization    = errors.New("document could not be rasterized")
	ErrService          = errors.New("inference service error")
	ErrParse            = errors.New("model reply is not a JSON object")
	ErrExhaustedRetries = errors.New("retries exhausted")
	ErrEmptyResult      = errors.New("no data extracted")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// UserMessage flattens err into a single line of at most limit runes, suitable for end users.
// limit <= 0 disables truncation.
func UserMessage(err error, limit int) string {
	if err == nil {
		return ""
	}
	msg := strings.Join(strings.Fields(err.Error()), " ")
	return Truncate(msg, limit)
}

// Truncate cuts s to n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
