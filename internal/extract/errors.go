package extract

import (
	"errors"
	"fmt"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// ErrorKind classifies why a page could not be extracted.
type ErrorKind string

const (
	KindService          ErrorKind = "service"
	KindParse            ErrorKind = "parse"
	KindExhaustedRetries ErrorKind = "exhausted_retries"
	KindUnknown          ErrorKind = "unknown"
)

// ExtractionError is returned once every attempt for a page has failed.
type ExtractionError struct {
	Kind     ErrorKind
	Attempts int
	Last     ErrorKind // kind of the final attempt's failure
	Cause    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed after %d attempts (%s): %v", e.Attempts, e.Last, e.Cause)
}

func (e *ExtractionError) Unwrap() []error {
	return []error{common.ErrExhaustedRetries, e.Cause}
}

// KindOf classifies err by the sentinel it wraps.
func KindOf(err error) ErrorKind {
	var xe *ExtractionError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &xe):
		return xe.Kind
	case errors.Is(err, common.ErrParse):
		return KindParse
	case errors.Is(err, common.ErrService):
		return KindService
	default:
		return KindUnknown
	}
}
