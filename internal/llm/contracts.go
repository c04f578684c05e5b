package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/raster"
)

// Inferencer is the vision-language service: one prompt plus one page image in, raw text out.
// Implementations must be safe to reuse across calls of a run.
type Inferencer interface {
	Infer(ctx context.Context, prompt string, page raster.Page) (string, error)
}

// Record maps every schema field to a string value or constants.NotFound.
// Records are built by Normalize and never modified afterwards.
type Record struct {
	values map[string]string
}

// Get returns the value of field, or NotFound for fields outside the schema.
func (r Record) Get(field string) string {
	if v, ok := r.values[field]; ok {
		return v
	}
	return constants.NotFound
}

// Values returns the record as a row ordered by constants.InvoiceFields.
func (r Record) Values() []string {
	out := make([]string, len(constants.InvoiceFields))
	for i, f := range constants.InvoiceFields {
		out[i] = r.Get(f)
	}
	return out
}

// Map returns a copy of the underlying values.
func (r Record) Map() map[string]string {
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

func (r Record) IsZero() bool { return r.values == nil }

// MarshalJSON keeps schema order so reports read the same as the spreadsheet.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range constants.InvoiceFields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(f)
		v, _ := json.Marshal(r.Get(f))
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParseError means a reply could not be read as a JSON object, even after fence stripping.
type ParseError struct {
	Reason string
	Raw    string // truncated reply, for logs only
	Cause  error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse reply: %s: %v", e.Reason, e.Cause)
	}
	return "parse reply: " + e.Reason
}

func (e *ParseError) Unwrap() []error {
	if e.Cause == nil {
		return []error{common.ErrParse}
	}
	return []error{common.ErrParse, e.Cause}
}

// ServiceError covers auth failures, quota errors and transport faults of the inference service.
type ServiceError struct {
	Provider   string
	StatusCode int // 0 when unknown
	Cause      error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Cause)
}

func (e *ServiceError) Unwrap() []error {
	return []error{common.ErrService, e.Cause}
}
