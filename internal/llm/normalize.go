package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// Normalize coerces a model reply into a Record with exactly the schema fields.
// input may be reply text (string or []byte), an already decoded object
// (map[string]any or map[string]string) or a Record.
func Normalize(input any) (Record, error) {
	switch v := input.(type) {
	case Record:
		return project(v.values), nil
	case map[string]string:
		return project(v), nil
	case map[string]any:
		return projectAny(v), nil
	case string:
		return normalizeText([]byte(v))
	case []byte:
		return normalizeText(v)
	case nil:
		return Record{}, &ParseError{Reason: "empty reply"}
	default:
		return Record{}, &ParseError{Reason: fmt.Sprintf("unsupported reply type %T", input)}
	}
}

// StripCodeFences removes a surrounding markdown fence such as ```json ... ```.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop the info string (json, JSON, javascript...) up to the first newline
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "json"), "JSON")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func normalizeText(raw []byte) (Record, error) {
	text := StripCodeFences(string(raw))
	if text == "" {
		return Record{}, &ParseError{Reason: "empty reply"}
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return Record{}, &ParseError{Reason: "invalid json", Raw: snippet(text), Cause: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Record{}, &ParseError{Reason: "trailing data after json value", Raw: snippet(text)}
	}

	// Some models wrap the object in a one-element array.
	if arr, ok := doc.([]any); ok && len(arr) == 1 {
		if obj, ok := arr[0].(map[string]any); ok {
			doc = obj
		}
	}

	if err := validateInvoiceDoc(doc); err != nil {
		return Record{}, &ParseError{Reason: "reply is not a JSON object", Raw: snippet(text), Cause: err}
	}
	return projectAny(doc.(map[string]any)), nil
}

func project(m map[string]string) Record {
	values := make(map[string]string, len(constants.InvoiceFields))
	for _, f := range constants.InvoiceFields {
		if v, ok := m[f]; ok {
			values[f] = v
		} else {
			values[f] = constants.NotFound
		}
	}
	return Record{values: values}
}

func projectAny(m map[string]any) Record {
	values := make(map[string]string, len(constants.InvoiceFields))
	for _, f := range constants.InvoiceFields {
		if v, ok := m[f]; ok {
			values[f] = coerceValue(v)
		} else {
			values[f] = constants.NotFound
		}
	}
	return Record{values: values}
}

// coerceValue renders a decoded JSON value as a cell string.
func coerceValue(v any) string {
	switch t := v.(type) {
	case nil:
		return constants.NotFound
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(t); err != nil {
			return fmt.Sprintf("%v", t)
		}
		return strings.TrimSpace(buf.String())
	}
}

func snippet(s string) string {
	if len(s) <= 200 {
		return s
	}
	return s[:200] + "...(truncated)"
}
