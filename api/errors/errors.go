package errors

import (
	"fmt"
	"sort"
	"strings"
)

// MultiErrors collects payload validation errors by field.
type MultiErrors struct {
	Errors map[string][]ErrorInfo
}

type ErrorInfo struct {
	Message  string
	RawError error
}

func NewMultiErrors() *MultiErrors {
	return &MultiErrors{
		Errors: make(map[string][]ErrorInfo),
	}
}

func (e *MultiErrors) Add(key, message string, err error) {
	e.Errors[key] = append(e.Errors[key], ErrorInfo{
		Message:  message,
		RawError: err,
	})
}

func (e *MultiErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Fields maps each field to its messages, for JSON responses.
func (e *MultiErrors) Fields() map[string][]string {
	out := make(map[string][]string, len(e.Errors))
	for field, infos := range e.Errors {
		for _, info := range infos {
			out[field] = append(out[field], info.Message)
		}
	}
	return out
}

func (e *MultiErrors) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var parts []string
	for _, field := range fields {
		for _, err := range e.Errors[field] {
			parts = append(parts, fmt.Sprintf("%s: %s", field, err.Message))
		}
	}
	return strings.Join(parts, " | ")
}
