package notifier

import (
	"fmt"

	"github.com/pkg/errors"
)

type FailureKind string

const (
	Transient FailureKind = "transient"
	Fatal     FailureKind = "fatal"
)

// DeliveryError classifies a failed send. Network errors, timeouts, 429 and 5xx responses are
// transient; other 4xx responses and local configuration errors are fatal.
type DeliveryError struct {
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s delivery failure (HTTP %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s delivery failure: %v", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func transientErr(statusCode int, err error) *DeliveryError {
	return &DeliveryError{Kind: Transient, StatusCode: statusCode, Err: err}
}

func fatalErr(statusCode int, err error) *DeliveryError {
	return &DeliveryError{Kind: Fatal, StatusCode: statusCode, Err: err}
}

// IsTransient reports whether err may succeed on retry. Unclassified errors are treated as
// transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Kind == Transient
	}
	return true
}

func classifyStatus(statusCode int, body string) *DeliveryError {
	err := errors.Errorf("whatsapp returned HTTP %d: %s", statusCode, body)
	if statusCode >= 500 || statusCode == 429 || statusCode == 408 {
		return transientErr(statusCode, err)
	}
	return fatalErr(statusCode, err)
}
