package errors

import "github.com/pkg/errors"

var (
	// common errors
	ErrTenantMissing     = errors.New("tenant is missing")
	ErrInvalidInput      = errors.New("invalid input parameters")
	ErrConnectionTimeout = errors.New("connection timeout")

	// directory errors
	ErrTenantNotFound = errors.New("tenant not found")
	ErrDriverNotFound = errors.New("driver not found")

	// ledger errors
	ErrViolationExists = errors.New("violation already exists")

	// inbound errors
	ErrInboundMessageNotFound  = errors.New("inbound message not found")
	ErrInvalidStatusTransition = errors.New("invalid inbound status transition")

	// mailbox errors
	ErrMissingMailCredentials = errors.New("mailbox credentials incomplete")
	ErrUnsupportedProvider    = errors.New("unsupported mail provider")
)
