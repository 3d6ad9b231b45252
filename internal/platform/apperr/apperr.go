// Package apperr defines the error taxonomy shared by the billing domain
// packages: not-found lookups, coded business-rule violations, and failures
// talking to external payer systems. Validation outcomes are not errors and
// are returned as plain result values by the operations that produce them.
package apperr

import (
	"errors"
	"fmt"
)

// Business rule codes surfaced to API clients. These are part of the wire
// contract and must stay stable.
const (
	CodeOverlappingAuthorization = "overlapping-authorization"
	CodeExceedsAuthorizedUnits   = "exceeds-authorized-units"
	CodeInvalidStatusTransition  = "invalid-status-transition"
	CodeClaimNotSubmittable      = "claim-not-submittable"
	CodeInvalidServiceStatus     = "invalid-service-status"
	CodeIncompleteDocumentation  = "incomplete-documentation"
	CodeDifferentClients         = "different-clients"
	CodeUnsupportedMethod        = "unsupported-submission-method"
	CodeAuthorizationInUse       = "authorization-in-use"
	CodeDuplicateAuthorization   = "duplicate-authorization-number"
)

// NotFoundError reports that a referenced entity does not exist. It is never
// retried and maps to HTTP 404.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NotFound builds a NotFoundError for the given entity and id.
func NotFound(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// BusinessError is a rule violation with a machine-readable code. It is never
// retried and maps to HTTP 422.
type BusinessError struct {
	Code    string
	Message string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Business builds a BusinessError with a formatted message.
func Business(code, format string, args ...interface{}) *BusinessError {
	return &BusinessError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// BusinessCode returns the code of a BusinessError in err's chain, or "".
func BusinessCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// IntegrationError is a failure talking to an external payer or
// clearinghouse. Retryable errors (network failures, 5xx, 429) may be
// re-attempted by a retry layer outside this core; others may not.
type IntegrationError struct {
	Op         string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *IntegrationError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IntegrationError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is an IntegrationError marked retryable.
func IsRetryable(err error) bool {
	var ie *IntegrationError
	return errors.As(err, &ie) && ie.Retryable
}
