// Package errors defines the structured error taxonomy shared by the
// settlement services and the HTTP layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a service error.
type Code string

const (
	CodeValidation          Code = "validation_error"
	CodeNotFound            Code = "not_found"
	CodeInsufficientBalance Code = "insufficient_balance"
	CodeChainFailure        Code = "chain_operation_failed"
	CodeCompensationFailed  Code = "compensation_failed"
	CodeInvalidState        Code = "invalid_state"
	CodeInternal            Code = "internal_error"
)

// ServiceError carries a machine-readable code alongside the message and the
// HTTP status the API layer should respond with.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	cause      error
}

func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.cause }

// Is lets errors.Is match two service errors by code.
func (e *ServiceError) Is(target error) bool {
	var other *ServiceError
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// Validation reports rejected input. No state is mutated before it is raised.
func Validation(format string, args ...any) *ServiceError {
	return &ServiceError{
		Code:       CodeValidation,
		Message:    fmt.Sprintf(format, args...),
		HTTPStatus: http.StatusBadRequest,
	}
}

// NotFound reports an unknown resource.
func NotFound(resource, id string) *ServiceError {
	return &ServiceError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s %s not found", resource, id),
		HTTPStatus: http.StatusNotFound,
	}
}

// InsufficientBalance reports a ledger-side balance shortfall.
func InsufficientBalance(chain, userID string) *ServiceError {
	return &ServiceError{
		Code:       CodeInsufficientBalance,
		Message:    fmt.Sprintf("insufficient balance for %s on %s", userID, chain),
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// ChainFailure reports a failed chain operation, transient or permanent.
func ChainFailure(op, chain string, cause error) *ServiceError {
	return &ServiceError{
		Code:       CodeChainFailure,
		Message:    fmt.Sprintf("%s failed on %s", op, chain),
		HTTPStatus: http.StatusBadGateway,
		cause:      cause,
	}
}

// CompensationFailed reports a failed compensating mint. Settlements carrying
// this error are stuck in COMPENSATING and need operator intervention.
func CompensationFailed(settlementID string, cause error) *ServiceError {
	return &ServiceError{
		Code:       CodeCompensationFailed,
		Message:    fmt.Sprintf("compensation for settlement %s failed; manual intervention required", settlementID),
		HTTPStatus: http.StatusInternalServerError,
		cause:      cause,
	}
}

// InvalidState reports an operation attempted against a settlement whose
// status does not allow it.
func InvalidState(format string, args ...any) *ServiceError {
	return &ServiceError{
		Code:       CodeInvalidState,
		Message:    fmt.Sprintf(format, args...),
		HTTPStatus: http.StatusConflict,
	}
}

// IsCode reports whether err (or anything it wraps) is a service error with
// the given code.
func IsCode(err error, code Code) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Code == code
	}
	return false
}

// HTTPStatus extracts the response status for err, defaulting to 500.
func HTTPStatus(err error) int {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
