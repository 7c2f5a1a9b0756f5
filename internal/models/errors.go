package models

import (
	"errors"
	"fmt"
)

// ValidationError reports an input rejected before any network use.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// TransportError reports a missing, timed out or undecodable response.
type TransportError struct {
	Op       string
	Endpoint string
	Timeout  bool
	Err      error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s %s: request timed out: %v", e.Op, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("%s %s: transport failure: %v", e.Op, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServiceError reports an application-level failure returned by the service.
type ServiceError struct {
	Op         string
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s %s: service error: %s (status: %d)", e.Op, e.Endpoint, e.Message, e.StatusCode)
}

// PreconditionError reports an operation invoked in the wrong state.
type PreconditionError struct {
	Op      string
	Message string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: precondition failed: %s", e.Op, e.Message)
}

// EmptyInputError reports aggregation over an empty frame sequence.
type EmptyInputError struct {
	What string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("empty input: %s", e.What)
}

// IntegrityError reports a malformed or self-inconsistent payload.
type IntegrityError struct {
	Field   string
	Message string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("data integrity violation in %s: %s", e.Field, e.Message)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsTransport reports whether err wraps a TransportError.
func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// IsService reports whether err wraps a ServiceError.
func IsService(err error) bool {
	var target *ServiceError
	return errors.As(err, &target)
}

// IsPrecondition reports whether err wraps a PreconditionError.
func IsPrecondition(err error) bool {
	var target *PreconditionError
	return errors.As(err, &target)
}

// IsEmptyInput reports whether err wraps an EmptyInputError.
func IsEmptyInput(err error) bool {
	var target *EmptyInputError
	return errors.As(err, &target)
}

// IsIntegrity reports whether err wraps an IntegrityError.
func IsIntegrity(err error) bool {
	var target *IntegrityError
	return errors.As(err, &target)
}
