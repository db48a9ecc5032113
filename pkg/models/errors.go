package models

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies the failures adapters surface to steps.
type ErrorKind string

const (
	// ErrorKindRemoteFailure — the remote service answered with a non-success response.
	ErrorKindRemoteFailure ErrorKind = "remote_failure"
	// ErrorKindTransportFailure — network/TLS failure before any response.
	ErrorKindTransportFailure ErrorKind = "transport_failure"
	// ErrorKindParseFailure — the response could not be decoded.
	ErrorKindParseFailure ErrorKind = "parse_failure"
	// ErrorKindInvalidInput — a value failed validation, e.g. a malformed channel URL.
	ErrorKindInvalidInput ErrorKind = "invalid_input"
	// ErrorKindMissingImplementation — guard against an unhandled combination of step preconditions.
	ErrorKindMissingImplementation ErrorKind = "missing_implementation"
	// ErrorKindTimeout — the adapter call exceeded its deadline.
	ErrorKindTimeout ErrorKind = "timeout"
	// ErrorKindInternal is not produced by adapters; it labels recovered
	// panics and other unclassified engine failures in logs and metrics.
	ErrorKindInternal ErrorKind = "internal"
)

// Service names used in error messages and metric labels.
const (
	ServiceHelpdesk      = "helpdesk"
	ServiceKnowledgeBase = "tracker"
	ServiceChat          = "chat"
	ServiceLLM           = "llm"
)

// ServiceError is the structured error adapters return to the pipeline. Its
// Error() string is what ends up in Step.Error, so the format is part of the
// observable surface.
type ServiceError struct {
	Kind    ErrorKind
	Service string
	// HTTPStatus is set for remote_failure.
	HTTPStatus int
	// Field is set for invalid_input.
	Field string
	// Step is set for missing_implementation.
	Step StepType
	// Detail carries the response body, parse detail, or validation detail.
	Detail string
	// After is the exceeded deadline for timeout.
	After time.Duration

	cause error
}

func (e *ServiceError) Error() string {
	switch e.Kind {
	case ErrorKindRemoteFailure:
		return fmt.Sprintf("%s: %s returned status %d: %s", e.Kind, e.Service, e.HTTPStatus, e.Detail)
	case ErrorKindTransportFailure:
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Service, e.Detail)
	case ErrorKindParseFailure:
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Service, e.Detail)
	case ErrorKindInvalidInput:
		return fmt.Sprintf("%s: field %s: %s", e.Kind, e.Field, e.Detail)
	case ErrorKindMissingImplementation:
		return fmt.Sprintf("%s: step %s", e.Kind, e.Step)
	case ErrorKindTimeout:
		return fmt.Sprintf("%s: %s: timeout after %s", e.Kind, e.Service, e.After)
	default:
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Service, e.Detail)
	}
}

func (e *ServiceError) Unwrap() error { return e.cause }

// NewRemoteFailure builds a remote_failure from a non-success response.
func NewRemoteFailure(service string, status int, body string) *ServiceError {
	return &ServiceError{Kind: ErrorKindRemoteFailure, Service: service, HTTPStatus: status, Detail: body}
}

// NewTransportFailure builds a transport_failure wrapping the network cause.
func NewTransportFailure(service string, cause error) *ServiceError {
	return &ServiceError{Kind: ErrorKindTransportFailure, Service: service, Detail: cause.Error(), cause: cause}
}

// NewParseFailure builds a parse_failure wrapping the decode cause.
func NewParseFailure(service string, cause error) *ServiceError {
	return &ServiceError{Kind: ErrorKindParseFailure, Service: service, Detail: cause.Error(), cause: cause}
}

// NewInvalidInput builds an invalid_input for a named field.
func NewInvalidInput(field, detail string) *ServiceError {
	return &ServiceError{Kind: ErrorKindInvalidInput, Field: field, Detail: detail}
}

// NewMissingImplementation marks an unhandled precondition combination for a step.
func NewMissingImplementation(step StepType) *ServiceError {
	return &ServiceError{Kind: ErrorKindMissingImplementation, Step: step}
}

// NewTimeout builds a timeout error for a service call that exceeded its deadline.
func NewTimeout(service string, after time.Duration) *ServiceError {
	return &ServiceError{Kind: ErrorKindTimeout, Service: service, After: after, cause: context.DeadlineExceeded}
}

// ClassifyTransport maps a failed round-trip to timeout or transport_failure.
// Adapters call it when the HTTP client or SDK returns before any usable
// response; after is the per-call deadline that was in force.
func ClassifyTransport(service string, err error, after time.Duration) *ServiceError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeout(service, after)
	}
	return NewTransportFailure(service, err)
}

// KindOf extracts the ErrorKind from err, or ErrorKindInternal when err is
// not a ServiceError (recovered panics, programming errors).
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ErrorKindInternal
}
