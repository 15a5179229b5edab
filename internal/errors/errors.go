// Package errors provides the transport-agnostic error taxonomy for the
// playground control plane.
//
// Every operation on every component (C1-C8) is total over this taxonomy:
// callers never see a raw Kubernetes error or a bare Go error escape a
// component boundary. The HTTP layer maps a Kind to a status code and an
// envelope of the form:
//
//	{"error": {"type": "<Kind>", "message": "..."}}
//
// Usage patterns:
//
//	return errors.UnknownResource("Session", id)
//	return errors.Wrap(errors.KindFailure, "list pods", err)
package errors

import (
	"fmt"
	"net/http"
)

// Kind is a machine-readable error identifier, one per spec error kind.
type Kind string

const (
	KindUnauthorized                    Kind = "UNAUTHORIZED"
	KindUnknownResource                 Kind = "UNKNOWN_RESOURCE"
	KindResourceNotOwned                Kind = "RESOURCE_NOT_OWNED"
	KindSessionIDAlreadyUsed            Kind = "SESSION_ID_ALREADY_USED"
	KindConcurrentSessionsLimitBreached Kind = "CONCURRENT_SESSIONS_LIMIT_BREACHED"
	KindDurationLimitBreached           Kind = "DURATION_LIMIT_BREACHED"
	KindRepositoryVersionNotReady       Kind = "REPOSITORY_VERSION_NOT_READY"
	KindMissingAnnotation               Kind = "MISSING_ANNOTATION"
	KindMissingData                     Kind = "MISSING_DATA"
	KindMissingEnvironmentVariable      Kind = "MISSING_ENVIRONMENT_VARIABLE"
	KindFailure                         Kind = "FAILURE"
)

// AppError is the concrete error type returned by every component operation.
type AppError struct {
	Kind Kind `json:"type"`

	// Message is a human-readable description, safe to return to callers.
	Message string `json:"message"`

	// Details carries a wrapped cause, useful in logs but not sent over the wire.
	Details string `json:"-"`

	// StatusCode is the HTTP status the REST boundary maps this Kind to.
	StatusCode int `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ErrorResponse is the JSON envelope spec §7 specifies.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ToResponse converts an AppError to the wire envelope.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: ErrorBody{Type: string(e.Kind), Message: e.Message}}
}

func statusFor(kind Kind) int {
	switch kind {
	case KindUnauthorized, KindResourceNotOwned:
		return http.StatusForbidden
	case KindUnknownResource:
		return http.StatusNotFound
	case KindSessionIDAlreadyUsed, KindConcurrentSessionsLimitBreached:
		return http.StatusConflict
	case KindDurationLimitBreached, KindRepositoryVersionNotReady:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func newErr(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message, StatusCode: statusFor(kind)}
}

// Wrap attaches an underlying cause to a Kind as Details.
func Wrap(kind Kind, message string, cause error) *AppError {
	err := newErr(kind, message)
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// Unauthorized reports that ensure(caller, resource, perm) denied access.
func Unauthorized(resource string, perm string) *AppError {
	return newErr(KindUnauthorized, fmt.Sprintf("caller lacks permission %s on %s", perm, resource))
}

// UnknownResource reports a failed get/lookup.
func UnknownResource(resourceType string, id string) *AppError {
	return newErr(KindUnknownResource, fmt.Sprintf("%s %q not found", resourceType, id))
}

// ResourceNotOwned reports that the caller is neither the owner nor an admin.
func ResourceNotOwned(resourceType string, id string) *AppError {
	return newErr(KindResourceNotOwned, fmt.Sprintf("%s %q is not owned by caller", resourceType, id))
}

// SessionIDAlreadyUsed reports the idempotence guard firing on create.
func SessionIDAlreadyUsed(id string) *AppError {
	return newErr(KindSessionIDAlreadyUsed, fmt.Sprintf("session id %q already in use", id))
}

// ConcurrentSessionsLimitBreached reports admission rejection by pool capacity.
func ConcurrentSessionsLimitBreached(n int) *AppError {
	return newErr(KindConcurrentSessionsLimitBreached, fmt.Sprintf("pool is at capacity (%d concurrent sessions)", n))
}

// DurationLimitBreached reports a requested duration >= the configured maximum,
// ms expressed in milliseconds per spec §7.
func DurationLimitBreached(ms int64) *AppError {
	return newErr(KindDurationLimitBreached, fmt.Sprintf("requested duration exceeds maximum of %dms", ms))
}

// RepositoryVersionNotReady reports the source version is not in Ready state.
func RepositoryVersionNotReady(repositoryID, versionID string) *AppError {
	return newErr(KindRepositoryVersionNotReady, fmt.Sprintf("repository version %s/%s is not ready", repositoryID, versionID))
}

// MissingAnnotation reports an observed Kubernetes object lacking an expected annotation.
func MissingAnnotation(name string) *AppError {
	return newErr(KindMissingAnnotation, fmt.Sprintf("missing annotation %q", name))
}

// MissingData reports an observed Kubernetes object violating its expected shape.
func MissingData(path string) *AppError {
	return newErr(KindMissingData, fmt.Sprintf("missing data at %q", path))
}

// MissingEnvironmentVariable reports a startup-only configuration failure.
func MissingEnvironmentVariable(name string) *AppError {
	return newErr(KindMissingEnvironmentVariable, fmt.Sprintf("missing required environment variable %q", name))
}

// Failure wraps a transport or serialization failure that doesn't fit another kind.
func Failure(cause error) *AppError {
	return Wrap(KindFailure, "operation failed", cause)
}

// As extracts an *AppError from a generic error, wrapping it as a Failure
// when it isn't already one. Used at component boundaries that call
// directly into client-go.
func As(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return Failure(err)
}
