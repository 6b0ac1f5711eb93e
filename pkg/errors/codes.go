package errors

import "net/http"

// Code classifies a failure. The dispatch pipeline only ever branches on the
// code, never on the message.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// A required input field was absent or blank. Never retried.
	CodeMissingField Code = "MISSING_REQUIRED_FIELD"
	// The external channel failed in a way a later attempt may not.
	CodeTransientChannel Code = "TRANSIENT_CHANNEL_FAILURE"
	// The external channel rejected the request outright.
	CodePermanentChannel Code = "PERMANENT_CHANNEL_FAILURE"
	// The side effect may have happened but its status row was not written.
	CodeStatusWrite Code = "STATUS_WRITE_FAILURE"
)

// Metadata is how a code surfaces to callers: HTTP status, public wording and
// whether the caller may re-attempt.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

func meta(status int, retryable bool, public string, details bool) Metadata {
	return Metadata{HTTPStatus: status, Retryable: retryable, PublicMessage: public, DetailsAllowed: details}
}

var catalog = map[Code]Metadata{
	CodeValidation:    meta(http.StatusBadRequest, false, "validation failed", true),
	CodeNotFound:      meta(http.StatusNotFound, false, "resource not found", false),
	CodeConflict:      meta(http.StatusConflict, false, "conflict detected", false),
	CodeStateConflict: meta(http.StatusUnprocessableEntity, false, "state transition disallowed", true),
	CodeInternal:      meta(http.StatusInternalServerError, true, "internal server error", false),
	CodeDependency:    meta(http.StatusServiceUnavailable, true, "dependency unavailable", true),

	CodeMissingField:     meta(http.StatusUnprocessableEntity, false, "required field missing", true),
	CodeTransientChannel: meta(http.StatusServiceUnavailable, true, "delivery channel temporarily unavailable", false),
	CodePermanentChannel: meta(http.StatusBadGateway, false, "delivery channel rejected the request", true),
	CodeStatusWrite:      meta(http.StatusInternalServerError, true, "status could not be recorded", false),
}

// MetadataFor looks up code, treating unknown codes as internal errors.
func MetadataFor(code Code) Metadata {
	if m, ok := catalog[code]; ok {
		return m
	}
	return catalog[CodeInternal]
}

func (c Code) String() string { return string(c) }

// Retryable reports whether failures with this code may be re-attempted.
func (c Code) Retryable() bool { return MetadataFor(c).Retryable }
