package srv

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrKind classifies a CodedError for HTTP status mapping and logging.
type ErrKind string

const (
	ErrValidation             ErrKind = "validation"
	ErrAuthMissing            ErrKind = "auth_missing"
	ErrConflict               ErrKind = "conflict"
	ErrBadState               ErrKind = "bad_state"
	ErrNotFound               ErrKind = "not_found"
	ErrPlayerAlreadyConnected ErrKind = "player_already_connected"
	ErrDictionaryUnavailable  ErrKind = "dictionary_unavailable"
	ErrIllegalState           ErrKind = "illegal_state"
	ErrNotInRoom              ErrKind = "not_in_room"
)

// statusByKind maps an error kind to its HTTP status per spec §7. BadState
// always maps to 400 here, ownership/permission violations included; no
// handler overrides this status.
var statusByKind = map[ErrKind]int{
	ErrValidation:             http.StatusUnprocessableEntity,
	ErrAuthMissing:            http.StatusForbidden,
	ErrConflict:               http.StatusConflict,
	ErrBadState:               http.StatusBadRequest,
	ErrNotFound:               http.StatusNotFound,
	ErrPlayerAlreadyConnected: http.StatusConflict,
	ErrDictionaryUnavailable:  http.StatusServiceUnavailable,
	ErrIllegalState:           http.StatusInternalServerError,
	ErrNotInRoom:              http.StatusConflict,
}

// CodedError carries an ErrKind so HTTP handlers and the WS router can map
// it to a response without string-matching.
type CodedError struct {
	Kind ErrKind
	msg  string
}

func (e *CodedError) Error() string { return e.msg }

// Status returns the HTTP status code this error should produce.
func (e *CodedError) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func codedErrorf(kind ErrKind, format string, args ...any) error {
	return &CodedError{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// NewCodedError lets collaborators outside this package (internal/db's
// unique-constraint detection) raise an error this package's HTTP/WS
// layers know how to map to a status.
func NewCodedError(kind ErrKind, format string, args ...any) error {
	return codedErrorf(kind, format, args...)
}

// kindOf extracts the ErrKind of err, if any, defaulting to ErrIllegalState.
func kindOf(err error) ErrKind {
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ErrIllegalState
}

// statusFor maps any error to an HTTP status code for the REST surface.
func statusFor(err error) int {
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce.Status()
	}
	return http.StatusInternalServerError
}
