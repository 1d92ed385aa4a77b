package domain

import (
	"errors"
	"fmt"
)

// ErrKind groups client errors so the view layer can tell a denial from a network failure.
type ErrKind string

const (
	KindRequest    ErrKind = "request"    // network / HTTP failure
	KindValidation ErrKind = "validation" // client-side constraint, never reaches the network
	KindAuth       ErrKind = "auth"       // missing / invalid / expired token
	KindSchema     ErrKind = "schema"     // malformed server payload
	KindPermission ErrKind = "permission" // role does not allow the action
)

// DefaultRequestMessage is used when the server gives no error body.
const DefaultRequestMessage = "Something went wrong"

// Error is a structured client error.
// - Kind: high-level category
// - Code: stable machine code
// - Message: user-facing summary (server message when there is one)
// - Status: HTTP status for request errors, 0 otherwise
// - Meta: optional details (field -> rule for validation errors)
// - Cause: wrapped error for logging and errors.Is
type Error struct {
	Kind    ErrKind
	Code    string
	Message string
	Status  int
	Meta    map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind ErrKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Wrap(kind ErrKind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

// IsKind reports whether err carries a *Error of the given kind.
func IsKind(err error, kind ErrKind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// Is reports whether err carries a *Error with the given code.
func Is(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Message returns the text a store keeps as its last error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

// ----------------------
// Request errors
// ----------------------

func ErrRequest(status int, msg string, cause error) *Error {
	if msg == "" {
		msg = DefaultRequestMessage
	}
	return &Error{Kind: KindRequest, Code: "request_failed", Message: msg, Status: status, Cause: cause}
}

// ----------------------
// Validation errors
// ----------------------

func ErrValidation(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Code: "validation_failed", Message: msg, Meta: fields}
}

func ErrInvalidField(field, reason string) *Error {
	return ErrValidation(field+" "+reason, map[string]string{field: reason})
}

// ----------------------
// Auth errors
// ----------------------

func ErrAuth(code, msg string, cause error) *Error {
	return Wrap(KindAuth, code, msg, cause)
}

func ErrUnauthenticated() *Error {
	return New(KindAuth, "auth_required", "Please log in to mark your attendance.")
}

func ErrNoSession() *Error {
	return New(KindAuth, "no_session", "Please login first")
}

func ErrSessionExpired() *Error {
	return New(KindAuth, "session_expired", "Session expired, please login again")
}

// ----------------------
// Schema errors
// ----------------------

func ErrSchema(msg string, cause error) *Error {
	return Wrap(KindSchema, "malformed_response", msg, cause)
}

// ----------------------
// Permission errors
// ----------------------

// ErrPermission builds the denial for a management action ("create", "edit", "delete").
func ErrPermission(action string) *Error {
	return WithMeta(
		New(KindPermission, "permission_denied", fmt.Sprintf("Only administrators can %s events.", action)),
		map[string]string{"action": action},
	)
}

func WithMeta(err *Error, meta map[string]string) *Error {
	err.Meta = meta
	return err
}
