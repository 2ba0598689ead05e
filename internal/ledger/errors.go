package ledger

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors returned by the engine.
type ErrorCode string

const (
	// ErrCodeNotFound indicates the referenced group, transaction, item,
	// share or account does not exist or is invisible to the caller.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodePermissionDenied indicates the caller lacks write capability
	// for an otherwise visible entity.
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// ErrCodeInvalidCommand indicates the operation violates a lifecycle
	// rule: nothing to commit or discard, discarding a first revision,
	// wrong transaction type, acting on a deleted entity, or a rejected
	// attachment.
	ErrCodeInvalidCommand ErrorCode = "INVALID_COMMAND"
)

// Error is a classified engine error with enough context for a caller to
// react to it.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Entity names the kind of entity involved ("transaction", "item", ...).
	Entity string

	// ID identifies the entity, zero when not applicable.
	ID int64

	// Op is the public operation that failed. Filled in by the engine.
	Op string
}

// Error implements the error interface.
func (e *Error) Error() string {
	ref := ""
	if e.Entity != "" && e.ID != 0 {
		ref = fmt.Sprintf(" (%s=%d)", e.Entity, e.ID)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s%s", e.Code, e.Op, e.Message, ref)
	}
	return fmt.Sprintf("%s: %s%s", e.Code, e.Message, ref)
}

// NewNotFound creates a NOT_FOUND error.
func NewNotFound(entity string, id int64, message string) *Error {
	return &Error{Code: ErrCodeNotFound, Entity: entity, ID: id, Message: message}
}

// NewPermissionDenied creates a PERMISSION_DENIED error.
func NewPermissionDenied(entity string, id int64, message string) *Error {
	return &Error{Code: ErrCodePermissionDenied, Entity: entity, ID: id, Message: message}
}

// NewInvalidCommand creates an INVALID_COMMAND error.
func NewInvalidCommand(entity string, id int64, message string) *Error {
	return &Error{Code: ErrCodeInvalidCommand, Entity: entity, ID: id, Message: message}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if
// there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound returns true if err carries ErrCodeNotFound.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsPermissionDenied returns true if err carries ErrCodePermissionDenied.
func IsPermissionDenied(err error) bool {
	return CodeOf(err) == ErrCodePermissionDenied
}

// IsInvalidCommand returns true if err carries ErrCodeInvalidCommand.
func IsInvalidCommand(err error) bool {
	return CodeOf(err) == ErrCodeInvalidCommand
}
