package core

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Kind classifies a failure so adapters can map it without parsing messages.
type Kind string

const (
	KindNotFound            Kind = "NOT_FOUND"
	KindInsufficientStock   Kind = "INSUFFICIENT_STOCK"
	KindInvalidState        Kind = "INVALID_STATE"
	KindValidation          Kind = "VALIDATION_ERROR"
	KindInactiveItem        Kind = "INACTIVE_ITEM"
	KindConcurrencyConflict Kind = "CONCURRENCY_CONFLICT"
	KindIntegrityViolation  Kind = "INTEGRITY_VIOLATION"
)

// Error is the typed failure returned by every core operation.
// Code refines Kind for callers that need a specific case (e.g. DUPLICATE_BARCODE).
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors: by Code when the target carries one, otherwise by Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" {
		return e.Code == t.Code
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInsufficientStock   = &Error{Kind: KindInsufficientStock, Message: "insufficient stock"}
	ErrInvalidState        = &Error{Kind: KindInvalidState, Message: "invalid state"}
	ErrValidation          = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrInactiveItem        = &Error{Kind: KindInactiveItem, Message: "item is inactive"}
	ErrConcurrencyConflict = &Error{Kind: KindConcurrencyConflict, Message: "concurrency conflict"}
	ErrIntegrityViolation  = &Error{Kind: KindIntegrityViolation, Message: "integrity violation"}

	ErrDuplicateBarcode = &Error{Kind: KindValidation, Code: "DUPLICATE_BARCODE", Message: "duplicate barcode"}
	ErrDuplicateName    = &Error{Kind: KindValidation, Code: "DUPLICATE_NAME", Message: "duplicate name"}
	ErrHasHistory       = &Error{Kind: KindValidation, Code: "HAS_HISTORY", Message: "item has ledger history"}
	ErrStaleVersion     = &Error{Kind: KindConcurrencyConflict, Code: "STALE_VERSION", Message: "stale version"}
)

// KindOf returns the Kind of err, or "" when err is not a core error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf returns the most specific code of err: its Code, else its Kind.
func CodeOf(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	if e.Code != "" {
		return e.Code
	}
	return string(e.Kind)
}

func newError(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error {
	return newError(KindNotFound, "", format, args...)
}

func invalidState(format string, args ...any) error {
	return newError(KindInvalidState, "", format, args...)
}

func validation(format string, args ...any) error {
	return newError(KindValidation, "", format, args...)
}

func integrityViolation(format string, args ...any) error {
	return newError(KindIntegrityViolation, "", format, args...)
}

// SQLSTATE codes the runner and services classify.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
	sqlStateUniqueViolation      = "23505"
	sqlStateCheckViolation       = "23514"
	sqlStateForeignKeyViolation  = "23503"
	sqlStateNumericOutOfRange    = "22003"
)

// isTransient reports whether err is a lock or serialization failure worth retrying.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
		return true
	}
	return false
}

// classifyPgError converts PostgreSQL constraint failures that escaped the
// service checks into core errors. Other errors are returned unchanged.
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
		return &Error{Kind: KindConcurrencyConflict, Message: "concurrent update could not be serialized", Err: err}
	case sqlStateUniqueViolation:
		return &Error{Kind: KindValidation, Message: fmt.Sprintf("duplicate value violates %s", pgErr.ConstraintName), Err: err}
	case sqlStateNumericOutOfRange:
		return &Error{Kind: KindValidation, Message: "value is out of range", Err: err}
	case sqlStateCheckViolation, sqlStateForeignKeyViolation:
		return &Error{Kind: KindIntegrityViolation, Message: fmt.Sprintf("constraint %s violated", pgErr.ConstraintName), Err: err}
	}
	return err
}
