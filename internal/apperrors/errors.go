// Package apperrors defines the error taxonomy shared by the aggregation
// pipeline, the rollup merger and the sale ledger.
package apperrors

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an AppError.
type Kind string

const (
	// KindFetch: the external event source is unreachable or returned a malformed response.
	KindFetch Kind = "FETCH"

	// KindPersistence: a single datastore write failed.
	KindPersistence Kind = "PERSISTENCE"

	// KindReconciliation: a listing lifecycle transition is ambiguous or already applied.
	KindReconciliation Kind = "RECONCILIATION"

	KindValidation Kind = "VALIDATION"
	KindNotFound   Kind = "NOT_FOUND"
	KindConflict   Kind = "CONFLICT"
	KindInternal   Kind = "INTERNAL"
)

// AppError is an error with a kind and a captured stack.
type AppError struct {
	Kind    Kind
	Message string
	Err     error
	stack   error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Stack renders the stack captured when the error was created.
func (e *AppError) Stack() string {
	if e.stack == nil {
		return ""
	}
	return fmt.Sprintf("%+v", e.stack)
}

func newError(kind Kind, message string, err error) *AppError {
	return &AppError{
		Kind:    kind,
		Message: message,
		Err:     err,
		stack:   errors.New(string(kind)),
	}
}

func NewFetchError(message string, err error) *AppError {
	return newError(KindFetch, message, err)
}

func NewPersistenceError(message string, err error) *AppError {
	return newError(KindPersistence, message, err)
}

func NewReconciliationError(message string) *AppError {
	return newError(KindReconciliation, message, nil)
}

func NewValidationError(message string) *AppError {
	return newError(KindValidation, message, nil)
}

func NewNotFoundError(message string) *AppError {
	return newError(KindNotFound, message, nil)
}

func NewConflictError(message string, err error) *AppError {
	return newError(KindConflict, message, err)
}

func NewInternalError(message string, err error) *AppError {
	return newError(KindInternal, message, err)
}

// KindOf returns the kind of the first AppError in err's chain, or "".
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

func IsFetch(err error) bool          { return KindOf(err) == KindFetch }
func IsPersistence(err error) bool    { return KindOf(err) == KindPersistence }
func IsReconciliation(err error) bool { return KindOf(err) == KindReconciliation }
func IsNotFound(err error) bool       { return KindOf(err) == KindNotFound }

// StackOf returns a printable stack for err. AppErrors report the stack
// captured at construction; other errors are wrapped at the call site.
func StackOf(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.stack != nil {
		return appErr.Stack()
	}
	return fmt.Sprintf("%+v", errors.WithStack(err))
}
