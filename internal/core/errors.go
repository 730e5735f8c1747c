package core

import "errors"

// Ledger error taxonomy. Callers classify with errors.Is.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrStorageConflict   = errors.New("storage conflict, retry the operation")
	ErrEmailTaken        = errors.New("email already registered")
	ErrBudgetOverlap     = errors.New("budget window overlaps an existing budget for this category")

	// ErrValidation is matched by every input validation error below.
	ErrValidation = errors.New("validation failed")
)

var (
	ErrInvalidAmount     = validationError("invalid amount")
	ErrInvalidProfitLoss = validationError("profit/loss cannot exceed the invested amount as a loss")
	ErrEmptyDescription  = validationError("empty description")
	ErrEmptyCategory     = validationError("empty category")
	ErrEmptyName         = validationError("empty name")
	ErrInvalidDate       = validationError("invalid date")
	ErrInvalidWindow     = validationError("end date must not precede start date")
	ErrInvalidEmail      = validationError("invalid email")
	ErrWeakPassword      = validationError("password too short (min 6)")
	ErrPasswordTooLong   = validationError("password too long (max 72 bytes)")
	ErrInvalidSource     = validationError("invalid balance source")
	ErrInvalidMonth      = validationError("invalid month")
)

type validationErr struct{ msg string }

func validationError(msg string) error { return &validationErr{msg: msg} }

func (e *validationErr) Error() string { return e.msg }

func (e *validationErr) Is(target error) bool { return target == ErrValidation }

// IsRetryable reports whether the operation failed on lock or transaction
// contention and may succeed if the caller tries again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageConflict)
}
