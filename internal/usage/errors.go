package usage

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrNoPendingUsage    = errors.New("no pending usage")
	ErrStaleCandidate    = errors.New("pending usage was replaced")
	ErrCommitInProgress  = errors.New("commit in progress")
	ErrMaterialNotFound  = errors.New("material not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrTransactionFailed = errors.New("transaction failed")
)

// ValidationError: ошибка ввода формы; слот при этом не меняется.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type InsufficientStockError struct {
	MaterialID string
	Available  decimal.Decimal
	Requested  decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %s, requested %s",
		e.MaterialID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
