package models

import "errors"

// Domain error taxonomy. Callers test with errors.Is; repositories and
// services wrap these with fmt.Errorf("...: %w", err) to add context.
var (
	// ErrNotFound means the referenced item or alert is absent or soft-deleted.
	ErrNotFound = errors.New("not found")

	// ErrInvalidQuantity means the movement quantity is zero or negative.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrInsufficientStock means an outbound movement exceeds on-hand quantity.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrConflict means a concurrent update won the race; the operation can be
	// retried. The ledger retries a bounded number of times before giving up.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrDependencyUnavailable means a repository or gateway is unreachable, or
	// retries on ErrConflict were exhausted.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
