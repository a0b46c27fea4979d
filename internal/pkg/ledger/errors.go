package ledger

import "errors"

var (
	// ErrNotFound is returned when the account or work unit does not exist.
	ErrNotFound = errors.New("ledger: not found")

	// ErrContended is returned when a row lock could not be acquired within
	// the retry bound. Callers may retry later.
	ErrContended = errors.New("ledger: lock contended")

	// ErrInsufficientCredit is returned by Deduct when both pools are empty.
	ErrInsufficientCredit = errors.New("ledger: insufficient credit")

	// ErrInvalidAmount is returned for non-positive credit amounts and negative resets.
	ErrInvalidAmount = errors.New("ledger: invalid amount")

	// ErrInvalidPool is returned for an unknown pool name.
	ErrInvalidPool = errors.New("ledger: invalid pool")
)
