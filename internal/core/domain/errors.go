package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleVersion is returned by a versioned update that matched no row:
	// another writer committed first and the caller must reload.
	ErrStaleVersion = errors.New("stale aggregate version")

	// ErrDuplicate is returned when a unique index rejects an insert.
	ErrDuplicate = errors.New("duplicate record")

	ErrInsufficientFunds = errors.New("amount exceeds available balance")
	ErrHoldUnderflow     = errors.New("amount exceeds reserved balance")
	ErrNonPositiveAmount = errors.New("amount must be positive")

	ErrGatewayTimeout  = errors.New("gateway timeout")
	ErrGatewayRejected = errors.New("gateway rejected request")
)

// TransitionError reports an illegal state machine edge.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: illegal transition %s -> %s", e.Entity, e.From, e.To)
}
