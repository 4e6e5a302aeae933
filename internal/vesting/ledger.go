package vesting

import (
	"context"
	"math/big"
	"time"
)

// Ledger is the external account-balance store for a single token.
// Transfer must be atomic: either the full amount moves or an error is returned.
type Ledger interface {
	Transfer(ctx context.Context, from, to string, amount *big.Int, memo string) error
	BalanceOf(ctx context.Context, address string) (*big.Int, error)
}

// JournaledLedger is a Ledger that records transfers by memo and can enforce a ceiling
// on their sum. Release uses it so that schedules sharing a journal, e.g. replicas of the
// same service, never pay an increment twice.
type JournaledLedger interface {
	Ledger
	// Released returns the sum of journaled transfers carrying memo.
	Released(ctx context.Context, memo string) (*big.Int, error)
	// TransferWithin is Transfer that fails with ErrCeilingExceeded, moving nothing, when
	// the journaled sum for memo plus amount would exceed ceiling.
	TransferWithin(ctx context.Context, from, to string, amount *big.Int, memo string, ceiling *big.Int) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
