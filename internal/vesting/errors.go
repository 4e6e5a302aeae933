package vesting

import "errors"

// Sentinel errors for the vesting package.
// Use errors.Is to check: errors.Is(err, vesting.ErrCliffNotReached)
var (
	ErrCliffNotReached   = errors.New("vesting: cliff not reached")
	ErrNoTokensToRelease = errors.New("vesting: no tokens to release")
	ErrInvalidSchedule   = errors.New("vesting: invalid schedule parameters")
	ErrCeilingExceeded   = errors.New("vesting: journaled releases would exceed the vested amount")
)
