package vesting

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// Params are the immutable parameters of a schedule, fixed at construction.
type Params struct {
	ID          string
	Token       string
	Beneficiary string
	Custody     string // address holding the schedule's funds on the ledger
	Start       time.Time
	Cliff       time.Duration
	Duration    time.Duration // measured from Start, not from the end of the cliff
	Total       *big.Int
}

// CliffEnd returns the first instant at which tokens may be released.
func (p Params) CliffEnd() time.Time {
	return p.Start.Add(p.Cliff)
}

// Validate checks the parameters for internal consistency.
func (p Params) Validate() error {
	switch {
	case p.Token == "":
		return fmt.Errorf("%w: token is required", ErrInvalidSchedule)
	case p.Beneficiary == "":
		return fmt.Errorf("%w: beneficiary is required", ErrInvalidSchedule)
	case p.Custody == "":
		return fmt.Errorf("%w: custody address is required", ErrInvalidSchedule)
	case p.Custody == p.Beneficiary:
		return fmt.Errorf("%w: custody and beneficiary must differ", ErrInvalidSchedule)
	case p.Start.IsZero():
		return fmt.Errorf("%w: start time is required", ErrInvalidSchedule)
	case p.Cliff < 0:
		return fmt.Errorf("%w: cliff must not be negative, got %s", ErrInvalidSchedule, p.Cliff)
	case p.Duration < 0:
		return fmt.Errorf("%w: duration must not be negative, got %s", ErrInvalidSchedule, p.Duration)
	case p.Total == nil || p.Total.Sign() <= 0:
		return fmt.Errorf("%w: total amount must be positive", ErrInvalidSchedule)
	}
	return nil
}

// Option configures a Schedule at construction.
type Option func(*Schedule) error

// WithReleased restores the released counter, e.g. from the ledger journal after a restart.
func WithReleased(amount *big.Int) Option {
	return func(s *Schedule) error {
		if amount == nil || amount.Sign() < 0 || amount.Cmp(s.params.Total) > 0 {
			return fmt.Errorf("%w: released amount %v outside [0, %s]", ErrInvalidSchedule, amount, s.params.Total)
		}
		s.released.Set(amount)
		return nil
	}
}

// Schedule releases a fixed total to one beneficiary on a cliff-plus-linear curve.
//
// The released counter is the only mutable state. Release advances it before the
// ledger transfer is issued, so a reentrant or concurrent call sees the updated value
// and can never pay the same increment twice.
type Schedule struct {
	params Params
	ledger Ledger
	clock  Clock

	mu       sync.Mutex
	released *big.Int
}

// New creates a schedule. Total is copied, later changes to p.Total have no effect.
func New(p Params, ledger Ledger, clock Clock, opts ...Option) (*Schedule, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if ledger == nil {
		return nil, fmt.Errorf("%w: ledger is required", ErrInvalidSchedule)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	p.Total = new(big.Int).Set(p.Total)

	s := &Schedule{
		params:   p,
		ledger:   ledger,
		clock:    clock,
		released: new(big.Int),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Params returns a copy of the schedule parameters.
func (s *Schedule) Params() Params {
	p := s.params
	p.Total = new(big.Int).Set(s.params.Total)
	return p
}

// Released returns the amount already paid out.
func (s *Schedule) Released() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.released)
}

// VestedAmount returns the cumulative amount unlocked at now, regardless of what has
// been released. Elapsed time is counted in whole seconds from Start.
func (s *Schedule) VestedAmount(now time.Time) *big.Int {
	p := s.params
	if now.Before(p.CliffEnd()) {
		return new(big.Int)
	}
	elapsed := int64(now.Sub(p.Start) / time.Second)
	duration := int64(p.Duration / time.Second)
	if elapsed >= duration {
		return new(big.Int).Set(p.Total)
	}
	// multiply first, divide last
	vested := new(big.Int).Mul(p.Total, big.NewInt(elapsed))
	return vested.Quo(vested, big.NewInt(duration))
}

// GetVestingAmount returns VestedAmount at the clock's current time.
func (s *Schedule) GetVestingAmount() *big.Int {
	return s.VestedAmount(s.clock.Now())
}

// Releasable returns the amount vested at now but not yet released.
func (s *Schedule) Releasable(now time.Time) *big.Int {
	vested := s.VestedAmount(now)
	s.mu.Lock()
	defer s.mu.Unlock()
	return releasable(vested, s.released)
}

func releasable(vested, released *big.Int) *big.Int {
	r := new(big.Int).Sub(vested, released)
	if r.Sign() < 0 {
		return r.SetInt64(0)
	}
	return r
}

// Phase reports where the schedule is in its lifecycle at now.
//
// Ramping covers every instant between the cliff and full vesting, including the moments
// right after a release when nothing new is releasable yet.
func (s *Schedule) Phase(now time.Time) Phase {
	if now.Before(s.params.CliffEnd()) {
		return PreCliff
	}
	s.mu.Lock()
	done := s.released.Cmp(s.params.Total) == 0
	s.mu.Unlock()
	if done {
		return FullyReleased
	}
	if s.VestedAmount(now).Cmp(s.params.Total) == 0 {
		return FullyVested
	}
	return Ramping
}

// Release transfers everything vested but not yet released to the beneficiary and
// returns the amount moved.
//
// It fails with ErrCliffNotReached before the cliff and with ErrNoTokensToRelease when
// nothing new has accrued. If the ledger transfer fails the counter is restored.
//
// With a JournaledLedger the counter is first raised to the journaled sum and the
// transfer is capped at the vested amount, so a stale counter cannot pay twice.
func (s *Schedule) Release(ctx context.Context) (*big.Int, error) {
	now := s.clock.Now()
	if now.Before(s.params.CliffEnd()) {
		return nil, ErrCliffNotReached
	}
	vested := s.VestedAmount(now)
	journal, journaled := s.ledger.(JournaledLedger)

	for attempt := 0; ; attempt++ {
		if journaled {
			if err := s.sync(ctx, journal); err != nil {
				return nil, err
			}
		}

		s.mu.Lock()
		amount := releasable(vested, s.released)
		if amount.Sign() == 0 {
			s.mu.Unlock()
			return nil, ErrNoTokensToRelease
		}
		s.released.Add(s.released, amount)
		s.mu.Unlock()

		var err error
		if journaled {
			err = journal.TransferWithin(ctx, s.params.Custody, s.params.Beneficiary, amount, s.params.ID, vested)
		} else {
			err = s.ledger.Transfer(ctx, s.params.Custody, s.params.Beneficiary, amount, s.params.ID)
		}
		if err == nil {
			return amount, nil
		}

		s.mu.Lock()
		s.released.Sub(s.released, amount)
		s.mu.Unlock()
		// another holder of the journal released first; resync and retry once
		if errors.Is(err, ErrCeilingExceeded) && attempt == 0 {
			continue
		}
		return nil, fmt.Errorf("failed to transfer %s %s to %s: %w", amount, s.params.Token, s.params.Beneficiary, err)
	}
}

// sync raises the released counter to the journaled sum. It never lowers it: amounts
// in flight are counted locally before they reach the journal.
func (s *Schedule) sync(ctx context.Context, journal JournaledLedger) error {
	sum, err := journal.Released(ctx, s.params.ID)
	if err != nil {
		return fmt.Errorf("failed to read released amount: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sum.Cmp(s.params.Total) > 0 {
		sum = s.params.Total
	}
	if sum.Cmp(s.released) > 0 {
		s.released.Set(sum)
	}
	return nil
}
