package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/Dan9191/vesting-service/internal/vesting"
)

var (
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	ErrInvalidAmount     = errors.New("ledger: amount must be positive")
)

// Entry is one journaled transfer.
type Entry struct {
	From      string
	To        string
	Amount    *big.Int
	Memo      string
	CreatedAt time.Time
}

// Memory is an in-process balance store for a single token.
type Memory struct {
	Token string

	mu       sync.Mutex
	balances map[string]*big.Int
	journal  []Entry

	// BeforeTransfer, when set, runs before each transfer is applied without holding
	// the ledger lock. Returning an error aborts the transfer.
	BeforeTransfer func(ctx context.Context, from, to string, amount *big.Int) error
}

// NewMemory creates an empty ledger for token.
func NewMemory(token string) *Memory {
	return &Memory{Token: token, balances: make(map[string]*big.Int)}
}

// Mint credits address with amount out of thin air. It models the external funding step.
func (m *Memory) Mint(address string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.balanceLocked(address)
	b.Add(b, amount)
	return nil
}

// Transfer moves amount from one address to another, all or nothing.
func (m *Memory) Transfer(ctx context.Context, from, to string, amount *big.Int, memo string) error {
	return m.transfer(ctx, from, to, amount, memo, nil)
}

// TransferWithin is Transfer refused with vesting.ErrCeilingExceeded when the journaled
// sum for memo plus amount would exceed ceiling.
func (m *Memory) TransferWithin(ctx context.Context, from, to string, amount *big.Int, memo string, ceiling *big.Int) error {
	if ceiling == nil {
		return fmt.Errorf("%w: ceiling is required", ErrInvalidAmount)
	}
	return m.transfer(ctx, from, to, amount, memo, ceiling)
}

// Released returns the sum of journaled transfers carrying memo.
func (m *Memory) Released(_ context.Context, memo string) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sumLocked(memo), nil
}

func (m *Memory) transfer(ctx context.Context, from, to string, amount *big.Int, memo string, ceiling *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.BeforeTransfer != nil {
		if err := m.BeforeTransfer(ctx, from, to, amount); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ceiling != nil {
		sum := m.sumLocked(memo)
		if sum.Add(sum, amount).Cmp(ceiling) > 0 {
			return fmt.Errorf("%w: %s already journaled under %q", vesting.ErrCeilingExceeded, m.sumLocked(memo), memo)
		}
	}
	src := m.balanceLocked(from)
	if src.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s %s, needs %s", ErrInsufficientFunds, from, src, m.Token, amount)
	}
	src.Sub(src, amount)
	dst := m.balanceLocked(to)
	dst.Add(dst, amount)
	m.journal = append(m.journal, Entry{
		From:      from,
		To:        to,
		Amount:    new(big.Int).Set(amount),
		Memo:      memo,
		CreatedAt: time.Now(),
	})
	return nil
}

// BalanceOf returns the balance of address; unknown addresses hold zero.
func (m *Memory) BalanceOf(_ context.Context, address string) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.balances[address]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

// Journal returns a copy of all transfers recorded so far.
func (m *Memory) Journal() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.journal))
	copy(out, m.journal)
	return out
}

func (m *Memory) sumLocked(memo string) *big.Int {
	sum := new(big.Int)
	for _, e := range m.journal {
		if e.Memo == memo {
			sum.Add(sum, e.Amount)
		}
	}
	return sum
}

func (m *Memory) balanceLocked(address string) *big.Int {
	b, ok := m.balances[address]
	if !ok {
		b = new(big.Int)
		m.balances[address] = b
	}
	return b
}
