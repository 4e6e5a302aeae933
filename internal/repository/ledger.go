package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"

	"github.com/Dan9191/vesting-service/internal/ledger"
	"github.com/Dan9191/vesting-service/internal/vesting"
)

// TokenLedger is a PostgreSQL-backed balance store for a single token
type TokenLedger struct {
	db    *sql.DB
	token string
}

// TokenLedger returns the ledger for token
func (r *Repository) TokenLedger(token string) *TokenLedger {
	return &TokenLedger{db: r.db, token: token}
}

// Transfer moves amount between addresses and journals it in one transaction
func (l *TokenLedger) Transfer(ctx context.Context, from, to string, amount *big.Int, memo string) error {
	return l.transfer(ctx, from, to, amount, memo, nil)
}

// TransferWithin is Transfer refused with vesting.ErrCeilingExceeded when the journaled
// sum for memo plus amount would exceed ceiling. Transfers sharing a memo are serialized
// by a transaction-scoped advisory lock, so the sum is checked against committed rows.
func (l *TokenLedger) TransferWithin(ctx context.Context, from, to string, amount *big.Int, memo string, ceiling *big.Int) error {
	if ceiling == nil {
		return fmt.Errorf("%w: ceiling is required", ledger.ErrInvalidAmount)
	}
	return l.transfer(ctx, from, to, amount, memo, ceiling)
}

// Released returns the sum of journaled transfers carrying memo
func (l *TokenLedger) Released(ctx context.Context, memo string) (*big.Int, error) {
	return sumReleased(ctx, l.db, memo)
}

func (l *TokenLedger) transfer(ctx context.Context, from, to string, amount *big.Int, memo string, ceiling *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ledger.ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transfer: %w", err)
	}
	defer tx.Rollback()

	if ceiling != nil {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, memo); err != nil {
			return fmt.Errorf("failed to lock journal for %s: %w", memo, err)
		}
		journaled, err := sumReleased(ctx, tx, memo)
		if err != nil {
			return err
		}
		if new(big.Int).Add(journaled, amount).Cmp(ceiling) > 0 {
			return fmt.Errorf("%w: %s already journaled under %s, ceiling %s", vesting.ErrCeilingExceeded, journaled, memo, ceiling)
		}
	}

	var raw string
	err = tx.QueryRowContext(ctx, `
		SELECT balance::text
		FROM vesting.accounts
		WHERE token = $1 AND address = $2
		FOR UPDATE`, l.token, from).Scan(&raw)
	if err == sql.ErrNoRows {
		raw = "0"
	} else if err != nil {
		return fmt.Errorf("failed to lock balance: %w", err)
	}
	balance, err := parseAmount(raw)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s %s, needs %s", ledger.ErrInsufficientFunds, from, balance, l.token, amount)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE vesting.accounts
		SET balance = balance - $3::numeric, updated_at = CURRENT_TIMESTAMP
		WHERE token = $1 AND address = $2`, l.token, from, amount.String()); err != nil {
		return fmt.Errorf("failed to debit %s: %w", from, err)
	}
	if err := credit(ctx, tx, l.token, to, amount); err != nil {
		return err
	}
	if err := journal(ctx, tx, l.token, from, to, amount, memo); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}
	return nil
}

// Deposit credits address with amount from outside the ledger
func (l *TokenLedger) Deposit(ctx context.Context, address string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ledger.ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin deposit: %w", err)
	}
	defer tx.Rollback()

	if err := credit(ctx, tx, l.token, address, amount); err != nil {
		return err
	}
	if err := journal(ctx, tx, l.token, "", address, amount, "deposit"); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deposit: %w", err)
	}
	return nil
}

// BalanceOf returns the balance of address; unknown addresses hold zero
func (l *TokenLedger) BalanceOf(ctx context.Context, address string) (*big.Int, error) {
	var raw string
	err := l.db.QueryRowContext(ctx, `
		SELECT balance::text
		FROM vesting.accounts
		WHERE token = $1 AND address = $2`, l.token, address).Scan(&raw)
	if err == sql.ErrNoRows {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return parseAmount(raw)
}

func credit(ctx context.Context, tx *sql.Tx, token, address string, amount *big.Int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO vesting.accounts (token, address, balance, updated_at)
		VALUES ($1, $2, $3::numeric, CURRENT_TIMESTAMP)
		ON CONFLICT (token, address)
		DO UPDATE SET balance = vesting.accounts.balance + EXCLUDED.balance, updated_at = CURRENT_TIMESTAMP`,
		token, address, amount.String())
	if err != nil {
		return fmt.Errorf("failed to credit %s: %w", address, err)
	}
	return nil
}

func journal(ctx context.Context, tx *sql.Tx, token, from, to string, amount *big.Int, memo string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO vesting.transfers (token, from_address, to_address, amount, memo, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, CURRENT_TIMESTAMP)`,
		token, from, to, amount.String(), memo)
	if err != nil {
		return fmt.Errorf("failed to journal transfer: %w", err)
	}
	return nil
}
