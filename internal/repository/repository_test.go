package repository

import (
	"context"
	"errors"
	"math/big"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Dan9191/vesting-service/internal/ledger"
	"github.com/Dan9191/vesting-service/internal/models"
	"github.com/Dan9191/vesting-service/internal/vesting"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewRepository(db), mock
}

func TestFindSchedule(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		repo, mock := newMock(t)
		rows := sqlmock.NewRows([]string{"id", "token", "beneficiary", "beneficiary_email", "custody", "start_time",
			"cliff_seconds", "duration_seconds", "total_amount", "hmac", "created_at"}).
			AddRow("s-1", "TKA", "alice", "alice@example.com", "vault", start, 100, 300, "1000", "abcd", start)
		mock.ExpectQuery(regexp.QuoteMeta("FROM vesting.schedules")).
			WithArgs("TKA", "alice").
			WillReturnRows(rows)

		s, err := repo.FindSchedule(ctx, "TKA", "alice")
		require.NoError(t, err)
		assert.Equal(t, "s-1", s.ID)
		assert.Equal(t, int64(300), s.DurationSeconds)
		assert.Equal(t, "1000", s.TotalAmount)
		assert.Equal(t, start, s.StartTime)
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM vesting.schedules")).
			WithArgs("TKA", "bob").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.FindSchedule(ctx, "TKA", "bob")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCreateSchedule(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()
	s := &models.Schedule{
		ID: "s-1", Token: "TKA", Beneficiary: "alice", Custody: "vault",
		StartTime: now, CliffSeconds: 100, DurationSeconds: 300, TotalAmount: "1000", HMAC: "abcd",
	}
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO vesting.schedules")).
		WithArgs("s-1", "TKA", "alice", "", "vault", now, int64(100), int64(300), "1000", "abcd").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	require.NoError(t, repo.CreateSchedule(context.Background(), s))
	assert.Equal(t, now, s.CreatedAt)
}

func TestReleasedAmount(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount), 0)::text")).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("1000000000000000000000"))

	got, err := repo.ReleasedAmount(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000000", got.String())
}

func TestListTransfers(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM vesting.transfers")).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "token", "from_address", "to_address", "amount", "memo", "created_at"}).
			AddRow(1, "TKA", "vault", "alice", "333", "s-1", now).
			AddRow(2, "TKA", "vault", "alice", "667", "s-1", now))

	transfers, err := repo.ListTransfers(context.Background(), "s-1")
	require.NoError(t, err)
	require.Len(t, transfers, 2)
	assert.Equal(t, "667", transfers[1].Amount)
	assert.Equal(t, "alice", transfers[0].ToAddress)
}

func TestFindUserByEmailNotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM vesting.users")).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindUserByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenLedgerTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("commits debit, credit and journal", func(t *testing.T) {
		repo, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
			WithArgs("TKA", "vault").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("1000"))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE vesting.accounts")).
			WithArgs("TKA", "vault", "400").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO vesting.accounts")).
			WithArgs("TKA", "alice", "400").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO vesting.transfers")).
			WithArgs("TKA", "vault", "alice", "400", "s-1").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := repo.TokenLedger("TKA").Transfer(ctx, "vault", "alice", big.NewInt(400), "s-1")
		require.NoError(t, err)
	})

	t.Run("insufficient funds rolls back", func(t *testing.T) {
		repo, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
			WithArgs("TKA", "vault").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("10"))
		mock.ExpectRollback()

		err := repo.TokenLedger("TKA").Transfer(ctx, "vault", "alice", big.NewInt(400), "s-1")
		assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	})

	t.Run("unknown sender holds nothing", func(t *testing.T) {
		repo, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
			WithArgs("TKA", "ghost").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}))
		mock.ExpectRollback()

		err := repo.TokenLedger("TKA").Transfer(ctx, "ghost", "alice", big.NewInt(1), "")
		assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	})

	t.Run("journal failure rolls back", func(t *testing.T) {
		repo, mock := newMock(t)
		boom := errors.New("disk full")
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("1000"))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE vesting.accounts")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO vesting.accounts")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO vesting.transfers")).
			WillReturnError(boom)
		mock.ExpectRollback()

		err := repo.TokenLedger("TKA").Transfer(ctx, "vault", "alice", big.NewInt(400), "s-1")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		repo, _ := newMock(t)
		err := repo.TokenLedger("TKA").Transfer(ctx, "vault", "alice", big.NewInt(0), "")
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	})
}

func TestTokenLedgerBalanceOf(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM vesting.accounts")).
		WithArgs("TKA", "alice").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("583"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM vesting.accounts")).
		WithArgs("TKA", "nobody").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))

	l := repo.TokenLedger("TKA")
	b, err := l.BalanceOf(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(583), b.Int64())

	b, err = l.BalanceOf(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Int64())
}

func TestTokenLedgerDeposit(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO vesting.accounts")).
		WithArgs("TKA", "vault", "1000").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO vesting.transfers")).
		WithArgs("TKA", "", "vault", "1000", "deposit").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.TokenLedger("TKA").Deposit(context.Background(), "vault", big.NewInt(1000)))
}

func TestTokenLedgerTransferWithin(t *testing.T) {
	ctx := context.Background()

	t.Run("stale counter is refused after the journal is locked", func(t *testing.T) {
		repo, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
			WithArgs("s-1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount), 0)::text")).
			WithArgs("s-1").
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("333"))
		mock.ExpectRollback()

		// another replica already paid 333; this one still believes nothing was released
		err := repo.TokenLedger("TKA").TransferWithin(ctx, "vault", "alice", big.NewInt(500), "s-1", big.NewInt(500))
		assert.ErrorIs(t, err, vesting.ErrCeilingExceeded)
	})

	t.Run("within the ceiling the transfer commits", func(t *testing.T) {
		repo, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).
			WithArgs("s-1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount), 0)::text")).
			WithArgs("s-1").
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("333"))
		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
			WithArgs("TKA", "vault").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("667"))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE vesting.accounts")).
			WithArgs("TKA", "vault", "167").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO vesting.accounts")).
			WithArgs("TKA", "alice", "167").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO vesting.transfers")).
			WithArgs("TKA", "vault", "alice", "167", "s-1").
			WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectCommit()

		err := repo.TokenLedger("TKA").TransferWithin(ctx, "vault", "alice", big.NewInt(167), "s-1", big.NewInt(500))
		require.NoError(t, err)
	})

	t.Run("ceiling is required", func(t *testing.T) {
		repo, _ := newMock(t)
		err := repo.TokenLedger("TKA").TransferWithin(ctx, "vault", "alice", big.NewInt(1), "s-1", nil)
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	})
}

func TestTokenLedgerReleased(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount), 0)::text")).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("500"))

	got, err := repo.TokenLedger("TKA").Released(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), got.Int64())
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO vesting.users")).
		WithArgs("ops", "ops@example.com", "hash").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.CreateUser(context.Background(), &models.User{Username: "ops", Email: "ops@example.com", PasswordHash: "hash"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}
