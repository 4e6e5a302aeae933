package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/Dan9191/vesting-service/internal/models"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a lookup matches no rows
	ErrNotFound = errors.New("repository: not found")
	// ErrAlreadyExists is returned when an insert violates a unique constraint
	ErrAlreadyExists = errors.New("repository: already exists")
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const uniqueViolation = "23505"

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser creates a new user in the database
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO vesting.users (username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, user.Username, user.Email, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", user.Email, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByEmail retrieves a user by email
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM vesting.users
		WHERE email = $1`
	err := r.db.QueryRowContext(ctx, query, email).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// CreateSchedule stores the parameters of a newly deployed schedule
func (r *Repository) CreateSchedule(ctx context.Context, s *models.Schedule) error {
	query := `
		INSERT INTO vesting.schedules (id, token, beneficiary, beneficiary_email, custody,
			start_time, cliff_seconds, duration_seconds, total_amount, hmac, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, CURRENT_TIMESTAMP)
		RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query, s.ID, s.Token, s.Beneficiary, s.BeneficiaryEmail, s.Custody,
		s.StartTime, s.CliffSeconds, s.DurationSeconds, s.TotalAmount, s.HMAC).
		Scan(&s.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("schedule for %s/%s: %w", s.Token, s.Beneficiary, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

// FindSchedule retrieves the schedule for a token and beneficiary
func (r *Repository) FindSchedule(ctx context.Context, token, beneficiary string) (*models.Schedule, error) {
	s := &models.Schedule{}
	query := `
		SELECT id, token, beneficiary, beneficiary_email, custody, start_time,
			cliff_seconds, duration_seconds, total_amount::text, hmac, created_at
		FROM vesting.schedules
		WHERE token = $1 AND beneficiary = $2`
	err := r.db.QueryRowContext(ctx, query, token, beneficiary).
		Scan(&s.ID, &s.Token, &s.Beneficiary, &s.BeneficiaryEmail, &s.Custody, &s.StartTime,
			&s.CliffSeconds, &s.DurationSeconds, &s.TotalAmount, &s.HMAC, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("schedule for %s/%s: %w", token, beneficiary, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find schedule: %w", err)
	}
	return s, nil
}

// ReleasedAmount sums the journaled transfers made on behalf of a schedule
func (r *Repository) ReleasedAmount(ctx context.Context, scheduleID string) (*big.Int, error) {
	return sumReleased(ctx, r.db, scheduleID)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func sumReleased(ctx context.Context, q queryer, memo string) (*big.Int, error) {
	var sum string
	query := `
		SELECT COALESCE(SUM(amount), 0)::text
		FROM vesting.transfers
		WHERE memo = $1`
	if err := q.QueryRowContext(ctx, query, memo).Scan(&sum); err != nil {
		return nil, fmt.Errorf("failed to sum releases: %w", err)
	}
	return parseAmount(sum)
}

// ListTransfers retrieves the journaled transfers made on behalf of a schedule
func (r *Repository) ListTransfers(ctx context.Context, scheduleID string) ([]models.Transfer, error) {
	query := `
		SELECT id, token, from_address, to_address, amount::text, memo, created_at
		FROM vesting.transfers
		WHERE memo = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []models.Transfer
	for rows.Next() {
		var t models.Transfer
		if err := rows.Scan(&t.ID, &t.Token, &t.FromAddress, &t.ToAddress, &t.Amount, &t.Memo, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	return transfers, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func parseAmount(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return n, nil
}
