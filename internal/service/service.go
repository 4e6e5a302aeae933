package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/Dan9191/vesting-service/internal/config"
	"github.com/Dan9191/vesting-service/internal/models"
	"github.com/Dan9191/vesting-service/internal/repository"
	"github.com/Dan9191/vesting-service/internal/utils"
	"github.com/Dan9191/vesting-service/internal/vesting"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotDeployed        = errors.New("service: schedule not deployed")
	ErrInvalidCredentials = errors.New("service: invalid credentials")
	ErrInvalidInput       = errors.New("service: invalid input")
	ErrTampered           = errors.New("service: schedule failed integrity check")
	ErrAlreadyRegistered  = errors.New("service: email already registered")
)

const maxForecastDays = 3650

// Store is the persistence the service depends on
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateSchedule(ctx context.Context, s *models.Schedule) error
	FindSchedule(ctx context.Context, token, beneficiary string) (*models.Schedule, error)
	ReleasedAmount(ctx context.Context, scheduleID string) (*big.Int, error)
	ListTransfers(ctx context.Context, scheduleID string) ([]models.Transfer, error)
}

// Notifier delivers release notifications to the beneficiary
type Notifier interface {
	Enabled() bool
	SendReleaseNotification(to, beneficiary, token, amount, released, total string, at time.Time) error
}

// Service handles business logic
type Service struct {
	store    Store
	ledger   vesting.Ledger
	log      *logrus.Logger
	config   *config.Config
	notifier Notifier
	clock    vesting.Clock

	record   *models.Schedule
	schedule *vesting.Schedule
}

// NewService initializes a new service
func NewService(store Store, ledger vesting.Ledger, log *logrus.Logger, cfg *config.Config, notifier Notifier) *Service {
	return &Service{
		store:    store,
		ledger:   ledger,
		log:      log,
		config:   cfg,
		notifier: notifier,
		clock:    vesting.SystemClock{},
	}
}

// Register creates a new operator with hashed password
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if username == "" || !strings.Contains(email, "@") || len(password) < 8 {
		return nil, fmt.Errorf("%w: username, valid email and a password of at least 8 characters are required", ErrInvalidInput)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, email)
		}
		return nil, err
	}

	s.log.Infof("User registered: %s", user.Email)
	return user, nil
}

// Login authenticates an operator and returns a JWT token
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   fmt.Sprintf("%d", user.ID),
		ExpiresAt: jwt.NewNumericDate(s.clock.Now().Add(24 * time.Hour)),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("User logged in: %s", user.Email)
	return tokenString, nil
}

// Bootstrap loads the configured schedule, deploying it on first start, and restores
// the released amount from the ledger journal.
func (s *Service) Bootstrap(ctx context.Context) error {
	v := s.config.Vesting
	record, err := s.store.FindSchedule(ctx, v.Token, v.Beneficiary)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		record = &models.Schedule{
			ID:               uuid.NewString(),
			Token:            v.Token,
			Beneficiary:      v.Beneficiary,
			BeneficiaryEmail: v.BeneficiaryEmail,
			Custody:          v.Custody,
			StartTime:        v.Start.UTC(),
			CliffSeconds:     int64(v.Cliff / time.Second),
			DurationSeconds:  int64(v.Duration / time.Second),
			TotalAmount:      v.Total.String(),
		}
		record.HMAC = utils.GenerateHMAC(record, s.config.HMACSecret)
		stored := *record
		if record.BeneficiaryEmail != "" {
			if stored.BeneficiaryEmail, err = utils.Encrypt(record.BeneficiaryEmail, s.config.EncryptionKey); err != nil {
				return fmt.Errorf("failed to encrypt beneficiary email: %w", err)
			}
		}
		if err := s.store.CreateSchedule(ctx, &stored); err != nil {
			return err
		}
		record.CreatedAt = stored.CreatedAt
		s.log.Infof("Schedule %s deployed: %s %s to %s", record.ID, record.TotalAmount, record.Token, record.Beneficiary)
	case err != nil:
		return err
	default:
		if !utils.VerifyHMAC(record, s.config.HMACSecret) {
			return fmt.Errorf("%w: %s", ErrTampered, record.ID)
		}
		if record.BeneficiaryEmail != "" {
			if record.BeneficiaryEmail, err = utils.Decrypt(record.BeneficiaryEmail, s.config.EncryptionKey); err != nil {
				return fmt.Errorf("failed to decrypt beneficiary email of schedule %s: %w", record.ID, err)
			}
		}
		if record.Custody != v.Custody || record.TotalAmount != v.Total.String() ||
			!record.StartTime.Equal(v.Start) || record.CliffSeconds != int64(v.Cliff/time.Second) ||
			record.DurationSeconds != int64(v.Duration/time.Second) {
			s.log.Warnf("Configured parameters differ from deployed schedule %s; deployed parameters are kept", record.ID)
		}
	}

	total, ok := new(big.Int).SetString(record.TotalAmount, 10)
	if !ok {
		return fmt.Errorf("invalid total amount %q in schedule %s", record.TotalAmount, record.ID)
	}
	released, err := s.store.ReleasedAmount(ctx, record.ID)
	if err != nil {
		return err
	}

	schedule, err := vesting.New(vesting.Params{
		ID:          record.ID,
		Token:       record.Token,
		Beneficiary: record.Beneficiary,
		Custody:     record.Custody,
		Start:       record.StartTime,
		Cliff:       time.Duration(record.CliffSeconds) * time.Second,
		Duration:    time.Duration(record.DurationSeconds) * time.Second,
		Total:       total,
	}, s.ledger, s.clock, vesting.WithReleased(released))
	if err != nil {
		return fmt.Errorf("failed to load schedule %s: %w", record.ID, err)
	}

	outstanding := new(big.Int).Sub(total, released)
	balance, err := s.ledger.BalanceOf(ctx, record.Custody)
	if err != nil {
		return err
	}
	if balance.Cmp(outstanding) < 0 {
		s.log.Warnf("Custody %s holds %s %s, schedule still owes %s", record.Custody, balance, record.Token, outstanding)
	}

	s.record = record
	s.schedule = schedule
	s.log.Infof("Schedule %s loaded: released %s of %s %s", record.ID, released, total, record.Token)
	return nil
}

// VestingAmount returns the amount vested as of now
func (s *Service) VestingAmount() (*big.Int, error) {
	if s.schedule == nil {
		return nil, ErrNotDeployed
	}
	return s.schedule.GetVestingAmount(), nil
}

// Status reports the current state of the schedule
func (s *Service) Status(ctx context.Context) (*models.VestingStatus, error) {
	if s.schedule == nil {
		return nil, ErrNotDeployed
	}
	now := s.clock.Now()
	balance, err := s.ledger.BalanceOf(ctx, s.record.Custody)
	if err != nil {
		return nil, err
	}
	return &models.VestingStatus{
		Schedule:       *s.record,
		Phase:          s.schedule.Phase(now).String(),
		Vested:         s.schedule.VestedAmount(now).String(),
		Released:       s.schedule.Released().String(),
		Releasable:     s.schedule.Releasable(now).String(),
		CustodyBalance: balance.String(),
		AsOf:           now.UTC().Format(time.RFC3339),
	}, nil
}

// Release pays everything vested but unreleased to the beneficiary
func (s *Service) Release(ctx context.Context) (*models.ReleaseResult, error) {
	if s.schedule == nil {
		return nil, ErrNotDeployed
	}

	amount, err := s.schedule.Release(ctx)
	if errors.Is(err, vesting.ErrCliffNotReached) || errors.Is(err, vesting.ErrNoTokensToRelease) {
		s.log.Debugf("Release of schedule %s skipped: %v", s.record.ID, err)
		return nil, err
	}
	if err != nil {
		s.log.Errorf("Release of schedule %s failed: %v", s.record.ID, err)
		return nil, err
	}

	released := s.schedule.Released()
	s.log.Infof("Released %s %s to %s (%s of %s)", amount, s.record.Token, s.record.Beneficiary, released, s.record.TotalAmount)

	if s.notifier != nil && s.notifier.Enabled() && s.record.BeneficiaryEmail != "" {
		if err := s.notifier.SendReleaseNotification(s.record.BeneficiaryEmail, s.record.Beneficiary, s.record.Token,
			amount.String(), released.String(), s.record.TotalAmount, s.clock.Now()); err != nil {
			s.log.Warnf("Release of schedule %s succeeded but notification failed: %v", s.record.ID, err)
		}
	}

	return &models.ReleaseResult{
		ScheduleID:  s.record.ID,
		Beneficiary: s.record.Beneficiary,
		Amount:      amount.String(),
		Released:    released.String(),
	}, nil
}

// Forecast projects vested amounts for the next days days
func (s *Service) Forecast(days int) (*models.VestingForecast, error) {
	if s.schedule == nil {
		return nil, ErrNotDeployed
	}
	if days < 1 || days > maxForecastDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidInput, maxForecastDays)
	}

	points := s.schedule.Forecast(s.clock.Now(), days)
	forecast := &models.VestingForecast{
		Released:       s.schedule.Released().String(),
		ForecastedDays: days,
		DailyForecast:  make([]models.DailyVesting, 0, len(points)),
	}
	for _, p := range points {
		forecast.DailyForecast = append(forecast.DailyForecast, models.DailyVesting{
			Date:       p.Date.UTC().Format("2006-01-02"),
			Vested:     p.Vested.String(),
			Releasable: p.Releasable.String(),
		})
	}
	return forecast, nil
}

// History returns the releases journaled for the schedule
func (s *Service) History(ctx context.Context) ([]models.Transfer, error) {
	if s.schedule == nil {
		return nil, ErrNotDeployed
	}
	return s.store.ListTransfers(ctx, s.record.ID)
}

// Balance returns the token balance of address
func (s *Service) Balance(ctx context.Context, address string) (*models.Account, error) {
	if address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrInvalidInput)
	}
	balance, err := s.ledger.BalanceOf(ctx, address)
	if err != nil {
		return nil, err
	}
	return &models.Account{
		Token:   s.config.Vesting.Token,
		Address: address,
		Balance: balance.String(),
	}, nil
}
