package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port        string
	DBConn      string
	LogLevel    string
	JWTSecret   string
	HMACSecret  string
	ReleaseCron string

	// EncryptionKey is the AES key sealing personal data at rest
	EncryptionKey []byte

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string

	Vesting VestingConfig
}

// VestingConfig holds the parameters fixed when the schedule is deployed
type VestingConfig struct {
	Token            string
	Beneficiary      string
	BeneficiaryEmail string
	Custody          string
	Start            time.Time
	Cliff            time.Duration
	Duration         time.Duration
	Total            *big.Int
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		DBConn:       getEnv("DB_CONN", "host=localhost port=5436 user=test password=test dbname=vesting sslmode=disable"),
		LogLevel:     getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:    getEnv("JWT_SECRET", "secret"),
		HMACSecret:   getEnv("HMAC_SECRET", "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6"),
		ReleaseCron:  getEnv("RELEASE_CRON", "@every 1h"),
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SenderEmail:  getEnv("SENDER_EMAIL", "noreply@vesting.local"),
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.HMACSecret == "" {
		return nil, fmt.Errorf("HMAC_SECRET is required")
	}

	key, err := hex.DecodeString(getEnv("ENCRYPTION_KEY", "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6"))
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be hex encoded: %w", err)
	}
	if n := len(key); n != 16 && n != 24 && n != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must decode to 16, 24, or 32 bytes, got %d", n)
	}
	cfg.EncryptionKey = key

	v, err := loadVesting()
	if err != nil {
		return nil, err
	}
	cfg.Vesting = v

	return cfg, nil
}

func loadVesting() (VestingConfig, error) {
	v := VestingConfig{
		Token:            getEnv("VESTING_TOKEN", ""),
		Beneficiary:      getEnv("VESTING_BENEFICIARY", ""),
		BeneficiaryEmail: getEnv("VESTING_BENEFICIARY_EMAIL", ""),
		Custody:          getEnv("VESTING_CUSTODY", ""),
	}
	if v.Token == "" {
		return v, fmt.Errorf("VESTING_TOKEN is required")
	}
	if v.Beneficiary == "" {
		return v, fmt.Errorf("VESTING_BENEFICIARY is required")
	}
	if v.Custody == "" {
		return v, fmt.Errorf("VESTING_CUSTODY is required")
	}

	var err error
	if v.Start, err = parseTime(getEnv("VESTING_START", "")); err != nil {
		return v, fmt.Errorf("invalid VESTING_START: %w", err)
	}
	if v.Cliff, err = parseSeconds(getEnv("VESTING_CLIFF", "0")); err != nil {
		return v, fmt.Errorf("invalid VESTING_CLIFF: %w", err)
	}
	if v.Duration, err = parseSeconds(getEnv("VESTING_DURATION", "")); err != nil {
		return v, fmt.Errorf("invalid VESTING_DURATION: %w", err)
	}

	total, ok := new(big.Int).SetString(getEnv("VESTING_TOTAL", ""), 10)
	if !ok || total.Sign() <= 0 {
		return v, fmt.Errorf("VESTING_TOTAL must be a positive integer")
	}
	v.Total = total

	return v, nil
}

// parseTime accepts RFC3339 or unix seconds
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("value is required")
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}

// parseSeconds accepts whole seconds or a Go duration string such as "720h"
func parseSeconds(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("value is required")
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		if sec < 0 {
			return 0, fmt.Errorf("must not be negative")
		}
		return time.Duration(sec) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return d, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
