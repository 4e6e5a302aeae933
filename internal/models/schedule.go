package models

import "time"

// Schedule represents the stored, immutable parameters of a vesting schedule
type Schedule struct {
	ID               string    `json:"id"`
	Token            string    `json:"token"`
	Beneficiary      string    `json:"beneficiary"`
	BeneficiaryEmail string    `json:"-"`
	Custody          string    `json:"custody"`
	StartTime        time.Time `json:"start_time"`
	CliffSeconds     int64     `json:"cliff_seconds"`
	DurationSeconds  int64     `json:"duration_seconds"`
	TotalAmount      string    `json:"total_amount"`
	HMAC             string    `json:"hmac"`
	CreatedAt        time.Time `json:"created_at"`
}
