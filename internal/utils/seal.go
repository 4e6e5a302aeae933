package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/Dan9191/vesting-service/internal/models"
)

// GenerateHMAC seals the immutable parameters of a schedule
func GenerateHMAC(s *models.Schedule, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	data := fmt.Sprintf("%s|%s|%s|%s|%d|%d|%d|%s",
		s.ID, s.Token, s.Beneficiary, s.Custody,
		s.StartTime.UTC().Truncate(time.Second).Unix(), s.CliffSeconds, s.DurationSeconds, s.TotalAmount)
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyHMAC reports whether the stored seal matches the schedule parameters
func VerifyHMAC(s *models.Schedule, secret string) bool {
	expected, err := hex.DecodeString(GenerateHMAC(s, secret))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(s.HMAC)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}
