package models

import "time"

// Transfer represents a journaled ledger movement
type Transfer struct {
	ID          int64     `json:"id"`
	Token       string    `json:"token"`
	FromAddress string    `json:"from"`
	ToAddress   string    `json:"to"`
	Amount      string    `json:"amount"`
	Memo        string    `json:"memo"` // Schedule ID for releases
	CreatedAt   time.Time `json:"created_at"`
}
