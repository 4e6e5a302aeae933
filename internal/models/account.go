package models

// Account represents a token balance held by an address
type Account struct {
	Token     string `json:"token"`
	Address   string `json:"address"`
	Balance   string `json:"balance"` // Decimal integer string
	UpdatedAt string `json:"updated_at,omitempty"`
}
