package models

// VestingStatus represents the current state of the schedule
type VestingStatus struct {
	Schedule       Schedule `json:"schedule"`
	Phase          string   `json:"phase"`
	Vested         string   `json:"vested"`
	Released       string   `json:"released"`
	Releasable     string   `json:"releasable"`
	CustodyBalance string   `json:"custody_balance"`
	AsOf           string   `json:"as_of"`
}

// VestingForecast represents projected unlocks for N days
type VestingForecast struct {
	Released       string         `json:"released"`
	ForecastedDays int            `json:"forecasted_days"`
	DailyForecast  []DailyVesting `json:"daily_forecast"`
}

// DailyVesting represents the projected amounts for a specific day
type DailyVesting struct {
	Date       string `json:"date"` // Format: YYYY-MM-DD
	Vested     string `json:"vested"`
	Releasable string `json:"releasable"`
}

// ReleaseResult represents the outcome of a successful release
type ReleaseResult struct {
	ScheduleID  string `json:"schedule_id"`
	Beneficiary string `json:"beneficiary"`
	Amount      string `json:"amount"`
	Released    string `json:"released"`
}
