package model

import "time"

const DefaultDailyLimit = 100

// TransactionType distinguishes credits from debits.
type TransactionType string

const (
	TransactionEarn TransactionType = "earn"
	TransactionUse  TransactionType = "use"
)

// PointsAccount holds one user's spendable points and daily-cap counters.
// Mutated only through the points service; created lazily on first access.
type PointsAccount struct {
	UserID         int64     `json:"user_id"`
	TotalPoints    int       `json:"total_points"`
	DailyEarned    int       `json:"daily_earned"`
	DailyLimit     int       `json:"daily_limit"`
	LastEarnedDate string    `json:"last_earned_date"` // local calendar date, YYYY-MM-DD
	UpdatedAt      time.Time `json:"updated_at"`
}

// Transaction is one immutable ledger line. History is append-only.
type Transaction struct {
	ID                 string          `json:"id"`
	UserID             int64           `json:"user_id"`
	Type               TransactionType `json:"type"`
	Amount             int             `json:"amount"`
	Source             string          `json:"source"`
	Description        string          `json:"description"`
	BypassedDailyLimit bool            `json:"bypassed_daily_limit"`
	CreatedAt          time.Time       `json:"created_at"`
}

// EarnResult reports what a credit actually did. EarnedPoints may be less
// than requested when the daily cap clamps the credit.
type EarnResult struct {
	EarnedPoints    int  `json:"earned_points"`
	RequestedPoints int  `json:"requested_points"`
	TotalPoints     int  `json:"total_points"`
	DailyEarned     int  `json:"daily_earned"`
	DailyRemaining  int  `json:"daily_remaining"`
	Clamped         bool `json:"clamped"`
}
