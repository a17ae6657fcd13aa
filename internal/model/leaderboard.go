package model

import "time"

// LeaderboardEntry is a user's best score for one game within the current
// weekly epoch. Score only ever increases until the epoch resets.
type LeaderboardEntry struct {
	UserID        int64     `json:"user_id"`
	PlayerName    string    `json:"player_name"`
	Score         int       `json:"score"`
	FirstRecorded time.Time `json:"first_recorded"`
	LastUpdated   time.Time `json:"last_updated"`
}

// RankedEntry is a LeaderboardEntry with its 1-based position attached.
type RankedEntry struct {
	Rank int `json:"rank"`
	LeaderboardEntry
}

// WeeklyEpoch identifies the current scoring period: Monday 00:00 local
// through the following Monday 00:00, keyed by ISO week number and year.
type WeeklyEpoch struct {
	Week      int       `json:"week"`
	Year      int       `json:"year"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// RewardPayout records one prize credited during an epoch rollover.
type RewardPayout struct {
	GameID     string `json:"game_id"`
	UserID     int64  `json:"user_id"`
	PlayerName string `json:"player_name"`
	Rank       int    `json:"rank"`
	Points     int    `json:"points"`
}

// LeaderboardHistoryRecord is an immutable snapshot taken at rollover:
// the pre-reset tables plus the prizes that were paid.
type LeaderboardHistoryRecord struct {
	Epoch   WeeklyEpoch                   `json:"epoch"`
	Tables  map[string][]LeaderboardEntry `json:"tables"`
	Payouts []RewardPayout                `json:"payouts"`
	ResetAt time.Time                     `json:"reset_at"`
}
