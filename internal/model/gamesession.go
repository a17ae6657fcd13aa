package model

import "time"

// GameSession is a short-lived, single-use play token record. Sessions live
// only in memory; they are never persisted.
type GameSession struct {
	SessionID       string    `json:"session_id"`
	UserID          int64     `json:"user_id"`
	GameID          string    `json:"game_id"`
	StartTime       time.Time `json:"start_time"`
	ExpiresAt       time.Time `json:"expires_at"`
	Used            bool      `json:"used"`
	IssuerIP        string    `json:"-"`
	IssuerUserAgent string    `json:"-"`
}
