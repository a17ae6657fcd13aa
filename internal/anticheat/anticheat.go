// Package anticheat decides whether a claimed game result is plausible.
// Validation is a pure function over the static per-game config; it keeps no
// state and never touches storage.
package anticheat

import (
	"fmt"
	"math"

	"github.com/dukerupert/mealquest/internal/game"
)

// Reason classifies why a claim was rejected.
type Reason string

const (
	ReasonInvalidClaim     Reason = "invalid_claim"
	ReasonUnsupportedGame  Reason = "unsupported_game"
	ReasonScoreTooHigh     Reason = "score_too_high"
	ReasonPlayTimeTooShort Reason = "play_time_too_short"
	ReasonRateImplausible  Reason = "score_rate_implausible"
	ReasonUnrealistic      Reason = "unrealistic_pattern"
	ReasonSuspicious       Reason = "suspicious_pattern"
)

// Rejection is returned when a claim fails validation.
type Rejection struct {
	Reason Reason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return fmt.Sprintf("score rejected: %s", r.Reason)
	}
	return fmt.Sprintf("score rejected: %s (%s)", r.Reason, r.Detail)
}

func reject(reason Reason, format string, args ...any) error {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Thresholds for the generic suspicious-pattern checks. A "very high" score
// is measured against the game's reasonable maximum.
const (
	suspiciousShortPlay  = 15.0 // seconds
	suspiciousHighFactor = 0.75
)

// Validate checks a claimed (game, score, elapsed) triple, short-circuiting
// on the first failure. The returned flag is true when the score exceeds the
// game's reasonable maximum but passed every check: rare, not impossible —
// callers should log it, not reject it.
func Validate(gameID string, score int, elapsedSeconds float64) (flagged bool, err error) {
	if score < 0 {
		return false, reject(ReasonInvalidClaim, "negative score %d", score)
	}
	if elapsedSeconds < 0 || math.IsNaN(elapsedSeconds) || math.IsInf(elapsedSeconds, 0) {
		return false, reject(ReasonInvalidClaim, "invalid elapsed time %v", elapsedSeconds)
	}

	cfg, ok := game.Lookup(gameID)
	if !ok {
		return false, reject(ReasonUnsupportedGame, "unknown game %q", gameID)
	}

	if score > cfg.MaxScore {
		return false, reject(ReasonScoreTooHigh, "score %d exceeds maximum %d", score, cfg.MaxScore)
	}

	if elapsedSeconds < cfg.MinPlayTimeSeconds {
		return false, reject(ReasonPlayTimeTooShort, "%.1fs is under the %.1fs minimum", elapsedSeconds, cfg.MinPlayTimeSeconds)
	}

	if elapsedSeconds > 0 && float64(score)/elapsedSeconds > cfg.MaxScorePerSecond {
		return false, reject(ReasonRateImplausible, "%.1f points/sec exceeds %.1f", float64(score)/elapsedSeconds, cfg.MaxScorePerSecond)
	}

	for _, tier := range cfg.Tiers {
		if score > tier.Score && elapsedSeconds < tier.MinSeconds {
			return false, reject(ReasonUnrealistic, "score above %d needs at least %.0fs of play", tier.Score, tier.MinSeconds)
		}
	}

	if err := checkSuspiciousPatterns(cfg, score, elapsedSeconds); err != nil {
		return false, err
	}

	return score > cfg.ReasonableMaxScore, nil
}

// checkSuspiciousPatterns catches claims that are technically possible but
// carry the fingerprints of scripted submissions.
func checkSuspiciousPatterns(cfg game.Config, score int, elapsedSeconds float64) error {
	high := float64(score) >= float64(cfg.ReasonableMaxScore)*suspiciousHighFactor

	// A very high round-hundred score banked in seconds is a bot favorite.
	if high && score >= 100 && score%100 == 0 && elapsedSeconds < suspiciousShortPlay {
		return reject(ReasonSuspicious, "round score %d in %.1fs", score, elapsedSeconds)
	}

	// Exactly whole minutes of play paired with a near-ceiling score.
	if score >= cfg.ReasonableMaxScore && elapsedSeconds >= 60 && math.Mod(elapsedSeconds, 60) == 0 {
		return reject(ReasonSuspicious, "score %d with exact %.0fs play time", score, elapsedSeconds)
	}

	return nil
}
