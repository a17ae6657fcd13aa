// Package arcade orchestrates a score submission end to end: burn the play
// session, validate the claim, convert score to points, credit the ledger,
// and post the score to the weekly leaderboard.
package arcade

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dukerupert/mealquest/internal/anticheat"
	"github.com/dukerupert/mealquest/internal/game"
	"github.com/dukerupert/mealquest/internal/gamesession"
	"github.com/dukerupert/mealquest/internal/metrics"
	"github.com/dukerupert/mealquest/internal/model"
	"github.com/dukerupert/mealquest/internal/points"
	"github.com/dukerupert/mealquest/internal/store"
)

// ErrTimingMismatch means the claimed play duration disagrees with the
// server-observed session age by more than the allowed tolerance.
var ErrTimingMismatch = errors.New("claimed play time does not match session age")

// timingToleranceSeconds absorbs clock skew and request latency between the
// claimed elapsed time and the session's server-side age.
const timingToleranceSeconds = 30.0

// Broadcaster pushes live events to connected clients. Best effort.
type Broadcaster interface {
	PointsEarned(userID int64, gameID string, pointsEarned, totalPoints int)
	LeaderboardUpdated(gameID string, entry *model.LeaderboardEntry)
}

// SubmitRequest is one score claim from a finished game run.
type SubmitRequest struct {
	UserID         int64
	PlayerName     string
	SessionID      string
	GameID         string
	Score          int
	ElapsedSeconds float64
	IP             string
	UserAgent      string
}

// SubmitResult reports what a submission earned.
type SubmitResult struct {
	GameID         string                  `json:"game_id"`
	Score          int                     `json:"score"`
	PointsEarned   int                     `json:"points_earned"`
	TotalPoints    int                     `json:"total_points"`
	DailyRemaining int                     `json:"daily_remaining"`
	Clamped        bool                    `json:"clamped"`
	Flagged        bool                    `json:"flagged"`
	NewBest        bool                    `json:"new_best"`
	Rank           int                     `json:"rank,omitempty"`
	Entry          *model.LeaderboardEntry `json:"leaderboard_entry,omitempty"`
}

type Service struct {
	sessions    *gamesession.Manager
	points      *points.Service
	boards      *store.LeaderboardStore
	metrics     *metrics.Metrics
	broadcaster Broadcaster
	logger      *slog.Logger
}

func NewService(sessions *gamesession.Manager, pts *points.Service, boards *store.LeaderboardStore, m *metrics.Metrics, b Broadcaster, logger *slog.Logger) *Service {
	return &Service{
		sessions:    sessions,
		points:      pts,
		boards:      boards,
		metrics:     m,
		broadcaster: b,
		logger:      logger.With("component", "arcade"),
	}
}

// SubmitScore runs the full submission pipeline. The session is consumed
// first, so any rejection after this point still burns it: a failed claim
// cannot be retried with the same session. When the daily cap is already
// exhausted the submission earns zero points but the score still counts
// toward the leaderboard.
func (s *Service) SubmitScore(req SubmitRequest) (*SubmitResult, error) {
	sess, err := s.sessions.ConsumeSession(req.SessionID, req.UserID, req.GameID, req.IP, req.UserAgent)
	if err != nil {
		s.count(req.GameID, metrics.ResultRejected)
		return nil, err
	}

	if err := s.checkTiming(sess, req.ElapsedSeconds); err != nil {
		s.count(req.GameID, metrics.ResultRejected)
		s.logger.Warn("score rejected: timing mismatch",
			"user_id", req.UserID,
			"game_id", req.GameID,
			"claimed_seconds", req.ElapsedSeconds,
			"session_age", time.Since(sess.StartTime).Seconds())
		return nil, err
	}

	flagged, err := anticheat.Validate(req.GameID, req.Score, req.ElapsedSeconds)
	if err != nil {
		s.count(req.GameID, metrics.ResultRejected)
		var rej *anticheat.Rejection
		if errors.As(err, &rej) {
			s.logger.Warn("score rejected",
				"user_id", req.UserID,
				"game_id", req.GameID,
				"score", req.Score,
				"reason", rej.Reason)
		}
		return nil, err
	}
	if flagged {
		s.count(req.GameID, metrics.ResultFlagged)
		s.logger.Warn("score flagged for review",
			"user_id", req.UserID,
			"game_id", req.GameID,
			"score", req.Score,
			"elapsed_seconds", req.ElapsedSeconds)
	}

	cfg, _ := game.Lookup(req.GameID)
	earnable := cfg.Points(req.Score)

	result := &SubmitResult{
		GameID:  req.GameID,
		Score:   req.Score,
		Flagged: flagged,
	}

	if earnable > 0 {
		earn, err := s.points.EarnPoints(req.UserID, earnable, req.GameID,
			fmt.Sprintf("Scored %d in %s", req.Score, cfg.DisplayName), false)
		switch {
		case errors.Is(err, points.ErrDailyLimitReached):
			// The cap wipes the credit but not the score.
			result.Clamped = true
			if acct, berr := s.points.Balance(req.UserID); berr == nil {
				result.TotalPoints = acct.TotalPoints
			}
		case err != nil:
			s.count(req.GameID, metrics.ResultRejected)
			return nil, fmt.Errorf("credit points: %w", err)
		default:
			result.PointsEarned = earn.EarnedPoints
			result.TotalPoints = earn.TotalPoints
			result.DailyRemaining = earn.DailyRemaining
			result.Clamped = earn.Clamped
		}
	}

	// A leaderboard failure costs the entry but never the earned points.
	entry, updated, err := s.boards.UpsertScore(req.GameID, req.UserID, req.PlayerName, req.Score)
	if err != nil {
		s.logger.Error("leaderboard update failed",
			"user_id", req.UserID,
			"game_id", req.GameID,
			"error", err)
	} else if entry != nil {
		result.Entry = entry
		result.NewBest = updated
		if rank, _, rerr := s.boards.UserRank(req.GameID, req.UserID); rerr == nil {
			result.Rank = rank
		}
		if s.metrics != nil && updated {
			if n, cerr := s.boards.CountGame(req.GameID); cerr == nil {
				s.metrics.LeaderboardSize.WithLabelValues(req.GameID).Set(float64(n))
			}
		}
	}

	s.count(req.GameID, metrics.ResultAccepted)
	if s.metrics != nil && result.PointsEarned > 0 {
		s.metrics.PointsAwarded.WithLabelValues(req.GameID).Add(float64(result.PointsEarned))
	}

	if s.broadcaster != nil {
		if result.PointsEarned > 0 {
			s.broadcaster.PointsEarned(req.UserID, req.GameID, result.PointsEarned, result.TotalPoints)
		}
		if result.NewBest {
			s.broadcaster.LeaderboardUpdated(req.GameID, result.Entry)
		}
	}

	s.logger.Info("score accepted",
		"user_id", req.UserID,
		"game_id", req.GameID,
		"score", req.Score,
		"points_earned", result.PointsEarned,
		"new_best", result.NewBest)

	return result, nil
}

// checkTiming compares the claimed elapsed play time against how long ago
// the session was actually issued.
func (s *Service) checkTiming(sess *model.GameSession, elapsedSeconds float64) error {
	age := time.Since(sess.StartTime).Seconds()
	if math.Abs(age-elapsedSeconds) > timingToleranceSeconds {
		return ErrTimingMismatch
	}
	return nil
}

func (s *Service) count(gameID, result string) {
	if s.metrics != nil {
		s.metrics.Submissions.WithLabelValues(gameID, result).Inc()
	}
}
