package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dukerupert/mealquest/internal/metrics"
	"github.com/dukerupert/mealquest/internal/model"
	"github.com/dukerupert/mealquest/internal/points"
	"github.com/dukerupert/mealquest/internal/store"
)

// ErrEpochProcessed is returned when a rollover is requested for a week
// that already has a history record. The duplicate request pays nothing.
var ErrEpochProcessed = errors.New("leaderboard epoch already processed")

// DefaultPrizes are the points awarded to the top three of each game's
// table, in rank order. Prizes bypass the daily earn limit.
var DefaultPrizes = []int{500, 300, 200}

const payoutSource = "weekly-leaderboard"

// PayoutNotifier is told about prize payouts after a rollover commits.
// Delivery is best effort; failures must not affect the rollover.
type PayoutNotifier interface {
	NotifyPayouts(epoch model.WeeklyEpoch, payouts []model.RewardPayout)
}

// Scheduler drives the weekly leaderboard reset. It re-arms a one-shot
// timer for the next Monday 00:00 local after every firing, so the cycle
// tracks wall-clock weeks instead of drifting with a fixed ticker.
type Scheduler struct {
	store    *store.LeaderboardStore
	points   *points.Service
	metrics  *metrics.Metrics
	notifier PayoutNotifier
	logger   *slog.Logger
	prizes   []int

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(st *store.LeaderboardStore, pts *points.Service, m *metrics.Metrics, notifier PayoutNotifier, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:    st,
		points:   pts,
		metrics:  m,
		notifier: notifier,
		logger:   logger.With("component", "leaderboard_scheduler"),
		prizes:   DefaultPrizes,
	}
}

// Start launches the background rollover loop. It first reconciles the
// stored epoch: a fresh database gets the current epoch recorded, and an
// epoch whose end has already passed (the process was down over a Monday,
// or restarted just after midnight) is rolled over immediately so winners
// are paid late rather than never.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		s.reconcile()

		for {
			delay := time.Until(NextRollover(time.Now()))
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				s.logger.Info("leaderboard scheduler stopped")
				return
			case <-timer.C:
				if _, err := s.Rollover(); err != nil && !errors.Is(err, ErrEpochProcessed) {
					s.logger.Error("scheduled rollover failed", "error", err)
				}
			}
		}
	}()

	s.logger.Info("leaderboard scheduler started", "next_rollover", NextRollover(time.Now()))
}

// Stop signals the loop to exit and waits for it.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

func (s *Scheduler) reconcile() {
	now := time.Now()
	epoch, err := s.store.Epoch()
	if err != nil {
		s.logger.Error("failed to load stored epoch", "error", err)
		return
	}
	if epoch == nil {
		current := CurrentEpoch(now)
		if err := s.store.SetEpoch(current); err != nil {
			s.logger.Error("failed to record initial epoch", "error", err)
			return
		}
		s.logger.Info("initialized leaderboard epoch", "week", current.Week, "year", current.Year)
		return
	}
	if !now.Before(epoch.EndDate) {
		s.logger.Info("stored epoch has ended, rolling over on startup",
			"week", epoch.Week, "year", epoch.Year)
		if _, err := s.Rollover(); err != nil && !errors.Is(err, ErrEpochProcessed) {
			s.logger.Error("startup rollover failed", "error", err)
		}
	}
}

// Rollover closes the stored epoch: it pays prizes to the top three of
// every game's table, snapshots all tables into history, clears the live
// entries, and records the new current epoch. Calling it again for the
// same week returns ErrEpochProcessed and pays nothing; the UNIQUE
// constraint on the history table backs the guard even across processes.
func (s *Scheduler) Rollover() (*model.LeaderboardHistoryRecord, error) {
	rec, err := s.rollover()
	if s.metrics != nil {
		switch {
		case err == nil:
			s.metrics.RolloversTotal.Inc()
			s.metrics.PrizePayouts.Add(float64(len(rec.Payouts)))
		case !errors.Is(err, ErrEpochProcessed):
			s.metrics.RolloverFailures.Inc()
		}
	}
	return rec, err
}

func (s *Scheduler) rollover() (*model.LeaderboardHistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	epoch, err := s.store.Epoch()
	if err != nil {
		return nil, fmt.Errorf("failed to load epoch: %w", err)
	}
	if epoch == nil {
		e := CurrentEpoch(now)
		epoch = &e
	}

	processed, err := s.store.HasHistory(epoch.Week, epoch.Year)
	if err != nil {
		return nil, fmt.Errorf("failed to check history: %w", err)
	}
	if processed {
		// Replayed rollover (forced reset earlier in the week, or a crash
		// between snapshot and epoch advance). Pay nothing. When the week
		// has moved on, any live entries still belong to the processed
		// epoch: clear them before advancing, or stale scores seed the new
		// week's tables. The advance keeps the scheduler off the guard.
		current := CurrentEpoch(now)
		if current.Week != epoch.Week || current.Year != epoch.Year {
			if err := s.store.ClearAll(); err != nil {
				return nil, fmt.Errorf("failed to clear leaderboard entries: %w", err)
			}
			if s.metrics != nil {
				s.metrics.LeaderboardSize.Reset()
			}
			if err := s.store.SetEpoch(current); err != nil {
				return nil, fmt.Errorf("failed to advance epoch: %w", err)
			}
		}
		return nil, ErrEpochProcessed
	}

	tables, err := s.store.AllTables()
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard tables: %w", err)
	}

	payouts := s.payPrizes(tables, *epoch)

	record := &model.LeaderboardHistoryRecord{
		Epoch:   *epoch,
		Tables:  tables,
		Payouts: payouts,
		ResetAt: now,
	}
	if err := s.store.AddHistory(record); err != nil {
		return nil, fmt.Errorf("failed to record leaderboard history: %w", err)
	}

	if err := s.store.ClearAll(); err != nil {
		return nil, fmt.Errorf("failed to clear leaderboard entries: %w", err)
	}
	if s.metrics != nil {
		s.metrics.LeaderboardSize.Reset()
	}

	current := CurrentEpoch(now)
	if err := s.store.SetEpoch(current); err != nil {
		return nil, fmt.Errorf("failed to record new epoch: %w", err)
	}

	s.logger.Info("weekly leaderboard rolled over",
		"week", epoch.Week,
		"year", epoch.Year,
		"games", len(tables),
		"payouts", len(payouts))

	if s.notifier != nil && len(payouts) > 0 {
		s.notifier.NotifyPayouts(*epoch, payouts)
	}

	return record, nil
}

// payPrizes credits prize points to the top entries of each table. A
// failed credit for one winner is logged and skipped so the rest of the
// payouts and the reset still go through.
func (s *Scheduler) payPrizes(tables map[string][]model.LeaderboardEntry, epoch model.WeeklyEpoch) []model.RewardPayout {
	gameIDs := make([]string, 0, len(tables))
	for id := range tables {
		gameIDs = append(gameIDs, id)
	}
	sort.Strings(gameIDs)

	var payouts []model.RewardPayout
	for _, gameID := range gameIDs {
		entries := tables[gameID]
		for i, entry := range entries {
			if i >= len(s.prizes) {
				break
			}
			rank := i + 1
			desc := fmt.Sprintf("Weekly leaderboard rank %d in %s (week %d, %d)",
				rank, gameID, epoch.Week, epoch.Year)
			if _, err := s.points.EarnPoints(entry.UserID, s.prizes[i], payoutSource, desc, true); err != nil {
				s.logger.Error("prize payout failed",
					"user_id", entry.UserID,
					"game_id", gameID,
					"rank", rank,
					"error", err)
				continue
			}
			payouts = append(payouts, model.RewardPayout{
				GameID:     gameID,
				UserID:     entry.UserID,
				PlayerName: entry.PlayerName,
				Rank:       rank,
				Points:     s.prizes[i],
			})
		}
	}
	return payouts
}
