// Package points owns point balances: crediting gameplay rewards under a
// daily cap, debiting redemptions, and the append-only transaction history.
package points

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/mealquest/internal/model"

	"github.com/google/uuid"
)

var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrDailyLimitReached   = errors.New("daily points limit reached")
	ErrInsufficientBalance = errors.New("insufficient points balance")
)

// AccountStore is the durable mapping from user ID to points account.
// Implementations must treat Get/Put as per-key operations; ListAll exists
// for the batch daily-reset sweep.
type AccountStore interface {
	// Get returns the account for a user, or nil if none exists yet.
	Get(userID int64) (*model.PointsAccount, error)
	// Put inserts or replaces the account record.
	Put(acct *model.PointsAccount) error
	// PutWithTransaction writes the account and its ledger line atomically.
	PutWithTransaction(acct *model.PointsAccount, tx *model.Transaction) error
	// ListAll returns every account (batch sweep only).
	ListAll() ([]model.PointsAccount, error)
	// AppendTransaction appends one immutable ledger line.
	AppendTransaction(tx *model.Transaction) error
	// Transactions returns the most recent transactions, newest first.
	Transactions(userID int64, limit int) ([]model.Transaction, error)
}

const lockStripes = 32

// Service is the points ledger. All account mutations flow through here so
// the read-modify-write on a single account is serialized per user.
type Service struct {
	store  AccountStore
	logger *slog.Logger
	locks  [lockStripes]sync.Mutex
}

func NewService(store AccountStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

func (s *Service) lock(userID int64) *sync.Mutex {
	return &s.locks[uint64(userID)%lockStripes]
}

// today returns the server-local calendar date the cap counters are keyed by.
func today() string {
	return time.Now().Format("2006-01-02")
}

// loadAccount fetches the user's account, creating it lazily with zeroed
// counters on first access. Caller must hold the user's lock.
func (s *Service) loadAccount(userID int64) (*model.PointsAccount, error) {
	acct, err := s.store.Get(userID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if acct == nil {
		acct = &model.PointsAccount{
			UserID:         userID,
			DailyLimit:     model.DefaultDailyLimit,
			LastEarnedDate: today(),
		}
		if err := s.store.Put(acct); err != nil {
			return nil, fmt.Errorf("create account: %w", err)
		}
	}
	return acct, nil
}

// resetIfStale zeroes the daily counter when the calendar date has rolled
// over since the last credit. Idempotent: safe to run on every access.
func resetIfStale(acct *model.PointsAccount) bool {
	if acct.LastEarnedDate == today() {
		return false
	}
	acct.DailyEarned = 0
	acct.LastEarnedDate = today()
	return true
}

// EarnPoints credits points to a user. Without bypass the credit is clamped
// to the remaining daily allowance: a partial credit is reported in the
// result, not an error, but a zero remaining allowance fails with
// ErrDailyLimitReached. With bypass the full amount is credited and the
// daily counter is untouched — prize payouts and one-time bonuses must not
// eat into the gameplay cap.
func (s *Service) EarnPoints(userID int64, amount int, source, description string, bypassDailyLimit bool) (*model.EarnResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	mu := s.lock(userID)
	mu.Lock()
	defer mu.Unlock()

	acct, err := s.loadAccount(userID)
	if err != nil {
		return nil, err
	}
	resetIfStale(acct)

	credited := amount
	if !bypassDailyLimit {
		remaining := acct.DailyLimit - acct.DailyEarned
		if remaining <= 0 {
			// Persist the reset even when the earn itself fails.
			if err := s.store.Put(acct); err != nil {
				return nil, fmt.Errorf("put account: %w", err)
			}
			return nil, ErrDailyLimitReached
		}
		if credited > remaining {
			credited = remaining
		}
		acct.DailyEarned += credited
	}
	acct.TotalPoints += credited

	tx := &model.Transaction{
		ID:                 uuid.NewString(),
		UserID:             userID,
		Type:               model.TransactionEarn,
		Amount:             credited,
		Source:             source,
		Description:        description,
		BypassedDailyLimit: bypassDailyLimit,
		CreatedAt:          time.Now(),
	}
	// Balance and ledger line commit together or not at all.
	if err := s.store.PutWithTransaction(acct, tx); err != nil {
		return nil, fmt.Errorf("commit earn: %w", err)
	}

	remaining := acct.DailyLimit - acct.DailyEarned
	if remaining < 0 {
		remaining = 0
	}
	return &model.EarnResult{
		EarnedPoints:    credited,
		RequestedPoints: amount,
		TotalPoints:     acct.TotalPoints,
		DailyEarned:     acct.DailyEarned,
		DailyRemaining:  remaining,
		Clamped:         credited < amount,
	}, nil
}

// UsePoints debits points, failing with ErrInsufficientBalance when the
// account cannot cover the amount.
func (s *Service) UsePoints(userID int64, amount int, purpose, description string) (*model.PointsAccount, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	mu := s.lock(userID)
	mu.Lock()
	defer mu.Unlock()

	acct, err := s.loadAccount(userID)
	if err != nil {
		return nil, err
	}
	resetIfStale(acct)

	if amount > acct.TotalPoints {
		return nil, ErrInsufficientBalance
	}
	acct.TotalPoints -= amount

	tx := &model.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        model.TransactionUse,
		Amount:      amount,
		Source:      purpose,
		Description: description,
		CreatedAt:   time.Now(),
	}
	if err := s.store.PutWithTransaction(acct, tx); err != nil {
		return nil, fmt.Errorf("commit use: %w", err)
	}

	return acct, nil
}

// Balance returns the user's current counters. The lazy daily reset runs
// here too, so a stale account reads as a fresh allowance without waiting
// for the next earn.
func (s *Service) Balance(userID int64) (*model.PointsAccount, error) {
	mu := s.lock(userID)
	mu.Lock()
	defer mu.Unlock()

	acct, err := s.loadAccount(userID)
	if err != nil {
		return nil, err
	}
	if resetIfStale(acct) {
		if err := s.store.Put(acct); err != nil {
			return nil, fmt.Errorf("put account: %w", err)
		}
	}
	return acct, nil
}

// DailyRemaining reports how many more points the user may earn today.
func (s *Service) DailyRemaining(userID int64) (int, error) {
	acct, err := s.Balance(userID)
	if err != nil {
		return 0, err
	}
	remaining := acct.DailyLimit - acct.DailyEarned
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// History returns the user's most recent transactions, newest first.
func (s *Service) History(userID int64, limit int) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	txs, err := s.store.Transactions(userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// ResetAllDailyLimits proactively normalizes every stale account so daily
// counters are correct even for users who never log in. Run from startup or
// a cron collaborator; the lazy per-access reset makes it optional but keeps
// reporting queries honest. Returns the number of accounts reset.
func (s *Service) ResetAllDailyLimits() (int, error) {
	accounts, err := s.store.ListAll()
	if err != nil {
		return 0, fmt.Errorf("list accounts: %w", err)
	}

	reset := 0
	for i := range accounts {
		acct := &accounts[i]
		if acct.LastEarnedDate == today() {
			continue
		}

		mu := s.lock(acct.UserID)
		mu.Lock()
		current, err := s.store.Get(acct.UserID)
		if err != nil {
			mu.Unlock()
			return reset, fmt.Errorf("get account %d: %w", acct.UserID, err)
		}
		if current != nil && resetIfStale(current) {
			if err := s.store.Put(current); err != nil {
				mu.Unlock()
				return reset, fmt.Errorf("put account %d: %w", acct.UserID, err)
			}
			reset++
		}
		mu.Unlock()
	}

	if reset > 0 {
		s.logger.Info("daily limits reset", "accounts", reset)
	}
	return reset, nil
}
