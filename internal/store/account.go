package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/mealquest/internal/model"
)

// AccountStore persists points accounts and their transaction history in
// SQLite. It satisfies points.AccountStore.
type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

func scanAccount(scanner interface{ Scan(...any) error }) (*model.PointsAccount, error) {
	var a model.PointsAccount
	err := scanner.Scan(&a.UserID, &a.TotalPoints, &a.DailyEarned, &a.DailyLimit, &a.LastEarnedDate, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const accountCols = `user_id, total_points, daily_earned, daily_limit, last_earned_date, updated_at`

// Get returns the account for a user, or nil if none exists.
func (s *AccountStore) Get(userID int64) (*model.PointsAccount, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM points_accounts WHERE user_id = ?`, userID)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

const putAccountSQL = `INSERT INTO points_accounts (user_id, total_points, daily_earned, daily_limit, last_earned_date, updated_at)
 VALUES (?, ?, ?, ?, ?, ?)
 ON CONFLICT(user_id) DO UPDATE SET
   total_points = excluded.total_points,
   daily_earned = excluded.daily_earned,
   daily_limit = excluded.daily_limit,
   last_earned_date = excluded.last_earned_date,
   updated_at = excluded.updated_at`

// Put inserts or replaces the account record for acct.UserID.
func (s *AccountStore) Put(acct *model.PointsAccount) error {
	acct.UpdatedAt = time.Now()
	_, err := s.db.Exec(putAccountSQL,
		acct.UserID, acct.TotalPoints, acct.DailyEarned, acct.DailyLimit, acct.LastEarnedDate, acct.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put account: %w", err)
	}
	return nil
}

// PutWithTransaction writes the account and appends its ledger line in one
// database transaction. A balance change never lands without its ledger
// record, and vice versa.
func (s *AccountStore) PutWithTransaction(acct *model.PointsAccount, txn *model.Transaction) error {
	dbtx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer dbtx.Rollback()

	acct.UpdatedAt = time.Now()
	if _, err := dbtx.Exec(putAccountSQL,
		acct.UserID, acct.TotalPoints, acct.DailyEarned, acct.DailyLimit, acct.LastEarnedDate, acct.UpdatedAt,
	); err != nil {
		return fmt.Errorf("put account: %w", err)
	}

	var bypassed int
	if txn.BypassedDailyLimit {
		bypassed = 1
	}
	if _, err := dbtx.Exec(insertTransactionSQL,
		txn.ID, txn.UserID, string(txn.Type), txn.Amount, txn.Source, txn.Description, bypassed, txn.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListAll returns every account. Used by the batch daily-reset sweep.
func (s *AccountStore) ListAll() ([]model.PointsAccount, error) {
	rows, err := s.db.Query(`SELECT ` + accountCols + ` FROM points_accounts ORDER BY user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.PointsAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func scanTransaction(scanner interface{ Scan(...any) error }) (*model.Transaction, error) {
	var t model.Transaction
	var bypassed int
	err := scanner.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Source, &t.Description, &bypassed, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.BypassedDailyLimit = bypassed != 0
	return &t, nil
}

const transactionCols = `id, user_id, type, amount, source, description, bypassed_daily_limit, created_at`

const insertTransactionSQL = `INSERT INTO points_transactions (id, user_id, type, amount, source, description, bypassed_daily_limit, created_at)
 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// AppendTransaction appends one immutable ledger line. Lines are never
// updated or deleted.
func (s *AccountStore) AppendTransaction(tx *model.Transaction) error {
	var bypassed int
	if tx.BypassedDailyLimit {
		bypassed = 1
	}
	_, err := s.db.Exec(insertTransactionSQL,
		tx.ID, tx.UserID, string(tx.Type), tx.Amount, tx.Source, tx.Description, bypassed, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// Transactions returns the user's most recent transactions, newest first.
func (s *AccountStore) Transactions(userID int64, limit int) ([]model.Transaction, error) {
	rows, err := s.db.Query(
		`SELECT `+transactionCols+` FROM points_transactions
		 WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}
