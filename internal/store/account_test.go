package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/dukerupert/mealquest/internal/database"
	"github.com/dukerupert/mealquest/internal/model"
)

func setupAccountTestDB(t *testing.T) (*AccountStore, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	user, err := NewUserStore(db).Create("player@example.com", "Player", "x", model.RoleMember)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return NewAccountStore(db), user.ID
}

func TestAccountGetMissing(t *testing.T) {
	as, userID := setupAccountTestDB(t)

	acct, err := as.Get(userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if acct != nil {
		t.Errorf("got %+v, want nil for missing account", acct)
	}
}

func TestAccountPutUpserts(t *testing.T) {
	as, userID := setupAccountTestDB(t)

	acct := &model.PointsAccount{
		UserID:         userID,
		TotalPoints:    40,
		DailyEarned:    40,
		DailyLimit:     model.DefaultDailyLimit,
		LastEarnedDate: "2026-08-30",
	}
	if err := as.Put(acct); err != nil {
		t.Fatalf("insert: %v", err)
	}

	acct.TotalPoints = 55
	acct.DailyEarned = 55
	if err := as.Put(acct); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := as.Get(userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalPoints != 55 || got.DailyEarned != 55 {
		t.Errorf("got total=%d daily=%d, want 55/55", got.TotalPoints, got.DailyEarned)
	}
	if got.LastEarnedDate != "2026-08-30" {
		t.Errorf("last earned date = %q, want 2026-08-30", got.LastEarnedDate)
	}

	all, err := as.ListAll()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("got %d accounts, want 1 (upsert, not duplicate)", len(all))
	}
}

func TestPutWithTransactionAtomic(t *testing.T) {
	as, userID := setupAccountTestDB(t)

	acct := &model.PointsAccount{
		UserID:         userID,
		TotalPoints:    50,
		DailyEarned:    50,
		DailyLimit:     model.DefaultDailyLimit,
		LastEarnedDate: "2026-08-30",
	}
	tx := &model.Transaction{
		ID:        "tx-earn-1",
		UserID:    userID,
		Type:      model.TransactionEarn,
		Amount:    50,
		Source:    "snake-game",
		CreatedAt: time.Now(),
	}
	if err := as.PutWithTransaction(acct, tx); err != nil {
		t.Fatalf("put with transaction: %v", err)
	}

	got, err := as.Get(userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalPoints != 50 {
		t.Errorf("total = %d, want 50", got.TotalPoints)
	}
	txs, err := as.Transactions(userID, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txs))
	}

	// A failed ledger insert rolls the balance change back with it. The
	// duplicate ID trips the primary key after the account write.
	acct.TotalPoints = 999
	dup := &model.Transaction{
		ID:        "tx-earn-1",
		UserID:    userID,
		Type:      model.TransactionEarn,
		Amount:    949,
		Source:    "snake-game",
		CreatedAt: time.Now(),
	}
	if err := as.PutWithTransaction(acct, dup); err == nil {
		t.Fatal("expected error for duplicate transaction id, got nil")
	}

	got, err = as.Get(userID)
	if err != nil {
		t.Fatalf("get after rollback: %v", err)
	}
	if got.TotalPoints != 50 {
		t.Errorf("total after rollback = %d, want 50 (balance must not outrun ledger)", got.TotalPoints)
	}
	if txs, _ := as.Transactions(userID, 10); len(txs) != 1 {
		t.Errorf("got %d transactions after rollback, want 1", len(txs))
	}
}

func TestTransactionsNewestFirst(t *testing.T) {
	as, userID := setupAccountTestDB(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		tx := &model.Transaction{
			ID:        fmt.Sprintf("tx-%d", i),
			UserID:    userID,
			Type:      model.TransactionEarn,
			Amount:    10 + i,
			Source:    "snake-game",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := as.AppendTransaction(tx); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	txs, err := as.Transactions(userID, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("got %d transactions, want 3", len(txs))
	}
	if txs[0].ID != "tx-4" || txs[2].ID != "tx-2" {
		t.Errorf("order = %s..%s, want tx-4..tx-2", txs[0].ID, txs[2].ID)
	}
	if txs[0].Amount != 14 {
		t.Errorf("newest amount = %d, want 14", txs[0].Amount)
	}
}
