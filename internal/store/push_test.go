package store

import (
	"testing"

	"github.com/dukerupert/mealquest/internal/database"
	"github.com/dukerupert/mealquest/internal/model"
)

func setupPushTestDB(t *testing.T) (*PushStore, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	us := NewUserStore(db)
	u, err := us.Create("test@example.com", "Test", "hash", model.RoleMember)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return NewPushStore(db), u.ID
}

func TestCreateSubscription(t *testing.T) {
	ps, uid := setupPushTestDB(t)

	sub, err := ps.CreateSubscription(uid, "https://push.example.com/sub1", "p256dh_key1", "auth_key1")
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if sub.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if sub.Endpoint != "https://push.example.com/sub1" {
		t.Errorf("endpoint = %q, want %q", sub.Endpoint, "https://push.example.com/sub1")
	}
	if sub.UserID != uid {
		t.Errorf("user_id = %d, want %d", sub.UserID, uid)
	}
}

func TestCreateSubscriptionUpsert(t *testing.T) {
	ps, uid := setupPushTestDB(t)

	sub1, _ := ps.CreateSubscription(uid, "https://push.example.com/sub1", "key1", "auth1")
	sub2, err := ps.CreateSubscription(uid, "https://push.example.com/sub1", "key2", "auth2")
	if err != nil {
		t.Fatalf("upsert subscription: %v", err)
	}

	// Should be same subscription, updated keys
	if sub2.ID != sub1.ID {
		t.Errorf("expected same ID on upsert, got %d != %d", sub2.ID, sub1.ID)
	}
	if sub2.P256dhKey != "key2" {
		t.Errorf("p256dh = %q, want %q", sub2.P256dhKey, "key2")
	}
}

func TestListByUser(t *testing.T) {
	ps, uid := setupPushTestDB(t)

	ps.CreateSubscription(uid, "https://push.example.com/1", "k1", "a1")
	ps.CreateSubscription(uid, "https://push.example.com/2", "k2", "a2")

	subs, err := ps.ListByUser(uid)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("len = %d, want 2", len(subs))
	}
}

func TestDeleteSubscription(t *testing.T) {
	ps, uid := setupPushTestDB(t)

	sub, _ := ps.CreateSubscription(uid, "https://push.example.com/1", "k1", "a1")

	if err := ps.Delete(sub.ID, uid); err != nil {
		t.Fatalf("delete: %v", err)
	}

	subs, _ := ps.ListByUser(uid)
	if len(subs) != 0 {
		t.Errorf("expected 0 subs after delete, got %d", len(subs))
	}
}

func TestDeleteSubscriptionWrongUser(t *testing.T) {
	ps, uid := setupPushTestDB(t)

	sub, _ := ps.CreateSubscription(uid, "https://push.example.com/1", "k1", "a1")

	// Scoped delete with another user's ID is a no-op.
	if err := ps.Delete(sub.ID, uid+1); err != nil {
		t.Fatalf("delete: %v", err)
	}

	subs, _ := ps.ListByUser(uid)
	if len(subs) != 1 {
		t.Errorf("expected sub to survive, got %d", len(subs))
	}
}

func TestDeleteByEndpoint(t *testing.T) {
	ps, uid := setupPushTestDB(t)

	ps.CreateSubscription(uid, "https://push.example.com/expired", "k1", "a1")

	if err := ps.DeleteByEndpoint("https://push.example.com/expired"); err != nil {
		t.Fatalf("delete by endpoint: %v", err)
	}

	subs, _ := ps.ListByUser(uid)
	if len(subs) != 0 {
		t.Errorf("expected 0 subs, got %d", len(subs))
	}
}
