package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/dukerupert/mealquest/internal/database"
	"github.com/dukerupert/mealquest/internal/model"
)

func setupLeaderboardTestDB(t *testing.T) *LeaderboardStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewLeaderboardStore(db)
}

func TestUpsertScoreKeepsBest(t *testing.T) {
	ls := setupLeaderboardTestDB(t)

	entry, updated, err := ls.UpsertScore("snake-game", 1, "Ada", 50)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !updated {
		t.Error("first submission should update the table")
	}
	if entry.Score != 50 {
		t.Errorf("score = %d, want 50", entry.Score)
	}

	// A lower score leaves the stored best alone.
	entry, updated, err = ls.UpsertScore("snake-game", 1, "Ada", 30)
	if err != nil {
		t.Fatalf("lower upsert: %v", err)
	}
	if updated {
		t.Error("lower score must not update")
	}
	if entry.Score != 50 {
		t.Errorf("score = %d, want 50 preserved", entry.Score)
	}

	// Equal score is not an improvement either.
	_, updated, err = ls.UpsertScore("snake-game", 1, "Ada", 50)
	if err != nil {
		t.Fatalf("equal upsert: %v", err)
	}
	if updated {
		t.Error("equal score must not update")
	}

	// A higher score replaces it.
	entry, updated, err = ls.UpsertScore("snake-game", 1, "Ada", 80)
	if err != nil {
		t.Fatalf("higher upsert: %v", err)
	}
	if !updated {
		t.Error("higher score should update")
	}
	if entry.Score != 80 {
		t.Errorf("score = %d, want 80", entry.Score)
	}
}

func TestTopNOrdersAndRanks(t *testing.T) {
	ls := setupLeaderboardTestDB(t)

	scores := map[int64]int{1: 40, 2: 90, 3: 60}
	for userID, score := range scores {
		name := fmt.Sprintf("player-%d", userID)
		if _, _, err := ls.UpsertScore("snake-game", userID, name, score); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	// A different game's table must not bleed in.
	if _, _, err := ls.UpsertScore("memory-match", 4, "player-4", 999); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	top, err := ls.TopN("snake-game", 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("got %d entries, want 3", len(top))
	}
	wantOrder := []int64{2, 3, 1}
	for i, want := range wantOrder {
		if top[i].UserID != want {
			t.Errorf("rank %d user = %d, want %d", i+1, top[i].UserID, want)
		}
		if top[i].Rank != i+1 {
			t.Errorf("rank field = %d, want %d", top[i].Rank, i+1)
		}
	}
}

func TestUserRank(t *testing.T) {
	ls := setupLeaderboardTestDB(t)

	for i := int64(1); i <= 5; i++ {
		if _, _, err := ls.UpsertScore("snake-game", i, fmt.Sprintf("p%d", i), int(i)*10); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	rank, entry, err := ls.UserRank("snake-game", 3)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if rank != 3 {
		t.Errorf("rank = %d, want 3", rank)
	}
	if entry == nil || entry.Score != 30 {
		t.Errorf("entry = %+v, want score 30", entry)
	}

	rank, entry, err = ls.UserRank("snake-game", 99)
	if err != nil {
		t.Fatalf("rank unranked: %v", err)
	}
	if rank != 0 || entry != nil {
		t.Errorf("unranked user: rank=%d entry=%+v, want 0/nil", rank, entry)
	}
}

func TestLeaderboardTruncatesToCap(t *testing.T) {
	ls := setupLeaderboardTestDB(t)

	for i := 1; i <= maxEntriesPerGame+10; i++ {
		if _, _, err := ls.UpsertScore("snake-game", int64(i), fmt.Sprintf("p%d", i), i); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	top, err := ls.TopN("snake-game", 0)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != maxEntriesPerGame {
		t.Fatalf("table holds %d entries, want %d", len(top), maxEntriesPerGame)
	}
	// The lowest scores fell off the bottom.
	if top[len(top)-1].Score != 11 {
		t.Errorf("lowest kept score = %d, want 11", top[len(top)-1].Score)
	}

	// A submission below the cut is accepted but never surfaces.
	entry, updated, err := ls.UpsertScore("snake-game", 999, "late", 1)
	if err != nil {
		t.Fatalf("below-cut upsert: %v", err)
	}
	if entry != nil || updated {
		t.Errorf("below-cut submission surfaced: entry=%+v updated=%v", entry, updated)
	}
}

func TestEpochRoundTrip(t *testing.T) {
	ls := setupLeaderboardTestDB(t)

	got, err := ls.Epoch()
	if err != nil {
		t.Fatalf("epoch: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil epoch before initialization")
	}

	start := time.Date(2026, 8, 24, 0, 0, 0, 0, time.Local)
	e := model.WeeklyEpoch{Week: 35, Year: 2026, StartDate: start, EndDate: start.AddDate(0, 0, 7)}
	if err := ls.SetEpoch(e); err != nil {
		t.Fatalf("set epoch: %v", err)
	}

	got, err = ls.Epoch()
	if err != nil {
		t.Fatalf("epoch: %v", err)
	}
	if got.Week != 35 || got.Year != 2026 {
		t.Errorf("epoch = %d/%d, want 35/2026", got.Week, got.Year)
	}

	// SetEpoch replaces the single row.
	e.Week = 36
	e.StartDate = e.StartDate.AddDate(0, 0, 7)
	e.EndDate = e.EndDate.AddDate(0, 0, 7)
	if err := ls.SetEpoch(e); err != nil {
		t.Fatalf("replace epoch: %v", err)
	}
	got, _ = ls.Epoch()
	if got.Week != 36 {
		t.Errorf("epoch week = %d, want 36", got.Week)
	}
}

func historyRecord(week, year int, resetAt time.Time) *model.LeaderboardHistoryRecord {
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.Local).AddDate(0, 0, (week-1)*7)
	return &model.LeaderboardHistoryRecord{
		Epoch: model.WeeklyEpoch{
			Week:      week,
			Year:      year,
			StartDate: start,
			EndDate:   start.AddDate(0, 0, 7),
		},
		Tables: map[string][]model.LeaderboardEntry{
			"snake-game": {{UserID: 1, PlayerName: "Ada", Score: 100}},
		},
		Payouts: []model.RewardPayout{
			{GameID: "snake-game", UserID: 1, PlayerName: "Ada", Rank: 1, Points: 500},
		},
		ResetAt: resetAt,
	}
}

func TestHistoryUniquePerEpoch(t *testing.T) {
	ls := setupLeaderboardTestDB(t)

	rec := historyRecord(10, 2026, time.Now())
	if err := ls.AddHistory(rec); err != nil {
		t.Fatalf("add history: %v", err)
	}

	ok, err := ls.HasHistory(10, 2026)
	if err != nil {
		t.Fatalf("has history: %v", err)
	}
	if !ok {
		t.Error("expected history for week 10")
	}
	ok, _ = ls.HasHistory(11, 2026)
	if ok {
		t.Error("unexpected history for week 11")
	}

	// The (week, year) unique constraint rejects a duplicate snapshot.
	if err := ls.AddHistory(rec); err == nil {
		t.Fatal("duplicate epoch snapshot should fail")
	}
}

func TestHistoryTrimsToRetention(t *testing.T) {
	ls := setupLeaderboardTestDB(t)

	base := time.Now().AddDate(0, 0, -7*(maxHistoryRecords+3))
	for i := 0; i < maxHistoryRecords+3; i++ {
		rec := historyRecord(i+1, 2026, base.AddDate(0, 0, 7*i))
		if err := ls.AddHistory(rec); err != nil {
			t.Fatalf("add history %d: %v", i, err)
		}
	}

	records, err := ls.History(0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != maxHistoryRecords {
		t.Fatalf("retained %d records, want %d", len(records), maxHistoryRecords)
	}
	// Newest first, and the snapshot round-trips intact.
	if records[0].Epoch.Week != maxHistoryRecords+3 {
		t.Errorf("newest week = %d, want %d", records[0].Epoch.Week, maxHistoryRecords+3)
	}
	if len(records[0].Tables["snake-game"]) != 1 {
		t.Errorf("snapshot lost table contents")
	}
	if records[0].Payouts[0].Points != 500 {
		t.Errorf("snapshot lost payouts")
	}
}
