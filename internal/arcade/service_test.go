package arcade

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/mealquest/internal/anticheat"
	"github.com/dukerupert/mealquest/internal/database"
	"github.com/dukerupert/mealquest/internal/gamesession"
	"github.com/dukerupert/mealquest/internal/model"
	"github.com/dukerupert/mealquest/internal/points"
	"github.com/dukerupert/mealquest/internal/store"
)

type arcadeFixture struct {
	svc      *Service
	sessions *gamesession.Manager
	points   *points.Service
	boards   *store.LeaderboardStore
	user     *model.User
}

func setupArcadeTest(t *testing.T) *arcadeFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	user, err := store.NewUserStore(db).Create("player@example.com", "Player", "x", model.RoleMember)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	sessions := gamesession.NewManager(gamesession.NewStore(), gamesession.NewTokenCodec([]byte("test-secret")), slog.Default())
	pts := points.NewService(store.NewAccountStore(db), slog.Default())
	boards := store.NewLeaderboardStore(db)

	return &arcadeFixture{
		svc:      NewService(sessions, pts, boards, nil, nil, slog.Default()),
		sessions: sessions,
		points:   pts,
		boards:   boards,
		user:     user,
	}
}

func (f *arcadeFixture) startSession(t *testing.T, gameID string) string {
	t.Helper()
	sess, err := f.sessions.StartSession(f.user.ID, gameID, "10.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	return sess.SessionID
}

func (f *arcadeFixture) submit(sessionID, gameID string, score int, elapsed float64) (*SubmitResult, error) {
	return f.svc.SubmitScore(SubmitRequest{
		UserID:         f.user.ID,
		PlayerName:     f.user.Name,
		SessionID:      sessionID,
		GameID:         gameID,
		Score:          score,
		ElapsedSeconds: elapsed,
		IP:             "10.0.0.1",
		UserAgent:      "test-agent",
	})
}

func TestSubmitScoreHappyPath(t *testing.T) {
	f := setupArcadeTest(t)

	sessionID := f.startSession(t, "snake-game")
	// The session was just issued, so the claimed elapsed time must stay
	// within the timing tolerance of zero age.
	res, err := f.submit(sessionID, "snake-game", 200, 10)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if res.PointsEarned != 8 {
		t.Errorf("points = %d, want 8 (floor of 200 * 0.04)", res.PointsEarned)
	}
	if res.TotalPoints != 8 {
		t.Errorf("total = %d, want 8", res.TotalPoints)
	}
	if res.Flagged || res.Clamped {
		t.Errorf("flagged=%v clamped=%v, want false/false", res.Flagged, res.Clamped)
	}
	if !res.NewBest || res.Rank != 1 {
		t.Errorf("new_best=%v rank=%d, want true/1", res.NewBest, res.Rank)
	}
	if res.Entry == nil || res.Entry.Score != 200 {
		t.Errorf("entry = %+v, want score 200", res.Entry)
	}

	acct, err := f.points.Balance(f.user.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if acct.TotalPoints != 8 || acct.DailyEarned != 8 {
		t.Errorf("account total=%d daily=%d, want 8/8", acct.TotalPoints, acct.DailyEarned)
	}
}

func TestSubmitScoreSessionReplayRejected(t *testing.T) {
	f := setupArcadeTest(t)

	sessionID := f.startSession(t, "snake-game")
	if _, err := f.submit(sessionID, "snake-game", 200, 10); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	_, err := f.submit(sessionID, "snake-game", 300, 12)
	if !errors.Is(err, gamesession.ErrInvalidSession) {
		t.Fatalf("replay err = %v, want ErrInvalidSession", err)
	}

	// The replay credited nothing.
	acct, _ := f.points.Balance(f.user.ID)
	if acct.TotalPoints != 8 {
		t.Errorf("balance = %d, want 8 (replay earns nothing)", acct.TotalPoints)
	}
}

func TestSubmitScoreCheatBurnsSession(t *testing.T) {
	f := setupArcadeTest(t)

	sessionID := f.startSession(t, "snake-game")
	// Above the game's absolute score ceiling.
	_, err := f.submit(sessionID, "snake-game", 5000, 10)
	var rej *anticheat.Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("err = %v, want anticheat rejection", err)
	}
	if rej.Reason != anticheat.ReasonScoreTooHigh {
		t.Errorf("reason = %q, want %q", rej.Reason, anticheat.ReasonScoreTooHigh)
	}

	// The session is gone; a corrected resubmission needs a fresh one.
	if _, err := f.submit(sessionID, "snake-game", 100, 10); !errors.Is(err, gamesession.ErrInvalidSession) {
		t.Errorf("resubmit err = %v, want ErrInvalidSession", err)
	}

	acct, _ := f.points.Balance(f.user.ID)
	if acct != nil && acct.TotalPoints != 0 {
		t.Errorf("balance = %d, want 0", acct.TotalPoints)
	}
}

func TestSubmitScoreTimingMismatch(t *testing.T) {
	f := setupArcadeTest(t)

	sessionID := f.startSession(t, "snake-game")
	// Claims two minutes of play against a seconds-old session.
	_, err := f.submit(sessionID, "snake-game", 200, 120)
	if !errors.Is(err, ErrTimingMismatch) {
		t.Fatalf("err = %v, want ErrTimingMismatch", err)
	}
}

func TestSubmitScoreWrongGameRejected(t *testing.T) {
	f := setupArcadeTest(t)

	sessionID := f.startSession(t, "snake-game")
	_, err := f.submit(sessionID, "memory-match", 100, 15)
	if !errors.Is(err, gamesession.ErrInvalidSession) {
		t.Fatalf("err = %v, want ErrInvalidSession for cross-game session", err)
	}
}

func TestSubmitScoreAtExhaustedCapStillRanks(t *testing.T) {
	f := setupArcadeTest(t)

	// Exhaust today's allowance up front.
	if _, err := f.points.EarnPoints(f.user.ID, 100, "snake-game", "", false); err != nil {
		t.Fatalf("fill cap: %v", err)
	}

	sessionID := f.startSession(t, "snake-game")
	res, err := f.submit(sessionID, "snake-game", 200, 10)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if res.PointsEarned != 0 {
		t.Errorf("points = %d, want 0 at exhausted cap", res.PointsEarned)
	}
	if !res.Clamped {
		t.Error("expected Clamped at exhausted cap")
	}
	if !res.NewBest {
		t.Error("score should still reach the leaderboard")
	}
	if res.TotalPoints != 100 {
		t.Errorf("total = %d, want 100 unchanged", res.TotalPoints)
	}
}

func TestSubmitScoreFlaggedStillPays(t *testing.T) {
	f := setupArcadeTest(t)

	sess, err := f.sessions.StartSession(f.user.ID, "snake-game", "10.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	// Age the session so a two-minute play claim passes the timing check.
	sess.StartTime = sess.StartTime.Add(-125 * time.Second)

	// 2150 in 125s is above the review threshold but believable otherwise:
	// accepted, flagged, and still paid.
	res, err := f.submit(sess.SessionID, "snake-game", 2150, 125)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Flagged {
		t.Error("expected Flagged above the review threshold")
	}
	if res.PointsEarned != 60 {
		t.Errorf("points = %d, want 60 (capped per play)", res.PointsEarned)
	}
}
