// Package gamesession issues and consumes the short-lived, single-use play
// tokens that gate score submissions. Sessions are ephemeral: they live in an
// in-memory store owned by the manager and vanish on consumption or expiry.
package gamesession

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/mealquest/internal/game"
	"github.com/dukerupert/mealquest/internal/model"
)

var (
	ErrUnknownGame     = errors.New("unknown game")
	ErrInvalidSession  = errors.New("invalid session")
	ErrTooManySessions = errors.New("too many outstanding sessions")
)

const (
	// SessionTTL is how long a started session stays consumable.
	SessionTTL = 5 * time.Minute

	// maxOutstanding bounds unused sessions per (user, game) pair so a
	// client looping start-session cannot grow the store without bound.
	maxOutstanding = 100

	sweepInterval = 30 * time.Second
)

// Store holds live sessions. It is injected into the Manager so a
// distributed implementation can replace it without touching call sites.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*model.GameSession
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*model.GameSession)}
}

// Put inserts a session unless the owner already has too many outstanding
// unused sessions for the game.
func (s *Store) Put(sess *model.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	outstanding := 0
	now := time.Now()
	for _, existing := range s.sessions {
		if existing.UserID == sess.UserID && existing.GameID == sess.GameID && now.Before(existing.ExpiresAt) {
			outstanding++
		}
	}
	if outstanding >= maxOutstanding {
		return ErrTooManySessions
	}

	s.sessions[sess.SessionID] = sess
	return nil
}

// Consume atomically marks the session used and removes it. The second
// caller for the same ID always loses: lookup, the used check, and removal
// share one critical section. Expired sessions are dropped, not consumed.
func (s *Store) Consume(sessionID string) (*model.GameSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.Used {
		return nil, false
	}
	if time.Now().After(sess.ExpiresAt) {
		delete(s.sessions, sessionID)
		return nil, false
	}

	sess.Used = true
	delete(s.sessions, sessionID)
	copied := *sess
	return &copied, true
}

// Sweep evicts expired sessions and returns how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	dropped := 0
	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, id)
			dropped++
		}
	}
	return dropped
}

// Len reports how many sessions are live.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Manager issues play sessions and enforces their single-use lifecycle.
type Manager struct {
	store  *Store
	codec  *TokenCodec
	logger *slog.Logger
	ttl    time.Duration
}

func NewManager(store *Store, codec *TokenCodec, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, codec: codec, logger: logger, ttl: SessionTTL}
}

// StartSession creates a session for the user to play one round of gameID.
// The returned session's ID is a signed token embedding owner and game.
func (m *Manager) StartSession(userID int64, gameID, issuerIP, issuerUserAgent string) (*model.GameSession, error) {
	if !game.Known(gameID) {
		return nil, ErrUnknownGame
	}

	now := time.Now()
	expiresAt := now.Add(m.ttl)
	token, err := m.codec.Issue(userID, gameID, now, expiresAt)
	if err != nil {
		return nil, err
	}

	sess := &model.GameSession{
		SessionID:       token,
		UserID:          userID,
		GameID:          gameID,
		StartTime:       now,
		ExpiresAt:       expiresAt,
		IssuerIP:        issuerIP,
		IssuerUserAgent: issuerUserAgent,
	}
	if err := m.store.Put(sess); err != nil {
		return nil, err
	}

	copied := *sess
	return &copied, nil
}

// ConsumeSession validates and burns a session. After a successful return
// the same session ID can never be consumed again, regardless of
// interleaving. A drift between the issuing client's network identity and
// the submitting one is logged, not rejected — phones roam.
func (m *Manager) ConsumeSession(sessionID string, userID int64, gameID, requestIP, requestUserAgent string) (*model.GameSession, error) {
	// Cheap shape check first: signature and embedded owner/game must match
	// the caller's claim before we touch the store.
	tokenUser, tokenGame, err := m.codec.Verify(sessionID)
	if err != nil {
		return nil, ErrInvalidSession
	}
	if tokenUser != userID || tokenGame != gameID {
		return nil, ErrInvalidSession
	}

	sess, ok := m.store.Consume(sessionID)
	if !ok {
		return nil, ErrInvalidSession
	}
	if sess.UserID != userID || sess.GameID != gameID {
		// Unreachable while the token embeds both, kept as a guard for a
		// swapped-in store implementation.
		return nil, ErrInvalidSession
	}

	if requestIP != sess.IssuerIP || requestUserAgent != sess.IssuerUserAgent {
		m.logger.Info("session network identity drifted",
			"user_id", userID,
			"game_id", gameID,
			"issuer_ip", sess.IssuerIP,
			"request_ip", requestIP,
		)
	}
	return sess, nil
}

// Run sweeps expired sessions until ctx is canceled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dropped := m.store.Sweep(); dropped > 0 {
				m.logger.Debug("expired sessions swept", "count", dropped)
			}
		}
	}
}
