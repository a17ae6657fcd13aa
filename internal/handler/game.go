package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/mealquest/internal/anticheat"
	"github.com/dukerupert/mealquest/internal/arcade"
	"github.com/dukerupert/mealquest/internal/auth"
	"github.com/dukerupert/mealquest/internal/game"
	"github.com/dukerupert/mealquest/internal/gamesession"
	"github.com/dukerupert/mealquest/internal/metrics"
	"github.com/dukerupert/mealquest/internal/middleware"
)

type GameHandler struct {
	sessions *gamesession.Manager
	arcade   *arcade.Service
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewGameHandler(sessions *gamesession.Manager, arc *arcade.Service, m *metrics.Metrics, logger *slog.Logger) *GameHandler {
	return &GameHandler{sessions: sessions, arcade: arc, metrics: m, logger: logger}
}

// List handles GET /api/games.
func (h *GameHandler) List(w http.ResponseWriter, r *http.Request) {
	configs := game.All()
	clients := make([]game.ClientConfig, 0, len(configs))
	for _, cfg := range configs {
		clients = append(clients, cfg.Client())
	}
	writeJSON(w, http.StatusOK, clients)
}

type startSessionRequest struct {
	GameID string `json:"game_id"`
}

// StartSession handles POST /api/games/start-session.
func (h *GameHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	sess, err := h.sessions.StartSession(auth.UserID(r.Context()), req.GameID,
		middleware.RealIP(r), r.UserAgent())
	switch {
	case errors.Is(err, gamesession.ErrUnknownGame):
		writeError(w, http.StatusBadRequest, "unknown game")
		return
	case errors.Is(err, gamesession.ErrTooManySessions):
		writeError(w, http.StatusTooManyRequests, "too many open sessions")
		return
	case err != nil:
		h.logger.Error("start session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	if h.metrics != nil {
		h.metrics.SessionsStarted.WithLabelValues(req.GameID).Inc()
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": sess.SessionID,
		"game_id":    sess.GameID,
		"expires_at": sess.ExpiresAt.Format(time.RFC3339),
	})
}

type submitScoreRequest struct {
	SessionID      string  `json:"session_id"`
	GameID         string  `json:"game_id"`
	Score          int     `json:"score"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// SubmitScore handles POST /api/games/submit-score.
func (h *GameHandler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var req submitScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SessionID == "" || req.GameID == "" {
		writeError(w, http.StatusBadRequest, "session_id and game_id are required")
		return
	}

	result, err := h.arcade.SubmitScore(arcade.SubmitRequest{
		UserID:         auth.UserID(r.Context()),
		PlayerName:     auth.PlayerName(r.Context()),
		SessionID:      req.SessionID,
		GameID:         req.GameID,
		Score:          req.Score,
		ElapsedSeconds: req.ElapsedSeconds,
		IP:             middleware.RealIP(r),
		UserAgent:      r.UserAgent(),
	})

	var rej *anticheat.Rejection
	switch {
	case errors.As(err, &rej):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  "score rejected",
			"reason": string(rej.Reason),
		})
		return
	case errors.Is(err, gamesession.ErrInvalidSession):
		writeError(w, http.StatusGone, "session invalid, expired, or already used")
		return
	case errors.Is(err, arcade.ErrTimingMismatch):
		writeError(w, http.StatusUnprocessableEntity, "play time does not match session age")
		return
	case err != nil:
		h.logger.Error("submit score", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to submit score")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
