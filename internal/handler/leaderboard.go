package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/mealquest/internal/auth"
	"github.com/dukerupert/mealquest/internal/game"
	"github.com/dukerupert/mealquest/internal/leaderboard"
	"github.com/dukerupert/mealquest/internal/model"
	"github.com/dukerupert/mealquest/internal/store"
)

type LeaderboardHandler struct {
	store  *store.LeaderboardStore
	logger *slog.Logger
}

func NewLeaderboardHandler(ls *store.LeaderboardStore, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{store: ls, logger: logger}
}

// Game handles GET /api/games/leaderboard/{game_id}?limit=N. The response
// includes the caller's own rank even when they are outside the top slice.
func (h *LeaderboardHandler) Game(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("game_id")
	if !game.Known(gameID) {
		writeError(w, http.StatusNotFound, "unknown game")
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, _ = strconv.Atoi(s)
	}

	entries, err := h.store.TopN(gameID, limit)
	if err != nil {
		h.logger.Error("list leaderboard", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}
	if entries == nil {
		entries = []model.RankedEntry{}
	}

	resp := map[string]any{
		"game_id": gameID,
		"entries": entries,
	}
	if userID := auth.UserID(r.Context()); userID != 0 {
		rank, entry, err := h.store.UserRank(gameID, userID)
		if err == nil && entry != nil {
			resp["my_rank"] = rank
			resp["my_entry"] = entry
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Weekly handles GET /api/games/weekly-leaderboard: the current epoch plus
// every game's live table.
func (h *LeaderboardHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	epoch, err := h.store.Epoch()
	if err != nil {
		h.logger.Error("load epoch", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}
	if epoch == nil {
		e := leaderboard.CurrentEpoch(time.Now())
		epoch = &e
	}

	tables, err := h.store.AllTables()
	if err != nil {
		h.logger.Error("load tables", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"epoch":  epoch,
		"tables": tables,
	})
}

// History handles GET /api/games/weekly-leaderboard-history?limit=N.
func (h *LeaderboardHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, _ = strconv.Atoi(s)
	}

	records, err := h.store.History(limit)
	if err != nil {
		h.logger.Error("load history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if records == nil {
		records = []model.LeaderboardHistoryRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}
