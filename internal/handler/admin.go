package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/mealquest/internal/leaderboard"
	"github.com/dukerupert/mealquest/internal/points"
)

// AdminHandler exposes the operational endpoints behind the admin role.
type AdminHandler struct {
	scheduler *leaderboard.Scheduler
	points    *points.Service
	logger    *slog.Logger
}

func NewAdminHandler(sched *leaderboard.Scheduler, pts *points.Service, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{scheduler: sched, points: pts, logger: logger}
}

// ResetWeeklyLeaderboard handles POST /api/admin/reset-weekly-leaderboard.
// A repeat call for an already-processed week is reported as a conflict and
// pays nothing.
func (h *AdminHandler) ResetWeeklyLeaderboard(w http.ResponseWriter, r *http.Request) {
	record, err := h.scheduler.Rollover()
	if errors.Is(err, leaderboard.ErrEpochProcessed) {
		writeError(w, http.StatusConflict, "this week's rollover has already been processed")
		return
	}
	if err != nil {
		h.logger.Error("manual rollover", "error", err)
		writeError(w, http.StatusInternalServerError, "rollover failed")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// ResetDailyLimits handles POST /api/admin/reset-daily-limits.
func (h *AdminHandler) ResetDailyLimits(w http.ResponseWriter, r *http.Request) {
	n, err := h.points.ResetAllDailyLimits()
	if err != nil {
		h.logger.Error("reset daily limits", "error", err)
		writeError(w, http.StatusInternalServerError, "reset failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"accounts_reset": n})
}
