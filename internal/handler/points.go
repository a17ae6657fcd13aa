package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/mealquest/internal/auth"
	"github.com/dukerupert/mealquest/internal/model"
	"github.com/dukerupert/mealquest/internal/points"
)

type PointsHandler struct {
	points *points.Service
	logger *slog.Logger
}

func NewPointsHandler(svc *points.Service, logger *slog.Logger) *PointsHandler {
	return &PointsHandler{points: svc, logger: logger}
}

// Balance handles GET /api/points/balance.
func (h *PointsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	acct, err := h.points.Balance(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get balance", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get balance")
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// History handles GET /api/points/history?limit=N.
func (h *PointsHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, _ = strconv.Atoi(s)
	}

	txs, err := h.points.History(auth.UserID(r.Context()), limit)
	if err != nil {
		h.logger.Error("get history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get history")
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

// DailyLimit handles GET /api/points/daily-limit.
func (h *PointsHandler) DailyLimit(w http.ResponseWriter, r *http.Request) {
	acct, err := h.points.Balance(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get daily limit", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get daily limit")
		return
	}

	remaining := acct.DailyLimit - acct.DailyEarned
	if remaining < 0 {
		remaining = 0
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"daily_limit":     acct.DailyLimit,
		"daily_earned":    acct.DailyEarned,
		"daily_remaining": remaining,
	})
}
