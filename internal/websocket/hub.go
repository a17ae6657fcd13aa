package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dukerupert/mealquest/internal/model"
)

// Message is one real-time event pushed to connected clients.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Event types clients subscribe to.
const (
	TypePointsEarned       = "points_earned"
	TypeLeaderboardUpdated = "leaderboard_updated"
	TypePrizeAwarded       = "prize_awarded"
	TypeLeaderboardReset   = "leaderboard_reset"
)

// PointsEarnedMessage announces a gameplay credit.
func PointsEarnedMessage(userID int64, gameID string, pointsEarned, totalPoints int) Message {
	return Message{
		Type: TypePointsEarned,
		Payload: map[string]any{
			"user_id":       userID,
			"game_id":       gameID,
			"points_earned": pointsEarned,
			"total_points":  totalPoints,
		},
	}
}

// LeaderboardUpdatedMessage announces a new personal best on a game's table.
func LeaderboardUpdatedMessage(gameID string, entry *model.LeaderboardEntry) Message {
	return Message{
		Type: TypeLeaderboardUpdated,
		Payload: map[string]any{
			"game_id": gameID,
			"entry":   entry,
		},
	}
}

// PrizeAwardedMessage announces a single weekly prize credit.
func PrizeAwardedMessage(payout model.RewardPayout) Message {
	return Message{
		Type: TypePrizeAwarded,
		Payload: map[string]any{
			"user_id": payout.UserID,
			"game_id": payout.GameID,
			"rank":    payout.Rank,
			"points":  payout.Points,
		},
	}
}

// LeaderboardResetMessage announces a completed weekly rollover with its
// prize payouts.
func LeaderboardResetMessage(epoch model.WeeklyEpoch, payouts []model.RewardPayout) Message {
	return Message{
		Type: TypeLeaderboardReset,
		Payload: map[string]any{
			"week":    epoch.Week,
			"year":    epoch.Year,
			"payouts": payouts,
		},
	}
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full — drop message to avoid blocking
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
