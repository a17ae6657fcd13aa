package websocket

import "github.com/dukerupert/mealquest/internal/model"

// Broadcaster adapts the hub to the event callbacks the reward pipeline
// expects. All methods are fire-and-forget.
type Broadcaster struct {
	hub *Hub
}

func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

func (b *Broadcaster) PointsEarned(userID int64, gameID string, pointsEarned, totalPoints int) {
	b.hub.Broadcast(PointsEarnedMessage(userID, gameID, pointsEarned, totalPoints))
}

func (b *Broadcaster) LeaderboardUpdated(gameID string, entry *model.LeaderboardEntry) {
	b.hub.Broadcast(LeaderboardUpdatedMessage(gameID, entry))
}

func (b *Broadcaster) NotifyPayouts(epoch model.WeeklyEpoch, payouts []model.RewardPayout) {
	for _, p := range payouts {
		b.hub.Broadcast(PrizeAwardedMessage(p))
	}
	b.hub.Broadcast(LeaderboardResetMessage(epoch, payouts))
}
