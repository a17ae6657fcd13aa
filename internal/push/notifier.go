package push

import (
	"errors"
	"fmt"
	"log"

	"github.com/dukerupert/mealquest/internal/model"
	"github.com/dukerupert/mealquest/internal/store"
)

// Notifier delivers prize notifications to weekly leaderboard winners.
type Notifier struct {
	service *Service
	subs    *store.PushStore
}

func NewNotifier(svc *Service, subs *store.PushStore) *Notifier {
	return &Notifier{service: svc, subs: subs}
}

// NotifyPayouts sends one push per payout to every device the winner has
// registered. Delivery runs in the background: rollover must never wait on
// push endpoints.
func (n *Notifier) NotifyPayouts(epoch model.WeeklyEpoch, payouts []model.RewardPayout) {
	go func() {
		for _, p := range payouts {
			n.notifyWinner(epoch, p)
		}
	}()
}

func (n *Notifier) notifyWinner(epoch model.WeeklyEpoch, p model.RewardPayout) {
	subs, err := n.subs.ListByUser(p.UserID)
	if err != nil {
		log.Printf("push: winner notification list subs: %v", err)
		return
	}

	payload := Payload{
		Title: "You won a weekly prize!",
		Body:  fmt.Sprintf("Rank %d in %s earned you %d points", p.Rank, p.GameID, p.Points),
		URL:   "/leaderboard",
		Tag:   fmt.Sprintf("weekly-prize-%d-%d", epoch.Year, epoch.Week),
	}

	for _, sub := range subs {
		if err := n.service.Send(&sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				n.subs.DeleteByEndpoint(sub.Endpoint)
			} else {
				log.Printf("push: send winner notification: %v", err)
			}
		}
	}
}
