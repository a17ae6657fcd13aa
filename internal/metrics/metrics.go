// Package metrics exposes Prometheus counters for the reward pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcome label values.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultFlagged  = "flagged"
)

type Metrics struct {
	registry *prometheus.Registry

	SessionsStarted  *prometheus.CounterVec
	Submissions      *prometheus.CounterVec
	PointsAwarded    *prometheus.CounterVec
	PrizePayouts     prometheus.Counter
	LeaderboardSize  *prometheus.GaugeVec
	RolloversTotal   prometheus.Counter
	RolloverFailures prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		SessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mealquest_game_sessions_started_total",
			Help: "Play sessions issued, by game.",
		}, []string{"game_id"}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mealquest_score_submissions_total",
			Help: "Score submissions by game and outcome.",
		}, []string{"game_id", "result"}),
		PointsAwarded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mealquest_points_awarded_total",
			Help: "Points credited from gameplay, by game.",
		}, []string{"game_id"}),
		PrizePayouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "mealquest_prize_payouts_total",
			Help: "Weekly leaderboard prizes paid out.",
		}),
		LeaderboardSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mealquest_leaderboard_entries",
			Help: "Live leaderboard entries per game.",
		}, []string{"game_id"}),
		RolloversTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "mealquest_leaderboard_rollovers_total",
			Help: "Completed weekly leaderboard rollovers.",
		}),
		RolloverFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "mealquest_leaderboard_rollover_failures_total",
			Help: "Weekly rollover attempts that returned an error.",
		}),
	}
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
