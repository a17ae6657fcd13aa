// Package game is the single source of truth for the mini-games the app
// ships. Every per-game knob lives here: display metadata, the score-to-points
// formula, and the anti-cheat thresholds the validator reads.
package game

import "sort"

// Tier marks a score as implausible when it was reached too quickly: a score
// above Score with elapsed time under MinSeconds is rejected.
type Tier struct {
	Score      int
	MinSeconds float64
}

// Config carries everything the system knows about one game.
type Config struct {
	ID          string
	DisplayName string

	// Scoring formula: points = min(floor(score*PointsMultiplier), MaxPointsPerPlay),
	// with a floor of 1 point for any positive score.
	PointsMultiplier float64
	MaxPointsPerPlay int

	// Anti-cheat thresholds.
	MaxScore           int     // scores above this are impossible
	MinPlayTimeSeconds float64 // submissions faster than this are rejected
	MaxScorePerSecond  float64 // sustained scoring rate ceiling
	ReasonableMaxScore int     // above this: accepted but flagged for review
	Tiers              []Tier  // score/time implausibility pairs, high score first
}

var registry = map[string]Config{
	"snake-game": {
		ID:                 "snake-game",
		DisplayName:        "Snake",
		PointsMultiplier:   0.04,
		MaxPointsPerPlay:   60,
		MaxScore:           3000,
		MinPlayTimeSeconds: 3,
		MaxScorePerSecond:  500,
		ReasonableMaxScore: 2000,
		Tiers: []Tier{
			{Score: 1500, MinSeconds: 120},
			{Score: 1000, MinSeconds: 60},
			{Score: 500, MinSeconds: 30},
		},
	},
	"memory-match": {
		ID:                 "memory-match",
		DisplayName:        "Memory Match",
		PointsMultiplier:   0.5,
		MaxPointsPerPlay:   50,
		MaxScore:           200,
		MinPlayTimeSeconds: 10,
		MaxScorePerSecond:  5,
		ReasonableMaxScore: 150,
		Tiers: []Tier{
			{Score: 150, MinSeconds: 90},
			{Score: 100, MinSeconds: 45},
		},
	},
	"veggie-drop": {
		ID:                 "veggie-drop",
		DisplayName:        "Veggie Drop",
		PointsMultiplier:   0.1,
		MaxPointsPerPlay:   40,
		MaxScore:           1000,
		MinPlayTimeSeconds: 5,
		MaxScorePerSecond:  60,
		ReasonableMaxScore: 800,
		Tiers: []Tier{
			{Score: 800, MinSeconds: 90},
		},
	},
}

// Lookup returns the config for a game ID.
func Lookup(id string) (Config, bool) {
	cfg, ok := registry[id]
	return cfg, ok
}

// Known reports whether the game ID is registered.
func Known(id string) bool {
	_, ok := registry[id]
	return ok
}

// All returns every registered game, sorted by ID for stable output.
func All() []Config {
	configs := make([]Config, 0, len(registry))
	for _, cfg := range registry {
		configs = append(configs, cfg)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].ID < configs[j].ID })
	return configs
}

// ClientConfig is the subset of Config safe to hand to clients. Anti-cheat
// thresholds stay server-side.
type ClientConfig struct {
	ID               string  `json:"id"`
	DisplayName      string  `json:"display_name"`
	PointsMultiplier float64 `json:"points_multiplier"`
	MaxPointsPerPlay int     `json:"max_points_per_play"`
}

// Client returns the client-facing view of the config.
func (c Config) Client() ClientConfig {
	return ClientConfig{
		ID:               c.ID,
		DisplayName:      c.DisplayName,
		PointsMultiplier: c.PointsMultiplier,
		MaxPointsPerPlay: c.MaxPointsPerPlay,
	}
}

// Points converts a validated score to points using the game's formula.
// Zero scores earn nothing; any positive score earns at least one point.
func (c Config) Points(score int) int {
	if score <= 0 {
		return 0
	}
	points := int(float64(score) * c.PointsMultiplier)
	if points < 1 {
		points = 1
	}
	if points > c.MaxPointsPerPlay {
		points = c.MaxPointsPerPlay
	}
	return points
}
