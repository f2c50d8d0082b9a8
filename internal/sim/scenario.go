package sim

import (
	"fmt"
	"sort"
	"time"

	"github.com/roach88/playtest/internal/ir"
)

// Scenario is one concrete configuration to simulate.
// Scenarios are produced by matrix expansion and never mutated afterwards.
type Scenario struct {
	// Index is the scenario's position in the expanded matrix.
	Index int `json:"index"`

	World      string `json:"world" validate:"required"`
	Adventure  string `json:"adventure" validate:"required"`
	Locale     string `json:"locale" validate:"required"`
	Experiment string `json:"experiment,omitempty"`
	Variation  string `json:"variation,omitempty"`

	// Toggles maps feature-toggle name to its value for this scenario.
	Toggles map[string]bool `json:"toggles,omitempty"`

	// Seed is derived from the scenario's position, never generated randomly.
	Seed string `json:"seed" validate:"required"`

	MaxTurns  int           `json:"max_turns" validate:"gt=0"`
	Timeout   time.Duration `json:"timeout" validate:"gt=0"`
	MaxTokens int           `json:"max_tokens" validate:"gte=0"`
}

// Identity returns the scenario identity tuple joined with ':'.
// The seed is not part of the identity; it distinguishes runs.
func (s Scenario) Identity() string {
	return fmt.Sprintf("%s:%s:%s:%s:%s", s.World, s.Adventure, s.Locale, s.Experiment, s.Variation)
}

// ToggleNames returns toggle names in sorted order.
func (s Scenario) ToggleNames() []string {
	names := make([]string, 0, len(s.Toggles))
	for name := range s.Toggles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fingerprint returns a content-addressed id for the full scenario,
// toggles included, so two scenarios that differ only in toggles differ here.
func (s Scenario) Fingerprint() string {
	toggles := make(map[string]any, len(s.Toggles))
	for name, on := range s.Toggles {
		toggles[name] = on
	}
	return ir.MustDigest(ir.DomainScenario, map[string]any{
		"world":      s.World,
		"adventure":  s.Adventure,
		"locale":     s.Locale,
		"experiment": s.Experiment,
		"variation":  s.Variation,
		"toggles":    toggles,
		"seed":       s.Seed,
	})
}
