package matrix

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/playtest/internal/sim"
)

// Toggle is one feature toggle and the values to enumerate for it.
type Toggle struct {
	Name    string `json:"name" yaml:"name"`
	Options []bool `json:"options" yaml:"options"`
}

// Config describes the scenario matrix.
//
// Empty Experiments or Variations enumerate a single unnamed entry.
// No toggles enumerate a single empty toggle set.
type Config struct {
	Worlds           []string      `json:"worlds" yaml:"worlds"`
	Adventures       []string      `json:"adventures" yaml:"adventures"`
	Locales          []string      `json:"locales" yaml:"locales"`
	Experiments      []string      `json:"experiments,omitempty" yaml:"experiments"`
	Variations       []string      `json:"variations,omitempty" yaml:"variations"`
	Toggles          []Toggle      `json:"toggles,omitempty" yaml:"toggles"`
	SeedsPerScenario int           `json:"seeds_per_scenario" yaml:"seeds_per_scenario"`
	MaxTurns         int           `json:"max_turns" yaml:"max_turns"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout"`
	MaxTokens        int           `json:"max_tokens" yaml:"max_tokens"`
}

// Validate checks that every dimension is enumerable.
func (c Config) Validate() error {
	var errs []error
	if len(c.Worlds) == 0 {
		errs = append(errs, errors.New("worlds must not be empty"))
	}
	if len(c.Adventures) == 0 {
		errs = append(errs, errors.New("adventures must not be empty"))
	}
	if len(c.Locales) == 0 {
		errs = append(errs, errors.New("locales must not be empty"))
	}
	if c.SeedsPerScenario <= 0 {
		errs = append(errs, fmt.Errorf("seeds_per_scenario must be positive, got %d", c.SeedsPerScenario))
	}
	seen := make(map[string]bool, len(c.Toggles))
	for i, tg := range c.Toggles {
		switch {
		case tg.Name == "":
			errs = append(errs, fmt.Errorf("toggles[%d]: name must not be empty", i))
		case seen[tg.Name]:
			errs = append(errs, fmt.Errorf("toggles[%d]: duplicate toggle %q", i, tg.Name))
		}
		seen[tg.Name] = true
		if len(tg.Options) == 0 {
			errs = append(errs, fmt.Errorf("toggles[%d] %q: options must not be empty", i, tg.Name))
		}
	}
	return errors.Join(errs...)
}

// Size returns W*A*L*E*V*S*T without expanding the matrix.
func (c Config) Size() int {
	n := len(c.Worlds) * len(c.Adventures) * len(c.Locales) *
		len(orUnnamed(c.Experiments)) * len(orUnnamed(c.Variations)) *
		c.SeedsPerScenario
	for _, tg := range c.Toggles {
		n *= len(tg.Options)
	}
	return n
}

// Generate expands c into concrete scenarios.
func Generate(c Config) ([]sim.Scenario, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matrix config: %w", err)
	}

	combos := ToggleCombinations(c.Toggles)
	out := make([]sim.Scenario, 0, c.Size())
	for _, world := range c.Worlds {
		for _, adventure := range c.Adventures {
			for _, locale := range c.Locales {
				for _, experiment := range orUnnamed(c.Experiments) {
					for _, variation := range orUnnamed(c.Variations) {
						for _, toggles := range combos {
							for seed := 0; seed < c.SeedsPerScenario; seed++ {
								out = append(out, sim.Scenario{
									Index:      len(out),
									World:      world,
									Adventure:  adventure,
									Locale:     locale,
									Experiment: experiment,
									Variation:  variation,
									Toggles:    copyToggles(toggles),
									Seed:       Seed(world, adventure, locale, experiment, variation, seed),
									MaxTurns:   c.MaxTurns,
									Timeout:    c.Timeout,
									MaxTokens:  c.MaxTokens,
								})
							}
						}
					}
				}
			}
		}
	}
	return out, nil
}

// Seed builds the deterministic seed for one matrix position.
func Seed(world, adventure, locale, experiment, variation string, index int) string {
	return strings.Join([]string{world, adventure, locale, experiment, variation, strconv.Itoa(index)}, ":")
}

// ToggleCombinations returns the Cartesian product of toggle options with the
// first toggle varying slowest. No toggles yield one empty combination.
func ToggleCombinations(toggles []Toggle) []map[string]bool {
	if len(toggles) == 0 {
		return []map[string]bool{{}}
	}
	head, rest := toggles[0], ToggleCombinations(toggles[1:])
	out := make([]map[string]bool, 0, len(head.Options)*len(rest))
	for _, opt := range head.Options {
		for _, tail := range rest {
			combo := copyToggles(tail)
			combo[head.Name] = opt
			out = append(out, combo)
		}
	}
	return out
}

func orUnnamed(list []string) []string {
	if len(list) == 0 {
		return []string{""}
	}
	return list
}

func copyToggles(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
