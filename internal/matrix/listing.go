package matrix

import (
	"fmt"
	"strings"

	"github.com/roach88/playtest/internal/sim"
)

// Listing renders one line per scenario: index, seed and sorted toggles,
// tab-separated. Scenarios without toggles print "-" in the toggle column.
func Listing(scenarios []sim.Scenario) string {
	var b strings.Builder
	for _, s := range scenarios {
		fmt.Fprintf(&b, "%d\t%s\t%s\n", s.Index, s.Seed, toggleString(s))
	}
	return b.String()
}

func toggleString(s sim.Scenario) string {
	names := s.ToggleNames()
	if len(names) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%t", name, s.Toggles[name]))
	}
	return strings.Join(parts, ",")
}
