package bot

import "fmt"

// Mode selects a decision strategy.
type Mode string

const (
	ModeObjectiveSeeker Mode = "objective_seeker"
	ModeExplorer        Mode = "explorer"
	ModeEconomy         Mode = "economy"
	ModeRelationship    Mode = "relationship"
	ModeRiskTaker       Mode = "risk_taker"
	ModeSafety          Mode = "safety_maximizer"
)

// AllModes is the fixed mode list in dispatch order.
var AllModes = []Mode{
	ModeObjectiveSeeker,
	ModeExplorer,
	ModeEconomy,
	ModeRelationship,
	ModeRiskTaker,
	ModeSafety,
}

// Valid reports whether m is one of AllModes.
func (m Mode) Valid() bool {
	for _, known := range AllModes {
		if m == known {
			return true
		}
	}
	return false
}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", &UnknownModeError{Mode: m}
	}
	return m, nil
}

// ParseModes validates a list of mode names. An empty list yields AllModes.
func ParseModes(names []string) ([]Mode, error) {
	if len(names) == 0 {
		return append([]Mode(nil), AllModes...), nil
	}
	modes := make([]Mode, 0, len(names))
	seen := make(map[Mode]bool, len(names))
	for _, name := range names {
		m, err := ParseMode(name)
		if err != nil {
			return nil, err
		}
		if seen[m] {
			return nil, fmt.Errorf("duplicate bot mode %q", name)
		}
		seen[m] = true
		modes = append(modes, m)
	}
	return modes, nil
}
