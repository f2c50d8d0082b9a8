package sim

// DecisionKind distinguishes what a bot decided to do.
type DecisionKind string

const (
	// DecisionChoice selects one of the bundle's choices.
	DecisionChoice DecisionKind = "choice"
	// DecisionText submits a free-text utterance.
	DecisionText DecisionKind = "text"
	// DecisionNone passes the turn.
	DecisionNone DecisionKind = "none"
)

// Decision is one bot move.
type Decision struct {
	Kind       DecisionKind `json:"kind"`
	ChoiceID   string       `json:"choice_id,omitempty"`
	NodeID     string       `json:"node_id,omitempty"`
	DialogueID string       `json:"dialogue_id,omitempty"`
	Text       string       `json:"text,omitempty"`
	Reasoning  string       `json:"reasoning"`
	Confidence float64      `json:"confidence"`
}

// ChooseDecision builds a choice decision from a bundle choice.
func ChooseDecision(c Choice, reasoning string, confidence float64) Decision {
	return Decision{
		Kind:       DecisionChoice,
		ChoiceID:   c.ID,
		NodeID:     c.NodeID(),
		DialogueID: c.DialogueID,
		Text:       c.Text,
		Reasoning:  reasoning,
		Confidence: clampUnit(confidence),
	}
}

// TextDecision builds a free-text decision.
func TextDecision(text, reasoning string, confidence float64) Decision {
	return Decision{
		Kind:       DecisionText,
		Text:       text,
		Reasoning:  reasoning,
		Confidence: clampUnit(confidence),
	}
}

// NoDecision builds a pass.
func NoDecision(reasoning string) Decision {
	return Decision{Kind: DecisionNone, Reasoning: reasoning}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
