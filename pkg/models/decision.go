package models

import "fmt"

// DecisionKind tags the two AIDecision variants.
type DecisionKind string

const (
	// DecisionExisting means the LLM picked an existing tracker ticket.
	DecisionExisting DecisionKind = "existing"
	// DecisionNew means the LLM proposed a new ticket.
	DecisionNew DecisionKind = "new"
)

// NewTicketSpec is the LLM's proposal for a fresh ticket. Slug is a short
// URL-safe identifier used to name the chat channel.
type NewTicketSpec struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Slug    string `json:"slug"`
}

// AIDecision is the result of the ai_analysis step: either reuse an existing
// ticket or create a new one. Exactly one of Existing/New is set, matching
// Kind. The pipeline treats the decision as a trusted oracle and does not
// re-validate relevance.
type AIDecision struct {
	Kind     DecisionKind   `json:"kind"`
	Existing *Ticket        `json:"existing,omitempty"`
	New      *NewTicketSpec `json:"new,omitempty"`
}

// ExistingTicketDecision builds the Existing variant.
func ExistingTicketDecision(t Ticket) AIDecision {
	return AIDecision{Kind: DecisionExisting, Existing: &t}
}

// NewTicketDecision builds the New variant.
func NewTicketDecision(spec NewTicketSpec) AIDecision {
	return AIDecision{Kind: DecisionNew, New: &spec}
}

// Validate checks the variant is well-formed: the side matching Kind is set,
// the other is nil, and a New proposal has all fields populated.
func (d AIDecision) Validate() error {
	switch d.Kind {
	case DecisionExisting:
		if d.Existing == nil {
			return fmt.Errorf("existing decision has no ticket")
		}
		if d.New != nil {
			return fmt.Errorf("existing decision also carries a new-ticket spec")
		}
	case DecisionNew:
		if d.New == nil {
			return fmt.Errorf("new decision has no ticket spec")
		}
		if d.Existing != nil {
			return fmt.Errorf("new decision also carries an existing ticket")
		}
		if d.New.Title == "" || d.New.Summary == "" || d.New.Slug == "" {
			return fmt.Errorf("new-ticket spec requires title, summary and slug")
		}
	default:
		return fmt.Errorf("unknown decision kind %q", d.Kind)
	}
	return nil
}
