package models

// ResultKind discriminates StepResult variants on the wire.
type ResultKind string

const (
	ResultKindTickets  ResultKind = "tickets"
	ResultKindDecision ResultKind = "decision"
	ResultKindTicket   ResultKind = "ticket"
	ResultKindChannel  ResultKind = "channel"
	ResultKindUnit     ResultKind = "unit"
)

// StepResult is the typed payload a completed step stores. Exactly one
// concrete type exists per step shape; readers dispatch with a type switch.
// Result values are immutable once stored on a Step.
type StepResult interface {
	Kind() ResultKind
}

// TicketListResult carries the full ticket enumeration from
// check_existing_tickets.
type TicketListResult struct {
	Tickets []Ticket `json:"tickets"`
}

// DecisionResult carries the AIDecision from ai_analysis.
type DecisionResult struct {
	Decision AIDecision `json:"decision"`
}

// TicketResult carries the current ticket from create_or_update_tracker and
// maybe_update_tracker_with_chat.
type TicketResult struct {
	Ticket Ticket `json:"ticket"`
}

// ChannelResult carries the channel from maybe_create_chat_channel.
type ChannelResult struct {
	Channel ChannelInfo `json:"channel"`
}

// UnitResult marks a step that completes without a payload
// (add_operators_to_chat).
type UnitResult struct{}

func (TicketListResult) Kind() ResultKind { return ResultKindTickets }
func (DecisionResult) Kind() ResultKind   { return ResultKindDecision }
func (TicketResult) Kind() ResultKind     { return ResultKindTicket }
func (ChannelResult) Kind() ResultKind    { return ResultKindChannel }
func (UnitResult) Kind() ResultKind       { return ResultKindUnit }
