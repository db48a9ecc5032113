package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Request or a Step.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// StepType identifies one of the six pipeline steps.
type StepType string

const (
	StepCheckExistingTickets       StepType = "check_existing_tickets"
	StepAIAnalysis                 StepType = "ai_analysis"
	StepCreateOrUpdateTracker      StepType = "create_or_update_tracker"
	StepMaybeCreateChatChannel     StepType = "maybe_create_chat_channel"
	StepMaybeUpdateTrackerWithChat StepType = "maybe_update_tracker_with_chat"
	StepAddOperatorsToChat         StepType = "add_operators_to_chat"
)

// StepOrder is the canonical, total execution order. Every Request carries
// exactly these six steps; the engine iterates this slice, never the map.
var StepOrder = []StepType{
	StepCheckExistingTickets,
	StepAIAnalysis,
	StepCreateOrUpdateTracker,
	StepMaybeCreateChatChannel,
	StepMaybeUpdateTrackerWithChat,
	StepAddOperatorsToChat,
}

// ParseStepType validates a wire string against the canonical step set.
func ParseStepType(s string) (StepType, error) {
	for _, t := range StepOrder {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown step type %q", s)
}

// stepIndex returns the position of t in StepOrder, or -1.
func stepIndex(t StepType) int {
	for i, s := range StepOrder {
		if s == t {
			return i
		}
	}
	return -1
}

// Step is one unit of pipeline work.
//
// Invariants: StartedAt <= CompletedAt when both are set; Result is non-nil
// iff Status is completed; Error is non-empty iff Status is failed.
type Step struct {
	Type        StepType
	Status      Status
	StartedAt   *time.Time
	CompletedAt *time.Time
	Result      StepResult
	Error       string
}

// reset returns the step to its initial pending state.
func (s *Step) reset() {
	s.Status = StatusPending
	s.StartedAt = nil
	s.CompletedAt = nil
	s.Result = nil
	s.Error = ""
}

// MarshalJSON emits the step with a result_kind discriminator so subscribers
// can decode the heterogeneous result payload.
func (s Step) MarshalJSON() ([]byte, error) {
	wire := struct {
		Type        StepType   `json:"type"`
		Status      Status     `json:"status"`
		StartedAt   *time.Time `json:"started_at,omitempty"`
		CompletedAt *time.Time `json:"completed_at,omitempty"`
		ResultKind  ResultKind `json:"result_kind,omitempty"`
		Result      StepResult `json:"result,omitempty"`
		Error       string     `json:"error,omitempty"`
	}{
		Type:        s.Type,
		Status:      s.Status,
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
		Error:       s.Error,
	}
	if s.Result != nil {
		wire.ResultKind = s.Result.Kind()
		wire.Result = s.Result
	}
	return json.Marshal(wire)
}

// Request is one pipeline invocation, triggered by one helpdesk event.
//
// Ownership: a Request is mutated only by the single pipeline worker that
// runs it. Everything else (API handlers, subscribers) reads immutable
// snapshots published through the coordinator. Clone produces such a
// snapshot; stored result payloads are shared because they are immutable by
// contract.
type Request struct {
	ID                    string
	SourceConversationID  string
	SourceConversationURL string
	MessageBody           string
	Status                Status
	Steps                 map[StepType]*Step
	CreatedAt             time.Time
	UpdatedAt             time.Time
	// Revision increments on every mutation and orders snapshots; UpdatedAt
	// alone can collide at clock resolution.
	Revision uint64
}

// NewRequest builds a pending Request with all six steps pending.
func NewRequest(conversationID, conversationURL, messageBody string) *Request {
	now := time.Now()
	steps := make(map[StepType]*Step, len(StepOrder))
	for _, t := range StepOrder {
		steps[t] = &Step{Type: t, Status: StatusPending}
	}
	return &Request{
		ID:                    uuid.New().String(),
		SourceConversationID:  conversationID,
		SourceConversationURL: conversationURL,
		MessageBody:           messageBody,
		Status:                StatusPending,
		Steps:                 steps,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// Step returns the step of the given type. Requests always carry all six
// canonical steps, so the return is non-nil for valid types.
func (r *Request) Step(t StepType) *Step {
	return r.Steps[t]
}

// Touch bumps UpdatedAt and Revision. Call after every mutation, before the
// snapshot is broadcast.
func (r *Request) Touch() {
	r.UpdatedAt = time.Now()
	r.Revision++
}

// Terminal reports whether the Request reached a final state.
func (r *Request) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// Clone deep-copies the Request and its Steps for publication as a
// snapshot. Result payloads are shared, not copied — they are immutable
// once stored.
func (r *Request) Clone() *Request {
	steps := make(map[StepType]*Step, len(r.Steps))
	for t, s := range r.Steps {
		cp := *s
		steps[t] = &cp
	}
	cp := *r
	cp.Steps = steps
	return &cp
}

// ResetFrom resets the given step and every later step in canonical order
// back to pending, and returns the Request itself to pending. Earlier
// completed steps keep their results — re-running later steps feeds on them
// without re-doing external work.
func (r *Request) ResetFrom(t StepType) error {
	from := stepIndex(t)
	if from < 0 {
		return fmt.Errorf("unknown step type %q", t)
	}
	for _, st := range StepOrder[from:] {
		r.Steps[st].reset()
	}
	r.Status = StatusPending
	r.Touch()
	return nil
}

// ResetAll resets every step; the subsequent run re-executes the whole
// pipeline from scratch.
func (r *Request) ResetAll() {
	_ = r.ResetFrom(StepOrder[0])
}

// MarshalJSON emits steps as an array in canonical execution order instead
// of a map, so consumers see insertion order = execution order.
func (r Request) MarshalJSON() ([]byte, error) {
	steps := make([]*Step, 0, len(StepOrder))
	for _, t := range StepOrder {
		if s, ok := r.Steps[t]; ok {
			steps = append(steps, s)
		}
	}
	wire := struct {
		ID                    string    `json:"id"`
		SourceConversationID  string    `json:"source_conversation_id"`
		SourceConversationURL string    `json:"source_conversation_url"`
		MessageBody           string    `json:"message_body"`
		Status                Status    `json:"status"`
		Steps                 []*Step   `json:"steps"`
		CreatedAt             time.Time `json:"created_at"`
		UpdatedAt             time.Time `json:"updated_at"`
		Revision              uint64    `json:"revision"`
	}{
		ID:                    r.ID,
		SourceConversationID:  r.SourceConversationID,
		SourceConversationURL: r.SourceConversationURL,
		MessageBody:           r.MessageBody,
		Status:                r.Status,
		Steps:                 steps,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
		Revision:              r.Revision,
	}
	return json.Marshal(wire)
}
