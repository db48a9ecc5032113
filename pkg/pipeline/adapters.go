// Package pipeline owns the integration-request workflow: six steps executed
// in a fixed order against four remote services, with results threaded
// between steps and live snapshots published after every state change.
package pipeline

import (
	"context"

	"github.com/jumpdesk/deskbridge/pkg/models"
)

// The engine depends only on these narrow interfaces; concrete clients live
// in pkg/helpdesk, pkg/tracker, pkg/slack and pkg/llm. Test doubles are in
// testing.go.

// Helpdesk reads conversations and their participants.
type Helpdesk interface {
	GetConversation(ctx context.Context, id string) (models.Conversation, error)
	GetParticipatingOperators(ctx context.Context, conversationID string) ([]models.Operator, error)
}

// KnowledgeBase stores tickets. ListTickets must return every ticket the
// decision service should consider.
type KnowledgeBase interface {
	ListTickets(ctx context.Context) ([]models.Ticket, error)
	CreateTicket(ctx context.Context, t models.Ticket) (models.Ticket, error)
	UpdateTicket(ctx context.Context, trackerID string, patch models.TicketPatch) (models.Ticket, error)
}

// Chat provisions channels and manages their membership. InviteUsers is
// idempotent at this boundary: already-member is not an error.
type Chat interface {
	CreateChannel(ctx context.Context, name string) (models.ChannelInfo, error)
	ListChannelMembers(ctx context.Context, channelID string) ([]string, error)
	ListAllUsers(ctx context.Context) ([]models.ChatUser, error)
	InviteUsers(ctx context.Context, channelID string, userIDs []string) error
	SetChannelTopic(ctx context.Context, channelID, topic string) error
}

// DecisionService is the LLM oracle: pick an existing ticket or propose a
// new one.
type DecisionService interface {
	FindOrCreateTicket(ctx context.Context, candidates []models.Ticket, messageBody string, conversation models.Conversation) (models.AIDecision, error)
}

// Adapters bundles the four remote services a run needs. Injected per
// engine; test doubles may replace any member.
type Adapters struct {
	Helpdesk      Helpdesk
	KnowledgeBase KnowledgeBase
	Chat          Chat
	LLM           DecisionService
}
