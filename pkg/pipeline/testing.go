package pipeline

import (
	"context"

	"github.com/jumpdesk/deskbridge/pkg/models"
)

// Test doubles for the adapter interfaces. Each method delegates to its Func
// field when set and otherwise returns an empty success, so a test only
// stubs the calls it cares about. Shared by the engine, coordinator and API
// tests.

// FakeHelpdesk is a function-field test double for Helpdesk.
type FakeHelpdesk struct {
	GetConversationFunc           func(ctx context.Context, id string) (models.Conversation, error)
	GetParticipatingOperatorsFunc func(ctx context.Context, conversationID string) ([]models.Operator, error)
	ReplyToConversationFunc       func(ctx context.Context, conversationID, body string) error
}

func (f *FakeHelpdesk) GetConversation(ctx context.Context, id string) (models.Conversation, error) {
	if f.GetConversationFunc != nil {
		return f.GetConversationFunc(ctx, id)
	}
	return models.Conversation{ID: id}, nil
}

func (f *FakeHelpdesk) GetParticipatingOperators(ctx context.Context, conversationID string) ([]models.Operator, error) {
	if f.GetParticipatingOperatorsFunc != nil {
		return f.GetParticipatingOperatorsFunc(ctx, conversationID)
	}
	return nil, nil
}

func (f *FakeHelpdesk) ReplyToConversation(ctx context.Context, conversationID, body string) error {
	if f.ReplyToConversationFunc != nil {
		return f.ReplyToConversationFunc(ctx, conversationID, body)
	}
	return nil
}

// FakeKnowledgeBase is a function-field test double for KnowledgeBase.
type FakeKnowledgeBase struct {
	ListTicketsFunc  func(ctx context.Context) ([]models.Ticket, error)
	CreateTicketFunc func(ctx context.Context, t models.Ticket) (models.Ticket, error)
	UpdateTicketFunc func(ctx context.Context, trackerID string, patch models.TicketPatch) (models.Ticket, error)
}

func (f *FakeKnowledgeBase) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	if f.ListTicketsFunc != nil {
		return f.ListTicketsFunc(ctx)
	}
	return nil, nil
}

func (f *FakeKnowledgeBase) CreateTicket(ctx context.Context, t models.Ticket) (models.Ticket, error) {
	if f.CreateTicketFunc != nil {
		return f.CreateTicketFunc(ctx, t)
	}
	return t, nil
}

func (f *FakeKnowledgeBase) UpdateTicket(ctx context.Context, trackerID string, patch models.TicketPatch) (models.Ticket, error) {
	if f.UpdateTicketFunc != nil {
		return f.UpdateTicketFunc(ctx, trackerID, patch)
	}
	return models.Ticket{TrackerID: trackerID}, nil
}

// FakeChat is a function-field test double for Chat.
type FakeChat struct {
	CreateChannelFunc      func(ctx context.Context, name string) (models.ChannelInfo, error)
	ListChannelMembersFunc func(ctx context.Context, channelID string) ([]string, error)
	ListAllUsersFunc       func(ctx context.Context) ([]models.ChatUser, error)
	InviteUsersFunc        func(ctx context.Context, channelID string, userIDs []string) error
	SetChannelTopicFunc    func(ctx context.Context, channelID, topic string) error
	PostMessageFunc        func(ctx context.Context, channelID, text string) error
}

func (f *FakeChat) CreateChannel(ctx context.Context, name string) (models.ChannelInfo, error) {
	if f.CreateChannelFunc != nil {
		return f.CreateChannelFunc(ctx, name)
	}
	return models.ChannelInfo{ChannelID: "C-FAKE", URL: "https://app.slack.test/archives/C-FAKE"}, nil
}

func (f *FakeChat) ListChannelMembers(ctx context.Context, channelID string) ([]string, error) {
	if f.ListChannelMembersFunc != nil {
		return f.ListChannelMembersFunc(ctx, channelID)
	}
	return nil, nil
}

func (f *FakeChat) ListAllUsers(ctx context.Context) ([]models.ChatUser, error) {
	if f.ListAllUsersFunc != nil {
		return f.ListAllUsersFunc(ctx)
	}
	return nil, nil
}

func (f *FakeChat) InviteUsers(ctx context.Context, channelID string, userIDs []string) error {
	if f.InviteUsersFunc != nil {
		return f.InviteUsersFunc(ctx, channelID, userIDs)
	}
	return nil
}

func (f *FakeChat) SetChannelTopic(ctx context.Context, channelID, topic string) error {
	if f.SetChannelTopicFunc != nil {
		return f.SetChannelTopicFunc(ctx, channelID, topic)
	}
	return nil
}

func (f *FakeChat) PostMessage(ctx context.Context, channelID, text string) error {
	if f.PostMessageFunc != nil {
		return f.PostMessageFunc(ctx, channelID, text)
	}
	return nil
}

// FakeLLM is a function-field test double for DecisionService.
type FakeLLM struct {
	FindOrCreateTicketFunc func(ctx context.Context, candidates []models.Ticket, messageBody string, conversation models.Conversation) (models.AIDecision, error)
}

func (f *FakeLLM) FindOrCreateTicket(ctx context.Context, candidates []models.Ticket, messageBody string, conversation models.Conversation) (models.AIDecision, error) {
	if f.FindOrCreateTicketFunc != nil {
		return f.FindOrCreateTicketFunc(ctx, candidates, messageBody, conversation)
	}
	return models.NewTicketDecision(models.NewTicketSpec{
		Title:   "Fake ticket",
		Summary: "fake summary",
		Slug:    "fake-ticket",
	}), nil
}

// FakeAdapters bundles one fake per service, pre-wired into an Adapters
// value via Adapters().
type FakeAdapters struct {
	Helpdesk      *FakeHelpdesk
	KnowledgeBase *FakeKnowledgeBase
	Chat          *FakeChat
	LLM           *FakeLLM
}

// NewFakeAdapters creates a full set of default fakes.
func NewFakeAdapters() *FakeAdapters {
	return &FakeAdapters{
		Helpdesk:      &FakeHelpdesk{},
		KnowledgeBase: &FakeKnowledgeBase{},
		Chat:          &FakeChat{},
		LLM:           &FakeLLM{},
	}
}

// Adapters returns the fakes as the engine's dependency bundle.
func (f *FakeAdapters) Adapters() Adapters {
	return Adapters{
		Helpdesk:      f.Helpdesk,
		KnowledgeBase: f.KnowledgeBase,
		Chat:          f.Chat,
		LLM:           f.LLM,
	}
}
