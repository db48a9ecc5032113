package pipeline

import (
	"context"
	"strings"

	"github.com/jumpdesk/deskbridge/pkg/match"
	"github.com/jumpdesk/deskbridge/pkg/models"
	"github.com/jumpdesk/deskbridge/pkg/slack"
)

// checkExistingTickets enumerates every tracked ticket so the decision
// service sees the full candidate set.
func (e *Engine) checkExistingTickets(ctx context.Context) (models.StepResult, error) {
	tickets, err := e.adapters.KnowledgeBase.ListTickets(ctx)
	if err != nil {
		return nil, err
	}
	return models.TicketListResult{Tickets: tickets}, nil
}

// aiAnalysis fetches the conversation for context and asks the decision
// service to triage it against the candidates from step 1.
func (e *Engine) aiAnalysis(ctx context.Context, req *models.Request) (models.StepResult, error) {
	candidates, err := priorTickets(req, models.StepAIAnalysis)
	if err != nil {
		return nil, err
	}
	conversation, err := e.adapters.Helpdesk.GetConversation(ctx, req.SourceConversationID)
	if err != nil {
		return nil, err
	}
	decision, err := e.adapters.LLM.FindOrCreateTicket(ctx, candidates, req.MessageBody, conversation)
	if err != nil {
		return nil, err
	}
	if err := decision.Validate(); err != nil {
		return nil, models.NewParseFailure(models.ServiceLLM, err)
	}
	return models.DecisionResult{Decision: decision}, nil
}

// createOrUpdateTracker materialises the decision in the knowledge base:
// link the conversation to the chosen existing ticket, or create a fresh
// one already linked. Linking is idempotent — an already-linked URL means
// no remote call at all, so retries cannot double-append.
func (e *Engine) createOrUpdateTracker(ctx context.Context, req *models.Request) (models.StepResult, error) {
	decision, err := priorDecision(req, models.StepCreateOrUpdateTracker)
	if err != nil {
		return nil, err
	}

	switch decision.Kind {
	case models.DecisionExisting:
		ticket := *decision.Existing
		if ticket.HasLinkedConversation(req.SourceConversationURL) {
			return models.TicketResult{Ticket: ticket}, nil
		}
		linked := strings.Join(append(ticket.LinkedConversationList(), req.SourceConversationURL), ",")
		updated, err := e.adapters.KnowledgeBase.UpdateTicket(ctx, ticket.TrackerID, models.TicketPatch{
			LinkedConversations: &linked,
		})
		if err != nil {
			return nil, err
		}
		return models.TicketResult{Ticket: updated}, nil

	case models.DecisionNew:
		created, err := e.adapters.KnowledgeBase.CreateTicket(ctx, models.Ticket{
			Title:               decision.New.Title,
			Summary:             decision.New.Summary,
			LinkedConversations: req.SourceConversationURL,
		})
		if err != nil {
			return nil, err
		}
		return models.TicketResult{Ticket: created}, nil

	default:
		return nil, models.NewMissingImplementation(models.StepCreateOrUpdateTracker)
	}
}

// maybeCreateChatChannel resolves the channel for the ticket. Existing
// tickets reuse their stored chat_channel (no remote call — the id is
// parsed out of the URL); new tickets get a fresh channel named
// "{ticket_id}-{slug}", lowercased.
func (e *Engine) maybeCreateChatChannel(ctx context.Context, req *models.Request) (models.StepResult, error) {
	decision, err := priorDecision(req, models.StepMaybeCreateChatChannel)
	if err != nil {
		return nil, err
	}
	ticket, err := priorTicket(req, models.StepCreateOrUpdateTracker, models.StepMaybeCreateChatChannel)
	if err != nil {
		return nil, err
	}

	switch decision.Kind {
	case models.DecisionExisting:
		channelID, err := slack.ExtractChannelID(ticket.ChatChannel)
		if err != nil {
			return nil, err
		}
		return models.ChannelResult{Channel: models.ChannelInfo{
			ChannelID: channelID,
			URL:       ticket.ChatChannel,
		}}, nil

	case models.DecisionNew:
		name := strings.ToLower(ticket.TicketID + "-" + decision.New.Slug)
		channel, err := e.adapters.Chat.CreateChannel(ctx, name)
		if err != nil {
			return nil, err
		}
		return models.ChannelResult{Channel: channel}, nil

	default:
		return nil, models.NewMissingImplementation(models.StepMaybeCreateChatChannel)
	}
}

// maybeUpdateTrackerWithChat writes the channel URL back to the ticket,
// skipping the call when the ticket already points at this channel.
func (e *Engine) maybeUpdateTrackerWithChat(ctx context.Context, req *models.Request) (models.StepResult, error) {
	ticket, err := priorTicket(req, models.StepCreateOrUpdateTracker, models.StepMaybeUpdateTrackerWithChat)
	if err != nil {
		return nil, err
	}
	channel, err := priorChannel(req, models.StepMaybeUpdateTrackerWithChat)
	if err != nil {
		return nil, err
	}

	if channel.URL == ticket.ChatChannel {
		return models.TicketResult{Ticket: ticket}, nil
	}
	updated, err := e.adapters.KnowledgeBase.UpdateTicket(ctx, ticket.TrackerID, models.TicketPatch{
		ChatChannel: &channel.URL,
	})
	if err != nil {
		return nil, err
	}
	return models.TicketResult{Ticket: updated}, nil
}

// addOperatorsToChat invites the conversation's operators into the channel.
// For an existing ticket the invite list is diffed against current members;
// a fresh channel needs no diff but does get the tracker URL as its topic.
// Both branches skip the invite call entirely when no operator matched.
func (e *Engine) addOperatorsToChat(ctx context.Context, req *models.Request) (models.StepResult, error) {
	decision, err := priorDecision(req, models.StepAddOperatorsToChat)
	if err != nil {
		return nil, err
	}
	channel, err := priorChannel(req, models.StepAddOperatorsToChat)
	if err != nil {
		return nil, err
	}

	operators, err := e.adapters.Helpdesk.GetParticipatingOperators(ctx, req.SourceConversationID)
	if err != nil {
		return nil, err
	}
	chatUsers, err := e.adapters.Chat.ListAllUsers(ctx)
	if err != nil {
		return nil, err
	}
	targets := match.Users(operators, chatUsers)

	switch decision.Kind {
	case models.DecisionExisting:
		members, err := e.adapters.Chat.ListChannelMembers(ctx, channel.ChannelID)
		if err != nil {
			return nil, err
		}
		targets = subtract(targets, members)
		if len(targets) > 0 {
			if err := e.adapters.Chat.InviteUsers(ctx, channel.ChannelID, targets); err != nil {
				return nil, err
			}
		}
		return models.UnitResult{}, nil

	case models.DecisionNew:
		if len(targets) > 0 {
			if err := e.adapters.Chat.InviteUsers(ctx, channel.ChannelID, targets); err != nil {
				return nil, err
			}
		}
		ticket, err := priorTicket(req, models.StepMaybeUpdateTrackerWithChat, models.StepAddOperatorsToChat)
		if err != nil {
			return nil, err
		}
		if err := e.adapters.Chat.SetChannelTopic(ctx, channel.ChannelID, ticket.TrackerURL); err != nil {
			return nil, err
		}
		return models.UnitResult{}, nil

	default:
		return nil, models.NewMissingImplementation(models.StepAddOperatorsToChat)
	}
}

// subtract returns the elements of ids not present in exclude, preserving
// order.
func subtract(ids, exclude []string) []string {
	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	var out []string
	for _, id := range ids {
		if !excluded[id] {
			out = append(out, id)
		}
	}
	return out
}
