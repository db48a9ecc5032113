// Package notifier announces ticket completion. When the tracker marks a
// ticket Done, the notifier posts to the ticket's chat channel (or the
// configured fallback) and replies on every linked helpdesk conversation.
package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jumpdesk/deskbridge/pkg/helpdesk"
	"github.com/jumpdesk/deskbridge/pkg/models"
	"github.com/jumpdesk/deskbridge/pkg/observability"
	"github.com/jumpdesk/deskbridge/pkg/slack"
)

// ChatPoster posts a message to a chat channel. Implemented by slack.Client.
type ChatPoster interface {
	PostMessage(ctx context.Context, channelID, text string) error
}

// ConversationReplier replies on a helpdesk conversation. Implemented by
// helpdesk.Client.
type ConversationReplier interface {
	ReplyToConversation(ctx context.Context, conversationID, body string) error
}

// Notifier delivers done notifications best-effort: each target is attempted
// independently, failures are logged and counted, and NotifyDone never
// returns an error. A notification is a courtesy, not a pipeline step — the
// ticket is already Done.
type Notifier struct {
	chat     ChatPoster
	helpdesk ConversationReplier
	// fallbackChannelID receives the chat notification when the ticket has
	// no channel of its own. Empty disables the chat leg.
	fallbackChannelID string
	metrics           *observability.Metrics
	logger            *slog.Logger
}

// New creates a notifier. fallbackChannelID may be empty; metrics may be nil.
func New(chat ChatPoster, hd ConversationReplier, fallbackChannelID string, metrics *observability.Metrics) *Notifier {
	return &Notifier{
		chat:              chat,
		helpdesk:          hd,
		fallbackChannelID: fallbackChannelID,
		metrics:           metrics,
		logger:            slog.Default().With("component", "notifier"),
	}
}

// doneMessage is the text delivered to every target.
func doneMessage(t models.Ticket) string {
	return fmt.Sprintf("Ticket %s has been marked as Done.", t.TicketID)
}

// NotifyDone fans the done message out to the ticket's chat channel and all
// linked conversations. Always returns nil.
func (n *Notifier) NotifyDone(ctx context.Context, t models.Ticket) error {
	message := doneMessage(t)

	n.notifyChat(ctx, t, message)
	n.notifyConversations(ctx, t, message)
	return nil
}

func (n *Notifier) notifyChat(ctx context.Context, t models.Ticket, message string) {
	channelID := n.fallbackChannelID
	if t.ChatChannel != "" {
		id, err := slack.ExtractChannelID(t.ChatChannel)
		if err != nil {
			n.logger.Warn("Unparseable chat channel on ticket, using fallback",
				"ticket_id", t.TicketID, "chat_channel", t.ChatChannel, "error", err)
		} else {
			channelID = id
		}
	}
	if channelID == "" {
		n.metrics.NotifierDelivery("channel", "skipped")
		n.logger.Warn("No chat channel to notify", "ticket_id", t.TicketID)
		return
	}

	if err := n.chat.PostMessage(ctx, channelID, message); err != nil {
		n.metrics.NotifierDelivery("channel", "error")
		n.logger.Error("Failed to post done notification to chat",
			"ticket_id", t.TicketID, "channel_id", channelID, "error", err)
		return
	}
	n.metrics.NotifierDelivery("channel", "ok")
	n.logger.Info("Posted done notification to chat",
		"ticket_id", t.TicketID, "channel_id", channelID)
}

func (n *Notifier) notifyConversations(ctx context.Context, t models.Ticket, message string) {
	for _, entry := range t.LinkedConversationList() {
		conversationID := helpdesk.ExtractConversationID(entry)
		if conversationID == "" {
			continue
		}
		if err := n.helpdesk.ReplyToConversation(ctx, conversationID, message); err != nil {
			n.metrics.NotifierDelivery("conversation", "error")
			n.logger.Error("Failed to reply on linked conversation",
				"ticket_id", t.TicketID, "conversation_id", conversationID, "error", err)
			continue
		}
		n.metrics.NotifierDelivery("conversation", "ok")
		n.logger.Info("Replied on linked conversation",
			"ticket_id", t.TicketID, "conversation_id", conversationID)
	}
}
