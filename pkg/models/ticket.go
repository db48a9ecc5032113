// Package models contains the domain types shared across the service:
// tickets, requests, pipeline steps and their results, and the typed
// errors adapters surface to the pipeline.
package models

import "strings"

// Ticket is the canonical tracker record. The authoritative copy lives in
// the external knowledge base; tickets only exist in flight here, as step
// results. A Ticket is immutable between pipeline steps — adapter calls
// that mutate the remote record return a fresh value.
type Ticket struct {
	// TicketID is the human-readable key, e.g. "JMP-10".
	TicketID string `json:"ticket_id"`
	// TrackerID is the opaque external record id.
	TrackerID  string `json:"tracker_id"`
	TrackerURL string `json:"tracker_url"`
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	// LinkedConversations is a comma-joined list of helpdesk conversation
	// URLs. Empty when no conversation is linked yet.
	LinkedConversations string `json:"linked_conversations"`
	// ChatChannel is a chat-service channel URL or a raw channel id.
	// Empty when no channel has been provisioned.
	ChatChannel string `json:"chat_channel"`
}

// LinkedConversationList splits LinkedConversations into individual entries,
// trimming whitespace and dropping empties.
func (t Ticket) LinkedConversationList() []string {
	if t.LinkedConversations == "" {
		return nil
	}
	parts := strings.Split(t.LinkedConversations, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// HasLinkedConversation reports whether url already appears in
// LinkedConversations.
func (t Ticket) HasLinkedConversation(url string) bool {
	for _, c := range t.LinkedConversationList() {
		if c == url {
			return true
		}
	}
	return false
}

// TicketPatch is a partial update for an existing tracker record. Nil fields
// are left untouched.
type TicketPatch struct {
	Title               *string `json:"title,omitempty"`
	LinkedConversations *string `json:"linked_conversations,omitempty"`
	ChatChannel         *string `json:"chat_channel,omitempty"`
}

// Conversation is a helpdesk conversation as seen by the pipeline.
type Conversation struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	URL     string `json:"url"`
	Preview string `json:"preview"`
}

// Operator is a human support agent identified in the helpdesk.
type Operator struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ChatUser is a chat-service user.
type ChatUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ChannelInfo identifies a provisioned chat channel.
type ChannelInfo struct {
	ChannelID string `json:"channel_id"`
	URL       string `json:"url"`
}
