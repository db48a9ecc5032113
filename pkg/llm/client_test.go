package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jumpdesk/deskbridge/pkg/models"
)

var candidates = []models.Ticket{
	{TicketID: "JMP-10", Title: "Checkout broken", Summary: "payment form errors"},
	{TicketID: "JMP-11", Title: "Slow dashboard", Summary: "charts take 30s to load"},
}

// newTestClient runs a fake OpenAI-compatible endpoint that answers every
// chat completion with the given content.
func newTestClient(t *testing.T, content string) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer llm-key", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "JMP-10")

		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(server.Close)
	return NewClient("llm-key", server.URL, "gpt-4o", 5*time.Second)
}

func TestFindOrCreateTicketExisting(t *testing.T) {
	client := newTestClient(t, `{"action":"existing","ticket_id":"JMP-11"}`)

	decision, err := client.FindOrCreateTicket(context.Background(), candidates, "dashboard is slow again", models.Conversation{Subject: "Slow charts"})
	require.NoError(t, err)
	assert.Equal(t, models.DecisionExisting, decision.Kind)
	require.NotNil(t, decision.Existing)
	assert.Equal(t, "JMP-11", decision.Existing.TicketID)
	assert.NoError(t, decision.Validate())
}

func TestFindOrCreateTicketNew(t *testing.T) {
	client := newTestClient(t, "```json\n{\"action\":\"new\",\"title\":\"Login broken\",\"summary\":\"user cannot sign in\",\"slug\":\"Login-Broken\"}\n```")

	decision, err := client.FindOrCreateTicket(context.Background(), candidates, "cannot sign in", models.Conversation{Subject: "Login"})
	require.NoError(t, err)
	assert.Equal(t, models.DecisionNew, decision.Kind)
	require.NotNil(t, decision.New)
	assert.Equal(t, "Login broken", decision.New.Title)
	// Slug is lowercased on the way in.
	assert.Equal(t, "login-broken", decision.New.Slug)
	assert.NoError(t, decision.Validate())
}

func TestFindOrCreateTicketUnknownTicketID(t *testing.T) {
	client := newTestClient(t, `{"action":"existing","ticket_id":"JMP-99"}`)

	_, err := client.FindOrCreateTicket(context.Background(), candidates, "msg", models.Conversation{})
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindParseFailure, models.KindOf(err))
	assert.Contains(t, err.Error(), "JMP-99")
}

func TestFindOrCreateTicketRejectsBadSlug(t *testing.T) {
	client := newTestClient(t, `{"action":"new","title":"T","summary":"S","slug":"not a slug!"}`)

	_, err := client.FindOrCreateTicket(context.Background(), candidates, "msg", models.Conversation{})
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindParseFailure, models.KindOf(err))
}

func TestFindOrCreateTicketNonJSONAnswer(t *testing.T) {
	client := newTestClient(t, "I think this needs a new ticket.")

	_, err := client.FindOrCreateTicket(context.Background(), candidates, "msg", models.Conversation{})
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindParseFailure, models.KindOf(err))
}

func TestFindOrCreateTicketRemoteFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit_error"}}`))
	}))
	t.Cleanup(server.Close)
	client := NewClient("llm-key", server.URL, "gpt-4o", 5*time.Second)

	_, err := client.FindOrCreateTicket(context.Background(), candidates, "msg", models.Conversation{})
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindRemoteFailure, models.KindOf(err))
	assert.Contains(t, err.Error(), "429")
}

func TestFindOrCreateTicketTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can detect the client going away;
		// with an unread body, r.Context() is never cancelled and
		// server.Close in t.Cleanup would block forever.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)
	client := NewClient("llm-key", server.URL, "gpt-4o", 50*time.Millisecond)

	_, err := client.FindOrCreateTicket(context.Background(), candidates, "msg", models.Conversation{})
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindTimeout, models.KindOf(err))
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around object", `Sure: {"a":1} hope that helps`, `{"a":1}`},
		{"no json", "no object here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.in))
		})
	}
}
