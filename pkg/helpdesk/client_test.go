package helpdesk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jumpdesk/deskbridge/pkg/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "hd-token", "admin-1", 5*time.Second)
}

func TestGetConversation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/conversations/conv-9", r.URL.Path)
		assert.Equal(t, "Bearer hd-token", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"conversation": map[string]string{
				"id":                     "conv-9",
				"subject":                "Login broken",
				"url":                    "https://app.hd.io/a/apps/X/conversations/conv-9",
				"latest_message_preview": "I cannot sign in",
			},
		})
	})

	conv, err := client.GetConversation(context.Background(), "conv-9")
	require.NoError(t, err)
	assert.Equal(t, "conv-9", conv.ID)
	assert.Equal(t, "Login broken", conv.Subject)
	assert.Equal(t, "I cannot sign in", conv.Preview)
}

func TestGetParticipatingOperators(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/conversations/conv-9/operators", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"operators": []map[string]string{
				{"id": "op-1", "email": "ada@example.com", "name": "Ada Lovelace"},
				{"id": "op-2", "email": "grace@example.com", "name": "Grace Hopper"},
			},
		})
	})

	ops, err := client.GetParticipatingOperators(context.Background(), "conv-9")
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "ada@example.com", ops[0].Email)
	assert.Equal(t, "op-2", ops[1].ID)
}

func TestReplyToConversation(t *testing.T) {
	var got map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/conversations/conv-9/replies", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	err := client.ReplyToConversation(context.Background(), "conv-9", "Ticket JMP-7 has been marked as Done.")
	require.NoError(t, err)
	assert.Equal(t, "Ticket JMP-7 has been marked as Done.", got["body"])
	assert.Equal(t, "admin-1", got["author_id"])
}

func TestRemoteFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "conversation not found", http.StatusNotFound)
	})

	_, err := client.GetConversation(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindRemoteFailure, models.KindOf(err))
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "conversation not found")
}

func TestParseFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	_, err := client.GetConversation(context.Background(), "conv-9")
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindParseFailure, models.KindOf(err))
}

func TestCallTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)
	client := NewClient(server.URL, "hd-token", "admin-1", 50*time.Millisecond)

	_, err := client.GetConversation(context.Background(), "conv-9")
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindTimeout, models.KindOf(err))
	assert.Contains(t, err.Error(), "timeout after 50ms")
}

func TestTransportFailure(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "hd-token", "admin-1", time.Second)

	_, err := client.GetConversation(context.Background(), "conv-9")
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindTransportFailure, models.KindOf(err))
}

func TestExtractConversationID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://app.hd.io/a/apps/X/conversations/999", "999"},
		{"https://app.hd.io/a/apps/X/conversations/999/", "999"},
		{"raw-conversation-id", "raw-conversation-id"},
		{" raw-with-spaces ", "raw-with-spaces"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractConversationID(tt.in))
		})
	}
}
