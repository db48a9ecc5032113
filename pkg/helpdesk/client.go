// Package helpdesk provides HTTP access to the helpdesk API: reading
// conversations, listing the operators participating in them, and posting
// replies.
package helpdesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jumpdesk/deskbridge/pkg/models"
)

// maxErrorBody bounds how much of an error response body is kept in the
// ServiceError detail.
const maxErrorBody = 512

// Client talks to the helpdesk REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	// adminID is the helpdesk user replies are authored as.
	adminID string
	// timeout bounds each call; exceeding it surfaces as a timeout error.
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient creates a helpdesk client. Every call is bounded by timeout.
func NewClient(baseURL, token, adminID string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		adminID:    adminID,
		timeout:    timeout,
		logger:     slog.Default().With("component", "helpdesk"),
	}
}

// GetConversation fetches a conversation by id.
func (c *Client) GetConversation(ctx context.Context, id string) (models.Conversation, error) {
	var wire struct {
		Conversation struct {
			ID      string `json:"id"`
			Subject string `json:"subject"`
			URL     string `json:"url"`
			Preview string `json:"latest_message_preview"`
		} `json:"conversation"`
	}
	path := fmt.Sprintf("/v1/conversations/%s", url.PathEscape(id))
	if err := c.do(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return models.Conversation{}, err
	}
	return models.Conversation{
		ID:      wire.Conversation.ID,
		Subject: wire.Conversation.Subject,
		URL:     wire.Conversation.URL,
		Preview: wire.Conversation.Preview,
	}, nil
}

// GetParticipatingOperators lists the human operators active on a conversation.
func (c *Client) GetParticipatingOperators(ctx context.Context, conversationID string) ([]models.Operator, error) {
	var wire struct {
		Operators []struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"operators"`
	}
	path := fmt.Sprintf("/v1/conversations/%s/operators", url.PathEscape(conversationID))
	if err := c.do(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}
	operators := make([]models.Operator, 0, len(wire.Operators))
	for _, op := range wire.Operators {
		operators = append(operators, models.Operator{ID: op.ID, Email: op.Email, Name: op.Name})
	}
	return operators, nil
}

// ReplyToConversation posts a reply, authored as the configured admin user.
func (c *Client) ReplyToConversation(ctx context.Context, conversationID, body string) error {
	payload := map[string]string{
		"body":      body,
		"author_id": c.adminID,
	}
	path := fmt.Sprintf("/v1/conversations/%s/replies", url.PathEscape(conversationID))
	return c.do(ctx, http.MethodPost, path, payload, nil)
}

// do runs one bounded API call: builds the request, authenticates, maps
// transport/status/decode failures to the typed error kinds, and decodes a
// successful body into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.ClassifyTransport(models.ServiceHelpdesk, err, c.timeout)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return models.NewRemoteFailure(models.ServiceHelpdesk, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return models.NewParseFailure(models.ServiceHelpdesk, err)
		}
	}
	return nil
}
