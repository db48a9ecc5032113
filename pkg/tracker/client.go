// Package tracker provides HTTP access to the knowledge-base API that
// stores tickets: enumeration, creation, partial updates, and the
// done-property read used by the completion webhook.
package tracker

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

const maxErrorBody = 512

// Client talks to the knowledge-base REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	// databaseID scopes enumeration and creation to one ticket database.
	databaseID string
	// timeout bounds each call; exceeding it surfaces as a timeout error.
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient creates a knowledge-base client. Every call is bounded by timeout.
func NewClient(baseURL, token, databaseID string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		databaseID: databaseID,
		timeout:    timeout,
		logger:     slog.Default().With("component", "tracker"),
	}
}

// record is the wire shape of a ticket row. Key is the human-readable
// ticket id (e.g. "JMP-10") and is authoritative — ids are never derived
// from the record id.
type record struct {
	ID                  string `json:"id"`
	Key                 string `json:"key"`
	URL                 string `json:"url"`
	Title               string `json:"title"`
	Summary             string `json:"summary"`
	LinkedConversations string `json:"linked_conversations"`
	ChatChannel         string `json:"chat_channel"`
	Done                bool   `json:"done"`
}

func (r record) ticket() models.Ticket {
	return models.Ticket{
		TicketID:            r.Key,
		TrackerID:           r.ID,
		TrackerURL:          r.URL,
		Title:               r.Title,
		Summary:             r.Summary,
		LinkedConversations: r.LinkedConversations,
		ChatChannel:         r.ChatChannel,
	}
}

// ListTickets enumerates every ticket in the database, following pagination
// cursors to exhaustion. The pipeline relies on this returning every ticket
// the decision service should consider.
func (c *Client) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	var tickets []models.Ticket
	cursor := ""
	for {
		payload := map[string]string{}
		if cursor != "" {
			payload["start_cursor"] = cursor
		}
		var page struct {
			Results    []record `json:"results"`
			HasMore    bool     `json:"has_more"`
			NextCursor string   `json:"next_cursor"`
		}
		path := fmt.Sprintf("/v1/databases/%s/query", url.PathEscape(c.databaseID))
		if err := c.do(ctx, http.MethodPost, path, payload, &page); err != nil {
			return nil, err
		}
		for _, r := range page.Results {
			tickets = append(tickets, r.ticket())
		}
		if !page.HasMore {
			return tickets, nil
		}
		if page.NextCursor == "" {
			return nil, models.NewParseFailure(models.ServiceKnowledgeBase,
				fmt.Errorf("has_more set without next_cursor"))
		}
		cursor = page.NextCursor
	}
}

// CreateTicket creates a new ticket and returns the stored record, now
// populated with key, id and url.
func (c *Client) CreateTicket(ctx context.Context, t models.Ticket) (models.Ticket, error) {
	payload := map[string]string{
		"title":                t.Title,
		"summary":              t.Summary,
		"linked_conversations": t.LinkedConversations,
	}
	var created record
	path := fmt.Sprintf("/v1/databases/%s/tickets", url.PathEscape(c.databaseID))
	if err := c.do(ctx, http.MethodPost, path, payload, &created); err != nil {
		return models.Ticket{}, err
	}
	return created.ticket(), nil
}

// UpdateTicket applies a partial update and returns the updated record.
func (c *Client) UpdateTicket(ctx context.Context, trackerID string, patch models.TicketPatch) (models.Ticket, error) {
	var updated record
	path := fmt.Sprintf("/v1/tickets/%s", url.PathEscape(trackerID))
	if err := c.do(ctx, http.MethodPatch, path, patch, &updated); err != nil {
		return models.Ticket{}, err
	}
	return updated.ticket(), nil
}

// GetTicket fetches one ticket by its tracker id.
func (c *Client) GetTicket(ctx context.Context, trackerID string) (models.Ticket, error) {
	var rec record
	path := fmt.Sprintf("/v1/tickets/%s", url.PathEscape(trackerID))
	if err := c.do(ctx, http.MethodGet, path, nil, &rec); err != nil {
		return models.Ticket{}, err
	}
	return rec.ticket(), nil
}

// GetDoneState reads the authoritative value of a checkbox property. The
// completion webhook payload does not carry the new value, so this is the
// preferred way to resolve it.
func (c *Client) GetDoneState(ctx context.Context, trackerID, propertyID string) (bool, error) {
	var prop struct {
		ID       string `json:"id"`
		Type     string `json:"type"`
		Checkbox bool   `json:"checkbox"`
	}
	path := fmt.Sprintf("/v1/tickets/%s/properties/%s", url.PathEscape(trackerID), url.PathEscape(propertyID))
	if err := c.do(ctx, http.MethodGet, path, nil, &prop); err != nil {
		return false, err
	}
	if prop.Type != "checkbox" {
		return false, models.NewParseFailure(models.ServiceKnowledgeBase,
			fmt.Errorf("property %s has type %q, expected checkbox", propertyID, prop.Type))
	}
	return prop.Checkbox, nil
}

// do runs one bounded API call with auth, error-kind mapping, and optional
// response decoding.
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
		return models.ClassifyTransport(models.ServiceKnowledgeBase, err, c.timeout)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return models.NewRemoteFailure(models.ServiceKnowledgeBase, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return models.NewParseFailure(models.ServiceKnowledgeBase, err)
		}
	}
	return nil
}
