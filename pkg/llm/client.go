// Package llm is the decision-service adapter. Given the existing tickets
// and an incoming conversation, the model either picks the most relevant
// existing ticket or proposes a new one. The pipeline treats the answer as
// a trusted oracle and never re-validates relevance.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jumpdesk/deskbridge/pkg/models"
)

const systemPrompt = `You are a support triage assistant. You receive the list of currently tracked tickets and a new customer-support conversation. Decide whether the conversation belongs to one of the existing tickets or needs a new one.

Answer with a single JSON object and nothing else:
- to reuse an existing ticket: {"action":"existing","ticket_id":"<ticket_id of the chosen ticket>"}
- to create a new ticket: {"action":"new","title":"<short title>","summary":"<one-paragraph summary>","slug":"<short-url-safe-slug>"}

The slug must be lowercase words joined by hyphens, suitable for a chat channel name.`

// slugPattern is the URL-safe form a proposed slug must take after
// lowercasing: hyphen-joined lowercase alphanumeric words.
var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Client calls an OpenAI-compatible chat-completion endpoint.
type Client struct {
	api   *openai.Client
	model string
	// timeout bounds each call; exceeding it surfaces as a timeout error.
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient creates an LLM client against baseURL (any OpenAI-compatible
// endpoint). Every call is bounded by timeout.
func NewClient(apiKey, baseURL, model string, timeout time.Duration) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Client{
		api:     openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
		logger:  slog.Default().With("component", "llm"),
	}
}

// wireDecision is the JSON shape the model must answer with.
type wireDecision struct {
	Action   string `json:"action"`
	TicketID string `json:"ticket_id"`
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Slug     string `json:"slug"`
}

// FindOrCreateTicket asks the model to triage the conversation against the
// candidate tickets. An "existing" answer must name a ticket_id from the
// candidates; a "new" answer must carry a title, summary and URL-safe slug.
func (c *Client) FindOrCreateTicket(ctx context.Context, candidates []models.Ticket, messageBody string, conversation models.Conversation) (models.AIDecision, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt, err := buildUserPrompt(candidates, messageBody, conversation)
	if err != nil {
		return models.AIDecision{}, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return models.AIDecision{}, c.classify(err)
	}
	if len(resp.Choices) == 0 {
		return models.AIDecision{}, models.NewParseFailure(models.ServiceLLM, errors.New("response has no choices"))
	}

	return parseDecision(resp.Choices[0].Message.Content, candidates)
}

// buildUserPrompt renders the candidates and the conversation as the user
// message. Tickets go in as JSON so the model sees exact ticket_id values.
func buildUserPrompt(candidates []models.Ticket, messageBody string, conversation models.Conversation) (string, error) {
	type candidate struct {
		TicketID string `json:"ticket_id"`
		Title    string `json:"title"`
		Summary  string `json:"summary"`
	}
	list := make([]candidate, 0, len(candidates))
	for _, t := range candidates {
		list = append(list, candidate{TicketID: t.TicketID, Title: t.Title, Summary: t.Summary})
	}
	rendered, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Existing tickets:\n")
	b.Write(rendered)
	b.WriteString("\n\nConversation subject: ")
	b.WriteString(conversation.Subject)
	if conversation.Preview != "" {
		b.WriteString("\nConversation preview: ")
		b.WriteString(conversation.Preview)
	}
	b.WriteString("\n\nNew message:\n")
	b.WriteString(messageBody)
	return b.String(), nil
}

// parseDecision decodes and validates the model's answer. Unknown ticket
// ids, missing fields and malformed slugs are parse failures — the operator
// retries the step rather than the pipeline guessing.
func parseDecision(content string, candidates []models.Ticket) (models.AIDecision, error) {
	raw := extractJSON(content)
	if raw == "" {
		return models.AIDecision{}, models.NewParseFailure(models.ServiceLLM,
			fmt.Errorf("no JSON object in response: %.200s", content))
	}

	var wire wireDecision
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return models.AIDecision{}, models.NewParseFailure(models.ServiceLLM, err)
	}

	switch wire.Action {
	case "existing":
		for _, t := range candidates {
			if t.TicketID == wire.TicketID {
				return models.ExistingTicketDecision(t), nil
			}
		}
		return models.AIDecision{}, models.NewParseFailure(models.ServiceLLM,
			fmt.Errorf("decision names unknown ticket %q", wire.TicketID))
	case "new":
		slug := strings.ToLower(strings.TrimSpace(wire.Slug))
		if wire.Title == "" || wire.Summary == "" || slug == "" {
			return models.AIDecision{}, models.NewParseFailure(models.ServiceLLM,
				errors.New("new-ticket decision missing title, summary or slug"))
		}
		if !slugPattern.MatchString(slug) {
			return models.AIDecision{}, models.NewParseFailure(models.ServiceLLM,
				fmt.Errorf("slug %q is not URL-safe", wire.Slug))
		}
		return models.NewTicketDecision(models.NewTicketSpec{
			Title:   wire.Title,
			Summary: wire.Summary,
			Slug:    slug,
		}), nil
	default:
		return models.AIDecision{}, models.NewParseFailure(models.ServiceLLM,
			fmt.Errorf("unknown action %q", wire.Action))
	}
}

// classify maps SDK errors to the typed error kinds.
func (c *Client) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewTimeout(models.ServiceLLM, c.timeout)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return models.NewRemoteFailure(models.ServiceLLM, apiErr.HTTPStatusCode, apiErr.Message)
	}
	return models.NewTransportFailure(models.ServiceLLM, err)
}
