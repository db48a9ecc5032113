// Package slack is the chat-service adapter: channel provisioning, user
// enumeration, invitations, topics and messages, backed by the slack-go SDK.
package slack

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/jumpdesk/deskbridge/pkg/models"
)

// Client is a thin wrapper around the slack-go SDK that maps SDK errors to
// the typed error kinds the pipeline stores on steps.
type Client struct {
	api *goslack.Client
	// workspaceURL builds channel URLs of the form {workspace}/archives/{ID}.
	workspaceURL string
	// timeout bounds each call; exceeding it surfaces as a timeout error.
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient creates a Slack client. Every call is bounded by timeout.
func NewClient(token, workspaceURL string, timeout time.Duration) *Client {
	return newClient(goslack.New(token), workspaceURL, timeout)
}

// NewClientWithAPIURL creates a Slack client that targets a custom API URL.
// Useful for testing with a mock server.
func NewClientWithAPIURL(token, workspaceURL, apiURL string, timeout time.Duration) *Client {
	return newClient(goslack.New(token, goslack.OptionAPIURL(apiURL)), workspaceURL, timeout)
}

func newClient(api *goslack.Client, workspaceURL string, timeout time.Duration) *Client {
	return &Client{
		api:          api,
		workspaceURL: strings.TrimRight(workspaceURL, "/"),
		timeout:      timeout,
		logger:       slog.Default().With("component", "slack"),
	}
}

// CreateChannel creates a public channel and returns its id and archive URL.
// The caller is responsible for the name format ("{ticket_id}-{slug}",
// lowercased).
func (c *Client) CreateChannel(ctx context.Context, name string) (models.ChannelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	channel, err := c.api.CreateConversationContext(ctx, goslack.CreateConversationParams{
		ChannelName: name,
		IsPrivate:   false,
	})
	if err != nil {
		return models.ChannelInfo{}, c.classify(err)
	}
	return models.ChannelInfo{
		ChannelID: channel.ID,
		URL:       ChannelURL(c.workspaceURL, channel.ID),
	}, nil
}

// ListChannelMembers returns the user ids currently in a channel, following
// pagination cursors to exhaustion.
func (c *Client) ListChannelMembers(ctx context.Context, channelID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var members []string
	params := &goslack.GetUsersInConversationParameters{ChannelID: channelID}
	for {
		page, next, err := c.api.GetUsersInConversationContext(ctx, params)
		if err != nil {
			return nil, c.classify(err)
		}
		members = append(members, page...)
		if next == "" {
			return members, nil
		}
		params.Cursor = next
	}
}

// ListAllUsers enumerates the workspace's users. Deleted accounts and bots
// are dropped — the matcher only ever targets humans.
func (c *Client) ListAllUsers(ctx context.Context) ([]models.ChatUser, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	all, err := c.api.GetUsersContext(ctx)
	if err != nil {
		return nil, c.classify(err)
	}
	users := make([]models.ChatUser, 0, len(all))
	for _, u := range all {
		if u.Deleted || u.IsBot || u.ID == "USLACKBOT" {
			continue
		}
		users = append(users, models.ChatUser{
			ID:    u.ID,
			Email: u.Profile.Email,
			Name:  u.RealName,
		})
	}
	return users, nil
}

// InviteUsers invites users to a channel. Idempotent at this boundary:
// already-member responses are not errors, so retried steps and fresh
// channels can share one call path.
func (c *Client) InviteUsers(ctx context.Context, channelID string, userIDs []string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.api.InviteUsersToConversationContext(ctx, channelID, userIDs...)
	if err != nil && !isAlreadyMember(err) {
		return c.classify(err)
	}
	return nil
}

// SetChannelTopic sets the channel topic.
func (c *Client) SetChannelTopic(ctx context.Context, channelID, topic string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.api.SetTopicOfConversationContext(ctx, channelID, topic); err != nil {
		return c.classify(err)
	}
	return nil
}

// PostMessage posts a plain-text message to a channel.
func (c *Client) PostMessage(ctx context.Context, channelID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, _, err := c.api.PostMessageContext(ctx, channelID, goslack.MsgOptionText(text, false))
	if err != nil {
		return c.classify(err)
	}
	return nil
}

// isAlreadyMember recognises the invite responses that mean the user is in
// the channel already.
func isAlreadyMember(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "already_in_channel") || strings.Contains(msg, "cant_invite_self")
}

// classify maps an SDK error to the typed error kinds. Slack surfaces API
// errors on HTTP 200, so those become remote_failure with the API error
// string as the detail.
func (c *Client) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewTimeout(models.ServiceChat, c.timeout)
	}
	var statusErr goslack.StatusCodeError
	if errors.As(err, &statusErr) {
		return models.NewRemoteFailure(models.ServiceChat, statusErr.Code, statusErr.Error())
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return models.NewTransportFailure(models.ServiceChat, err)
	}
	var rateErr *goslack.RateLimitedError
	if errors.As(err, &rateErr) {
		return models.NewRemoteFailure(models.ServiceChat, http.StatusTooManyRequests, err.Error())
	}
	return models.NewRemoteFailure(models.ServiceChat, http.StatusOK, err.Error())
}
