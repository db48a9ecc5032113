package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jumpdesk/deskbridge/pkg/coordinator"
	"github.com/jumpdesk/deskbridge/pkg/models"
)

func helpdeskPayload(id, url, body string) map[string]any {
	return map[string]any{
		"type":         "message.created",
		"conversation": map[string]string{"id": id, "url": url},
		"message":      map[string]string{"body": body},
	}
}

func TestHelpdeskWebhookStartsRequest(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/webhooks/helpdesk",
		helpdeskPayload("conv-42", "https://app.helpdesk.io/a/apps/x/conversations/42", "login broken"))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, f.requests.started, 1)
	started := f.requests.started[0]
	assert.Equal(t, "conv-42", started.SourceConversationID)
	assert.Equal(t, "https://app.helpdesk.io/a/apps/x/conversations/42", started.SourceConversationURL)
	assert.Equal(t, "login broken", started.MessageBody)

	body := decodeBody(t, rec)
	assert.Equal(t, started.ID, body["request_id"])
}

func TestHelpdeskWebhookValidation(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/webhooks/helpdesk",
		helpdeskPayload("", "https://app.helpdesk.io/a/apps/x/conversations/42", "x"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/webhooks/helpdesk",
		helpdeskPayload("conv-42", "", "x"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, f.requests.started)
}

func TestHelpdeskWebhookDuringShutdown(t *testing.T) {
	f := newServerFixture(t)
	f.requests.startErr = coordinator.ErrShuttingDown

	rec := f.do(t, http.MethodPost, "/webhooks/helpdesk",
		helpdeskPayload("conv-42", "https://app.helpdesk.io/a/apps/x/conversations/42", "x"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func trackerPayload(eventType, entityID string, properties []string, attempt int) map[string]any {
	return map[string]any{
		"type":           eventType,
		"entity":         map[string]string{"id": entityID},
		"data":           map[string]any{"updated_properties": properties},
		"timestamp":      "2026-08-25T10:00:00Z",
		"attempt_number": attempt,
	}
}

func TestTrackerWebhookChallenge(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/webhooks/tracker", map[string]string{"challenge": "abc-123"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"challenge": "abc-123"}, decodeBody(t, rec))
	assert.Empty(t, f.tracker.doneStateFor, "a challenge must not touch the tracker")
}

func TestTrackerWebhookNotifiesWhenDone(t *testing.T) {
	f := newServerFixture(t)
	f.tracker.done = true
	f.tracker.ticket = models.Ticket{TicketID: "JMP-10", TrackerID: "page-10"}

	rec := f.do(t, http.MethodPost, "/webhooks/tracker",
		trackerPayload("page.properties_updated", "page-10", []string{"other", "prop-done"}, 1))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	ticket := waitForNotification(t, f.notifier)
	assert.Equal(t, "JMP-10", ticket.TicketID)
}

func TestTrackerWebhookIgnoresOtherEvents(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/webhooks/tracker",
		trackerPayload("page.created", "page-10", []string{"prop-done"}, 1))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.tracker.doneStateFor)

	rec = f.do(t, http.MethodPost, "/webhooks/tracker",
		trackerPayload("page.properties_updated", "page-10", []string{"unrelated"}, 1))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.tracker.doneStateFor)

	select {
	case <-f.notifier.notified:
		t.Fatal("no notification expected")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTrackerWebhookIgnoresNotDone(t *testing.T) {
	f := newServerFixture(t)
	f.tracker.done = false

	rec := f.do(t, http.MethodPost, "/webhooks/tracker",
		trackerPayload("page.properties_updated", "page-10", []string{"prop-done"}, 1))
	assert.Equal(t, http.StatusOK, rec.Code)

	select {
	case <-f.notifier.notified:
		t.Fatal("no notification expected for an unchecked box")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTrackerWebhookDoneStateFailure(t *testing.T) {
	t.Run("first delivery skips", func(t *testing.T) {
		f := newServerFixture(t)
		f.tracker.doneErr = assertAnError
		f.tracker.ticket = models.Ticket{TicketID: "JMP-11"}

		rec := f.do(t, http.MethodPost, "/webhooks/tracker",
			trackerPayload("page.properties_updated", "page-11", []string{"prop-done"}, 1))
		assert.Equal(t, http.StatusOK, rec.Code)

		select {
		case <-f.notifier.notified:
			t.Fatal("first delivery with unreadable state must be skipped")
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("redelivery assumes done", func(t *testing.T) {
		f := newServerFixture(t)
		f.tracker.doneErr = assertAnError
		f.tracker.ticket = models.Ticket{TicketID: "JMP-11"}

		rec := f.do(t, http.MethodPost, "/webhooks/tracker",
			trackerPayload("page.properties_updated", "page-11", []string{"prop-done"}, 2))
		assert.Equal(t, http.StatusOK, rec.Code)

		ticket := waitForNotification(t, f.notifier)
		assert.Equal(t, "JMP-11", ticket.TicketID)
	})
}

func TestTrackerWebhookTicketFetchFailure(t *testing.T) {
	f := newServerFixture(t)
	f.tracker.done = true
	f.tracker.ticketErr = assertAnError

	rec := f.do(t, http.MethodPost, "/webhooks/tracker",
		trackerPayload("page.properties_updated", "page-12", []string{"prop-done"}, 1))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
