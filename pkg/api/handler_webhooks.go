package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jumpdesk/deskbridge/pkg/models"
)

// notifyTimeout bounds the detached done-notification fan-out. The webhook
// response never waits on it.
const notifyTimeout = time.Minute

// helpdeskWebhook is the inbound conversation event.
type helpdeskWebhook struct {
	Type         string `json:"type"`
	Conversation struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"conversation"`
	Message struct {
		Body string `json:"body"`
	} `json:"message"`
}

// handleHelpdeskWebhook accepts a new conversation event and starts a
// pipeline run for it.
func (s *Server) handleHelpdeskWebhook(c *gin.Context) {
	var payload helpdeskWebhook
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}
	if payload.Conversation.ID == "" || payload.Conversation.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id and url are required"})
		return
	}

	req := models.NewRequest(payload.Conversation.ID, payload.Conversation.URL, payload.Message.Body)
	if err := s.requests.StartRequest(req); err != nil {
		status, message := mapCoordinatorError(err)
		c.JSON(status, gin.H{"error": message})
		return
	}

	s.logger.Info("Accepted helpdesk webhook",
		"request_id", req.ID, "conversation_id", payload.Conversation.ID)
	c.JSON(http.StatusAccepted, gin.H{"request_id": req.ID})
}

// trackerWebhook is the tracker's property-change event. A payload carrying
// challenge is the subscription handshake.
type trackerWebhook struct {
	Challenge string `json:"challenge"`
	Type      string `json:"type"`
	Entity    struct {
		ID string `json:"id"`
	} `json:"entity"`
	Data struct {
		UpdatedProperties []string `json:"updated_properties"`
	} `json:"data"`
	Timestamp     string `json:"timestamp"`
	AttemptNumber int    `json:"attempt_number"`
}

// handleTrackerWebhook reacts to the done checkbox being set on a tracker
// page and kicks off the completion notification.
func (s *Server) handleTrackerWebhook(c *gin.Context) {
	var payload trackerWebhook
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}

	// Subscription handshake: echo the challenge, touch nothing else.
	if payload.Challenge != "" {
		c.JSON(http.StatusOK, gin.H{"challenge": payload.Challenge})
		return
	}

	if payload.Type != "page.properties_updated" {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "ignored: event type " + payload.Type})
		return
	}
	if !containsProperty(payload.Data.UpdatedProperties, s.donePropertyID) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "ignored: done property not updated"})
		return
	}
	if payload.Entity.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entity id is required"})
		return
	}

	done, err := s.tracker.GetDoneState(c.Request.Context(), payload.Entity.ID, s.donePropertyID)
	if err != nil {
		// The tracker redelivers on failure responses, so a read error on a
		// redelivery means the state endpoint is degraded; the property
		// update itself is the stronger signal then.
		if payload.AttemptNumber <= 1 {
			s.logger.Warn("Done-state lookup failed on first delivery, skipping event",
				"tracker_id", payload.Entity.ID, "error", err)
			c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "skipped: done state unavailable"})
			return
		}
		s.logger.Warn("Done-state lookup failed on redelivery, assuming done",
			"tracker_id", payload.Entity.ID, "attempt", payload.AttemptNumber, "error", err)
		done = true
	}
	if !done {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "ignored: ticket not done"})
		return
	}

	ticket, err := s.tracker.GetTicket(c.Request.Context(), payload.Entity.ID)
	if err != nil {
		s.logger.Error("Failed to fetch ticket for done notification",
			"tracker_id", payload.Entity.ID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch ticket"})
		return
	}

	// Detached: the webhook response must not wait on chat and helpdesk
	// round-trips.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		_ = s.notifier.NotifyDone(ctx, ticket)
	}()

	s.logger.Info("Ticket marked done, notification dispatched",
		"tracker_id", payload.Entity.ID, "ticket_id", ticket.TicketID)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "notification dispatched for " + ticket.TicketID})
}

func containsProperty(properties []string, id string) bool {
	for _, p := range properties {
		if p == id {
			return true
		}
	}
	return false
}
