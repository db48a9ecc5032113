// Package events delivers Request snapshots to WebSocket clients. Clients
// subscribe to channels; every pipeline state change is pushed as a
// request.updated message, and a fresh subscriber immediately receives the
// current snapshot so it never has to poll first.
package events

import (
	"encoding/json"

	"github.com/jumpdesk/deskbridge/pkg/models"
)

// Server → client message types.
const (
	// EventTypeRequestUpdated carries a full Request snapshot. Sent on every
	// state change and as the catch-up message right after subscribing.
	EventTypeRequestUpdated = "request.updated"
)

// GlobalRequestsChannel carries every Request's updates. The request list
// page subscribes to this.
const GlobalRequestsChannel = "requests"

// RequestChannel returns the channel name for one Request's updates.
// Format: "request:{request_id}"
func RequestChannel(requestID string) string {
	return "request:" + requestID
}

// ClientMessage is the JSON structure for client → server WebSocket messages.
type ClientMessage struct {
	Action  string `json:"action"`            // "subscribe", "unsubscribe", "ping"
	Channel string `json:"channel,omitempty"` // e.g. "requests" or "request:abc-123"
}

// requestUpdatedPayload builds the wire form of a request.updated message.
func requestUpdatedPayload(req *models.Request) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type":    EventTypeRequestUpdated,
		"request": req,
	})
}
