package events

import (
	"log/slog"

	"github.com/jumpdesk/deskbridge/pkg/models"
)

// Publisher turns coordinator snapshots into request.updated messages and
// fans them out: once on the Request's own channel, once on the global
// channel. It satisfies the coordinator's WirePublisher.
type Publisher struct {
	manager *ConnectionManager
	logger  *slog.Logger
}

// NewPublisher creates a publisher over the connection manager.
func NewPublisher(manager *ConnectionManager) *Publisher {
	return &Publisher{
		manager: manager,
		logger:  slog.Default().With("component", "events"),
	}
}

// PublishRequestUpdated broadcasts one snapshot. Delivery is best-effort —
// a failed or slow client never reaches back into the pipeline.
func (p *Publisher) PublishRequestUpdated(req *models.Request) {
	payload, err := requestUpdatedPayload(req)
	if err != nil {
		p.logger.Error("Failed to marshal request snapshot",
			"request_id", req.ID, "error", err)
		return
	}
	p.manager.Broadcast(RequestChannel(req.ID), payload)
	p.manager.Broadcast(GlobalRequestsChannel, payload)
}
