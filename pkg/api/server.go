// Package api is the HTTP surface of the service: inbound webhooks, the
// operator REST API, the WebSocket endpoint, health and metrics.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jumpdesk/deskbridge/pkg/events"
	"github.com/jumpdesk/deskbridge/pkg/models"
)

// RequestService is the coordinator as seen by the HTTP layer.
type RequestService interface {
	Get(id string) (*models.Request, error)
	List() []*models.Request
	StartRequest(req *models.Request) error
	Retry(id string, step *models.StepType) (*models.Request, error)
}

// TicketSource reads tracker state for the completion webhook. Implemented
// by tracker.Client.
type TicketSource interface {
	GetTicket(ctx context.Context, trackerID string) (models.Ticket, error)
	GetDoneState(ctx context.Context, trackerID, propertyID string) (bool, error)
}

// DoneNotifier announces completed tickets. Implemented by
// notifier.Notifier.
type DoneNotifier interface {
	NotifyDone(ctx context.Context, t models.Ticket) error
}

// Server wires the HTTP routes to the coordinator, the tracker and the
// notifier.
type Server struct {
	requests    RequestService
	tracker     TicketSource
	notifier    DoneNotifier
	connManager *events.ConnectionManager
	// metricsHandler serves GET /metrics; nil disables the route.
	metricsHandler http.Handler
	// donePropertyID is the tracker property the completion webhook watches.
	donePropertyID string
	logger         *slog.Logger
}

// NewServer creates the API server. connManager and metricsHandler may be
// nil; the corresponding routes then report unavailable / are absent.
func NewServer(requests RequestService, tracker TicketSource, notifier DoneNotifier, connManager *events.ConnectionManager, metricsHandler http.Handler, donePropertyID string) *Server {
	return &Server{
		requests:       requests,
		tracker:        tracker,
		notifier:       notifier,
		connManager:    connManager,
		metricsHandler: metricsHandler,
		donePropertyID: donePropertyID,
		logger:         slog.Default().With("component", "api"),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(s.requestLogger(), gin.Recovery())

	router.POST("/webhooks/helpdesk", s.handleHelpdeskWebhook)
	router.POST("/webhooks/tracker", s.handleTrackerWebhook)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/requests", s.handleListRequests)
		v1.GET("/requests/:id", s.handleGetRequest)
		v1.POST("/requests/:id/retry", s.handleRetryRequest)
	}

	router.GET("/ws", s.handleWS)
	router.GET("/health", s.handleHealth)
	if s.metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(s.metricsHandler))
	}

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
