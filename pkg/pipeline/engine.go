package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jumpdesk/deskbridge/pkg/models"
	"github.com/jumpdesk/deskbridge/pkg/observability"
)

// SnapshotPublisher receives the Request after every state change. The
// coordinator implements it; a nil publisher disables broadcasting (tests,
// library use).
type SnapshotPublisher interface {
	BroadcastUpdate(req *models.Request)
}

// PublisherFunc adapts a function to SnapshotPublisher, in the
// http.HandlerFunc style. Lets the wiring layer break the engine ↔
// coordinator construction cycle with a closure.
type PublisherFunc func(req *models.Request)

func (f PublisherFunc) BroadcastUpdate(req *models.Request) { f(req) }

// Engine executes Requests: steps run strictly sequentially, each step's
// result feeds later steps, and the run halts on the first failure. A
// Request is only ever run by one goroutine at a time — the coordinator
// enforces that.
type Engine struct {
	adapters  Adapters
	publisher SnapshotPublisher
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewEngine creates an engine. publisher and metrics may be nil.
func NewEngine(adapters Adapters, publisher SnapshotPublisher, metrics *observability.Metrics) *Engine {
	return &Engine{
		adapters:  adapters,
		publisher: publisher,
		metrics:   metrics,
		logger:    slog.Default().With("component", "pipeline"),
	}
}

// Run executes req until every step completed or one failed. Completed
// steps are skipped on entry, which is what makes retry re-entry safe:
// their stored results feed later steps without re-doing external work.
func (e *Engine) Run(ctx context.Context, req *models.Request) {
	e.metrics.RunStarted()
	req.Status = models.StatusRunning
	req.Touch()
	e.broadcast(req)

	for _, stepType := range models.StepOrder {
		step := req.Step(stepType)
		if step.Status == models.StatusCompleted {
			continue
		}

		started := time.Now()
		step.Status = models.StatusRunning
		step.StartedAt = &started
		req.Touch()
		e.broadcast(req)

		result, err := e.runStep(ctx, req, stepType)

		completed := time.Now()
		step.CompletedAt = &completed
		e.metrics.ObserveStep(string(stepType), completed.Sub(started))

		if err != nil {
			step.Status = models.StatusFailed
			step.Error = err.Error()
			req.Touch()
			e.broadcast(req)
			e.metrics.StepFailed(string(stepType), string(models.KindOf(err)))
			e.logger.Warn("Step failed",
				"request_id", req.ID, "step", stepType, "error", err)
			break
		}

		step.Status = models.StatusCompleted
		step.Result = result
		req.Touch()
		e.broadcast(req)
	}

	req.Status = models.StatusCompleted
	for _, stepType := range models.StepOrder {
		if req.Step(stepType).Status == models.StatusFailed {
			req.Status = models.StatusFailed
			break
		}
	}
	req.Touch()
	e.broadcast(req)
	e.metrics.RunFinished(string(req.Status))
	e.logger.Info("Request finished", "request_id", req.ID, "status", req.Status)
}

// runStep dispatches one step and contains its failures: adapter errors
// return as-is, panics become errors. The Request must survive anything a
// step does — the operator repairs it via retry.
func (e *Engine) runStep(ctx context.Context, req *models.Request, stepType models.StepType) (result models.StepResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("step panicked: %v", r)
		}
	}()

	switch stepType {
	case models.StepCheckExistingTickets:
		return e.checkExistingTickets(ctx)
	case models.StepAIAnalysis:
		return e.aiAnalysis(ctx, req)
	case models.StepCreateOrUpdateTracker:
		return e.createOrUpdateTracker(ctx, req)
	case models.StepMaybeCreateChatChannel:
		return e.maybeCreateChatChannel(ctx, req)
	case models.StepMaybeUpdateTrackerWithChat:
		return e.maybeUpdateTrackerWithChat(ctx, req)
	case models.StepAddOperatorsToChat:
		return e.addOperatorsToChat(ctx, req)
	default:
		return nil, models.NewMissingImplementation(stepType)
	}
}

func (e *Engine) broadcast(req *models.Request) {
	if e.publisher == nil {
		return
	}
	e.publisher.BroadcastUpdate(req)
}

// ────────────────────────────────────────────────────────────
// Prior-step result accessors
// ────────────────────────────────────────────────────────────

// Readers return missing_implementation tagged with the step doing the
// reading: a wrong-typed or absent prior result means its preconditions
// were never implemented for this path.

func priorTickets(req *models.Request, reader models.StepType) ([]models.Ticket, error) {
	res, ok := req.Step(models.StepCheckExistingTickets).Result.(models.TicketListResult)
	if !ok {
		return nil, models.NewMissingImplementation(reader)
	}
	return res.Tickets, nil
}

func priorDecision(req *models.Request, reader models.StepType) (models.AIDecision, error) {
	res, ok := req.Step(models.StepAIAnalysis).Result.(models.DecisionResult)
	if !ok {
		return models.AIDecision{}, models.NewMissingImplementation(reader)
	}
	return res.Decision, nil
}

func priorTicket(req *models.Request, from, reader models.StepType) (models.Ticket, error) {
	res, ok := req.Step(from).Result.(models.TicketResult)
	if !ok {
		return models.Ticket{}, models.NewMissingImplementation(reader)
	}
	return res.Ticket, nil
}

func priorChannel(req *models.Request, reader models.StepType) (models.ChannelInfo, error) {
	res, ok := req.Step(models.StepMaybeCreateChatChannel).Result.(models.ChannelResult)
	if !ok {
		return models.ChannelInfo{}, models.NewMissingImplementation(reader)
	}
	return res.Channel, nil
}
