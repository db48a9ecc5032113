// Package coordinator is the process-wide registry of active Requests. It
// stores immutable snapshots, fans them out to subscribers on every state
// change, dispatches pipeline runs onto bounded workers, and re-runs
// Requests on operator retry.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jumpdesk/deskbridge/pkg/models"
	"github.com/jumpdesk/deskbridge/pkg/observability"
)

var (
	// ErrNotFound — no Request with that id in the registry.
	ErrNotFound = errors.New("request not found")
	// ErrAlreadyRegistered — a Request with that id is already registered.
	ErrAlreadyRegistered = errors.New("request already registered")
	// ErrRetryConflict — retry was asked for a Request that is not in a
	// terminal state. Retry is the recovery primitive after completion or
	// failure; a second concurrent run would break the one-worker rule.
	ErrRetryConflict = errors.New("request is not in a terminal state")
	// ErrShuttingDown — the coordinator no longer accepts work.
	ErrShuttingDown = errors.New("coordinator is shutting down")
)

// Runner executes a Request to a terminal state. Implemented by
// pipeline.Engine.
type Runner interface {
	Run(ctx context.Context, req *models.Request)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, req *models.Request)

func (f RunnerFunc) Run(ctx context.Context, req *models.Request) { f(ctx, req) }

// WirePublisher forwards snapshots to WebSocket clients. Implemented by
// events.Publisher; may be nil.
type WirePublisher interface {
	PublishRequestUpdated(req *models.Request)
}

// Coordinator owns the Request registry and the subscription bus.
//
// Concurrency model: the live Request object belongs to its single pipeline
// worker. Everything stored, listed or delivered here is an immutable Clone
// taken at broadcast time, so readers see either the pre- or post-update
// snapshot, never a torn one.
type Coordinator struct {
	engine    Runner
	publisher WirePublisher
	metrics   *observability.Metrics
	logger    *slog.Logger

	mu         sync.RWMutex
	requests   map[string]*models.Request
	subs       map[string]map[*Subscription]bool
	globalSubs map[*Subscription]bool
	closed     bool

	// sem bounds concurrent pipeline runs; wg tracks them for shutdown.
	sem       chan struct{}
	wg        sync.WaitGroup
	runCtx    context.Context
	runCancel context.CancelFunc
}

// New creates a coordinator dispatching onto at most maxConcurrent workers.
// publisher and metrics may be nil.
func New(engine Runner, publisher WirePublisher, metrics *observability.Metrics, maxConcurrent int) *Coordinator {
	runCtx, runCancel := context.WithCancel(context.Background())
	return &Coordinator{
		engine:     engine,
		publisher:  publisher,
		metrics:    metrics,
		logger:     slog.Default().With("component", "coordinator"),
		requests:   make(map[string]*models.Request),
		subs:       make(map[string]map[*Subscription]bool),
		globalSubs: make(map[*Subscription]bool),
		sem:        make(chan struct{}, maxConcurrent),
		runCtx:     runCtx,
		runCancel:  runCancel,
	}
}

// Register stores the initial snapshot of a Request.
func (c *Coordinator) Register(req *models.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrShuttingDown
	}
	if _, exists := c.requests[req.ID]; exists {
		return ErrAlreadyRegistered
	}
	c.requests[req.ID] = req.Clone()
	return nil
}

// Get returns the stored snapshot for id.
func (c *Coordinator) Get(id string) (*models.Request, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	req, ok := c.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return req, nil
}

// List returns every stored snapshot, newest first.
func (c *Coordinator) List() []*models.Request {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*models.Request, 0, len(c.requests))
	for _, req := range c.requests {
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// StartRequest registers req and dispatches its pipeline run.
func (c *Coordinator) StartRequest(req *models.Request) error {
	if err := c.Register(req); err != nil {
		return err
	}
	return c.dispatch(req)
}

// Retry resets req from stepType (or entirely when stepType is nil) and
// re-runs it. Only legal from a terminal state. Returns the snapshot the
// run starts from.
func (c *Coordinator) Retry(id string, stepType *models.StepType) (*models.Request, error) {
	c.mu.Lock()
	stored, ok := c.requests[id]
	if !ok {
		c.mu.Unlock()
		return nil, ErrNotFound
	}
	if !stored.Terminal() {
		c.mu.Unlock()
		return nil, ErrRetryConflict
	}

	// The worker gets its own copy; the registry keeps snapshots only.
	live := stored.Clone()
	if stepType != nil {
		if err := live.ResetFrom(*stepType); err != nil {
			c.mu.Unlock()
			return nil, err
		}
	} else {
		live.ResetAll()
	}
	snapshot := live.Clone()
	c.requests[id] = snapshot
	c.mu.Unlock()

	c.deliver(snapshot)
	if err := c.dispatch(live); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// BroadcastUpdate stores an immutable snapshot of req (if newer than the
// stored one) and delivers it to subscribers and the wire publisher.
// Called by the engine after every state change.
func (c *Coordinator) BroadcastUpdate(req *models.Request) {
	snapshot := req.Clone()

	c.mu.Lock()
	stored, ok := c.requests[snapshot.ID]
	if ok && stored.Revision >= snapshot.Revision {
		// Stale or duplicate — the registry already moved past it.
		c.mu.Unlock()
		return
	}
	c.requests[snapshot.ID] = snapshot
	c.mu.Unlock()

	c.deliver(snapshot)
}

// deliver fans a snapshot out to per-request and global subscribers and the
// WebSocket publisher. Best-effort: a slow sink drops its oldest snapshot,
// never blocks the pipeline.
func (c *Coordinator) deliver(snapshot *models.Request) {
	c.mu.RLock()
	sinks := make([]*Subscription, 0, len(c.subs[snapshot.ID])+len(c.globalSubs))
	for sub := range c.subs[snapshot.ID] {
		sinks = append(sinks, sub)
	}
	for sub := range c.globalSubs {
		sinks = append(sinks, sub)
	}
	c.mu.RUnlock()

	for _, sub := range sinks {
		sub.deliver(snapshot)
	}
	if c.publisher != nil {
		c.publisher.PublishRequestUpdated(snapshot)
	}
}

// dispatch runs req on a worker goroutine, bounded by the semaphore.
func (c *Coordinator) dispatch(req *models.Request) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrShuttingDown
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		select {
		case c.sem <- struct{}{}:
		case <-c.runCtx.Done():
			c.logger.Warn("Dropping queued run on shutdown", "request_id", req.ID)
			return
		}
		defer func() { <-c.sem }()
		c.engine.Run(c.runCtx, req)
	}()
	return nil
}

// Stop refuses new work, waits for in-flight runs until ctx expires, then
// cancels their context.
func (c *Coordinator) Stop(ctx context.Context) {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		c.logger.Info("All pipeline runs drained")
	case <-ctx.Done():
		c.logger.Warn("Drain deadline exceeded, cancelling in-flight runs")
	}
	c.runCancel()
	c.wg.Wait()
}

// evictExpired removes terminal Requests whose last update is older than
// retention. Returns how many were evicted.
func (c *Coordinator) evictExpired(now time.Time, retention time.Duration) int {
	cutoff := now.Add(-retention)
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := 0
	for id, req := range c.requests {
		if req.Terminal() && req.UpdatedAt.Before(cutoff) {
			delete(c.requests, id)
			evicted++
		}
	}
	return evicted
}
