package coordinator

import "github.com/jumpdesk/deskbridge/pkg/models"

// Subscription is one sink of Request snapshots. Receive from C; Close when
// done. Within one Request, snapshots arrive in Revision order; when the
// buffer fills, the oldest unread snapshot is dropped, so a slow reader
// skips intermediate states but always catches up to the latest.
type Subscription struct {
	// C delivers immutable snapshots. Closed by Close, never by the
	// coordinator.
	C chan *models.Request

	c *Coordinator
	// requestID is empty for a global (all-requests) subscription.
	requestID string
	closed    bool
}

// Subscribe registers a sink for one Request's snapshots. buffer must be at
// least 1. The Request does not need to exist yet — subscribing before
// StartRequest is the race-free order for a caller that just created it.
func (c *Coordinator) Subscribe(requestID string, buffer int) *Subscription {
	sub := &Subscription{
		C:         make(chan *models.Request, max(buffer, 1)),
		c:         c,
		requestID: requestID,
	}
	c.mu.Lock()
	if c.subs[requestID] == nil {
		c.subs[requestID] = make(map[*Subscription]bool)
	}
	c.subs[requestID][sub] = true
	c.mu.Unlock()
	return sub
}

// SubscribeAll registers a sink receiving every Request's snapshots.
func (c *Coordinator) SubscribeAll(buffer int) *Subscription {
	sub := &Subscription{
		C: make(chan *models.Request, max(buffer, 1)),
		c: c,
	}
	c.mu.Lock()
	c.globalSubs[sub] = true
	c.mu.Unlock()
	return sub
}

// Close removes the subscription and closes C. Safe to call once.
func (s *Subscription) Close() {
	s.c.mu.Lock()
	if s.closed {
		s.c.mu.Unlock()
		return
	}
	s.closed = true
	if s.requestID != "" {
		delete(s.c.subs[s.requestID], s)
		if len(s.c.subs[s.requestID]) == 0 {
			delete(s.c.subs, s.requestID)
		}
	} else {
		delete(s.c.globalSubs, s)
	}
	s.c.mu.Unlock()
	close(s.C)
}

// deliver sends a snapshot without ever blocking the broadcaster. On a full
// buffer the oldest snapshot is dropped to make room.
func (s *Subscription) deliver(snapshot *models.Request) {
	s.c.mu.RLock()
	if s.closed {
		s.c.mu.RUnlock()
		return
	}
	defer s.c.mu.RUnlock()

	select {
	case s.C <- snapshot:
		return
	default:
	}
	// Buffer full: drop the oldest and try once more. A concurrent reader
	// may win the race for the slot; dropping the snapshot then is fine,
	// delivery is best-effort.
	select {
	case <-s.C:
		s.c.metrics.SubscriberDropped()
	default:
	}
	select {
	case s.C <- snapshot:
	default:
		s.c.metrics.SubscriberDropped()
	}
}
