// Package realtime fans out item change notifications to per-list subscribers.
package realtime

import (
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/grocerly/internal/model"
)

// SubscriberBuffer is the per-subscriber queue length.
const SubscriberBuffer = 16

// OpResync marks a synthetic event telling clients to refetch the change feed.
const OpResync = "resync"

// Hub routes changes to subscribers of the affected list.
// Sends never block: a full subscriber loses the event and its next
// delivered event carries Resync=true.
type Hub struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[*Subscription]struct{}
	log  *zap.Logger
}

// Subscription is a live feed for one list. Read from C until it is closed.
type Subscription struct {
	C <-chan model.Change

	ch      chan model.Change
	listID  uuid.UUID
	hub     *Hub
	dropped bool // guarded by hub.mu
	closed  bool // guarded by hub.mu
}

// NewHub constructs an empty hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{subs: make(map[uuid.UUID]map[*Subscription]struct{}), log: log}
}

// Subscribe registers a subscriber for listID.
func (h *Hub) Subscribe(listID uuid.UUID) *Subscription {
	ch := make(chan model.Change, SubscriberBuffer)
	s := &Subscription{C: ch, ch: ch, listID: listID, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[listID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[listID] = set
	}
	set[s] = struct{}{}
	return s
}

// Close unregisters the subscription and closes C. Safe to call twice.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if set, ok := h.subs[s.listID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.listID)
		}
	}
	close(s.ch)
}

// Publish delivers c to every subscriber of c.ListID.
func (h *Hub) Publish(c model.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[c.ListID] {
		h.deliver(s, c)
	}
}

// ResyncAll tells every subscriber to refetch, e.g. after the notification
// connection was re-established and events may have been missed.
func (h *Hub) ResyncAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for listID, set := range h.subs {
		for s := range set {
			h.deliver(s, model.Change{ListID: listID, Op: OpResync, Resync: true})
		}
	}
}

// Subscribers returns the number of subscribers of listID.
func (h *Hub) Subscribers(listID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[listID])
}

func (h *Hub) deliver(s *Subscription, c model.Change) {
	if s.dropped {
		c.Resync = true
	}
	select {
	case s.ch <- c:
		s.dropped = false
	default:
		if !s.dropped {
			h.log.Debug("subscriber lagging, dropping events", zap.String("list_id", s.listID.String()))
		}
		s.dropped = true
	}
}
