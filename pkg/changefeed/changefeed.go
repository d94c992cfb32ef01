// Package changefeed fans bare row-change notifications out to subscribers.
//
// A notification only says that rows of an entity changed and how; it never
// carries the row itself. Subscribers are expected to re-read whatever they
// care about.
package changefeed

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Op is the kind of row operation that produced a change
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// ParseOp converts a trigger operation name into an Op
func ParseOp(s string) (Op, error) {
	switch op := Op(strings.ToUpper(s)); op {
	case OpInsert, OpUpdate, OpDelete:
		return op, nil
	}
	return "", fmt.Errorf("unknown change operation %q", s)
}

// Change is a single notification
type Change struct {
	Entity string `json:"entity"`
	Op     Op     `json:"op"`
}

// ErrClosed is returned when subscribing to a hub that has been closed
var ErrClosed = errors.New("change feed closed")

// subscriptionBuffer bounds pending notifications per subscriber. Once a
// subscriber has this many unread signals further ones are dropped: the
// pending signal already tells it to re-read.
const subscriptionBuffer = 16

// Hub delivers every published change to each matching subscriber, including
// the subscriber that caused the write.
type Hub struct {
	logger *zap.Logger

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger: logger,
		subs:   make(map[uint64]*Subscription),
	}
}

// Subscribe registers interest in changes to entity. With no ops every
// operation kind matches.
func (h *Hub) Subscribe(entity string, ops ...Op) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}

	sub := &Subscription{
		id:     h.nextID,
		entity: entity,
		ops:    make(map[Op]bool, len(ops)),
		ch:     make(chan Change, subscriptionBuffer),
		hub:    h,
	}
	for _, op := range ops {
		sub.ops[op] = true
	}
	h.subs[sub.id] = sub
	h.nextID++

	h.logger.Debug("Change feed subscription added",
		zap.String("entity", entity),
		zap.Int("subscribers", len(h.subs)))

	return sub, nil
}

// Publish delivers the change to every matching subscriber without blocking
func (h *Hub) Publish(change Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	for _, sub := range h.subs {
		if !sub.matches(change) {
			continue
		}
		select {
		case sub.ch <- change:
		default:
			h.logger.Debug("Subscriber has pending changes, dropping duplicate signal",
				zap.String("entity", change.Entity))
		}
	}
}

// SubscriberCount returns the number of live subscriptions
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Drop ends every current subscription but keeps the hub open, so later
// subscribers start on a fresh feed. Used when the transport behind the hub
// is lost and may come back.
func (h *Hub) Drop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.endSubscriptions()
}

// Close ends every subscription and refuses new ones. Channels are closed
// so readers can tell the feed ended.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	h.endSubscriptions()
}

// endSubscriptions closes and forgets every subscription. Callers hold mu.
func (h *Hub) endSubscriptions() {
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub.id]; !ok {
		return
	}
	delete(h.subs, sub.id)
	close(sub.ch)
}

// Subscription is one subscriber's view of the hub
type Subscription struct {
	id     uint64
	entity string
	ops    map[Op]bool
	ch     chan Change
	hub    *Hub
	once   sync.Once
}

// C returns the notification channel. It is closed when the subscription or
// the hub is closed.
func (s *Subscription) C() <-chan Change {
	return s.ch
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

func (s *Subscription) matches(change Change) bool {
	if change.Entity != s.entity {
		return false
	}
	return len(s.ops) == 0 || s.ops[change.Op]
}
