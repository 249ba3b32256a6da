// Package feed is the realtime snapshot feed.
//
// Subscribers receive full event documents, never diffs. Delivery is at
// least once: a redelivery carries the DeliveryID of the original. A new
// subscriber first receives the current document for its key, or nil when
// the event has none yet.
package feed

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/matchbar/pkg/logger"
)

// Delivery is one push for one subscription.
type Delivery struct {
	EventKey       string
	SubscriptionID string
	DeliveryID     string
	Payload        []byte // nil when the event has no document
}

// Handle identifies a subscription.
type Handle struct {
	EventKey string
	ID       string
}

// Callback receives deliveries for one subscription, in publish order.
type Callback func(Delivery)

// Feed is the subscription side of the realtime collaborator.
type Feed interface {
	Subscribe(ctx context.Context, eventKey string, cb Callback) (Handle, error)
	Unsubscribe(h Handle)
}

// Memory is an in-process Feed. Publishers push documents with Publish.
type Memory struct {
	mu      sync.Mutex
	subs    map[string]map[string]*subscription // event key -> subscription id
	current map[string]published
	closed  bool
	log     logger.Logger
}

type published struct {
	deliveryID string
	payload    []byte
}

// Option configures a Memory feed.
type Option func(*Memory)

// WithLogger sets the feed logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Memory) {
		if l != nil {
			m.log = l
		}
	}
}

// NewMemory creates an empty feed.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		subs:    make(map[string]map[string]*subscription),
		current: make(map[string]published),
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers cb for eventKey and queues the current document.
func (m *Memory) Subscribe(ctx context.Context, eventKey string, cb Callback) (Handle, error) {
	if strings.TrimSpace(eventKey) == "" {
		return Handle{}, ErrInvalidKey
	}
	if cb == nil {
		return Handle{}, ErrNilCallback
	}
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Handle{}, ErrClosed
	}

	h := Handle{EventKey: eventKey, ID: uuid.NewString()}
	sub := newSubscription(h, cb)
	if m.subs[eventKey] == nil {
		m.subs[eventKey] = make(map[string]*subscription)
	}
	m.subs[eventKey][h.ID] = sub

	cur, ok := m.current[eventKey]
	if !ok {
		cur = published{deliveryID: uuid.NewString()}
	}
	sub.push(Delivery{EventKey: eventKey, SubscriptionID: h.ID, DeliveryID: cur.deliveryID, Payload: cur.payload})
	go sub.run()

	m.log.Debug(ctx, "subscribed", logger.String("event_key", eventKey), logger.String("subscription_id", h.ID))
	return h, nil
}

// Unsubscribe stops deliveries for h. Unknown handles are ignored.
// Pending deliveries for h are discarded.
func (m *Memory) Unsubscribe(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := m.subs[h.EventKey]
	sub, ok := subs[h.ID]
	if !ok {
		return
	}
	delete(subs, h.ID)
	if len(subs) == 0 {
		delete(m.subs, h.EventKey)
	}
	sub.stop()
}

// Publish replaces the document for eventKey and pushes it to every
// subscriber. It returns the generated delivery id.
func (m *Memory) Publish(eventKey string, payload []byte) (string, error) {
	id := uuid.NewString()
	return id, m.PublishDelivery(eventKey, id, payload)
}

// PublishDelivery is Publish with a caller supplied delivery id. Publishing
// the same id twice models a redelivery.
func (m *Memory) PublishDelivery(eventKey, deliveryID string, payload []byte) error {
	if strings.TrimSpace(eventKey) == "" {
		return ErrInvalidKey
	}
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}
	if payload != nil {
		payload = append([]byte(nil), payload...)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.current[eventKey] = published{deliveryID: deliveryID, payload: payload}
	for id, sub := range m.subs[eventKey] {
		sub.push(Delivery{EventKey: eventKey, SubscriptionID: id, DeliveryID: deliveryID, Payload: payload})
	}
	return nil
}

// Subscribers returns the number of live subscriptions for eventKey.
func (m *Memory) Subscribers(eventKey string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[eventKey])
}

// Close stops every subscription. Later calls fail with ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for key, subs := range m.subs {
		for _, sub := range subs {
			sub.stop()
		}
		delete(m.subs, key)
	}
	return nil
}
