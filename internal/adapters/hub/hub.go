package hub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

// Namespace is one of the four logical event spaces on the hub
type Namespace string

const (
	NamespaceDepot   Namespace = "depot"
	NamespaceRoute   Namespace = "route"
	NamespaceVehicle Namespace = "vehicle"
	NamespaceSystem  Namespace = "system"
)

// System event types produced by the core itself
const (
	EventServiceConnected    = "system:service_connected"
	EventServiceDisconnected = "system:service_disconnected"
	EventHealth              = "system:health"
)

// DefaultRequestTimeout bounds correlated request/response exchanges
const DefaultRequestTimeout = 5 * time.Second

// subscriberBuffer sizes each subscriber channel. Publishes never block: a
// full buffer drops the envelope and the drop counter records it.
const subscriberBuffer = 64

// Envelope is the message format shared by every namespace
type Envelope struct {
	ID            string                 `json:"id"`
	Type          string                 `json:"type"`
	Timestamp     time.Time              `json:"timestamp"`
	Source        string                 `json:"source"`
	Data          interface{}            `json:"data"`
	Target        string                 `json:"target,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// Subscription is a live registration for one (namespace, event type) pair
type Subscription struct {
	SubscriberID string
	Namespace    Namespace
	EventType    string
	C            <-chan Envelope

	ch chan Envelope
}

type subscriber struct {
	id string
	ch chan Envelope
}

// waiter is a pending request: responses with its correlation id resolve it,
// but the request envelope itself (matched by id) still fans out normally.
type waiter struct {
	requestID string
	ch        chan Envelope
}

// Hub is the single-process pub/sub fabric: broadcast and targeted delivery
// per (namespace, event type), plus correlated request/response. Delivery is
// at-most-once; a slow subscriber loses envelopes rather than blocking the
// publisher.
type Hub struct {
	mu      sync.RWMutex
	subs    map[Namespace]map[string][]*subscriber
	waiters map[string]*waiter
	clock   shared.Clock
	closed  bool

	published atomic.Int64
	dropped   atomic.Int64
}

// New creates a hub. A nil clock selects the real clock.
func New(clock shared.Clock) *Hub {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Hub{
		subs:    make(map[Namespace]map[string][]*subscriber),
		waiters: make(map[string]*waiter),
		clock:   clock,
	}
}

// NewEnvelope stamps a fresh envelope with id, timestamp and source
func (h *Hub) NewEnvelope(eventType, source string, data interface{}) Envelope {
	return Envelope{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: h.clock.Now(),
		Source:    source,
		Data:      data,
	}
}

// Subscribe registers a subscriber for one event type in a namespace.
// The caller must Unsubscribe when done; the channel closes on unsubscribe.
func (h *Hub) Subscribe(ns Namespace, eventType, subscriberID string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	byType, ok := h.subs[ns]
	if !ok {
		byType = make(map[string][]*subscriber)
		h.subs[ns] = byType
	}

	sub := &subscriber{id: subscriberID, ch: make(chan Envelope, subscriberBuffer)}
	byType[eventType] = append(byType[eventType], sub)

	return &Subscription{
		SubscriberID: subscriberID,
		Namespace:    ns,
		EventType:    eventType,
		C:            sub.ch,
		ch:           sub.ch,
	}
}

// Unsubscribe removes the registration and closes its channel
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	byType, ok := h.subs[sub.Namespace]
	if !ok {
		return
	}
	list := byType[sub.EventType]
	for i, s := range list {
		if s.ch == sub.ch {
			close(s.ch)
			list[i] = list[len(list)-1]
			byType[sub.EventType] = list[:len(list)-1]
			break
		}
	}
	if len(byType[sub.EventType]) == 0 {
		delete(byType, sub.EventType)
	}
}

// Publish fans the envelope out to every subscriber of (ns, env.Type).
// A non-empty Target restricts delivery to the matching subscriber id. A
// response whose correlation id has a pending waiter resolves the waiter
// instead of fanning out; the pending request itself fans out normally.
func (h *Hub) Publish(ns Namespace, env Envelope) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return shared.NewUnavailableError("hub is closed")
	}
	h.published.Add(1)

	if env.CorrelationID != "" {
		if w, ok := h.waiters[env.CorrelationID]; ok && env.ID != w.requestID {
			select {
			case w.ch <- env:
			default:
			}
			return nil
		}
	}

	byType, ok := h.subs[ns]
	if !ok {
		return nil
	}
	for _, s := range byType[env.Type] {
		if env.Target != "" && s.id != env.Target {
			continue
		}
		select {
		case s.ch <- env:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// Request publishes the envelope with a correlation id and waits for the
// first matching response. Timeout <= 0 selects DefaultRequestTimeout.
func (h *Hub) Request(ctx context.Context, ns Namespace, env Envelope, timeout time.Duration) (Envelope, error) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	if env.CorrelationID == "" {
		env.CorrelationID = uuid.NewString()
	}

	w := &waiter{requestID: env.ID, ch: make(chan Envelope, 1)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return Envelope{}, shared.NewUnavailableError("hub is closed")
	}
	h.waiters[env.CorrelationID] = w
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.waiters, env.CorrelationID)
		h.mu.Unlock()
	}()

	if err := h.Publish(ns, env); err != nil {
		return Envelope{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-w.ch:
		return resp, nil
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	case <-timer.C:
		return Envelope{}, shared.NewTimeoutError(fmt.Sprintf("no response to %s within %s", env.Type, timeout))
	}
}

// Respond publishes a response envelope correlated to a request
func (h *Hub) Respond(ns Namespace, request Envelope, eventType, source string, data interface{}) error {
	resp := h.NewEnvelope(eventType, source, data)
	resp.CorrelationID = request.CorrelationID
	resp.Target = request.Source
	return h.Publish(ns, resp)
}

// Stats returns published and dropped envelope counts
func (h *Hub) Stats() (published, dropped int64) {
	return h.published.Load(), h.dropped.Load()
}

// Close shuts the hub down; further publishes fail with Unavailable
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ns, byType := range h.subs {
		for et, list := range byType {
			for _, s := range list {
				close(s.ch)
			}
			delete(byType, et)
		}
		delete(h.subs, ns)
	}
}
