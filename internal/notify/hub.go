// Package notify fans out status events to the live client sessions of a
// user. Delivery is best-effort and non-durable: sessions that are not
// connected, or too slow to drain their buffer, miss the event and are
// expected to re-fetch authoritative state on reconnect.
package notify

import (
	"sync"
	"time"
)

// Event kinds emitted by the payment/fulfillment flow.
const (
	KindQuestionStatus     = "question-status-update"
	KindPaymentStatus      = "payment-status-update"
	KindAnswerReady        = "answer-ready"
	KindSubscriptionStatus = "subscription-status-update"
)

const subscriberBuffer = 16

type Event struct {
	Kind      string      `json:"kind"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub is a process-local registry of per-user subscriber channels. It is
// constructed once at startup and passed explicitly to every component that
// publishes.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
	now  func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		subs: map[string]map[chan Event]struct{}{},
		now:  time.Now,
	}
}

// Subscribe attaches a new session channel for userID. The returned cancel
// func detaches the channel and closes it; it is safe to call more than once.
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[userID]
	if !ok {
		set = map[chan Event]struct{}{}
		h.subs[userID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[userID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, userID)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish sends an event to every live session of userID. Events for users
// with no sessions, or sessions with a full buffer, are dropped.
func (h *Hub) Publish(userID, kind string, payload interface{}) {
	ev := Event{Kind: kind, Payload: payload, Timestamp: h.now().UTC()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[userID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Sessions reports the number of live sessions for a user.
func (h *Hub) Sessions(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}
