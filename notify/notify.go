// Package notify is the event sink every engine reports lifecycle events
// to (positions opened/closed, liquidations, fee charges, limit-order
// fills, stop/take-profit triggers). Grounded on
// backend/notifications/manager.go's channel-fan-out shape, collapsed
// from that file's email/SMS/push/webhook/in-app channel set down to the
// one thing this engine actually needs: a named topic plus subscribers
// who want to receive it.
package notify

import (
	"context"
	"sync"

	"github.com/rtxlabs/vperp/logging"
)

// Event is a single fired notification.
type Event struct {
	Topic   string
	Payload interface{}
}

// Subscription is a live feed of events for a single subscriber.
type Subscription struct {
	ch     chan Event
	cancel func()
}

// C returns the channel events are delivered on. Closed when the
// subscription is cancelled.
func (s *Subscription) C() <-chan Event { return s.ch }

// Cancel unregisters the subscription and closes its channel.
func (s *Subscription) Cancel() { s.cancel() }

// Sink fans out Notify calls to every active subscriber and to the
// structured logger, matching the Notifier interface every engine
// package (trade, feeaccrual, liquidation, limitorder, trigger) declares
// for itself.
type Sink struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	log    *logging.Logger
}

// New constructs a Sink. log receives every event at Debug level in
// addition to whatever subscribers are registered — so an event is
// never silently lost if nothing is subscribed yet.
func New(log *logging.Logger) *Sink {
	return &Sink{subs: make(map[int]chan Event), log: log}
}

// Notify implements the Notifier interface shared by every engine
// package. It never blocks: each subscriber channel is buffered, and a
// full channel drops the event for that subscriber rather than stalling
// the caller's tick.
func (s *Sink) Notify(ctx context.Context, topic string, payload interface{}) {
	s.log.Debug("notify: event", logging.String("topic", topic), logging.Any("payload", payload))

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- Event{Topic: topic, Payload: payload}:
		default:
			s.log.Warn("notify: subscriber channel full, dropping event", logging.String("topic", topic))
		}
	}
}

// Subscribe registers a new subscriber and returns a handle to its feed.
// bufferSize controls how many undelivered events the subscriber can
// fall behind by before events start being dropped for it.
func (s *Sink) Subscribe(bufferSize int) *Subscription {
	if bufferSize <= 0 {
		bufferSize = 32
	}
	ch := make(chan Event, bufferSize)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
		s.mu.Unlock()
	}

	return &Subscription{ch: ch, cancel: cancel}
}

// SubscriberCount reports how many live subscriptions the sink is
// currently fanning out to. Exposed for tests and health checks.
func (s *Sink) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
