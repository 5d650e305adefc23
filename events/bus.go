// Package events is a synchronous publish/subscribe bus with named topics.
//
// Publishers (the public holiday service, the API handlers) announce
// leave request and ledger changes; subscribers such as report views
// use them to invalidate cached data.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/leave"
)

// Topic names an event stream.
type Topic string

const (
	TopicLeaveRequestCreated Topic = "LeaveRequest::new"
	TopicLeaveRequestEdited  Topic = "LeaveRequest::edit"
	TopicBalanceChanged      Topic = "LeaveBalanceChange::changed"
)

// Event is what subscribers receive.
type Event struct {
	Topic          Topic
	ContactID      leave.ContactID
	LeaveRequestID leave.LeaveRequestID
	At             time.Time
}

// Handler reacts to one event. It runs on the publisher's goroutine.
type Handler func(ctx context.Context, e Event)

// Publisher is the side of the bus the rule engine depends on.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus delivers events to subscribers in subscription order.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic][]subscription
	nextID uint64
	logger logrus.FieldLogger
}

// NewBus creates an empty bus. A nil logger discards handler panics silently.
func NewBus(logger logrus.FieldLogger) *Bus {
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		logger = l
	}
	return &Bus{subs: make(map[Topic][]subscription), logger: logger}
}

// Subscribe registers h for topic and returns a function that removes it.
func (b *Bus) Subscribe(topic Topic, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: h})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic, id) })
	}
}

func (b *Bus) remove(topic Topic, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[topic]
	for i, s := range subs {
		if s.id == id {
			b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish delivers e to every current subscriber of e.Topic before returning.
// Handlers may subscribe or unsubscribe while being called.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[e.Topic]...)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(ctx, s.handler, e)
	}
}

func (b *Bus) deliver(ctx context.Context, h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithFields(logrus.Fields{
				"topic":      e.Topic,
				"contact_id": e.ContactID,
				"panic":      r,
			}).Error("event handler panicked")
		}
	}()
	h(ctx, e)
}

// SubscriberCount returns the number of handlers registered for topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Discard is a Publisher that drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) {}
