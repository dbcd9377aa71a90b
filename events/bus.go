package events

import (
	"context"
	"sync"
)

// Subscription is a live handle to a topic subscription. Unsubscribe stops
// delivery; the channel is closed once pending sends have drained.
type Subscription interface {
	Events() <-chan Event
	Unsubscribe()
}

// Bus publishes events to subscribers of a named topic. Implementations must
// be safe for concurrent use.
type Bus interface {
	Publish(ctx context.Context, topic string, evt Event)
	Subscribe(ctx context.Context, topic string) Subscription
	Close() error
}

// InProcessBus is the default Bus: an in-memory, synchronous fan-out
// grounded on runtime/agent/hooks/bus.go's pattern of snapshotting the
// subscriber list under lock, then publishing outside the lock so a slow or
// misbehaving subscriber cannot block the publisher from reaching others.
type InProcessBus struct {
	mu   sync.RWMutex
	subs map[string]map[*subscription]struct{}
}

// NewInProcessBus constructs an empty bus.
func NewInProcessBus() *InProcessBus {
	return &InProcessBus{subs: make(map[string]map[*subscription]struct{})}
}

type subscription struct {
	bus   *InProcessBus
	topic string
	ch    chan Event
	once  sync.Once
}

func (s *subscription) Events() <-chan Event { return s.ch }

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		if set, ok := s.bus.subs[s.topic]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.bus.subs, s.topic)
			}
		}
		s.bus.mu.Unlock()
		close(s.ch)
	})
}

// Subscribe registers a new subscriber for topic. The returned channel is
// buffered; a subscriber that falls far enough behind has its oldest
// undelivered event dropped rather than blocking the publisher, since these
// are best-effort notification streams, not a durable log.
func (b *InProcessBus) Subscribe(_ context.Context, topic string) Subscription {
	sub := &subscription{bus: b, topic: topic, ch: make(chan Event, 256)}
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*subscription]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Publish delivers evt to every current subscriber of topic. The subscriber
// set is snapshotted under the read lock and then released before any send,
// so Publish never blocks on a subscriber calling Unsubscribe concurrently.
func (b *InProcessBus) Publish(_ context.Context, topic string, evt Event) {
	b.mu.RLock()
	subs := make([]*subscription, 0, len(b.subs[topic]))
	for s := range b.subs[topic] {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		select {
		case s.ch <- evt:
		default:
			// slow subscriber: drop the oldest pending event to make room
			// rather than block the publisher.
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- evt:
			default:
			}
		}
	}
}

// Close unsubscribes and closes every live subscription.
func (b *InProcessBus) Close() error {
	b.mu.Lock()
	topics := b.subs
	b.subs = make(map[string]map[*subscription]struct{})
	b.mu.Unlock()

	for _, set := range topics {
		for s := range set {
			s.once.Do(func() { close(s.ch) })
		}
	}
	return nil
}

// Topic returns the per-agent topic name used for status/message events.
func Topic(agentID string) string { return "agent_server:" + agentID }

// DebugTopic returns the per-agent debug topic name used for state snapshots
// and wrapped sub-agent events.
func DebugTopic(agentID string) string { return "agent_server:debug:" + agentID }
