// Package pulsebus implements events.Bus over goa.design/pulse streams
// backed by Redis, for deployments that need event delivery to survive a
// process crash or fan out to remote observers, adapted from the teacher's
// features/stream/pulse sink/subscriber pair.
package pulsebus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"goa.design/agentcore/events"
	"goa.design/agentcore/eventbus/pulsebus/clients/pulse"
)

// envelope is the wire format published to a Pulse stream entry.
type envelope struct {
	Kind      events.Kind     `json:"kind"`
	AgentID   string          `json:"agent_id"`
	EmittedAt time.Time       `json:"emitted_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Options configures a Bus.
type Options struct {
	// Client is the Pulse client used to publish and consume streams. Required.
	Client pulse.Client
	// SinkName prefixes the Pulse consumer group names Subscribe opens.
	// Defaults to "agentcore_eventbus".
	SinkName string
	// Buffer sizes each subscription's delivery channel. Defaults to 256.
	Buffer int
}

// Bus publishes events.Event values to Pulse streams named after the topic
// and consumes them back out through per-subscription consumer groups.
type Bus struct {
	client   pulse.Client
	sinkName string
	buffer   int

	mu      sync.Mutex
	cancels []context.CancelFunc
}

// New constructs a Pulse-backed Bus.
func New(opts Options) (*Bus, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("pulsebus: client is required")
	}
	sinkName := opts.SinkName
	if sinkName == "" {
		sinkName = "agentcore_eventbus"
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 256
	}
	return &Bus{client: opts.Client, sinkName: sinkName, buffer: buffer}, nil
}

// Publish serializes evt and appends it to the Pulse stream named topic.
func (b *Bus) Publish(ctx context.Context, topic string, evt events.Event) {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return
	}
	env := envelope{Kind: evt.Kind, AgentID: evt.AgentID, EmittedAt: evt.EmittedAt, Payload: payload}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	stream, err := b.client.Stream(topic)
	if err != nil {
		return
	}
	_, _ = stream.Add(ctx, string(evt.Kind), data)
}

// pulseSubscription adapts a Pulse consumer group to events.Subscription.
type pulseSubscription struct {
	ch     chan events.Event
	cancel context.CancelFunc
	once   sync.Once
}

func (s *pulseSubscription) Events() <-chan events.Event { return s.ch }

func (s *pulseSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
	})
}

// Subscribe opens a Pulse consumer group on topic and decodes entries back
// into events.Event values, delivered on the returned subscription's
// channel. Each call opens its own consumer group so independent
// subscribers each see the full stream.
func (b *Bus) Subscribe(ctx context.Context, topic string) events.Subscription {
	ch := make(chan events.Event, b.buffer)
	runCtx, cancel := context.WithCancel(ctx)
	sub := &pulseSubscription{ch: ch, cancel: cancel}

	stream, err := b.client.Stream(topic)
	if err != nil {
		close(ch)
		return sub
	}
	sink, err := stream.NewSink(runCtx, b.sinkName+":"+topic+":"+uuid.NewString())
	if err != nil {
		close(ch)
		return sub
	}

	b.mu.Lock()
	b.cancels = append(b.cancels, cancel)
	b.mu.Unlock()

	go consume(runCtx, sink, ch)
	return sub
}

func consume(ctx context.Context, sink pulse.Sink, out chan<- events.Event) {
	defer close(out)
	defer sink.Close(context.Background())
	incoming := sink.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-incoming:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal(raw.Payload, &env); err != nil {
				continue
			}
			evt := events.Event{Kind: env.Kind, AgentID: env.AgentID, EmittedAt: env.EmittedAt, Payload: env.Payload}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
			_ = sink.Ack(ctx, raw)
		}
	}
}

// Close cancels every live subscription. It does not close the underlying
// Pulse client; callers that own the Redis connection are responsible for
// that.
func (b *Bus) Close() error {
	b.mu.Lock()
	cancels := b.cancels
	b.cancels = nil
	b.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	return nil
}
