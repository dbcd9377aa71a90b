package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"goa.design/agentcore/events"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	ctx := context.Background()
	bus := events.NewInProcessBus()
	defer bus.Close()

	topic := events.Topic("agent-1")
	sub := bus.Subscribe(ctx, topic)
	defer sub.Unsubscribe()

	bus.Publish(ctx, topic, events.Event{Kind: events.KindStatusChanged, AgentID: "agent-1",
		Payload: events.StatusChangedPayload{Status: events.StatusRunning}})

	select {
	case evt := <-sub.Events():
		require.Equal(t, events.KindStatusChanged, evt.Kind)
		payload, ok := evt.Payload.(events.StatusChangedPayload)
		require.True(t, ok)
		require.Equal(t, events.StatusRunning, payload.Status)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishIgnoresOtherTopics(t *testing.T) {
	ctx := context.Background()
	bus := events.NewInProcessBus()
	defer bus.Close()

	sub := bus.Subscribe(ctx, events.Topic("agent-1"))
	defer sub.Unsubscribe()

	bus.Publish(ctx, events.Topic("agent-2"), events.Event{Kind: events.KindAgentShutdown})

	select {
	case <-sub.Events():
		t.Fatal("subscriber for agent-1 should not receive agent-2 events")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	ctx := context.Background()
	bus := events.NewInProcessBus()
	defer bus.Close()

	sub := bus.Subscribe(ctx, events.Topic("agent-1"))
	sub.Unsubscribe()

	_, ok := <-sub.Events()
	require.False(t, ok)
}

func TestDebugTopicIsDistinctFromMainTopic(t *testing.T) {
	ctx := context.Background()
	bus := events.NewInProcessBus()
	defer bus.Close()

	main := bus.Subscribe(ctx, events.Topic("agent-1"))
	defer main.Unsubscribe()
	debug := bus.Subscribe(ctx, events.DebugTopic("agent-1"))
	defer debug.Unsubscribe()

	bus.Publish(ctx, events.DebugTopic("agent-1"), events.Event{Kind: events.KindAgentStateUpdate})

	select {
	case <-main.Events():
		t.Fatal("main topic should not receive debug events")
	case <-time.After(50 * time.Millisecond):
	}

	select {
	case evt := <-debug.Events():
		require.Equal(t, events.KindAgentStateUpdate, evt.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for debug event")
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	ctx := context.Background()
	bus := events.NewInProcessBus()
	defer bus.Close()

	sub := bus.Subscribe(ctx, events.Topic("agent-1"))
	defer sub.Unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			bus.Publish(ctx, events.Topic("agent-1"), events.Event{Kind: events.KindLLMDeltas})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a subscriber that never drains")
	}
}
