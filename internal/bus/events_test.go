package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sowonlabs/crewx/internal/schema"
)

func TestEventBus_FanOutInSubscriptionOrder(t *testing.T) {
	b := NewEventBus()

	var order []string
	b.Subscribe(func(Event) { order = append(order, "first") })
	b.Subscribe(func(Event) { order = append(order, "second") })

	b.Publish(AgentStarted{RootID: "r1", AgentID: "claude", Mode: schema.ModeQuery})

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestEventBus_KindFilter(t *testing.T) {
	b := NewEventBus()

	var got []EventKind
	b.Subscribe(func(e Event) { got = append(got, e.Kind()) }, EventAgentCompleted)

	b.Publish(AgentStarted{RootID: "r1", AgentID: "claude"})
	b.Publish(CallStackUpdated{RootID: "r1"})
	b.Publish(AgentCompleted{RootID: "r1", AgentID: "claude", Success: true})

	assert.Equal(t, []EventKind{EventAgentCompleted}, got)
}

func TestEventBus_TypedPayload(t *testing.T) {
	b := NewEventBus()

	var stack []StackEntry
	b.Subscribe(func(e Event) {
		upd, ok := e.(CallStackUpdated)
		require.True(t, ok)
		stack = upd.Stack
	}, EventCallStackUpdated)

	b.Publish(CallStackUpdated{RootID: "r1", Stack: []StackEntry{
		{Depth: 0, AgentID: "claude", Mode: schema.ModeExecute},
	}})

	require.Len(t, stack, 1)
	assert.Equal(t, "claude", stack[0].AgentID)
	assert.Equal(t, schema.ModeExecute, stack[0].Mode)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	b := NewEventBus()

	calls := 0
	sub := b.Subscribe(func(Event) { calls++ })
	b.Publish(AgentStarted{})
	sub.Unsubscribe()
	sub.Unsubscribe()
	b.Publish(AgentStarted{})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, b.subscriberCount())
}

func TestEventBus_RootID(t *testing.T) {
	events := []Event{
		CallStackUpdated{RootID: "a"},
		AgentStarted{RootID: "b"},
		AgentCompleted{RootID: "c"},
	}
	var roots []string
	for _, e := range events {
		roots = append(roots, e.Root())
	}
	assert.Equal(t, []string{"a", "b", "c"}, roots)
}

func TestMessageBus_RoundTrip(t *testing.T) {
	b := NewMessageBus(2)

	in := NewInboundMessage(ChannelSlack, "U1", "C1", "@claude hi")
	in.SetMetadata(map[string]any{"thread_ts": "1.0"})
	b.PublishInbound(in)
	assert.Len(t, b.InboundChan(), 1)

	got := <-b.InboundChan()
	assert.Equal(t, "slack:C1", got.RoutingKey())

	b.PublishOutbound(ReplyTo(got, "done"))
	out := <-b.OutboundChan()
	assert.Equal(t, ChannelSlack, out.Channel())
	assert.Equal(t, "C1", out.ChatId())
	assert.Equal(t, "1.0", out.Metadata()["thread_ts"])
}

func TestParseRoutingKey(t *testing.T) {
	ch, chat := ParseRoutingKey("slack:C1:extra")
	assert.Equal(t, ChannelSlack, ch)
	assert.Equal(t, "C1:extra", chat)

	ch, chat = ParseRoutingKey("cli")
	assert.Equal(t, ChannelCLI, ch)
	assert.Empty(t, chat)
}
