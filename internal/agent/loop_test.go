package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sowonlabs/crewx/internal/bus"
	"github.com/sowonlabs/crewx/internal/schema"
)

type fakeRunner struct {
	got    chan RunRequest
	report Report
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, req RunRequest) (Report, error) {
	if f.got != nil {
		f.got <- req
	}
	return f.report, f.err
}

func (f *fakeRunner) Agents() []string { return []string{"claude", "gemini"} }

func TestAgentLoop_PublishesMergedReply(t *testing.T) {
	b := bus.NewMessageBus(4)
	runner := &fakeRunner{
		got: make(chan RunRequest, 1),
		report: Report{Results: []schema.QueryResult{
			{AgentID: "claude", Success: true, Content: "done"},
		}},
	}
	loop := NewAgentLoop(b, runner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx) }()

	msg := bus.NewInboundMessage(bus.ChannelSlack, "U1", "C1", "@claude ship it")
	msg.SetHistory("earlier: hello")
	msg.SetMetadata(map[string]any{"thread_ts": "123.4", MetadataMode: "execute"})
	b.PublishInbound(msg)

	select {
	case req := <-runner.got:
		assert.Equal(t, "@claude ship it", req.Text)
		assert.Equal(t, schema.ModeExecute, req.Mode)
		assert.Equal(t, "earlier: hello", req.Context)
	case <-time.After(time.Second):
		t.Fatal("runner not called")
	}

	select {
	case out := <-b.OutboundChan():
		assert.Equal(t, bus.ChannelSlack, out.Channel())
		assert.Equal(t, "C1", out.ChatId())
		assert.Equal(t, "[@claude]\ndone", out.Content())
		assert.Equal(t, "123.4", out.Metadata()["thread_ts"])
	case <-time.After(time.Second):
		t.Fatal("no outbound message")
	}
}

func TestAgentLoop_RunStopsOnCancel(t *testing.T) {
	loop := NewAgentLoop(bus.NewMessageBus(1), &fakeRunner{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := loop.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAgentLoop_ProcessDirect(t *testing.T) {
	tests := []struct {
		name    string
		content string
		runner  *fakeRunner
		want    string
	}{
		{
			name:    "help",
			content: " /HELP ",
			runner:  &fakeRunner{},
			want:    "crewx commands:",
		},
		{
			name:    "agents",
			content: "/agents",
			runner:  &fakeRunner{},
			want:    "Available agents: @claude @gemini",
		},
		{
			name:    "run error",
			content: "@nobody hi",
			runner:  &fakeRunner{err: ErrNoAgents},
			want:    "Sorry, I couldn't run that",
		},
		{
			name:    "empty report",
			content: "hi",
			runner:  &fakeRunner{},
			want:    "The agents returned no response.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loop := NewAgentLoop(bus.NewMessageBus(1), tt.runner)
			got := loop.ProcessDirect(context.Background(), bus.NewInboundMessage(bus.ChannelCLI, "user", "direct", tt.content))
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestAgentLoop_EmptyInputIsSilent(t *testing.T) {
	b := bus.NewMessageBus(1)
	loop := NewAgentLoop(b, &fakeRunner{err: ErrEmptyInput})

	got := loop.ProcessDirect(context.Background(), bus.NewInboundMessage(bus.ChannelSlack, "U1", "C1", ""))
	require.Empty(t, got)
	assert.Empty(t, b.OutboundChan())
}
