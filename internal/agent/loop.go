package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sowonlabs/crewx/internal/bus"
	"github.com/sowonlabs/crewx/internal/schema"
	"github.com/sowonlabs/crewx/internal/shared/llmutils"
)

// MetadataMode is the inbound metadata key selecting query or execute mode.
const MetadataMode = "mode"

// Runner executes one root request. *Crew is the production implementation.
type Runner interface {
	Run(ctx context.Context, req RunRequest) (Report, error)
	Agents() []string
}

// AgentLoop is the bridge between chat channels and the crew.
//
// It reads InboundMessages from the bus, runs each one through the crew in
// its own goroutine, and publishes the merged reply as an OutboundMessage.
type AgentLoop struct {
	bus    bus.Bus
	runner Runner
}

func NewAgentLoop(b bus.Bus, runner Runner) *AgentLoop {
	return &AgentLoop{bus: b, runner: runner}
}

// Run reads from the inbound bus and processes each message in a goroutine.
// Blocks until ctx is cancelled.
func (loop *AgentLoop) Run(ctx context.Context) error {
	slog.Info("Agent loop started")

	for {
		select {
		case msg := <-loop.bus.InboundChan():
			go loop.handleMessage(ctx, msg)
		case <-ctx.Done():
			slog.Info("Agent loop stopping")
			return ctx.Err()
		}
	}
}

// ProcessDirect handles a message outside the bus (CLI, schedule) and
// returns the reply text.
func (loop *AgentLoop) ProcessDirect(ctx context.Context, msg bus.InboundMessage) string {
	return loop.processMessage(ctx, msg)
}

func (loop *AgentLoop) handleMessage(ctx context.Context, msg bus.InboundMessage) {
	reply := loop.processMessage(ctx, msg)
	if reply == "" {
		return
	}
	loop.bus.PublishOutbound(bus.ReplyTo(msg, reply))
}

func (loop *AgentLoop) processMessage(ctx context.Context, msg bus.InboundMessage) string {
	if reply, ok := loop.handleSlashCommand(msg); ok {
		return reply
	}

	slog.Info(
		"Processing message",
		"sender", msg.SenderId(),
		"conversation", msg.RoutingKey(),
		"content", llmutils.Truncate(msg.Content(), 80),
	)

	report, err := loop.runner.Run(ctx, RunRequest{
		Text:    msg.Content(),
		Mode:    modeOf(msg),
		Context: msg.History(),
	})
	switch {
	case errors.Is(err, ErrEmptyInput):
		return ""
	case err != nil:
		slog.Error("Root request failed", "channel", msg.Channel(), "chat", msg.ChatId(), "err", err)
		return fmt.Sprintf("Sorry, I couldn't run that: %v", err)
	}

	final := report.Merge()
	slog.Info("Response", "channel", msg.Channel(), "sender", msg.SenderId(), "root", report.RootID, "length", len(final))
	return llmutils.StringOrDefault(final, "The agents returned no response.")
}

// handleSlashCommand answers the built-in commands without invoking agents.
func (loop *AgentLoop) handleSlashCommand(msg bus.InboundMessage) (string, bool) {
	switch strings.TrimSpace(strings.ToLower(msg.Content())) {
	case "/help":
		return "crewx commands:\n/agents - List available agents\n/help - Show available commands\n" +
			"Address agents with @name, e.g. `@claude @gemini review this`.", true
	case "/agents":
		ids := loop.runner.Agents()
		lines := make([]string, len(ids))
		for i, id := range ids {
			lines[i] = "@" + id
		}
		return "Available agents: " + strings.Join(lines, " "), true
	}
	return "", false
}

func modeOf(msg bus.InboundMessage) schema.Mode {
	if v, ok := msg.Metadata()[MetadataMode].(string); ok {
		return schema.ParseMode(v)
	}
	return schema.ModeQuery
}
