package channels

import (
	"context"
	"log/slog"
	"slices"

	"github.com/sowonlabs/crewx/internal/bus"
	"github.com/sowonlabs/crewx/internal/config"
)

// Manager owns all enabled channels and routes outbound messages.
type Manager struct {
	channels map[bus.ChannelType]Channel
	bus      bus.Bus
}

// NewManager creates a Manager and initialises all enabled channels.
func NewManager(cfg *config.Config, b bus.Bus) *Manager {
	m := &Manager{
		channels: make(map[bus.ChannelType]Channel),
		bus:      b,
	}
	if cfg.Slack.Enabled {
		m.Register(NewSlackChannel(&cfg.Slack, b))
	}
	return m
}

// Register adds ch, replacing any channel with the same name.
func (m *Manager) Register(ch Channel) {
	m.channels[ch.Name()] = ch
	slog.Info("channel enabled", "name", ch.Name())
}

// EnabledChannels returns the names of all enabled channels, sorted.
func (m *Manager) EnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for n := range m.channels {
		names = append(names, string(n))
	}
	slices.Sort(names)
	return names
}

// StartAll starts all channels concurrently and dispatches outbound messages.
// Blocks until ctx is cancelled.
func (m *Manager) StartAll(ctx context.Context) error {
	go m.dispatchOutbound(ctx)

	for name, ch := range m.channels {
		go func(n bus.ChannelType, c Channel) {
			slog.Info("starting channel", "name", n)
			if err := c.Start(ctx); err != nil && ctx.Err() == nil {
				slog.Error("channel exited with error", "name", n, "err", err)
			}
		}(name, ch)
	}

	<-ctx.Done()
	return ctx.Err()
}

// dispatchOutbound reads from the outbound bus and routes each message to
// the appropriate channel's Send method.
func (m *Manager) dispatchOutbound(ctx context.Context) {
	for {
		select {
		case msg := <-m.bus.OutboundChan():
			ch, ok := m.channels[msg.Channel()]
			if !ok {
				slog.Debug("unknown channel for outbound message", "channel", msg.Channel())
				continue
			}
			if err := ch.Send(ctx, msg); err != nil {
				slog.Error("send error", "channel", msg.Channel(), "err", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
