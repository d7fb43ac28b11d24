// Package channels provides chat-platform channel implementations.
package channels

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/sowonlabs/crewx/internal/bus"
)

// Channel is the interface every chat-platform adapter must implement.
type Channel interface {
	// Name returns the unique channel identifier (e.g. "slack").
	Name() bus.ChannelType
	// Start begins listening for incoming messages; it blocks until ctx is cancelled.
	Start(ctx context.Context) error
	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg bus.OutboundMessage) error
}

// Base holds common state and helper methods shared by all channels.
type Base struct {
	channelName bus.ChannelType
	b           bus.Bus
	allowFrom   []string // empty = allow all
}

// NewBase creates a Base with the given channel name, bus, and allowlist.
func NewBase(name bus.ChannelType, b bus.Bus, allowFrom []string) Base {
	return Base{channelName: name, b: b, allowFrom: allowFrom}
}

// IsAllowed checks whether senderID is on the allowlist.
func (b *Base) IsAllowed(senderID string) bool {
	return len(b.allowFrom) == 0 || slices.Contains(b.allowFrom, senderID)
}

// HandleMessage verifies the sender is allowed, then pushes an InboundMessage to the bus.
func (b *Base) HandleMessage(senderId, chatId, content, history string, metadata map[string]any) {
	if !b.IsAllowed(senderId) {
		slog.Warn("access denied", "channel", b.channelName, "sender", senderId)
		return
	}

	msg := bus.NewInboundMessage(b.channelName, senderId, chatId, content)
	msg.SetHistory(history)
	msg.SetMetadata(metadata)
	b.b.PublishInbound(msg)
}

// splitMessage splits content into chunks that fit within maxLen,
// preferring newline breaks, then space breaks, then hard cut.
func splitMessage(content string, maxLen int) []string {
	if len(content) <= maxLen {
		return []string{content}
	}
	var chunks []string
	for len(content) > 0 {
		if len(content) <= maxLen {
			chunks = append(chunks, content)
			break
		}
		cut := content[:maxLen]
		pos := strings.LastIndex(cut, "\n")
		if pos <= 0 {
			pos = strings.LastIndex(cut, " ")
		}
		if pos <= 0 {
			pos = maxLen
		}
		chunks = append(chunks, content[:pos])
		content = strings.TrimLeft(content[pos:], " \t\n")
	}
	return chunks
}
