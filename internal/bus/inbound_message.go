// Package bus defines the message types that flow between channels and the
// agent loop, and the lifecycle event bus consumed by UIs.
package bus

import "time"

// InboundMessage is a message received from a chat channel.
type InboundMessage struct {
	channel   ChannelType    // "slack", "cli", "schedule"
	senderId  string         // user identifier within the channel
	chatId    string         // chat / channel / DM identifier
	content   string         // message text, mentions included
	history   string         // prior thread messages, passed to agents as context
	timestamp time.Time      // when the message was received
	metadata  map[string]any // channel-specific extra data (thread_ts, …)
}

// NewInboundMessage creates an InboundMessage with Timestamp set to now.
// Use SetHistory and SetMetadata to attach optional fields.
func NewInboundMessage(channel ChannelType, senderId, chatId, content string) InboundMessage {
	return InboundMessage{
		channel:   channel,
		senderId:  senderId,
		chatId:    chatId,
		content:   content,
		timestamp: time.Now(),
	}
}

func (m InboundMessage) ChatId() string                 { return m.chatId }
func (m InboundMessage) SenderId() string               { return m.senderId }
func (m InboundMessage) Content() string                { return m.content }
func (m InboundMessage) History() string                { return m.history }
func (m InboundMessage) Channel() ChannelType           { return m.channel }
func (m InboundMessage) Timestamp() time.Time           { return m.timestamp }
func (m InboundMessage) Metadata() map[string]any       { return m.metadata }
func (m *InboundMessage) SetHistory(history string)     { m.history = history }
func (m *InboundMessage) SetMetadata(md map[string]any) { m.metadata = md }

// RoutingKey returns the "channel:chat_id" key identifying the conversation.
func (m InboundMessage) RoutingKey() string {
	return RoutingKey(m.channel, m.chatId)
}

// Preview returns a short snippet of the message content for logging.
func (m InboundMessage) Preview() string {
	preview := m.content
	if len(preview) > 80 {
		preview = preview[:80] + "..."
	}
	return preview
}
