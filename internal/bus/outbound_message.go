package bus

// OutboundMessage is a response to be sent back through a channel.
type OutboundMessage struct {
	channel  ChannelType    // destination channel name
	chatId   string         // destination chat / channel / DM identifier
	content  string         // text to send
	metadata map[string]any // channel-specific hints (thread_ts, channel_type, …)
}

func (m OutboundMessage) Channel() ChannelType           { return m.channel }
func (m OutboundMessage) ChatId() string                 { return m.chatId }
func (m OutboundMessage) Content() string                { return m.content }
func (m OutboundMessage) Metadata() map[string]any       { return m.metadata }
func (m *OutboundMessage) SetMetadata(md map[string]any) { m.metadata = md }

func NewOutboundMessage(channel ChannelType, chatId, content string) OutboundMessage {
	return OutboundMessage{
		channel: channel,
		chatId:  chatId,
		content: content,
	}
}

// ReplyTo builds an outbound message addressed to the conversation msg came
// from, carrying over its metadata so threads are preserved.
func ReplyTo(msg InboundMessage, content string) OutboundMessage {
	out := NewOutboundMessage(msg.Channel(), msg.ChatId(), content)
	out.SetMetadata(msg.Metadata())
	return out
}
