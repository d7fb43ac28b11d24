package channels

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	slackgo "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/sowonlabs/crewx/internal/agent"
	"github.com/sowonlabs/crewx/internal/bus"
	"github.com/sowonlabs/crewx/internal/config/channel"
	"github.com/sowonlabs/crewx/internal/schema"
)

// Metadata keys set on inbound Slack messages and read back by Send.
const (
	metaThreadTS    = "thread_ts"
	metaChannelType = "channel_type"
)

// slackMaxMessage keeps replies under Slack's per-message text limit.
const slackMaxMessage = 3900

// slackAPI is the subset of the Web API the channel uses.
type slackAPI interface {
	AuthTestContext(ctx context.Context) (*slackgo.AuthTestResponse, error)
	AddReactionContext(ctx context.Context, name string, item slackgo.ItemRef) error
	PostMessageContext(ctx context.Context, channelID string, options ...slackgo.MsgOption) (string, string, error)
	GetConversationRepliesContext(ctx context.Context, params *slackgo.GetConversationRepliesParameters) ([]slackgo.Message, bool, string, error)
}

// SlackChannel implements Slack via Socket Mode.
type SlackChannel struct {
	Base
	cfg       *channel.SlackConfig
	api       slackAPI
	smClient  *socketmode.Client
	botUserID string
	reMention *regexp.Regexp
}

func NewSlackChannel(cfg *channel.SlackConfig, b bus.Bus) *SlackChannel {
	return &SlackChannel{
		Base: NewBase(bus.ChannelSlack, b, cfg.AllowFrom),
		cfg:  cfg,
	}
}

func (s *SlackChannel) Name() bus.ChannelType { return bus.ChannelSlack }

func (s *SlackChannel) Start(ctx context.Context) error {
	if s.cfg.BotToken == "" || s.cfg.AppToken == "" {
		slog.Warn("slack: bot/app token not configured")
		<-ctx.Done()
		return ctx.Err()
	}

	webClient := slackgo.New(s.cfg.BotToken,
		slackgo.OptionAppLevelToken(s.cfg.AppToken))
	s.api = webClient

	resp, err := webClient.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	s.setBotUser(resp.UserID)
	slog.Info("slack: connected", "bot_user_id", s.botUserID, "team", resp.Team)

	s.smClient = socketmode.New(webClient)

	go s.smClient.RunContext(ctx) //nolint:errcheck

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-s.smClient.Events:
			if !ok {
				return nil
			}
			s.handleEvent(ctx, evt)
		}
	}
}

func (s *SlackChannel) setBotUser(id string) {
	s.botUserID = id
	s.reMention = nil
	if id != "" {
		s.reMention = regexp.MustCompile(`<@` + regexp.QuoteMeta(id) + `>\s*`)
	}
}

func (s *SlackChannel) handleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		slog.Info("slack: connecting")
	case socketmode.EventTypeConnectionError:
		slog.Warn("slack: connection error, retrying")
	case socketmode.EventTypeEventsAPI:
		if evt.Request != nil {
			s.smClient.Ack(*evt.Request)
		}
		cb, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok || cb.Type != slackevents.CallbackEvent {
			return
		}
		if in, ok := incomingFrom(cb.InnerEvent); ok {
			s.handleIncoming(ctx, in)
		}
	}
}

// incoming is the normalised form of app_mention and message events.
type incoming struct {
	evType      string
	user        string
	botID       string
	channel     string
	channelType string
	subtype     string
	text        string
	ts          string
	threadTS    string
}

func incomingFrom(ev slackevents.EventsAPIInnerEvent) (incoming, bool) {
	switch e := ev.Data.(type) {
	case *slackevents.AppMentionEvent:
		return incoming{
			evType:   string(slackevents.AppMention),
			user:     e.User,
			botID:    e.BotID,
			channel:  e.Channel,
			text:     e.Text,
			ts:       e.TimeStamp,
			threadTS: e.ThreadTimeStamp,
		}, true
	case *slackevents.MessageEvent:
		return incoming{
			evType:      string(slackevents.Message),
			user:        e.User,
			botID:       e.BotID,
			channel:     e.Channel,
			channelType: e.ChannelType,
			subtype:     e.SubType,
			text:        e.Text,
			ts:          e.TimeStamp,
			threadTS:    e.ThreadTimeStamp,
		}, true
	}
	return incoming{}, false
}

func (s *SlackChannel) handleIncoming(ctx context.Context, in incoming) {
	if in.subtype != "" || in.botID != "" || in.user == "" || in.channel == "" {
		return
	}
	if in.user == s.botUserID {
		return
	}
	// app_mention and message both fire for a mention; keep the app_mention.
	if in.evType == string(slackevents.Message) && s.mentionsBot(in.text) {
		return
	}

	if in.channelType != "im" && !s.shouldRespond(in.evType, in.text, in.channel) {
		return
	}

	text := s.stripMention(in.text)
	if text == "" {
		return
	}

	var history string
	if in.threadTS != "" && s.cfg.ThreadHistory > 0 {
		history = s.threadHistory(ctx, in.channel, in.threadTS, in.ts)
	}

	threadTS := in.threadTS
	if s.cfg.ReplyInThread && threadTS == "" {
		threadTS = in.ts
	}

	// Best-effort reaction.
	if s.api != nil && in.ts != "" && s.cfg.ReactEmoji != "" {
		_ = s.api.AddReactionContext(ctx, s.cfg.ReactEmoji, slackgo.ItemRef{
			Channel:   in.channel,
			Timestamp: in.ts,
		})
	}

	mode := schema.ModeQuery
	if s.cfg.ExecuteMode {
		mode = schema.ModeExecute
	}
	s.HandleMessage(in.user, in.channel, text, history, map[string]any{
		metaThreadTS:       threadTS,
		metaChannelType:    in.channelType,
		agent.MetadataMode: string(mode),
	})
}

func (s *SlackChannel) mentionsBot(text string) bool {
	return s.botUserID != "" && strings.Contains(text, "<@"+s.botUserID+">")
}

func (s *SlackChannel) shouldRespond(evType, text, channelID string) bool {
	switch s.cfg.GroupPolicy {
	case channel.GroupPolicyOpen:
		return true
	case channel.GroupPolicyMention, "":
		return evType == string(slackevents.AppMention) || s.mentionsBot(text)
	case channel.GroupPolicyAllowlist:
		return slices.Contains(s.cfg.AllowChannels, channelID)
	}
	return false
}

func (s *SlackChannel) stripMention(text string) string {
	if s.reMention != nil {
		text = s.reMention.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

// threadHistory renders earlier messages of a thread as context, oldest
// first, excluding the message being answered.
func (s *SlackChannel) threadHistory(ctx context.Context, channelID, threadTS, currentTS string) string {
	if s.api == nil {
		return ""
	}
	msgs, _, _, err := s.api.GetConversationRepliesContext(ctx, &slackgo.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: threadTS,
		Limit:     s.cfg.ThreadHistory + 1,
	})
	if err != nil {
		slog.Warn("slack: thread history unavailable", "channel", channelID, "thread_ts", threadTS, "err", err)
		return ""
	}
	return formatThreadHistory(msgs, s.botUserID, currentTS, s.cfg.ThreadHistory)
}

func formatThreadHistory(msgs []slackgo.Message, botUserID, currentTS string, limit int) string {
	var lines []string
	for _, m := range msgs {
		if m.Timestamp == currentTS || strings.TrimSpace(m.Text) == "" {
			continue
		}
		who := "user " + m.User
		if m.BotID != "" || (botUserID != "" && m.User == botUserID) {
			who = "crewx"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", who, strings.TrimSpace(m.Text)))
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return strings.Join(lines, "\n")
}

func (s *SlackChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if s.api == nil {
		return nil
	}
	threadTS, _ := msg.Metadata()[metaThreadTS].(string)
	channelType, _ := msg.Metadata()[metaChannelType].(string)

	for _, chunk := range splitMessage(msg.Content(), slackMaxMessage) {
		options := []slackgo.MsgOption{slackgo.MsgOptionText(chunk, false)}
		if threadTS != "" && channelType != "im" {
			options = append(options, slackgo.MsgOptionTS(threadTS))
		}
		if _, _, err := s.api.PostMessageContext(ctx, msg.ChatId(), options...); err != nil {
			return err
		}
	}
	return nil
}
