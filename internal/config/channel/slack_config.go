package channel

// Group policies decide which channel messages reach the agents.
const (
	GroupPolicyMention   = "mention"   // only messages that mention the bot
	GroupPolicyOpen      = "open"      // every message
	GroupPolicyAllowlist = "allowlist" // only channels listed in AllowChannels
)

// SlackConfig configures the Slack channel.
type SlackConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Mode          string   `yaml:"mode"`
	BotToken      string   `yaml:"bot_token,omitempty"`
	AppToken      string   `yaml:"app_token,omitempty"`
	ReplyInThread bool     `yaml:"reply_in_thread"`
	ReactEmoji    string   `yaml:"react_emoji,omitempty"`
	GroupPolicy   string   `yaml:"group_policy"`
	AllowChannels []string `yaml:"allow_channels,omitempty"`
	AllowFrom     []string `yaml:"allow_from,omitempty"`
	ThreadHistory int      `yaml:"thread_history"` // messages of thread context; 0 disables
	ExecuteMode   bool     `yaml:"execute_mode"`   // run Slack requests in execute mode
}

func DefaultSlackConfig() SlackConfig {
	return SlackConfig{
		Mode:          "socket",
		ReplyInThread: true,
		ReactEmoji:    "eyes",
		GroupPolicy:   GroupPolicyMention,
		ThreadHistory: 20,
	}
}
