// Package config defines the crewx.yaml schema and its loader.
//
// Keys use snake_case. Agents declared in the file override the built-in
// agent with the same id; built-ins that are not overridden stay available.
package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/sowonlabs/crewx/internal/config/agent"
	"github.com/sowonlabs/crewx/internal/config/channel"
	"github.com/sowonlabs/crewx/internal/config/provider"
	"github.com/sowonlabs/crewx/internal/schema"
)

var reAgentID = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// TimeoutConfig holds per-mode request timeouts in seconds. 0 disables.
type TimeoutConfig struct {
	Query   int `yaml:"query"`
	Execute int `yaml:"execute"`
}

// Settings tunes how root requests are processed.
type Settings struct {
	DefaultAgent string        `yaml:"default_agent"`
	MaxDepth     int           `yaml:"max_depth"`
	Concurrency  int           `yaml:"concurrency"`
	Delegation   bool          `yaml:"delegation"`
	Timeout      TimeoutConfig `yaml:"timeout"`
}

func defaultSettings() Settings {
	return Settings{
		DefaultAgent: "claude",
		MaxDepth:     10,
		Concurrency:  8,
		Timeout:      TimeoutConfig{Query: 600, Execute: 1800},
	}
}

// TimeoutFor returns the request timeout for mode.
func (s Settings) TimeoutFor(mode schema.Mode) time.Duration {
	if mode == schema.ModeExecute {
		return time.Duration(s.Timeout.Execute) * time.Second
	}
	return time.Duration(s.Timeout.Query) * time.Second
}

// ScheduleConfig is one recurring root request.
type ScheduleConfig struct {
	Name    string `yaml:"name"`
	Cron    string `yaml:"cron"`
	Text    string `yaml:"text"`
	Mode    string `yaml:"mode,omitempty"`
	Channel string `yaml:"channel,omitempty"` // Slack channel id (or "channel:chat") for the result; empty logs it
	Enabled *bool  `yaml:"enabled,omitempty"` // nil = enabled
}

// IsEnabled reports whether the schedule should be registered.
func (s ScheduleConfig) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"` // e.g. ":9464"; empty disables
}

// Config is the root of crewx.yaml.
type Config struct {
	Agents    []agent.AgentConfig      `yaml:"agents"`
	Settings  Settings                 `yaml:"settings"`
	Slack     channel.SlackConfig      `yaml:"slack"`
	Providers provider.ProvidersConfig `yaml:"providers"`
	Schedules []ScheduleConfig         `yaml:"schedules,omitempty"`
	Metrics   MetricsConfig            `yaml:"metrics"`
}

// DefaultConfig returns a Config populated with the built-in agents and
// default settings.
func DefaultConfig() Config {
	return Config{
		Agents:    agent.DefaultAgents(),
		Settings:  defaultSettings(),
		Slack:     channel.DefaultSlackConfig(),
		Providers: provider.DefaultProvidersConfig(),
	}
}

// Agent returns the agent with the given id.
func (c *Config) Agent(id string) (agent.AgentConfig, bool) {
	for _, a := range c.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return agent.AgentConfig{}, false
}

// AgentIDs returns every agent id in declaration order.
func (c *Config) AgentIDs() []string {
	ids := make([]string, len(c.Agents))
	for i, a := range c.Agents {
		ids[i] = a.ID
	}
	return ids
}

// Validate checks the invariants the rest of crewx relies on.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if !reAgentID.MatchString(a.ID) {
			return fmt.Errorf("agent id %q must match %s", a.ID, reAgentID)
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true
		if a.Provider == "" {
			return fmt.Errorf("agent %q has no provider", a.ID)
		}
	}
	if c.Settings.DefaultAgent != "" && !seen[c.Settings.DefaultAgent] {
		return fmt.Errorf("default agent %q is not configured", c.Settings.DefaultAgent)
	}
	if c.Settings.MaxDepth < 0 || c.Settings.Concurrency < 0 {
		return fmt.Errorf("settings.max_depth and settings.concurrency must not be negative")
	}
	for _, s := range c.Schedules {
		if s.Name == "" || s.Cron == "" {
			return fmt.Errorf("schedule %q needs both name and cron", s.Name)
		}
	}
	return nil
}

// mergeBuiltins appends every built-in agent whose id the file did not
// declare, after the declared ones.
func (c *Config) mergeBuiltins() {
	declared := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		declared[a.ID] = true
	}
	for _, b := range agent.DefaultAgents() {
		if !declared[b.ID] {
			c.Agents = append(c.Agents, b)
		}
	}
}
