package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the default config file name.
const FileName = "crewx.yaml"

// DataDir returns the per-user crewx directory: ~/.crewx.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".crewx"
	}
	return filepath.Join(home, ".crewx")
}

// ConfigPath returns the per-user config file path: ~/.crewx/crewx.yaml.
func ConfigPath() string {
	return filepath.Join(DataDir(), FileName)
}

// SearchPaths lists the locations Resolve tries, in order.
func SearchPaths() []string {
	return []string{FileName, "agents.yaml", ConfigPath()}
}

// Resolve returns explicit when set, else the first existing file from
// SearchPaths, else "".
func Resolve(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, p := range SearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Load reads and parses the config file at path.
// If path is empty, Resolve is used; when no file exists the defaults are
// returned. Built-in agents are merged in and env fallbacks applied.
func Load(path string) (*Config, error) {
	path = Resolve(path)

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := decode(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.mergeBuiltins()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// decode unmarshals on top of the defaults already in cfg. A file that
// declares agents replaces the default list; mergeBuiltins adds back the
// built-ins it did not override.
func decode(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	cfg.Agents = nil
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

func (c *Config) applyEnv() {
	if c.Slack.BotToken == "" {
		c.Slack.BotToken = os.Getenv("SLACK_BOT_TOKEN")
	}
	if c.Slack.AppToken == "" {
		c.Slack.AppToken = os.Getenv("SLACK_APP_TOKEN")
	}
	if c.Providers.Anthropic.APIKey == "" {
		c.Providers.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if c.Providers.OpenAI.APIKey == "" {
		c.Providers.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// Save writes cfg to path as YAML.
// If path is empty, ConfigPath() is used.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
