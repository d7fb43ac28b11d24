// Package cmd implements the crewx CLI using cobra.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sowonlabs/crewx/internal/config"
	"github.com/sowonlabs/crewx/internal/dependency"
)

const version = "0.1.0"

var (
	configPath string
	logLevel   string
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "crewx",
	Short: "crewx - address AI agents with @mentions",
	Long: "crewx routes free text to the AI agents it mentions, e.g.\n\n" +
		"  crewx query \"@claude @gemini review this diff\"\n\n" +
		"Mentioned agents run in parallel; nested delegation is tracked as a call stack.",
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return setupLogging(logLevel)
	},
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./crewx.yaml, ./agents.yaml, ~/.crewx/crewx.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(executeCmd)
	rootCmd.AddCommand(slackCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(scheduleCmd)
}

// setupLogging installs a text handler on stderr; stdout carries command
// output and, for `crewx mcp`, the protocol stream.
func setupLogging(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return fmt.Errorf("invalid --log-level %q", level)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return nil
}

// loadConfig resolves and loads the config selected by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// buildContainer loads the config and wires every service.
func buildContainer() (*dependency.Container, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return dependency.New(cfg, dependency.Version(version))
}
