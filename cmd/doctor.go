package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sowonlabs/crewx/internal/config"
	cfgagent "github.com/sowonlabs/crewx/internal/config/agent"
	"github.com/sowonlabs/crewx/internal/providers"
	"github.com/sowonlabs/crewx/internal/shared/cmdutils"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check config, agent CLIs and API keys",
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	path := config.Resolve(configPath)
	if path == "" {
		fmt.Fprintf(out, "Config:    %s\n", cmdutils.Dim("(none found, using built-in defaults)"))
	} else {
		_, statErr := os.Stat(path)
		fmt.Fprintf(out, "Config:    %s %s\n", path, cmdutils.Mark(statErr == nil))
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(out, "  %s\n", cmdutils.Warn("could not load config: %v", err))
		return nil
	}

	used := make(map[string][]string)
	for _, a := range cfg.Agents {
		used[a.Provider] = append(used[a.Provider], "@"+a.ID)
	}

	fmt.Fprintln(out, "\nProviders:")
	problems := 0
	for _, spec := range providers.PROVIDERS {
		agents := used[spec.Name]
		ok, detail := checkProvider(spec, cfg)
		if !ok && len(agents) > 0 {
			problems++
		}
		line := fmt.Sprintf("  %s %-20s %s", cmdutils.Mark(ok), spec.Label(), detail)
		if len(agents) > 0 {
			line += cmdutils.Dim(fmt.Sprintf("  used by %v", agents))
		}
		fmt.Fprintln(out, line)
	}

	fmt.Fprintln(out, "\nSlack:")
	slackReady := cfg.Slack.BotToken != "" && cfg.Slack.AppToken != ""
	fmt.Fprintf(out, "  %s tokens %s\n", cmdutils.Mark(slackReady), cmdutils.Dim("(bot_token, app_token)"))

	if problems > 0 {
		fmt.Fprintf(out, "\n%s\n", cmdutils.Warn("%d provider(s) used by configured agents are not ready", problems))
	}
	return nil
}

// checkProvider reports whether spec can be used and a short detail line.
func checkProvider(spec providers.ProviderSpec, cfg *config.Config) (bool, string) {
	if spec.Kind == providers.KindCLI {
		if path, ok := providers.NewCLIProvider(spec).Available(); ok {
			return true, path
		}
		return false, fmt.Sprintf("%q not found on PATH", spec.Binary)
	}

	key := ""
	switch spec.Name {
	case cfgagent.ProviderAnthropic:
		key = cfg.Providers.Anthropic.APIKey
	case cfgagent.ProviderOpenAI:
		key = cfg.Providers.OpenAI.APIKey
	}
	if key == "" {
		return false, fmt.Sprintf("no API key (set %s)", spec.EnvKey)
	}
	return true, "API key set"
}
