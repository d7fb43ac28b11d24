package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sowonlabs/crewx/internal/dependency"
	"github.com/sowonlabs/crewx/internal/metrics"
	"github.com/sowonlabs/crewx/internal/shared/cmdutils"
)

var slackMetricsAddr string

var slackCmd = &cobra.Command{
	Use:   "slack",
	Short: "Run the Slack bot with the scheduler",
	RunE:  runSlack,
}

func init() {
	slackCmd.Flags().StringVar(&slackMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides metrics.addr)")
}

func runSlack(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Slack.Enabled = true
	if cfg.Slack.BotToken == "" || cfg.Slack.AppToken == "" {
		return errors.New("slack needs bot_token and app_token (or SLACK_BOT_TOKEN / SLACK_APP_TOKEN)")
	}
	container, err := dependency.New(cfg, dependency.Version(version))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Channels: %s\n", cmdutils.Mark(true), strings.Join(container.Channels().EnabledChannels(), ", "))
	fmt.Fprintf(out, "%s Agents: %s\n", cmdutils.Mark(true), strings.Join(container.Crew().Agents(), ", "))
	if n := len(container.Scheduler().List()); n > 0 {
		fmt.Fprintf(out, "%s Schedules: %d\n", cmdutils.Mark(true), n)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return container.AgentLoop().Run(gctx) })
	g.Go(func() error { return container.Channels().StartAll(gctx) })
	g.Go(func() error { return container.Scheduler().Start(gctx) })

	addr := slackMetricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		fmt.Fprintf(out, "%s Metrics: http://%s/metrics\n", cmdutils.Mark(true), addr)
		g.Go(func() error { return metrics.Serve(gctx, addr, container.Registry()) })
	}

	fmt.Fprintln(out, "crewx is running. Press Ctrl+C to stop.")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "slack gateway error: %v\n", err)
		return err
	}
	fmt.Fprintln(out, "\nShutdown complete.")
	return nil
}
