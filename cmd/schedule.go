package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sowonlabs/crewx/internal/schedule"
	"github.com/sowonlabs/crewx/internal/shared/cmdutils"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Inspect and trigger configured schedules",
}

var scheduleListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List configured schedules and their next run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(cfg.Schedules) == 0 {
			fmt.Fprintln(out, "No schedules configured.")
			return nil
		}

		now := time.Now()
		tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tCRON\tMODE\tCHANNEL\tNEXT RUN\tTEXT")
		for _, s := range cfg.Schedules {
			next := "disabled"
			if s.IsEnabled() {
				if sched, err := schedule.Parser.Parse(s.Cron); err == nil {
					next = sched.Next(now).Format("2006-01-02 15:04")
				} else {
					next = "invalid"
				}
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", s.Name, s.Cron, dash(s.Mode), dash(s.Channel), next, s.Text)
		}
		return tw.Flush()
	},
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Fire a schedule once, now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := buildContainer()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reply, err := container.Scheduler().RunNow(ctx, args[0])
		if reply != "" {
			fmt.Fprintln(cmd.OutOrStdout(), reply)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cmdutils.Dim("note: channel delivery only happens under `crewx slack`"))
		return nil
	},
}

func init() {
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)
}
