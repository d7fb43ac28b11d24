package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sowonlabs/crewx/internal/agent"
	"github.com/sowonlabs/crewx/internal/schema"
	"github.com/sowonlabs/crewx/internal/shared/cmdutils"
)

// runFlags are shared by query and execute.
type runFlags struct {
	context string
	json    bool
}

var (
	queryFlags   runFlags
	executeFlags runFlags
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Ask the mentioned agents a read-only question",
	Example: `  crewx query "@claude explain internal/dispatch"
  crewx query "@claude:opus @gemini compare these approaches" --context "$(cat notes.md)"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRoot(cmd, args, schema.ModeQuery, queryFlags)
	},
}

var executeCmd = &cobra.Command{
	Use:   "execute <text>",
	Short: "Have the mentioned agents carry out a task",
	Example: `  crewx execute "@codex add tests for the config loader"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRoot(cmd, args, schema.ModeExecute, executeFlags)
	},
}

func init() {
	for _, f := range []struct {
		cmd   *cobra.Command
		flags *runFlags
	}{{queryCmd, &queryFlags}, {executeCmd, &executeFlags}} {
		f.cmd.Flags().StringVar(&f.flags.context, "context", "", "Extra context passed to every agent")
		f.cmd.Flags().BoolVar(&f.flags.json, "json", false, "Print the report as JSON")
	}
}

// runRoot runs one root request. Text comes from args, or stdin when no
// args are given.
func runRoot(cmd *cobra.Command, args []string, mode schema.Mode, flags runFlags) error {
	text := strings.Join(args, " ")
	if strings.TrimSpace(text) == "" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}

	container, err := buildContainer()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := container.Crew().Run(ctx, agent.RunRequest{
		Text:    text,
		Mode:    mode,
		Context: flags.context,
	})
	if errors.Is(err, agent.ErrEmptyInput) {
		return fmt.Errorf("nothing to %s: pass text such as \"@claude hello\"", mode)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flags.json {
		if err := cmdutils.PrintJSON(out, report); err != nil {
			return err
		}
	} else {
		cmdutils.PrintReport(out, report)
	}
	if !report.OK() {
		return errors.New("one or more agents failed")
	}
	return nil
}
