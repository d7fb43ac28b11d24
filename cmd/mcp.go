package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the crew as an MCP server over stdio",
	Long: "Speaks JSON-RPC 2.0 on stdin/stdout so MCP clients can list agents,\n" +
		"query or execute a single agent, or run mention text through the crew.\n" +
		"Logs go to stderr.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		container, err := buildContainer()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err = container.MCPServer().Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}
