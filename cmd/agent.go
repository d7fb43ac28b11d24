package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sowonlabs/crewx/internal/providers"
	"github.com/sowonlabs/crewx/internal/shared/cmdutils"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Inspect configured agents",
}

var agentListJSON bool

var agentListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List the agents crewx can address",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if agentListJSON {
			return cmdutils.PrintJSON(out, cfg.Agents)
		}

		tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tPROVIDER\tMODEL\tNAME\tDESCRIPTION")
		for _, a := range cfg.Agents {
			provider := a.Provider
			if spec := providers.FindByName(a.Provider); spec != nil {
				provider = spec.Label()
			}
			fmt.Fprintf(tw, "@%s\t%s\t%s\t%s\t%s\n", a.ID, provider, dash(a.Model), a.DisplayName(), a.Description)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(out, cmdutils.Dim("default: @"+cfg.Settings.DefaultAgent))
		return nil
	},
}

func init() {
	agentListCmd.Flags().BoolVar(&agentListJSON, "json", false, "Print as JSON")
	agentCmd.AddCommand(agentListCmd)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
