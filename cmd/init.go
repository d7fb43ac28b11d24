package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sowonlabs/crewx/internal/config"
	"github.com/sowonlabs/crewx/internal/shared/cmdutils"
)

var (
	initGlobal bool
	initForce  bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default crewx.yaml",
	Long: "Writes ./crewx.yaml (or ~/.crewx/crewx.yaml with --global, or the\n" +
		"--config path) containing the built-in agents and default settings.",
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initGlobal, "global", "g", false, "Write ~/.crewx/crewx.yaml")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing file")
}

func runInit(cmd *cobra.Command, _ []string) error {
	path := config.FileName
	switch {
	case configPath != "":
		path = configPath
	case initGlobal:
		path = config.ConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.DefaultConfig()
	if err := config.Save(&cfg, path); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Created %s\n\n", cmdutils.Mark(true), path)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. crewx doctor            # check which agent CLIs are installed")
	fmt.Fprintln(out, "  2. crewx query \"@claude hello\"")
	return nil
}
