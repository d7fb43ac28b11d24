// Package cmdutils holds terminal output helpers shared by the CLI commands.
package cmdutils

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/sowonlabs/crewx/internal/agent"
	"github.com/sowonlabs/crewx/internal/schema"
)

var (
	green  = color.New(color.FgGreen, color.Bold).SprintFunc()
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

// Mark renders a coloured check or cross.
func Mark(ok bool) string {
	if ok {
		return green("✓")
	}
	return red("✗")
}

// Warn formats a warning line.
func Warn(format string, args ...any) string {
	return yellow("! " + fmt.Sprintf(format, args...))
}

// Dim formats secondary text.
func Dim(s string) string { return gray(s) }

// PrintReport writes one coloured block per result, delegated results
// after the top-level ones, then any parse errors.
func PrintReport(w io.Writer, r agent.Report) {
	for _, res := range r.Results {
		printResult(w, "@"+res.AgentID, res)
	}
	for _, d := range r.Delegations {
		for _, res := range d.Results {
			printResult(w, fmt.Sprintf("@%s -> @%s (round %d)", d.From, res.AgentID, d.Round), res)
		}
	}
	for _, e := range r.Errors {
		fmt.Fprintln(w, Warn("%s", e))
	}
	fmt.Fprintln(w, Dim("root "+r.RootID))
}

func printResult(w io.Writer, label string, res schema.QueryResult) {
	if !res.Success {
		fmt.Fprintf(w, "%s %s\n%s\n\n", Mark(false), cyan(label), red(res.Error))
		return
	}
	fmt.Fprintf(w, "%s %s\n%s\n\n", Mark(true), cyan(label), strings.TrimSpace(res.Content))
}

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
