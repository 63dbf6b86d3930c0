// Command ox serves a local language model over an OpenAI-compatible HTTP
// API and writes commit messages from staged changes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ox:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ox",
		Short:         "Local streaming inference server and commit message writer",
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
		},
	}
	d := defaults()
	pf := root.PersistentFlags()
	pf.String("config", "", "Config file (.yaml, .yml, .json or .toml)")
	pf.String("log-level", d.LogLevel, "Log level: debug|info|warn|error|off")
	pf.String("log-format", d.LogFormat, "Log format: auto|console|json")
	pf.BoolP("verbose", "v", false, "Shorthand for --log-level=debug")

	cobra.EnableCommandSorting = false
	root.AddCommand(newServeCmd(), newCommitCmd(), newTrainCmd(), newVersionCmd())
	return root
}
