// File: cmd/check.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/assure-cli/internal/runner"
)

// newCheckCmd creates the `check` command, which validates a script without
// starting a browser.
func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file.assure>",
		Short: "Parses and validates a test script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			commands, _, err := runner.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %d commands\n", args[0], len(commands))
			return nil
		},
	}
}
