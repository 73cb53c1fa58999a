package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "qrfbt %s\n", Version)
			_, _ = fmt.Fprintf(w, "  commit: %s\n", GitCommit)
			_, _ = fmt.Fprintf(w, "  built:  %s\n", BuildDate)
			_, _ = fmt.Fprintf(w, "  go:     %s\n", runtime.Version())
			return nil
		},
	}
}
