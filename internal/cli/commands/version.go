package commands

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/leapstack-labs/sqlgate/pkg/adapter"
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display sqlgate version, Go runtime and the registered store types.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sqlgate v%s (%s)\n", version, runtime.Version())
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stores: %s\n", strings.Join(adapter.ListStores(), ", "))
		},
	}
}
