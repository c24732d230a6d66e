// Package cli provides the command-line interface for sqlgate.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/leapstack-labs/sqlgate/internal/cli/commands"
	"github.com/leapstack-labs/sqlgate/internal/cli/config"
	"github.com/leapstack-labs/sqlgate/internal/cli/output"
	"github.com/leapstack-labs/sqlgate/pkg/adapter"
	"github.com/spf13/cobra"

	// Register stores.
	_ "github.com/leapstack-labs/sqlgate/pkg/stores/duckdb"
	_ "github.com/leapstack-labs/sqlgate/pkg/stores/memstore"
	_ "github.com/leapstack-labs/sqlgate/pkg/stores/postgres"
	_ "github.com/leapstack-labs/sqlgate/pkg/stores/sqlite"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "sqlgate",
		Short: "sqlgate - serialized SQL gateway",
		Long: `sqlgate runs SQL against a single store connection.

Every statement goes through one connection guarded by a FIFO lock, and an
open transaction holds that lock until it commits or rolls back. Store errors
come back as structured failures; everything else is reported as an error.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			loader := config.NewLoader()
			cfg, err := loader.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger := config.NewLogger(cfg.Log, cmd.ErrOrStderr())
			if used := loader.FileUsed(); used != "" {
				logger.Debug("using config file", "path", used)
			}

			ctx := config.WithConfig(cmd.Context(), cfg)
			ctx = config.WithLogger(ctx, logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
` + fmt.Sprintf("commit %s, built %s\n", GitCommit, BuildDate))

	// Global persistent flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./sqlgate.yaml)")
	pf.String("store", "", "Store type (sqlite|duckdb|postgres|memory)")
	pf.String("path", "", "Database path for file-based stores (empty for in-memory)")
	pf.String("host", "", "Database host")
	pf.Int("port", 0, "Database port")
	pf.String("database", "", "Database name")
	pf.String("user", "", "Database user")
	pf.String("password", "", "Database password")
	pf.String("schema", "", "Default schema")
	pf.Bool("phantom", false, "Open transactions without sending BEGIN")
	pf.String("log-level", "", "Log level (debug|info|warn|error)")
	pf.String("log-format", "", "Log format (text|json)")
	pf.StringP("output", "o", "", "Output format (auto|table|json|yaml|csv)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return output.Modes(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("store", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return adapter.ListStores(), cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewQueryCommand())
	rootCmd.AddCommand(commands.NewExecCommand())
	rootCmd.AddCommand(commands.NewTxCommand())
	rootCmd.AddCommand(commands.NewREPLCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		// Statement failures were already rendered.
		if !errors.Is(err, commands.ErrStatementFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for sqlgate.

To load completions:

Bash:
  $ source <(sqlgate completion bash)

Zsh:
  $ sqlgate completion zsh > "${fpath[1]}/_sqlgate"

Fish:
  $ sqlgate completion fish | source

PowerShell:
  PS> sqlgate completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
