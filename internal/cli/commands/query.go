package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/sqlgate/pkg/core"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// StatementOptions holds options shared by the query and exec commands.
type StatementOptions struct {
	Input string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &StatementOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL] [ARGS...]",
		Short: "Run a statement and print the rows it returns",
		Long: `Run one statement through the gateway and render its result set.

Arguments after the SQL are bound to its placeholders in order. Numbers,
true, false and null are converted; wrap a value in single quotes to pass it
as text. Without SQL on the command line, the statement is read from --input
or from piped stdin.`,
		Example: `  sqlgate query "SELECT * FROM users WHERE id = ?" 42
  sqlgate query "SELECT name FROM users" -o csv
  echo "SELECT 1" | sqlgate query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlStr, rest, err := readStatement(cmd, args, opts)
			if err != nil {
				return err
			}

			cctx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runStatement(cmd.Context(), cctx.Renderer, cctx.Conn, core.NewQuery(sqlStr, parseArgs(rest)...), true)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	return cmd
}

// NewExecCommand creates the exec command.
func NewExecCommand() *cobra.Command {
	opts := &StatementOptions{}

	cmd := &cobra.Command{
		Use:   "exec [SQL] [ARGS...]",
		Short: "Run a statement and print the number of affected rows",
		Long: `Run one data-modifying statement through the gateway and report how many
rows it changed. Arguments are bound the same way as for query.`,
		Example: `  sqlgate exec "INSERT INTO users (name) VALUES (?)" alice
  sqlgate exec "DELETE FROM sessions WHERE expires_at < ?" 1700000000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlStr, rest, err := readStatement(cmd, args, opts)
			if err != nil {
				return err
			}

			cctx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runStatement(cmd.Context(), cctx.Renderer, cctx.Conn, core.NewQuery(sqlStr, parseArgs(rest)...), false)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	return cmd
}

// readStatement determines the SQL source: the first argument, --input, or
// piped stdin. It returns the SQL and the remaining positional arguments.
func readStatement(cmd *cobra.Command, args []string, opts *StatementOptions) (string, []string, error) {
	switch {
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read file: %w", err)
		}
		return strings.TrimSpace(string(content)), args, nil
	case len(args) > 0:
		return args[0], args[1:], nil
	case !isTerminal(cmd.InOrStdin()):
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		if s := strings.TrimSpace(string(content)); s != "" {
			return s, nil, nil
		}
	}
	return "", nil, fmt.Errorf("no SQL given (use 'sqlgate repl' for interactive mode)")
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
