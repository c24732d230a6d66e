package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/leapstack-labs/sqlgate/internal/cli/output"
	"github.com/leapstack-labs/sqlgate/pkg/adapter"
	"github.com/leapstack-labs/sqlgate/pkg/core"
	"github.com/leapstack-labs/sqlgate/pkg/sqlscan"
	"github.com/leapstack-labs/sqlgate/pkg/stores/sqlstore"
	"github.com/spf13/cobra"
)

// NewTxCommand creates the tx command.
func NewTxCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tx <FILE>",
		Short: "Run a SQL script in a single transaction",
		Long: `Run every semicolon-separated statement of a script inside one transaction.

The transaction commits when all statements succeed. The first statement that
fails rolls it back and stops the script. Use "-" to read the script from stdin.`,
		Example: `  sqlgate tx migrate.sql
  cat seed.sql | sqlgate tx -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := readScript(cmd, args[0])
			if err != nil {
				return err
			}

			cctx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runScript(cmd.Context(), cctx.Renderer, cctx.Logger, cctx.Conn, sqlscan.Split(script))
		},
	}
}

func readScript(cmd *cobra.Command, path string) (string, error) {
	var (
		content []byte
		err     error
	)
	if path == "-" {
		content, err = io.ReadAll(cmd.InOrStdin())
	} else {
		content, err = os.ReadFile(path) //nolint:gosec // script path is supplied by the user
	}
	if err != nil {
		return "", fmt.Errorf("failed to read script: %w", err)
	}
	return string(content), nil
}

// runScript runs stmts in one transaction, committing on success and
// rolling back at the first failure.
func runScript(ctx context.Context, r *output.Renderer, logger *slog.Logger, conn *adapter.Connection, stmts []string) error {
	if len(stmts) == 0 {
		return fmt.Errorf("script contains no statements")
	}

	txRes, err := conn.StartTransaction(ctx)
	if err != nil {
		return err
	}
	if info := txRes.Error(); info != nil {
		_ = r.Failure(info)
		return ErrStatementFailed
	}
	tx := txRes.Value()

	for i, stmt := range stmts {
		err := runStatement(ctx, r, tx, core.NewQuery(stmt), sqlstore.ReturnsRows(stmt))
		if err == nil {
			continue
		}
		if _, rbErr := tx.Rollback(ctx); rbErr != nil {
			logger.Error("rollback failed", slog.String("tx", tx.ID()), slog.String("error", rbErr.Error()))
		}
		if errors.Is(err, ErrStatementFailed) {
			r.Status("rolled back: statement %d of %d failed", i+1, len(stmts))
			return err
		}
		return fmt.Errorf("statement %d: %w", i+1, err)
	}

	commit, err := tx.Commit(ctx)
	if err != nil {
		return err
	}
	if info := commit.Error(); info != nil {
		_ = r.Failure(info)
		return ErrStatementFailed
	}
	r.Status("committed %d statements", len(stmts))
	return nil
}
