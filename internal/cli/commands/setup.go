package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/sqlgate/internal/cli/config"
	"github.com/leapstack-labs/sqlgate/internal/cli/output"
	"github.com/leapstack-labs/sqlgate/pkg/adapter"
	"github.com/leapstack-labs/sqlgate/pkg/core"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Conn     *adapter.Connection
	Renderer *output.Renderer
}

// NewCommandContext opens the configured store and creates a renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cctx := NewCommandContextWithoutConn(cmd)

	conn, err := adapter.Open(cmd.Context(), cctx.Cfg.Store, cctx.Logger,
		adapter.WithTransactionOptions(cctx.Cfg.Transaction))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", cctx.Cfg.Store, err)
	}
	cctx.Conn = conn

	cleanup := func() {
		if err := conn.Close(); err != nil {
			cctx.Logger.Warn("failed to close store", slog.String("error", err.Error()))
		}
	}
	return cctx, cleanup, nil
}

// NewCommandContextWithoutConn creates a CommandContext without a connection.
func NewCommandContextWithoutConn(cmd *cobra.Command) *CommandContext {
	cfg := config.FromContext(cmd.Context())
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}

// ErrStatementFailed reports that a statement returned a classified failure
// that has already been rendered. Callers exit non-zero without printing it again.
var ErrStatementFailed = errors.New("statement failed")

// runStatement runs q as a query or an exec depending on its leading
// keyword and renders the outcome. asQuery forces the query path.
func runStatement(ctx context.Context, r *output.Renderer, runner adapter.Querier, q core.Query, asQuery bool) error {
	if asQuery {
		res, err := runner.QueryRaw(ctx, q)
		if err != nil {
			return err
		}
		if info := res.Error(); info != nil {
			_ = r.Failure(info)
			return ErrStatementFailed
		}
		return r.ResultSet(res.Value())
	}

	res, err := runner.ExecuteRaw(ctx, q)
	if err != nil {
		return err
	}
	if info := res.Error(); info != nil {
		_ = r.Failure(info)
		return ErrStatementFailed
	}
	return r.Affected(res.Value())
}
