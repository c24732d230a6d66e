package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/sqlgate/internal/cli/output"
	"github.com/leapstack-labs/sqlgate/pkg/adapter"
	"github.com/leapstack-labs/sqlgate/pkg/core"
	"github.com/leapstack-labs/sqlgate/pkg/sqlscan"
	"github.com/leapstack-labs/sqlgate/pkg/stores/sqlstore"
	"github.com/spf13/cobra"
)

const (
	promptIdle  = "sqlgate> "
	promptTx    = "sqlgate*> "
	promptMulti = "    ...> "
)

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive SQL session",
		Long: `Start an interactive session on the configured store.

Statements end with a semicolon and may span lines. Use .begin to open a
transaction; statements then run inside it until .commit or .rollback.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cctx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return runREPL(cmd, cctx)
		},
	}
}

func runREPL(cmd *cobra.Command, cctx *CommandContext) error {
	ctx := cmd.Context()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          promptIdle,
		HistoryFile:     historyFile(),
		AutoComplete:    newDotCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sqlgate REPL (store: %s)\n", cctx.Cfg.Store)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	sess := newSession(cctx.Conn, cctx.Renderer, cctx.Logger, cmd.OutOrStdout())
	defer sess.close(ctx)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			sess.buf.Reset()
			rl.SetPrompt(sess.prompt())
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		if quit := sess.handleLine(ctx, line); quit {
			break
		}
		rl.SetPrompt(sess.prompt())
	}
	return nil
}

// session holds REPL state: the pending multi-line statement and the open
// transaction, if any.
type session struct {
	conn     *adapter.Connection
	tx       *adapter.Transaction
	renderer *output.Renderer
	logger   *slog.Logger
	out      io.Writer
	buf      strings.Builder
}

func newSession(conn *adapter.Connection, r *output.Renderer, logger *slog.Logger, out io.Writer) *session {
	return &session{conn: conn, renderer: r, logger: logger, out: out}
}

func (s *session) prompt() string {
	switch {
	case s.buf.Len() > 0:
		return promptMulti
	case s.tx != nil:
		return promptTx
	default:
		return promptIdle
	}
}

// handleLine processes one input line and reports whether the session should end.
func (s *session) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if s.buf.Len() == 0 && strings.HasPrefix(line, ".") {
		return s.handleDotCommand(ctx, line)
	}

	// Accumulate multi-line SQL until semicolon
	s.buf.WriteString(line)
	if !strings.HasSuffix(line, ";") {
		s.buf.WriteString("\n")
		return false
	}

	stmts := sqlscan.Split(s.buf.String())
	s.buf.Reset()
	for _, stmt := range stmts {
		s.run(ctx, stmt)
	}
	return false
}

func (s *session) run(ctx context.Context, stmt string) {
	var runner adapter.Querier = s.conn
	if s.tx != nil {
		runner = s.tx
	}
	err := runStatement(ctx, s.renderer, runner, core.NewQuery(stmt), sqlstore.ReturnsRows(stmt))
	if err != nil && !errors.Is(err, ErrStatementFailed) {
		s.renderer.Status("Error: %v", err)
	}
}

func (s *session) handleDotCommand(ctx context.Context, line string) bool {
	switch strings.ToLower(strings.Fields(line)[0]) {
	case ".quit", ".exit":
		return true
	case ".help":
		printREPLHelp(s.out)
	case ".begin":
		s.begin(ctx)
	case ".commit":
		s.commit(ctx)
	case ".rollback":
		s.rollback(ctx)
	case ".status":
		if s.tx != nil {
			s.renderer.Status("transaction %s open", s.tx.ID())
		} else {
			s.renderer.Status("no transaction")
		}
	default:
		s.renderer.Status("Unknown command: %s (type .help for commands)", line)
	}
	return false
}

func (s *session) begin(ctx context.Context) {
	if s.tx != nil {
		s.renderer.Status("transaction %s already open", s.tx.ID())
		return
	}
	res, err := s.conn.StartTransaction(ctx)
	if err != nil {
		s.renderer.Status("Error: %v", err)
		return
	}
	if info := res.Error(); info != nil {
		_ = s.renderer.Failure(info)
		return
	}
	s.tx = res.Value()
	s.renderer.Status("transaction %s started", s.tx.ID())
}

func (s *session) commit(ctx context.Context) {
	if s.tx == nil {
		s.renderer.Status("no transaction")
		return
	}
	tx := s.tx
	s.tx = nil

	res, err := tx.Commit(ctx)
	if err != nil {
		s.renderer.Status("Error: %v", err)
		return
	}
	if info := res.Error(); info != nil {
		_ = s.renderer.Failure(info)
		return
	}
	s.renderer.Status("committed")
}

func (s *session) rollback(ctx context.Context) {
	if s.tx == nil {
		s.renderer.Status("no transaction")
		return
	}
	tx := s.tx
	s.tx = nil

	if _, err := tx.Rollback(ctx); err != nil {
		s.renderer.Status("Error: %v", err)
		return
	}
	s.renderer.Status("rolled back")
}

// close rolls back a transaction left open when the session ends.
func (s *session) close(ctx context.Context) {
	if s.tx == nil {
		return
	}
	s.logger.Debug("rolling back open transaction on exit", slog.String("tx", s.tx.ID()))
	s.rollback(ctx)
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .begin          Start a transaction
  .commit         Commit the open transaction
  .rollback       Roll back the open transaction
  .status         Show whether a transaction is open
  .quit / .exit   Exit the REPL (rolls back an open transaction)

Tips:
  - SQL statements must end with a semicolon (;)
  - Use arrow keys to navigate history
`
	_, _ = fmt.Fprintln(w, help)
}

func newDotCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".begin"),
		readline.PcItem(".commit"),
		readline.PcItem(".rollback"),
		readline.PcItem(".status"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}

// historyFile returns the REPL history path, or "" to disable history.
func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "sqlgate")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ""
	}
	return filepath.Join(dir, "history")
}
