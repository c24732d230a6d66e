package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/sqlgate/internal/cli/config"
	clitest "github.com/leapstack-labs/sqlgate/internal/cli/testutil"
	"github.com/leapstack-labs/sqlgate/internal/testutil"
	"github.com/leapstack-labs/sqlgate/pkg/adapter"
	"github.com/leapstack-labs/sqlgate/pkg/core"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cmdResult struct {
	Out    string
	ErrOut string
	Err    error
}

// runCommand executes cmd with cfg in its context.
func runCommand(t *testing.T, cmd *cobra.Command, cfg *config.Config, stdin string, args ...string) cmdResult {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	ctx := config.WithConfig(context.Background(), cfg)
	ctx = config.WithLogger(ctx, testutil.NewTestLogger(t))
	err := cmd.ExecuteContext(ctx)
	return cmdResult{Out: out.String(), ErrOut: errOut.String(), Err: err}
}

// sqliteConfig returns a config for a fresh file-backed SQLite database.
func sqliteConfig(t *testing.T, format string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.OutputFormat = format
	return cfg
}

func mustExec(t *testing.T, cfg *config.Config, sql string, args ...string) {
	t.Helper()
	res := runCommand(t, NewExecCommand(), cfg, "", append([]string{sql}, args...)...)
	require.NoError(t, res.Err, res.Out+res.ErrOut)
}

func TestQueryAndExecCommands(t *testing.T) {
	cfg := sqliteConfig(t, "json")
	mustExec(t, cfg, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT UNIQUE, age INTEGER)")

	res := runCommand(t, NewExecCommand(), cfg, "", "INSERT INTO users (name, age) VALUES (?, ?), (?, ?)", "alice", "30", "bob", "null")
	require.NoError(t, res.Err)
	assert.JSONEq(t, `{"affectedRows": 2}`, res.Out)

	res = runCommand(t, NewQueryCommand(), cfg, "", "SELECT name, age FROM users WHERE id >= ? ORDER BY id", "1")
	require.NoError(t, res.Err)

	var doc struct {
		ColumnNames []string `json:"columnNames"`
		Rows        [][]any  `json:"rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Out), &doc))
	assert.Equal(t, []string{"name", "age"}, doc.ColumnNames)
	assert.Equal(t, [][]any{{"alice", float64(30)}, {"bob", nil}}, doc.Rows)
}

func TestQueryCommand_StoreFailure(t *testing.T) {
	cfg := sqliteConfig(t, "json")

	res := runCommand(t, NewQueryCommand(), cfg, "", "SELECT * FROM nowhere")
	require.ErrorIs(t, res.Err, ErrStatementFailed)

	var doc struct {
		OK    bool `json:"ok"`
		Error struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Out), &doc))
	assert.False(t, doc.OK)
	assert.Equal(t, "Store", doc.Error.Kind)
	assert.Contains(t, doc.Error.Message, "nowhere")
}

func TestQueryCommand_Input(t *testing.T) {
	cfg := sqliteConfig(t, "csv")

	t.Run("stdin", func(t *testing.T) {
		res := runCommand(t, NewQueryCommand(), cfg, "SELECT 7 AS n\n")
		require.NoError(t, res.Err)
		assert.Equal(t, "n\n7\n", res.Out)
	})

	t.Run("file", func(t *testing.T) {
		path := clitest.WriteFile(t, t.TempDir(), "q.sql", "SELECT ? AS v")
		res := runCommand(t, NewQueryCommand(), cfg, "", "--input", path, "hello")
		require.NoError(t, res.Err)
		assert.Equal(t, "v\nhello\n", res.Out)
	})

	t.Run("nothing", func(t *testing.T) {
		res := runCommand(t, NewQueryCommand(), cfg, "")
		require.Error(t, res.Err)
		assert.Contains(t, res.Err.Error(), "no SQL given")
	})
}

func TestQueryCommand_UnknownStore(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Type = "oracle"

	res := runCommand(t, NewQueryCommand(), cfg, "", "SELECT 1")
	require.Error(t, res.Err)
	var unknown *adapter.UnknownStoreError
	assert.ErrorAs(t, res.Err, &unknown)
}

func countUsers(t *testing.T, cfg *config.Config) string {
	t.Helper()
	res := runCommand(t, NewQueryCommand(), cfg, "", "SELECT COUNT(*) AS n FROM users")
	require.NoError(t, res.Err)
	return strings.TrimPrefix(strings.TrimSpace(res.Out), "n\n")
}

func TestTxCommand(t *testing.T) {
	cfg := sqliteConfig(t, "csv")
	mustExec(t, cfg, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT UNIQUE)")

	t.Run("commits script", func(t *testing.T) {
		path := clitest.WriteFile(t, t.TempDir(), "ok.sql", `
INSERT INTO users (name) VALUES ('a');
INSERT INTO users (name) VALUES ('b; c');
SELECT COUNT(*) AS n FROM users;
`)
		res := runCommand(t, NewTxCommand(), cfg, "", path)
		require.NoError(t, res.Err, res.ErrOut)
		assert.Contains(t, res.Out, "affected_rows\n1\n")
		assert.Contains(t, res.Out, "n\n2\n")
		assert.Contains(t, res.ErrOut, "committed 3 statements")
		assert.Equal(t, "2", countUsers(t, cfg))
	})

	t.Run("rolls back at first failure", func(t *testing.T) {
		script := "INSERT INTO users (name) VALUES ('z'); INSERT INTO users (name) VALUES ('a'); INSERT INTO users (name) VALUES ('y');"
		res := runCommand(t, NewTxCommand(), cfg, script, "-")
		require.ErrorIs(t, res.Err, ErrStatementFailed)
		assert.Contains(t, res.ErrOut, "rolled back: statement 2 of 3 failed")
		assert.Equal(t, "2", countUsers(t, cfg))
	})

	t.Run("empty script", func(t *testing.T) {
		res := runCommand(t, NewTxCommand(), cfg, " ; ", "-")
		require.Error(t, res.Err)
		assert.Contains(t, res.Err.Error(), "no statements")
	})
}

func TestREPLSession(t *testing.T) {
	ctx := context.Background()
	conn, err := adapter.Open(ctx, core.StoreConfig{Type: "sqlite"}, testutil.NewTestLogger(t))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	tr := clitest.NewTestRenderer("csv", false)
	var help bytes.Buffer
	sess := newSession(conn, tr.Renderer, testutil.NewTestLogger(t), &help)

	feed := func(lines ...string) {
		for _, line := range lines {
			assert.False(t, sess.handleLine(ctx, line))
		}
	}

	feed("CREATE TABLE t (id INTEGER);")
	assert.Equal(t, promptIdle, sess.prompt())

	feed(".begin")
	assert.Equal(t, promptTx, sess.prompt())

	feed("INSERT INTO t", "VALUES (1);")
	assert.Contains(t, tr.Output(), "affected_rows\n1\n")

	feed("INSERT INTO t")
	assert.Equal(t, promptMulti, sess.prompt())
	feed("VALUES (2);")

	feed(".rollback")
	assert.Equal(t, promptIdle, sess.prompt())
	assert.Contains(t, tr.ErrorOutput(), "rolled back")

	tr.Reset()
	feed("SELECT COUNT(*) AS n FROM t;")
	assert.Equal(t, "n\n0\n", tr.Output())

	feed(".begin", "INSERT INTO t VALUES (3);", ".commit")
	assert.Contains(t, tr.ErrorOutput(), "committed")

	tr.Reset()
	feed(".commit", ".nope", "SELECT * FROM missing;")
	assert.Contains(t, tr.ErrorOutput(), "no transaction")
	assert.Contains(t, tr.ErrorOutput(), "Unknown command: .nope")
	assert.Contains(t, tr.ErrorOutput(), "no such table")
	clitest.AssertNoANSI(t, tr.ErrorOutput())

	feed(".help")
	assert.Contains(t, help.String(), ".begin")

	// An open transaction is rolled back when the session ends.
	feed(".begin", "INSERT INTO t VALUES (4);")
	assert.True(t, sess.handleLine(ctx, ".quit"))
	sess.close(ctx)

	tr.Reset()
	feed("SELECT COUNT(*) AS n FROM t;")
	assert.Equal(t, "n\n1\n", tr.Output())
}

func TestRunScript_JSON(t *testing.T) {
	ctx := context.Background()
	conn, err := adapter.Open(ctx, core.StoreConfig{Type: "sqlite"}, testutil.NewTestLogger(t))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	tr := clitest.NewTestRendererJSON()
	err = runScript(ctx, tr.Renderer, testutil.NewTestLogger(t), conn, []string{
		"CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)",
		"INSERT INTO t (name) VALUES ('a'), ('b') RETURNING id",
		"UPDATE t SET name = 'c'",
	})
	require.NoError(t, err, tr.ErrorOutput())
	assert.Contains(t, tr.ErrorOutput(), "committed 3 statements")

	dec := json.NewDecoder(strings.NewReader(tr.Output()))
	var docs []map[string]any
	for dec.More() {
		var doc map[string]any
		require.NoError(t, dec.Decode(&doc))
		docs = append(docs, doc)
	}
	require.Len(t, docs, 3)
	assert.Equal(t, []any{"id"}, docs[1]["columnNames"])
	assert.Len(t, docs[1]["rows"], 2)
	assert.Equal(t, float64(2), docs[2]["affectedRows"])
}
