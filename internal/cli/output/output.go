// Package output renders gateway results for the CLI.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/sqlgate/pkg/core"
	"github.com/leapstack-labs/sqlgate/pkg/result"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Mode selects the output format.
type Mode string

// Output modes.
const (
	ModeAuto  Mode = "auto"
	ModeTable Mode = "table"
	ModeJSON  Mode = "json"
	ModeYAML  Mode = "yaml"
	ModeCSV   Mode = "csv"
)

// Modes lists the accepted output modes.
func Modes() []string {
	return []string{string(ModeAuto), string(ModeTable), string(ModeJSON), string(ModeYAML), string(ModeCSV)}
}

// Styles holds terminal styles for human-readable output.
type Styles struct {
	Error   lipgloss.Style
	Success lipgloss.Style
	Muted   lipgloss.Style
}

// DefaultStyles returns the styles used on a terminal.
func DefaultStyles() *Styles {
	return &Styles{
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// plainStyles renders text unchanged.
func plainStyles() *Styles {
	return &Styles{Error: lipgloss.NewStyle(), Success: lipgloss.NewStyle(), Muted: lipgloss.NewStyle()}
}

// Renderer writes results to out and diagnostics to errOut.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	styles *Styles
}

// NewRenderer creates a renderer. ModeAuto resolves to a table on a terminal
// and JSON otherwise.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	return NewRendererWithTTY(out, errOut, isTerminal(out), mode)
}

// NewRendererWithTTY creates a renderer with an explicit TTY state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	mode = Mode(strings.ToLower(string(mode)))
	if mode == "" || mode == ModeAuto {
		mode = ModeJSON
		if isTTY {
			mode = ModeTable
		}
	}
	styles := plainStyles()
	if isTTY {
		styles = DefaultStyles()
	}
	return &Renderer{out: out, errOut: errOut, mode: mode, styles: styles}
}

// Mode returns the resolved output mode.
func (r *Renderer) Mode() Mode {
	return r.mode
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ResultSet renders rows from a query.
func (r *Renderer) ResultSet(rs *core.ResultSet) error {
	doc := newResultSetDoc(rs)
	switch r.mode {
	case ModeJSON:
		return r.encodeJSON(doc)
	case ModeYAML:
		return r.encodeYAML(doc)
	case ModeCSV:
		return r.csv(doc.ColumnNames, doc.Rows)
	default:
		return r.table(doc.ColumnNames, doc.Rows)
	}
}

// Affected renders the row count of a statement.
func (r *Renderer) Affected(n uint32) error {
	switch r.mode {
	case ModeJSON:
		return r.encodeJSON(map[string]any{"affectedRows": n})
	case ModeYAML:
		return r.encodeYAML(map[string]any{"affectedRows": n})
	case ModeCSV:
		return r.csv([]string{"affected_rows"}, [][]any{{n}})
	default:
		_, err := fmt.Fprintln(r.out, r.styles.Success.Render(fmt.Sprintf("%d rows affected", n)))
		return err
	}
}

// Failure renders a classified failure returned by the store.
func (r *Renderer) Failure(info *result.ErrorInfo) error {
	switch r.mode {
	case ModeJSON:
		return r.encodeJSON(failureDoc{OK: false, Error: info})
	case ModeYAML:
		return r.encodeYAML(failureDoc{OK: false, Error: info})
	default:
		_, err := fmt.Fprintln(r.errOut, r.styles.Error.Render("Error: "+info.Error()))
		return err
	}
}

// Status writes a human-readable status line to the diagnostic stream.
func (r *Renderer) Status(format string, args ...any) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Muted.Render(fmt.Sprintf(format, args...)))
}

type resultSetDoc struct {
	ColumnNames  []string          `json:"columnNames" yaml:"columnNames"`
	ColumnTypes  []core.ColumnType `json:"columnTypes" yaml:"columnTypes"`
	Rows         [][]any           `json:"rows" yaml:"rows"`
	LastInsertID *string           `json:"lastInsertId,omitempty" yaml:"lastInsertId,omitempty"`
}

func newResultSetDoc(rs *core.ResultSet) resultSetDoc {
	return resultSetDoc{
		ColumnNames:  rs.ColumnNames,
		ColumnTypes:  rs.ColumnTypes,
		Rows:         displayRows(rs.Rows),
		LastInsertID: rs.LastInsertID,
	}
}

type failureDoc struct {
	OK    bool              `json:"ok" yaml:"ok"`
	Error *result.ErrorInfo `json:"error" yaml:"error"`
}

func (r *Renderer) encodeJSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *Renderer) encodeYAML(v any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func (r *Renderer) table(cols []string, rows [][]any) error {
	if len(cols) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(r.out)
		t.SetStyle(table.StyleLight)

		header := make(table.Row, len(cols))
		for i, col := range cols {
			header[i] = col
		}
		t.AppendHeader(header)

		for _, row := range rows {
			tr := make(table.Row, len(row))
			for i, v := range row {
				tr[i] = formatValue(v)
			}
			t.AppendRow(tr)
		}
		t.Render()
	}
	_, err := fmt.Fprintln(r.out, r.styles.Muted.Render(fmt.Sprintf("(%d rows)", len(rows))))
	return err
}

func (r *Renderer) csv(cols []string, rows [][]any) error {
	w := csv.NewWriter(r.out)
	if err := w.Write(cols); err != nil {
		return err
	}
	for _, row := range rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = formatValue(v)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// displayRows converts []byte cells to strings for readability.
func displayRows(rows [][]any) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		values := make([]any, len(row))
		for j, v := range row {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			values[j] = v
		}
		out[i] = values
	}
	return out
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}
