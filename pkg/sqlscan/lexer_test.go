package sqlscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func kinds(tokens []Token) []Kind {
	out := make([]Kind, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Kind
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		kinds    []Kind
		literals []string
	}{
		{
			name:     "keywords and punctuation",
			input:    "SELECT a, 1 FROM t;",
			kinds:    []Kind{Word, Word, Symbol, Number, Word, Word, Semicolon, EOF},
			literals: []string{"SELECT", "a", ",", "1", "FROM", "t", ";", ""},
		},
		{
			name:     "comments are skipped",
			input:    "-- head\nSELECT /* mid */ 1",
			kinds:    []Kind{Word, Number, EOF},
			literals: []string{"SELECT", "1", ""},
		},
		{
			name:     "doubled quotes",
			input:    `'it''s' "col""x"`,
			kinds:    []Kind{String, QuotedIdent, EOF},
			literals: []string{"it's", `col"x`, ""},
		},
		{
			name:     "dollar quoted body",
			input:    "$fn$ SELECT 1; $fn$ $1",
			kinds:    []Kind{String, Symbol, Number, EOF},
			literals: []string{" SELECT 1; ", "$", "1", ""},
		},
		{
			name:     "parentheses",
			input:    "f(x)",
			kinds:    []Kind{Word, LParen, Word, RParen, EOF},
			literals: []string{"f", "(", "x", ")", ""},
		},
		{
			name:     "unterminated string runs to end",
			input:    "SELECT 'abc",
			kinds:    []Kind{Word, String, EOF},
			literals: []string{"SELECT", "abc", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := Tokenize(tt.input)
			assert.Equal(t, tt.kinds, kinds(tokens))
			literals := make([]string, len(tokens))
			for i, tok := range tokens {
				literals[i] = tok.Literal
			}
			assert.Equal(t, tt.literals, literals)
		})
	}
}

func TestTokenize_Offsets(t *testing.T) {
	input := "  select 'x'"
	tokens := Tokenize(input)
	assert.Equal(t, "select", input[tokens[0].Start:tokens[0].End])
	assert.Equal(t, "'x'", input[tokens[1].Start:tokens[1].End])
	assert.Equal(t, "SELECT", tokens[0].Upper())
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{"single without semicolon", "SELECT 1", []string{"SELECT 1"}},
		{"semicolon in string", "INSERT INTO t VALUES ('a;b'); SELECT 2", []string{"INSERT INTO t VALUES ('a;b')", "SELECT 2"}},
		{"semicolon in identifier", `SELECT "a;b" FROM t`, []string{`SELECT "a;b" FROM t`}},
		{"comment-only chunk dropped", "SELECT 1;\n-- done\n", []string{"SELECT 1"}},
		{"dollar quoted function body", "CREATE FUNCTION f() RETURNS int AS $$ SELECT 1; $$ LANGUAGE sql; SELECT f()",
			[]string{"CREATE FUNCTION f() RETURNS int AS $$ SELECT 1; $$ LANGUAGE sql", "SELECT f()"}},
		{"semicolons in comments", "-- note; here\nSELECT 1; /* a;b */ SELECT 2;", []string{"-- note; here\nSELECT 1", "/* a;b */ SELECT 2"}},
		{"blank statements", "CREATE TABLE t (id INT);\n\n;INSERT INTO t VALUES (1);  ", []string{"CREATE TABLE t (id INT)", "INSERT INTO t VALUES (1)"}},
		{"empty", "  ;; ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.script))
		})
	}
}
