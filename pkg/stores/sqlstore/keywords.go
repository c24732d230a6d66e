package sqlstore

import (
	"github.com/leapstack-labs/sqlgate/pkg/sqlscan"
)

// rowKeywords are statement keywords that produce a result set.
var rowKeywords = map[string]bool{
	"SELECT":    true,
	"VALUES":    true,
	"TABLE":     true,
	"PRAGMA":    true,
	"SHOW":      true,
	"EXPLAIN":   true,
	"DESCRIBE":  true,
	"SUMMARIZE": true,
	"FROM":      true,
}

// writeKeywords are statement keywords that change rows.
var writeKeywords = map[string]bool{
	"INSERT":  true,
	"UPDATE":  true,
	"DELETE":  true,
	"MERGE":   true,
	"REPLACE": true,
	"UPSERT":  true,
}

// Shape describes a statement as far as its keywords tell.
type Shape struct {
	// Keyword is the statement's main keyword. For WITH it is the keyword
	// of the statement following the common table expressions.
	Keyword string

	// ReturnsRows is set when the statement produces a result set.
	ReturnsRows bool

	// Writes is set when the statement changes rows.
	Writes bool
}

// Analyze reports the shape of sqlStr.
func Analyze(sqlStr string) Shape {
	tokens := sqlscan.Tokenize(sqlStr)

	var shape Shape
	lead := -1
	for i, tok := range tokens {
		if tok.Kind == sqlscan.Word {
			lead = i
			break
		}
	}
	if lead < 0 {
		return shape
	}

	shape.Keyword = tokens[lead].Upper()
	if shape.Keyword == "WITH" {
		shape.Keyword = keywordAfterCTEs(tokens[lead+1:])
	}

	shape.Writes = writeKeywords[shape.Keyword]
	shape.ReturnsRows = rowKeywords[shape.Keyword]
	if !shape.ReturnsRows {
		for _, tok := range tokens[lead+1:] {
			if tok.Kind == sqlscan.Word && tok.Upper() == "RETURNING" {
				shape.ReturnsRows = true
				break
			}
		}
	}
	return shape
}

// keywordAfterCTEs returns the first statement keyword outside parentheses
// that follows a WITH clause. A WITH without one is treated as a query.
func keywordAfterCTEs(tokens []sqlscan.Token) string {
	depth := 0
	for _, tok := range tokens {
		switch tok.Kind {
		case sqlscan.LParen:
			depth++
		case sqlscan.RParen:
			depth--
		case sqlscan.Word:
			if depth != 0 {
				continue
			}
			if kw := tok.Upper(); rowKeywords[kw] || writeKeywords[kw] {
				return kw
			}
		}
	}
	return "SELECT"
}

// ReturnsRows reports whether sqlStr produces rows: its main keyword is a
// row-producing one or it has a RETURNING clause.
func ReturnsRows(sqlStr string) bool {
	return Analyze(sqlStr).ReturnsRows
}
