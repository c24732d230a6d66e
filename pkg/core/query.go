package core

import "strings"

// Query is a SQL statement plus its ordered bind parameters.
type Query struct {
	SQL  string `json:"sql" yaml:"sql"`
	Args []any  `json:"args,omitempty" yaml:"args,omitempty"`
}

// NewQuery builds a Query, copying args so later changes by the caller are not observed.
func NewQuery(sql string, args ...any) Query {
	cp := make([]any, len(args))
	copy(cp, args)
	return Query{SQL: sql, Args: cp}
}

// ResultSet is the normalized shape of a row-returning statement.
// ColumnNames and ColumnTypes are parallel, and every row has one value per column.
type ResultSet struct {
	ColumnNames  []string     `json:"columnNames" yaml:"columnNames"`
	ColumnTypes  []ColumnType `json:"columnTypes" yaml:"columnTypes"`
	Rows         [][]any      `json:"rows" yaml:"rows"`
	LastInsertID *string      `json:"lastInsertId,omitempty" yaml:"lastInsertId,omitempty"`
}

// =============================================================================
// ColumnType
// =============================================================================

// ColumnType is the logical type of a result column.
type ColumnType int

// Column types. Text is the default for stores that do not report types.
const (
	ColumnTypeText ColumnType = iota
	ColumnTypeInt32
	ColumnTypeInt64
	ColumnTypeFloat
	ColumnTypeDouble
	ColumnTypeNumeric
	ColumnTypeBoolean
	ColumnTypeCharacter
	ColumnTypeDate
	ColumnTypeTime
	ColumnTypeDateTime
	ColumnTypeJSON
	ColumnTypeEnum
	ColumnTypeBytes
	ColumnTypeUUID
)

var columnTypeNames = map[ColumnType]string{
	ColumnTypeText:      "text",
	ColumnTypeInt32:     "int32",
	ColumnTypeInt64:     "int64",
	ColumnTypeFloat:     "float",
	ColumnTypeDouble:    "double",
	ColumnTypeNumeric:   "numeric",
	ColumnTypeBoolean:   "boolean",
	ColumnTypeCharacter: "character",
	ColumnTypeDate:      "date",
	ColumnTypeTime:      "time",
	ColumnTypeDateTime:  "datetime",
	ColumnTypeJSON:      "json",
	ColumnTypeEnum:      "enum",
	ColumnTypeBytes:     "bytes",
	ColumnTypeUUID:      "uuid",
}

// String returns the string representation of the column type.
func (c ColumnType) String() string {
	if name, ok := columnTypeNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseColumnType converts a string to a ColumnType. Unknown names map to Text.
func ParseColumnType(s string) ColumnType {
	s = strings.ToLower(strings.TrimSpace(s))
	for ct, name := range columnTypeNames {
		if name == s {
			return ct
		}
	}
	return ColumnTypeText
}

// MarshalText implements encoding.TextMarshaler.
func (c ColumnType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ColumnType) UnmarshalText(b []byte) error {
	*c = ParseColumnType(string(b))
	return nil
}
