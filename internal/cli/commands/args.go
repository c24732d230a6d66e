package commands

import (
	"strconv"
	"strings"
)

// parseArgs converts command-line values into statement arguments.
// Integers, floats, booleans and NULL are recognized; a value can be forced
// to a string by quoting it in single quotes.
func parseArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = parseArg(v)
	}
	return args
}

func parseArg(v string) any {
	if len(v) >= 2 && strings.HasPrefix(v, "'") && strings.HasSuffix(v, "'") {
		return v[1 : len(v)-1]
	}
	switch strings.ToLower(v) {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}
