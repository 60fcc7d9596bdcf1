// Package query builds human-readable query text and normalized dedup
// keys from decoded SQL.
//
// Adapted from the teacher's query/bind.go. The teacher substitutes both
// Postgres `$N` and MySQL `?` placeholders; this system only ever
// observes the MySQL wire protocol, so the Postgres path is dropped.
package query

import "strings"

// Bind substitutes each `?` placeholder in sql, in order, with the
// corresponding entry of args, quoting non-numeric values. Used to build
// a readable one-line summary of an EXECUTE for display/logging.
func Bind(sql string, args []string) string {
	if len(args) == 0 {
		return sql
	}

	var b strings.Builder
	argIdx := 0
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if c == '?' && argIdx < len(args) {
			b.WriteString(quoteArg(args[argIdx]))
			argIdx++
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// quoteArg renders a is a bound parameter value for display: numbers,
// booleans, and NULL/<Error> sentinels pass through unquoted, everything
// else is single-quote escaped.
func quoteArg(v string) string {
	switch v {
	case "NULL", "<Error>", "true", "false":
		return v
	}
	if isNumeric(v) {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	if s[0] == '-' || s[0] == '+' {
		i++
	}
	if i == len(s) {
		return false
	}
	seenDot := false
	for ; i < len(s); i++ {
		c := s[i]
		if c == '.' && !seenDot {
			seenDot = true
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
