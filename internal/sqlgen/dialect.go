package sqlgen

import "strings"

// Dialect captures the points where PostgreSQL and SQLite text diverge.
// The shared generator owns clause ordering, join symbol tables, terminal
// semantics, and parameter expansion; a dialect only spells the tokens.
type Dialect interface {
	// Name identifies the dialect in errors and logs.
	Name() string

	// Placeholder renders a named parameter reference (@name, :name).
	Placeholder(name string) string

	// BoolLiteral renders a boolean constant (TRUE/FALSE, 1/0).
	BoolLiteral(v bool) string

	// CaseInsensitiveLike renders a whole-string case-insensitive match
	// of two already-rendered operands.
	CaseInsensitiveLike(left, right string) string

	// LimitClause renders the LIMIT/OFFSET tail. Either operand may be
	// empty; both empty never reaches the dialect.
	LimitClause(limit, offset string) string
}

// QuoteIdent double-quotes an identifier. Both supported dialects use
// standard SQL quoting, so this lives in the core.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
