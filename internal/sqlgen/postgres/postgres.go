// Package postgres renders PostgreSQL: @name placeholders (the pgx
// NamedArgs form), TRUE/FALSE literals, and native ILIKE.
package postgres

import (
	"github.com/quillsql/quill/internal/ir"
	"github.com/quillsql/quill/internal/sqlgen"
)

type dialect struct{}

// Dialect is the PostgreSQL dialect singleton.
var Dialect sqlgen.Dialect = dialect{}

func (dialect) Name() string { return "postgres" }

func (dialect) Placeholder(name string) string { return "@" + name }

func (dialect) BoolLiteral(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

func (dialect) CaseInsensitiveLike(left, right string) string {
	return left + " ILIKE " + right
}

func (dialect) LimitClause(limit, offset string) string {
	switch {
	case limit != "" && offset != "":
		return "LIMIT " + limit + " OFFSET " + offset
	case limit != "":
		return "LIMIT " + limit
	default:
		return "OFFSET " + offset
	}
}

// Compile generates one PostgreSQL statement for a finalized operation.
func Compile(op ir.Op, params map[string]any) (*sqlgen.Result, error) {
	return sqlgen.Generate(Dialect, op, params)
}
