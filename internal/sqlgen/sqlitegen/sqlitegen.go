// Package sqlitegen renders SQLite: :name placeholders (sql.Named form),
// 1/0 boolean literals, and LOWER() LIKE in place of ILIKE.
package sqlitegen

import (
	"github.com/quillsql/quill/internal/ir"
	"github.com/quillsql/quill/internal/sqlgen"
)

type dialect struct{}

// Dialect is the SQLite dialect singleton.
var Dialect sqlgen.Dialect = dialect{}

func (dialect) Name() string { return "sqlite" }

func (dialect) Placeholder(name string) string { return ":" + name }

func (dialect) BoolLiteral(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func (dialect) CaseInsensitiveLike(left, right string) string {
	return "LOWER(" + left + ") LIKE LOWER(" + right + ")"
}

func (dialect) LimitClause(limit, offset string) string {
	switch {
	case limit != "" && offset != "":
		return "LIMIT " + limit + " OFFSET " + offset
	case limit != "":
		return "LIMIT " + limit
	default:
		// SQLite refuses OFFSET without LIMIT; -1 means unbounded.
		return "LIMIT -1 OFFSET " + offset
	}
}

// Compile generates one SQLite statement for a finalized operation.
func Compile(op ir.Op, params map[string]any) (*sqlgen.Result, error) {
	return sqlgen.Generate(Dialect, op, params)
}
