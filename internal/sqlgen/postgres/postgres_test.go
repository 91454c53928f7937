package postgres_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillsql/quill/internal/ir"
	"github.com/quillsql/quill/internal/sqlgen/postgres"
)

func TestDialectTokens(t *testing.T) {
	d := postgres.Dialect
	assert.Equal(t, "postgres", d.Name())
	assert.Equal(t, "@limit", d.Placeholder("limit"))
	assert.Equal(t, "TRUE", d.BoolLiteral(true))
	assert.Equal(t, "FALSE", d.BoolLiteral(false))
	assert.Equal(t, `"name" ILIKE @pat`, d.CaseInsensitiveLike(`"name"`, "@pat"))
}

func TestDialectLimitClause(t *testing.T) {
	d := postgres.Dialect
	assert.Equal(t, "LIMIT 10 OFFSET 20", d.LimitClause("10", "20"))
	assert.Equal(t, "LIMIT 10", d.LimitClause("10", ""))
	assert.Equal(t, "OFFSET 20", d.LimitClause("", "20"))
}

func TestCompileConvenience(t *testing.T) {
	op := &ir.Where{
		Src: &ir.From{Table: "users"},
		Pred: &ir.Comparison{
			Op:    ir.CmpEq,
			Left:  &ir.Column{Name: "id"},
			Right: &ir.Param{Name: "id"},
		},
	}
	res, err := postgres.Compile(op, map[string]any{"id": 7})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" WHERE "id" = @id`, res.SQL)
	require.Len(t, res.Args, 1)
	assert.Equal(t, 7, res.Args[0].Value)
}
