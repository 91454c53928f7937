package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillsql/quill/internal/ast"
	"github.com/quillsql/quill/internal/ir"
	"github.com/quillsql/quill/internal/parse"
	"github.com/quillsql/quill/internal/parsecache"
	"github.com/quillsql/quill/internal/rowfilter"
)

func pred(param string, body ast.Node) *ast.Lambda {
	return ast.NewLambda([]string{param}, body)
}

func col(param, name string) ast.Node {
	return ast.NewMember(ast.NewIdent(param), name)
}

func agePred(threshold int64) *ast.Lambda {
	return pred("u", ast.NewBinary(">", col("u", "age"), ast.NewLiteral(threshold)))
}

func TestFromWhereFinalize(t *testing.T) {
	fin, err := NewSchema().
		From("users").
		Where(agePred(5)).
		Finalize(nil)
	require.NoError(t, err)

	w, ok := fin.Op.(*ir.Where)
	require.True(t, ok)
	f, ok := w.Src.(*ir.From)
	require.True(t, ok)
	assert.Equal(t, "users", f.Table)

	assert.Equal(t, int64(5), fin.Params["__p1"])
	require.Len(t, fin.AutoParams, 1)
	assert.Equal(t, "__p1", fin.AutoParams[0].Name)
	assert.Equal(t, "where", fin.AutoParams[0].Method)
}

func TestCallerParamsWinCollisions(t *testing.T) {
	fin, err := NewSchema().
		From("users").
		Where(agePred(5)).
		Finalize(map[string]any{"__p1": int64(99), "limit": int64(10)})
	require.NoError(t, err)

	assert.Equal(t, int64(99), fin.Params["__p1"], "caller value overrides the minted one")
	assert.Equal(t, int64(10), fin.Params["limit"])
}

func TestBuilderSnapshotsAreIndependent(t *testing.T) {
	base := NewSchema().From("users")
	a := base.Where(agePred(1))
	b := base.Where(agePred(2))

	finA, err := a.Finalize(nil)
	require.NoError(t, err)
	finB, err := b.Finalize(nil)
	require.NoError(t, err)

	// Both forks mint their own __p1; neither sees the other's value.
	assert.Equal(t, int64(1), finA.Params["__p1"])
	assert.Equal(t, int64(2), finB.Params["__p1"])

	finBase, err := base.Finalize(nil)
	require.NoError(t, err)
	_, isFrom := finBase.Op.(*ir.From)
	assert.True(t, isFrom, "base chain is untouched by forks")
}

func TestErrorLatches(t *testing.T) {
	q := NewSchema().
		From("users").
		Where(pred("u", ast.NewBinary("==", col("u", "x"), ast.NewIdent("nope")))).
		OrderBy(pred("u", col("u", "age"))).
		Take(3)

	require.Error(t, q.Err())
	_, err := q.Finalize(nil)
	require.Error(t, err)

	var serr *parse.StructureError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, parse.ErrUnknownIdentifier, serr.Code)
}

func TestFinalizeEmptyPlan(t *testing.T) {
	var st state
	st.ctx = parse.NewContext()
	_, err := st.finalize(nil)
	assert.ErrorIs(t, err, ErrEmptyPlan)
}

func TestTakeParamSkipParam(t *testing.T) {
	fin, err := NewSchema().
		From("users").
		TakeParam("n").
		SkipParam("off").
		Finalize(map[string]any{"n": 10, "off": 20})
	require.NoError(t, err)

	sk, ok := fin.Op.(*ir.Skip)
	require.True(t, ok)
	p, ok := sk.Count.(*ir.Param)
	require.True(t, ok)
	assert.Equal(t, "off", p.Name)

	tk, ok := sk.Src.(*ir.Take)
	require.True(t, ok)
	tp, ok := tk.Count.(*ir.Param)
	require.True(t, ok)
	assert.Equal(t, "n", tp.Name)
}

func TestTerminalShapes(t *testing.T) {
	schema := NewSchema()

	fin, err := schema.From("users").First().Finalize(nil)
	require.NoError(t, err)
	first, ok := fin.Op.(*ir.First)
	require.True(t, ok)
	assert.False(t, first.OrDefault)

	fin, err = schema.From("users").SingleOrDefault().Finalize(nil)
	require.NoError(t, err)
	single, ok := fin.Op.(*ir.Single)
	require.True(t, ok)
	assert.True(t, single.OrDefault)

	fin, err = schema.From("users").Count(agePred(3)).Finalize(nil)
	require.NoError(t, err)
	count, ok := fin.Op.(*ir.CountOp)
	require.True(t, ok)
	require.NotNil(t, count.Pred)

	fin, err = schema.From("orders").
		Select(pred("o", col("o", "total"))).
		ContainsValue(int64(100)).
		Finalize(nil)
	require.NoError(t, err)
	contains, ok := fin.Op.(*ir.Contains)
	require.True(t, ok)
	cp, ok := contains.Value.(*ir.Param)
	require.True(t, ok)
	assert.Equal(t, int64(100), fin.Params[cp.Name])
}

func TestJoinWithChain(t *testing.T) {
	fin, err := NewSchema().
		From("users").
		Join(Chain("orders"),
			pred("u", col("u", "id")),
			pred("o", col("o", "user_id")),
			ast.NewLambda([]string{"u", "o"}, ast.NewObject(
				ast.Field{Name: "u", Value: ast.NewIdent("u")},
				ast.Field{Name: "o", Value: ast.NewIdent("o")},
			))).
		Finalize(nil)
	require.NoError(t, err)

	j, ok := fin.Op.(*ir.Join)
	require.True(t, ok)
	require.NotNil(t, j.Shape)
	inner, ok := j.Inner.(*ir.From)
	require.True(t, ok)
	assert.Equal(t, "orders", inner.Table)
}

func TestCompileWholeLambda(t *testing.T) {
	chain := ast.MethodCall(ast.NewIdent("q"), "from", ast.NewLiteral("users"))
	chain = ast.MethodCall(chain, "where", agePred(5))
	fn := ast.NewLambda([]string{"q"}, chain)

	fin, err := NewSchema().Compile(fn, nil)
	require.NoError(t, err)
	require.IsType(t, &ir.Where{}, fin.Op)
	assert.Equal(t, int64(5), fin.Params["__p1"])
}

func TestCompileUsesCache(t *testing.T) {
	schema := NewSchema().WithCache(parsecache.Config{Enabled: true, Capacity: 8})

	chain := ast.MethodCall(ast.NewIdent("q"), "from", ast.NewLiteral("users"))
	chain = ast.MethodCall(chain, "where", agePred(5))
	fn := ast.NewLambda([]string{"q"}, chain)

	finA, err := schema.Compile(fn, nil)
	require.NoError(t, err)
	finB, err := schema.Compile(fn, map[string]any{"extra": 1})
	require.NoError(t, err)

	// Same plan, fresh finalization each call.
	assert.Equal(t, int64(5), finA.Params["__p1"])
	assert.Equal(t, int64(5), finB.Params["__p1"])
	assert.Equal(t, 1, finB.Params["extra"])
	assert.NotContains(t, finA.Params, "extra")

	// One entry for one fingerprint.
	assert.Equal(t, 1, schema.cache.Len())

	// Finalized ops are clones; mutating one cannot poison the cache.
	finA.Op.(*ir.Where).Pred = nil
	finC, err := schema.Compile(fn, nil)
	require.NoError(t, err)
	assert.NotNil(t, finC.Op.(*ir.Where).Pred)
}

func TestCompileUncachedSkipsCache(t *testing.T) {
	schema := NewSchema().WithCache(parsecache.Config{Enabled: true, Capacity: 8})

	chain := ast.MethodCall(ast.NewIdent("q"), "from", ast.NewLiteral("users"))
	fn := ast.NewLambda([]string{"q"}, chain)

	_, err := schema.CompileUncached(fn, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, schema.cache.Len(), "uncached compile neither reads nor writes")
}

func TestSchemaWithRowFiltersApplies(t *testing.T) {
	filters := rowfilter.Filters{
		"users": ast.NewLambda([]string{"row", "ctx"},
			ast.NewBinary("==", col("row", "org_id"), col("ctx", "orgId"))),
	}
	schema := NewSchema().
		WithRowFilters(filters).
		WithContext(map[string]any{"orgId": int64(7)})

	fin, err := schema.From("users").Where(agePred(5)).Finalize(nil)
	require.NoError(t, err)

	assert.Equal(t, int64(7), fin.Params["__rf_orgId"], "context value binds under the filter namespace")

	// The filtered table is wrapped in a derived table.
	w := fin.Op.(*ir.Where)
	f, ok := w.Src.(*ir.From)
	require.True(t, ok)
	require.NotNil(t, f.Subquery)
}

func TestSchemaWithRowFiltersUnboundContext(t *testing.T) {
	filters := rowfilter.Filters{
		"users": ast.NewLambda([]string{"row", "ctx"},
			ast.NewBinary("==", col("row", "org_id"), col("ctx", "orgId"))),
	}
	schema := NewSchema().WithRowFilters(filters)

	_, err := schema.From("users").Finalize(nil)
	require.Error(t, err)

	var berr *rowfilter.BindingError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, rowfilter.ErrUnboundContext, berr.Code)
}

func TestUnfilteredTablePassesThrough(t *testing.T) {
	filters := rowfilter.Filters{
		"orders": ast.NewLambda([]string{"row", "ctx"},
			ast.NewBinary("==", col("row", "org_id"), col("ctx", "orgId"))),
	}
	schema := NewSchema().
		WithRowFilters(filters).
		WithContext(map[string]any{"orgId": int64(7)})

	fin, err := schema.From("users").Finalize(nil)
	require.NoError(t, err)
	f, ok := fin.Op.(*ir.From)
	require.True(t, ok)
	assert.Equal(t, "users", f.Table)
	assert.Nil(t, f.Subquery)
}
