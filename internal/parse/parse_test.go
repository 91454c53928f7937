package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillsql/quill/internal/ast"
	"github.com/quillsql/quill/internal/ir"
)

// query wraps a chain body in the standard (q, p) lambda.
func query(body ast.Node) *ast.Lambda {
	return ast.NewLambda([]string{"q", "p"}, body)
}

func from(table string) *ast.Call {
	return ast.MethodCall(ast.NewIdent("q"), "from", ast.NewLiteral(table))
}

func pred(param string, body ast.Node) *ast.Lambda {
	return ast.NewLambda([]string{param}, body)
}

func col(param, name string) ast.Node {
	return ast.NewMember(ast.NewIdent(param), name)
}

func TestParseFrom(t *testing.T) {
	res, err := Parse(query(from("users")))
	require.NoError(t, err)

	f, ok := res.Op.(*ir.From)
	require.True(t, ok)
	assert.Equal(t, "users", f.Table)
	assert.Equal(t, 1, res.Ctx.TableCount)
}

func TestParseFromAlias(t *testing.T) {
	chain := ast.MethodCall(ast.NewIdent("q"), "from", ast.NewLiteral("users"), ast.NewLiteral("u"))
	res, err := Parse(query(chain))
	require.NoError(t, err)

	f := res.Op.(*ir.From)
	assert.Equal(t, "users", f.Table)
	assert.Equal(t, "u", f.Alias)
}

func TestParseWhereMintsAutoParam(t *testing.T) {
	chain := ast.MethodCall(from("users"), "where",
		pred("u", ast.NewBinary(">", col("u", "age"), ast.NewLiteral(int64(5)))))

	res, err := Parse(query(chain))
	require.NoError(t, err)

	w, ok := res.Op.(*ir.Where)
	require.True(t, ok)

	cmp, ok := w.Pred.(*ir.Comparison)
	require.True(t, ok)
	assert.Equal(t, ir.CmpGt, cmp.Op)

	left, ok := cmp.Left.(*ir.Column)
	require.True(t, ok)
	assert.Equal(t, "age", left.Name)

	right, ok := cmp.Right.(*ir.Param)
	require.True(t, ok)
	assert.Equal(t, "__p1", right.Name)

	// The literal's value rides along in the context.
	assert.Equal(t, int64(5), res.Ctx.AutoParams["__p1"])
	require.Len(t, res.Ctx.AutoInfos, 1)
	assert.Equal(t, "where", res.Ctx.AutoInfos[0].Method)
}

func TestParseNegationFoldsIntoMembership(t *testing.T) {
	includes := ast.MethodCall(ast.NewMember(ast.NewIdent("p"), "ids"), "includes", col("u", "id"))
	chain := ast.MethodCall(from("users"), "where",
		pred("u", ast.NewUnary("!", includes)))

	res, err := Parse(query(chain))
	require.NoError(t, err)

	w, ok := res.Op.(*ir.Where)
	require.True(t, ok)
	in, ok := w.Pred.(*ir.In)
	require.True(t, ok, "negation folds into the membership node")
	assert.True(t, in.Negate)

	// Compound predicates keep the explicit NOT wrapper.
	compound := ast.MethodCall(from("users"), "where",
		pred("u", ast.NewUnary("!", ast.NewLogical("&&",
			col("u", "active"), col("u", "verified")))))
	res, err = Parse(query(compound))
	require.NoError(t, err)
	w, ok = res.Op.(*ir.Where)
	require.True(t, ok)
	_, ok = w.Pred.(*ir.Not)
	assert.True(t, ok)
}

func TestParseAutoParamsNumberInChainOrder(t *testing.T) {
	chain := ast.MethodCall(from("users"), "where",
		pred("u", ast.NewLogical("&&",
			ast.NewBinary(">", col("u", "age"), ast.NewLiteral(int64(18))),
			ast.NewBinary("<", col("u", "age"), ast.NewLiteral(int64(65))))))
	chain = ast.MethodCall(chain, "where",
		pred("u", ast.NewBinary("==", col("u", "tier"), ast.NewLiteral("gold"))))

	res, err := Parse(query(chain))
	require.NoError(t, err)

	assert.Equal(t, int64(18), res.Ctx.AutoParams["__p1"])
	assert.Equal(t, int64(65), res.Ctx.AutoParams["__p2"])
	assert.Equal(t, "gold", res.Ctx.AutoParams["__p3"])
}

func TestParseCallerParamReference(t *testing.T) {
	chain := ast.MethodCall(from("users"), "where",
		pred("u", ast.NewBinary("==", col("u", "org_id"), col("p", "orgId"))))

	res, err := Parse(query(chain))
	require.NoError(t, err)

	w := res.Op.(*ir.Where)
	cmp := w.Pred.(*ir.Comparison)
	p, ok := cmp.Right.(*ir.Param)
	require.True(t, ok)
	assert.Equal(t, "orgId", p.Name)
	assert.Empty(t, res.Ctx.AutoParams, "caller params are not minted")
}

func TestParseParamPathAndIndex(t *testing.T) {
	// p.filter.name and p.ids[0]
	chain := ast.MethodCall(from("users"), "where",
		pred("u", ast.NewLogical("&&",
			ast.NewBinary("==", col("u", "name"), ast.Dot(ast.NewIdent("p"), "filter", "name")),
			ast.NewBinary("==", col("u", "id"),
				ast.NewIndex(ast.NewMember(ast.NewIdent("p"), "ids"), ast.NewLiteral(int64(0)))))))

	res, err := Parse(query(chain))
	require.NoError(t, err)

	lg := res.Op.(*ir.Where).Pred.(*ir.Logical)

	byPath := lg.Left.(*ir.Comparison).Right.(*ir.Param)
	assert.Equal(t, "filter", byPath.Name)
	assert.Equal(t, []string{"name"}, byPath.Path)

	byIndex := lg.Right.(*ir.Comparison).Right.(*ir.Param)
	assert.Equal(t, "ids", byIndex.Name)
	assert.True(t, byIndex.Indexed)
	assert.Equal(t, 0, byIndex.Index)
}

func TestParseSelectObjectShape(t *testing.T) {
	sel := ast.NewLambda([]string{"u"}, ast.NewObject(
		ast.Field{Name: "id", Value: col("u", "id")},
		ast.Field{Name: "name", Value: col("u", "name")},
	))
	chain := ast.MethodCall(from("users"), "select", sel)

	res, err := Parse(query(chain))
	require.NoError(t, err)

	s, ok := res.Op.(*ir.Select)
	require.True(t, ok)
	obj, ok := s.Projection.(*ir.ProjectObject)
	require.True(t, ok)
	require.Len(t, obj.Fields, 2)
	assert.Equal(t, "id", obj.Fields[0].Name)

	// Shape is recorded for downstream field resolution.
	require.NotNil(t, res.Ctx.Shape)
	assert.True(t, res.Ctx.Shape.Projected)
}

func TestParseProjectedFieldResolvesDownstream(t *testing.T) {
	sel := ast.NewLambda([]string{"u"}, ast.NewObject(
		ast.Field{Name: "years", Value: col("u", "age")},
	))
	chain := ast.MethodCall(from("users"), "select", sel)
	chain = ast.MethodCall(chain, "where",
		pred("r", ast.NewBinary(">", col("r", "years"), ast.NewLiteral(int64(30)))))

	res, err := Parse(query(chain))
	require.NoError(t, err)

	w := res.Op.(*ir.Where)
	cmp := w.Pred.(*ir.Comparison)
	c, ok := cmp.Left.(*ir.Column)
	require.True(t, ok)
	assert.Equal(t, "years", c.Name, "post-projection fields resolve by output alias")
	assert.Equal(t, ir.OriginDirect, c.Origin.Kind)
}

func TestParseUnresolvedProjectedField(t *testing.T) {
	sel := ast.NewLambda([]string{"u"}, ast.NewObject(
		ast.Field{Name: "years", Value: col("u", "age")},
	))
	chain := ast.MethodCall(from("users"), "select", sel)
	chain = ast.MethodCall(chain, "where",
		pred("r", ast.NewBinary(">", col("r", "height"), ast.NewLiteral(int64(30)))))

	_, err := Parse(query(chain))
	requireCode(t, err, ErrUnresolvedField)
}

func TestParseJoinExtendsTableCount(t *testing.T) {
	inner := ast.MethodCall(ast.NewIdent("q"), "from", ast.NewLiteral("orders"))
	chain := ast.MethodCall(from("users"), "join",
		inner,
		pred("u", col("u", "id")),
		pred("o", col("o", "user_id")),
		ast.NewLambda([]string{"u", "o"}, ast.NewObject(
			ast.Field{Name: "u", Value: ast.NewIdent("u")},
			ast.Field{Name: "o", Value: ast.NewIdent("o")},
		)))

	res, err := Parse(query(chain))
	require.NoError(t, err)

	j, ok := res.Op.(*ir.Join)
	require.True(t, ok)
	require.NotNil(t, j.Shape)
	assert.Equal(t, 2, res.Ctx.TableCount)

	outer, ok := j.OuterKey.(*ir.Column)
	require.True(t, ok)
	assert.Equal(t, "id", outer.Name)
	inner2, ok := j.InnerKey.(*ir.Column)
	require.True(t, ok)
	assert.Equal(t, "user_id", inner2.Name)
	assert.Equal(t, 1, inner2.Origin.Index)
}

func TestParseGroupByThenKeyAccess(t *testing.T) {
	chain := ast.MethodCall(from("orders"), "groupBy",
		pred("o", col("o", "status")))
	chain = ast.MethodCall(chain, "select",
		ast.NewLambda([]string{"g"}, ast.NewObject(
			ast.Field{Name: "status", Value: ast.NewMember(ast.NewIdent("g"), "key")},
			ast.Field{Name: "n", Value: ast.MethodCall(ast.NewIdent("g"), "count")},
		)))

	res, err := Parse(query(chain))
	require.NoError(t, err)

	s := res.Op.(*ir.Select)
	obj := s.Projection.(*ir.ProjectObject)
	require.Len(t, obj.Fields, 2)

	_, ok := obj.Fields[0].Expr.(*ir.Column)
	assert.True(t, ok, "g.key resolves to the grouping column")
	agg, ok := obj.Fields[1].Expr.(*ir.Aggregate)
	require.True(t, ok)
	assert.Equal(t, ir.AggCount, agg.Fn)
}

func TestParseCompositeGroupKeyMemberAccess(t *testing.T) {
	key := ast.NewObject(
		ast.Field{Name: "day", Value: col("o", "day")},
		ast.Field{Name: "region", Value: col("o", "region")},
	)
	chain := ast.MethodCall(from("orders"), "groupBy", pred("o", key))
	chain = ast.MethodCall(chain, "select",
		ast.NewLambda([]string{"g"}, ast.NewObject(
			ast.Field{Name: "day", Value: ast.NewMember(ast.NewMember(ast.NewIdent("g"), "key"), "day")},
			ast.Field{Name: "total", Value: ast.MethodCall(ast.NewIdent("g"), "sum",
				ast.NewLambda([]string{"x"}, col("x", "total")))},
		)))

	res, err := Parse(query(chain))
	require.NoError(t, err)

	s := res.Op.(*ir.Select)
	obj := s.Projection.(*ir.ProjectObject)
	require.Len(t, obj.Fields, 2)

	day, ok := obj.Fields[0].Expr.(*ir.Column)
	require.True(t, ok, "g.key.day resolves to the named key expression")
	assert.Equal(t, "day", day.Name)

	agg, ok := obj.Fields[1].Expr.(*ir.Aggregate)
	require.True(t, ok)
	assert.Equal(t, ir.AggSum, agg.Fn)
	sel, ok := agg.Arg.(*ir.Column)
	require.True(t, ok)
	assert.Equal(t, "total", sel.Name, "aggregate selector ranges over the rows inside the group")

	// A key name the grouping never defined is a resolution error.
	bad := ast.MethodCall(ast.MethodCall(from("orders"), "groupBy", pred("o", key)), "select",
		ast.NewLambda([]string{"g"}, ast.NewObject(
			ast.Field{Name: "city", Value: ast.NewMember(ast.NewMember(ast.NewIdent("g"), "key"), "city")},
		)))
	_, err = Parse(query(bad))
	requireCode(t, err, ErrUnresolvedField)
}

func TestParseTakeSkip(t *testing.T) {
	chain := ast.MethodCall(from("users"), "take", ast.NewLiteral(int64(10)))
	chain = ast.MethodCall(chain, "skip", ast.NewLiteral(int64(20)))

	res, err := Parse(query(chain))
	require.NoError(t, err)

	sk, ok := res.Op.(*ir.Skip)
	require.True(t, ok)
	_, ok = sk.Src.(*ir.Take)
	require.True(t, ok)
}

func TestParseStructureErrors(t *testing.T) {
	tests := []struct {
		name string
		fn   *ast.Lambda
		code string
	}{
		{
			"nil_lambda",
			nil,
			ErrNotALambda,
		},
		{
			"too_many_params",
			ast.NewLambda([]string{"q", "p", "h", "x"}, from("users")),
			ErrBadArity,
		},
		{
			"root_not_builder",
			query(ast.MethodCall(ast.NewIdent("z"), "from", ast.NewLiteral("users"))),
			ErrNotAChain,
		},
		{
			"bare_builder",
			query(ast.NewIdent("q")),
			ErrNotAChain,
		},
		{
			"unknown_method",
			query(ast.MethodCall(ast.NewIdent("q"), "frobnicate", ast.NewLiteral("users"))),
			ErrUnknownMethod,
		},
		{
			"from_without_table",
			query(ast.MethodCall(ast.NewIdent("q"), "from")),
			ErrBadArity,
		},
		{
			"where_without_lambda",
			query(ast.MethodCall(from("users"), "where", ast.NewLiteral(true))),
			ErrNotALambda,
		},
		{
			"chain_after_terminal",
			query(ast.MethodCall(ast.MethodCall(from("users"), "count"), "where",
				pred("u", ast.NewMember(ast.NewIdent("u"), "active")))),
			ErrChainAfterTerminal,
		},
		{
			"unknown_identifier",
			query(ast.MethodCall(from("users"), "where",
				pred("u", ast.NewBinary("==", col("u", "id"), ast.NewIdent("mystery"))))),
			ErrUnknownIdentifier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.fn)
			requireCode(t, err, tt.code)
		})
	}
}

func TestParseTerminalOperations(t *testing.T) {
	tests := []struct {
		method string
		check  func(t *testing.T, op ir.Op)
	}{
		{"first", func(t *testing.T, op ir.Op) {
			f, ok := op.(*ir.First)
			require.True(t, ok)
			assert.False(t, f.OrDefault)
		}},
		{"firstOrDefault", func(t *testing.T, op ir.Op) {
			f, ok := op.(*ir.First)
			require.True(t, ok)
			assert.True(t, f.OrDefault)
		}},
		{"single", func(t *testing.T, op ir.Op) {
			_, ok := op.(*ir.Single)
			require.True(t, ok)
		}},
		{"last", func(t *testing.T, op ir.Op) {
			_, ok := op.(*ir.Last)
			require.True(t, ok)
		}},
		{"any", func(t *testing.T, op ir.Op) {
			_, ok := op.(*ir.Any)
			require.True(t, ok)
		}},
		{"count", func(t *testing.T, op ir.Op) {
			_, ok := op.(*ir.CountOp)
			require.True(t, ok)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			chain := ast.MethodCall(from("users"), tt.method)
			res, err := Parse(query(chain))
			require.NoError(t, err)
			tt.check(t, res.Op)
		})
	}
}

func TestParseFoldRequiresSelector(t *testing.T) {
	chain := ast.MethodCall(from("orders"), "sum",
		pred("o", col("o", "total")))
	res, err := Parse(query(chain))
	require.NoError(t, err)

	f, ok := res.Op.(*ir.Fold)
	require.True(t, ok)
	assert.Equal(t, ir.AggSum, f.Fn)
	require.NotNil(t, f.Selector)
}

func TestParseBlockLambdaPredicate(t *testing.T) {
	body := ast.NewBlockLambda([]string{"u"},
		&ast.Return{Expr: ast.NewMember(ast.NewIdent("u"), "active")})
	chain := ast.MethodCall(from("users"), "where", body)

	res, err := Parse(query(chain))
	require.NoError(t, err)

	w := res.Op.(*ir.Where)
	bc, ok := w.Pred.(*ir.BoolColumn)
	require.True(t, ok)
	assert.Equal(t, "active", bc.Col.Name)
}

func TestApplyRestoresContext(t *testing.T) {
	ctx := NewContext()
	ctx.QueryParams = "p"

	op, err := Apply(ctx, "q", nil, "from", []ast.Node{ast.NewLiteral("users")})
	require.NoError(t, err)
	require.IsType(t, &ir.From{}, op)
	assert.Equal(t, 1, ctx.TableCount)

	predArg := pred("u", ast.NewBinary(">", col("u", "age"), ast.NewLiteral(int64(3))))
	op, err = Apply(ctx, "q", op, "where", []ast.Node{predArg})
	require.NoError(t, err)
	require.IsType(t, &ir.Where{}, op)
	assert.Equal(t, int64(3), ctx.AutoParams["__p1"])
}

func TestContextCloneIsolation(t *testing.T) {
	ctx := NewContext()
	ctx.QueryParams = "p"
	_, err := Apply(ctx, "q", nil, "from", []ast.Node{ast.NewLiteral("users")})
	require.NoError(t, err)

	clone := ctx.Clone()
	clone.AutoParams["__p9"] = "x"
	clone.TableCount = 7

	assert.NotContains(t, ctx.AutoParams, "__p9")
	assert.Equal(t, 1, ctx.TableCount)
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var serr *StructureError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, code, serr.Code)
}
