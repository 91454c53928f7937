package sqlgen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillsql/quill/internal/ast"
	"github.com/quillsql/quill/internal/plan"
	"github.com/quillsql/quill/internal/sqlgen"
	"github.com/quillsql/quill/internal/sqlgen/postgres"
	"github.com/quillsql/quill/internal/sqlgen/sqlitegen"
)

func pred(param string, body ast.Node) *ast.Lambda {
	return ast.NewLambda([]string{param}, body)
}

func col(param, name string) ast.Node {
	return ast.NewMember(ast.NewIdent(param), name)
}

func qparam(name string) ast.Node {
	return ast.NewMember(ast.NewIdent("p"), name)
}

func lit(v any) ast.Node { return ast.NewLiteral(v) }

type finalizer interface {
	Finalize(params map[string]any) (*plan.Finalized, error)
}

func render(t *testing.T, d sqlgen.Dialect, q finalizer, params map[string]any) *sqlgen.Result {
	t.Helper()
	fin, err := q.Finalize(params)
	require.NoError(t, err)
	res, err := sqlgen.Generate(d, fin.Op, fin.Params)
	require.NoError(t, err)
	return res
}

func argValues(res *sqlgen.Result) map[string]any {
	out := map[string]any{}
	for _, a := range res.Args {
		out[a.Name] = a.Value
	}
	return out
}

func TestGenerateWhere(t *testing.T) {
	q := plan.NewSchema().From("users").
		Where(pred("u", ast.NewBinary(">", col("u", "age"), lit(int64(18)))))

	pg := render(t, postgres.Dialect, q, nil)
	assert.Equal(t, `SELECT * FROM "users" WHERE "age" > @__p1`, pg.SQL)
	require.Len(t, pg.Args, 1)
	assert.Equal(t, "__p1", pg.Args[0].Name)
	assert.Equal(t, int64(18), pg.Args[0].Value)

	lite := render(t, sqlitegen.Dialect, q, nil)
	assert.Equal(t, `SELECT * FROM "users" WHERE "age" > :__p1`, lite.SQL)
}

func TestGenerateConjoinsSuccessiveWheres(t *testing.T) {
	q := plan.NewSchema().From("users").
		Where(pred("u", ast.NewBinary(">=", col("u", "age"), lit(int64(21))))).
		Where(pred("u", col("u", "active")))

	res := render(t, postgres.Dialect, q, nil)
	assert.Equal(t, `SELECT * FROM "users" WHERE "age" >= @__p1 AND "active"`, res.SQL)
}

func TestGenerateLogicalOperators(t *testing.T) {
	body := ast.NewLogical("&&",
		ast.NewBinary(">", col("u", "age"), lit(int64(18))),
		ast.NewBinary("<", col("u", "age"), lit(int64(65))))
	q := plan.NewSchema().From("users").Where(pred("u", body))

	res := render(t, postgres.Dialect, q, nil)
	assert.Equal(t, `SELECT * FROM "users" WHERE ("age" > @__p1 AND "age" < @__p2)`, res.SQL)
	assert.Equal(t, map[string]any{"__p1": int64(18), "__p2": int64(65)}, argValues(res))
}

func TestGenerateNotEqualsToken(t *testing.T) {
	q := plan.NewSchema().From("users").
		Where(pred("u", ast.NewBinary("!=", col("u", "role"), lit("admin"))))

	res := render(t, postgres.Dialect, q, nil)
	assert.Equal(t, `SELECT * FROM "users" WHERE "role" <> @__p1`, res.SQL)
}

func TestGenerateFromAlias(t *testing.T) {
	q := plan.NewSchema().FromAlias("users", "u").
		Where(pred("u", col("u", "active")))

	res := render(t, postgres.Dialect, q, nil)
	assert.Equal(t, `SELECT * FROM "users" AS "u" WHERE "active"`, res.SQL)
}

func TestGenerateOrdering(t *testing.T) {
	s := plan.NewSchema()

	q := s.From("users").
		OrderBy(pred("u", col("u", "name"))).
		ThenByDescending(pred("u", col("u", "age")))
	res := render(t, postgres.Dialect, q, nil)
	assert.Equal(t, `SELECT * FROM "users" ORDER BY "name", "age" DESC`, res.SQL)

	// Reverse inverts every explicit direction.
	rev := s.From("users").OrderBy(pred("u", col("u", "name"))).Reverse()
	res = render(t, postgres.Dialect, rev, nil)
	assert.Equal(t, `SELECT * FROM "users" ORDER BY "name" DESC`, res.SQL)
}

func TestGenerateRowTerminals(t *testing.T) {
	s := plan.NewSchema()

	cases := []struct {
		name string
		q    finalizer
		want string
	}{
		{"first", s.From("users").First(),
			`SELECT * FROM "users" LIMIT 1`},
		{"first with predicate", s.From("users").First(pred("u", col("u", "active"))),
			`SELECT * FROM "users" WHERE "active" LIMIT 1`},
		{"single", s.From("users").Single(),
			`SELECT * FROM "users" LIMIT 2`},
		{"last without explicit order", s.From("users").Last(),
			`SELECT * FROM "users" ORDER BY 1 DESC LIMIT 1`},
		{"last inverts the order", s.From("users").OrderBy(pred("u", col("u", "name"))).Last(),
			`SELECT * FROM "users" ORDER BY "name" DESC LIMIT 1`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := render(t, postgres.Dialect, tc.q, nil)
			assert.Equal(t, tc.want, res.SQL)
		})
	}
}

func TestGenerateTakeSkip(t *testing.T) {
	q := plan.NewSchema().From("users").
		OrderBy(pred("u", col("u", "name"))).
		Skip(20).
		Take(10)

	pg := render(t, postgres.Dialect, q, nil)
	assert.Equal(t, `SELECT * FROM "users" ORDER BY "name" LIMIT @__p2 OFFSET @__p1`, pg.SQL)
	assert.Equal(t, map[string]any{"__p1": int64(20), "__p2": int64(10)}, argValues(pg))
}

func TestGenerateSkipWithoutTake(t *testing.T) {
	q := plan.NewSchema().From("users").SkipParam("off")
	params := map[string]any{"off": 25}

	pg := render(t, postgres.Dialect, q, params)
	assert.Equal(t, `SELECT * FROM "users" OFFSET @off`, pg.SQL)

	// SQLite refuses a bare OFFSET; the dialect pads an unbounded LIMIT.
	lite := render(t, sqlitegen.Dialect, q, params)
	assert.Equal(t, `SELECT * FROM "users" LIMIT -1 OFFSET :off`, lite.SQL)
}

func TestGenerateDistinctScalar(t *testing.T) {
	q := plan.NewSchema().From("users").
		Select(pred("u", col("u", "city"))).
		Distinct()

	res := render(t, postgres.Dialect, q, nil)
	assert.Equal(t, `SELECT DISTINCT "city" FROM "users"`, res.SQL)
}

func TestGenerateInExpansion(t *testing.T) {
	q := plan.NewSchema().From("users").
		Where(pred("u", ast.MethodCall(qparam("ids"), "includes", col("u", "id"))))

	res := render(t, postgres.Dialect, q, map[string]any{"ids": []int{7, 9}})
	assert.Equal(t, `SELECT * FROM "users" WHERE "id" IN (@ids_0, @ids_1)`, res.SQL)
	assert.Equal(t, map[string]any{"ids_0": 7, "ids_1": 9}, argValues(res))

	neg := plan.NewSchema().From("users").
		Where(pred("u", ast.NewUnary("!", ast.MethodCall(qparam("ids"), "includes", col("u", "id")))))
	res = render(t, postgres.Dialect, neg, map[string]any{"ids": []int{7, 9}})
	assert.Equal(t, `SELECT * FROM "users" WHERE "id" NOT IN (@ids_0, @ids_1)`, res.SQL)
}

func TestGenerateInEmptyArrayShortCircuits(t *testing.T) {
	q := plan.NewSchema().From("users").
		Where(pred("u", ast.MethodCall(qparam("ids"), "includes", col("u", "id"))))
	params := map[string]any{"ids": []int{}}

	pg := render(t, postgres.Dialect, q, params)
	assert.Equal(t, `SELECT * FROM "users" WHERE FALSE`, pg.SQL)
	assert.Empty(t, pg.Args)

	lite := render(t, sqlitegen.Dialect, q, params)
	assert.Equal(t, `SELECT * FROM "users" WHERE 0`, lite.SQL)

	// Negated membership over an empty array is vacuously true.
	neg := plan.NewSchema().From("users").
		Where(pred("u", ast.NewUnary("!", ast.MethodCall(qparam("ids"), "includes", col("u", "id")))))
	res := render(t, postgres.Dialect, neg, params)
	assert.Equal(t, `SELECT * FROM "users" WHERE TRUE`, res.SQL)
	assert.Empty(t, res.Args)
}

func TestGenerateNullComparisons(t *testing.T) {
	s := plan.NewSchema()

	// A parameter bound to nil folds into IS NULL, not "= NULL".
	q := s.From("users").
		Where(pred("u", ast.NewBinary("==", col("u", "deleted_at"), qparam("cutoff"))))
	res := render(t, postgres.Dialect, q, map[string]any{"cutoff": nil})
	assert.Equal(t, `SELECT * FROM "users" WHERE "deleted_at" IS NULL`, res.SQL)
	assert.Empty(t, res.Args)

	ne := s.From("users").
		Where(pred("u", ast.NewBinary("!=", col("u", "deleted_at"), qparam("cutoff"))))
	res = render(t, postgres.Dialect, ne, map[string]any{"cutoff": nil})
	assert.Equal(t, `SELECT * FROM "users" WHERE "deleted_at" IS NOT NULL`, res.SQL)

	literal := s.From("users").
		Where(pred("u", ast.NewBinary("==", col("u", "deleted_at"), lit(nil))))
	res = render(t, postgres.Dialect, literal, nil)
	assert.Equal(t, `SELECT * FROM "users" WHERE "deleted_at" IS NULL`, res.SQL)
}

func TestGenerateStringMatch(t *testing.T) {
	s := plan.NewSchema()

	starts := s.From("users").
		Where(pred("u", ast.MethodCall(col("u", "name"), "startsWith", lit("Jo"))))
	res := render(t, postgres.Dialect, starts, nil)
	assert.Equal(t, `SELECT * FROM "users" WHERE "name" LIKE @__p1 || '%'`, res.SQL)
	assert.Equal(t, "Jo", res.Args[0].Value)

	ends := s.From("users").
		Where(pred("u", ast.MethodCall(col("u", "email"), "endsWith", lit(".org"))))
	res = render(t, postgres.Dialect, ends, nil)
	assert.Equal(t, `SELECT * FROM "users" WHERE "email" LIKE '%' || @__p1`, res.SQL)

	includes := s.From("users").
		Where(pred("u", ast.MethodCall(col("u", "bio"), "includes", lit("golang"))))
	res = render(t, postgres.Dialect, includes, nil)
	assert.Equal(t, `SELECT * FROM "users" WHERE "bio" LIKE '%' || @__p1 || '%'`, res.SQL)
}

func TestGenerateCaseInsensitiveLike(t *testing.T) {
	q := plan.NewSchema().From("users").
		Where(pred("u", ast.MethodCall(ast.NewIdent("h"), "iLike", col("u", "name"), qparam("pat"))))
	params := map[string]any{"pat": "%jo%"}

	pg := render(t, postgres.Dialect, q, params)
	assert.Equal(t, `SELECT * FROM "users" WHERE "name" ILIKE @pat`, pg.SQL)

	lite := render(t, sqlitegen.Dialect, q, params)
	assert.Equal(t, `SELECT * FROM "users" WHERE LOWER("name") LIKE LOWER(:pat)`, lite.SQL)
}

func TestGenerateJoinQualifiesColumns(t *testing.T) {
	result := ast.NewLambda([]string{"u", "o"}, ast.NewObject(
		ast.Field{Name: ast.SpreadField, Value: ast.NewIdent("u")},
		ast.Field{Name: ast.SpreadField, Value: ast.NewIdent("o")},
	))
	q := plan.NewSchema().From("users").Join(plan.Chain("orders"),
		pred("u", col("u", "id")),
		pred("o", col("o", "user_id")),
		result)

	res := render(t, postgres.Dialect, q, nil)
	assert.Equal(t,
		`SELECT "t0".*, "t1".* FROM "users" AS "t0" INNER JOIN "orders" AS "t1" ON "t0"."id" = "t1"."user_id"`,
		res.SQL)
}

func TestGenerateObjectProjection(t *testing.T) {
	sel := ast.NewLambda([]string{"u"}, ast.NewObject(
		ast.Field{Name: "id", Value: col("u", "id")},
		ast.Field{Name: "years", Value: col("u", "age")},
	))
	q := plan.NewSchema().From("users").Select(sel)

	res := render(t, postgres.Dialect, q, nil)
	assert.Equal(t, `SELECT "id", "age" AS "years" FROM "users"`, res.SQL)
}

func TestGenerateWhereAfterProjectionWraps(t *testing.T) {
	sel := ast.NewLambda([]string{"u"}, ast.NewObject(
		ast.Field{Name: "id", Value: col("u", "id")},
		ast.Field{Name: "years", Value: col("u", "age")},
	))
	q := plan.NewSchema().From("users").
		Select(sel).
		Where(pred("r", ast.NewBinary(">", col("r", "years"), lit(int64(30)))))

	res := render(t, postgres.Dialect, q, nil)
	assert.Equal(t,
		`SELECT * FROM (SELECT "id", "age" AS "years" FROM "users") AS "t0" WHERE "years" > @__p1`,
		res.SQL)
}

func TestGenerateGroupByHaving(t *testing.T) {
	sel := ast.NewLambda([]string{"g"}, ast.NewObject(
		ast.Field{Name: "status", Value: ast.NewMember(ast.NewIdent("g"), "key")},
		ast.Field{Name: "n", Value: ast.MethodCall(ast.NewIdent("g"), "count")},
	))
	q := plan.NewSchema().From("orders").
		GroupBy(pred("o", col("o", "status"))).
		Where(pred("g", ast.NewBinary(">", ast.MethodCall(ast.NewIdent("g"), "count"), lit(int64(5))))).
		Select(sel)

	res := render(t, postgres.Dialect, q, nil)
	assert.Equal(t,
		`SELECT "status", COUNT(*) AS "n" FROM "orders" GROUP BY "status" HAVING COUNT(*) > @__p1`,
		res.SQL)
}

func TestGenerateAggregateTerminals(t *testing.T) {
	s := plan.NewSchema()

	cases := []struct {
		name string
		q    finalizer
		want string
	}{
		{"count", s.From("users").Count(pred("u", col("u", "active"))),
			`SELECT COUNT(*) FROM "users" WHERE "active"`},
		{"sum", s.From("orders").Sum(pred("o", col("o", "total"))),
			`SELECT SUM("total") FROM "orders"`},
		{"average", s.From("orders").Average(pred("o", col("o", "total"))),
			`SELECT AVG("total") FROM "orders"`},
		{"min", s.From("orders").Min(pred("o", col("o", "total"))),
			`SELECT MIN("total") FROM "orders"`},
		{"max", s.From("orders").Max(pred("o", col("o", "total"))),
			`SELECT MAX("total") FROM "orders"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := render(t, postgres.Dialect, tc.q, nil)
			assert.Equal(t, tc.want, res.SQL)
		})
	}
}

func TestGenerateExistenceTerminals(t *testing.T) {
	s := plan.NewSchema()

	anyQ := s.From("users").Any(pred("u", ast.NewBinary(">", col("u", "age"), lit(int64(90)))))
	res := render(t, postgres.Dialect, anyQ, nil)
	assert.Equal(t,
		`SELECT CASE WHEN EXISTS (SELECT 1 FROM "users" WHERE "age" > @__p1) THEN 1 ELSE 0 END`,
		res.SQL)

	allQ := s.From("users").All(pred("u", col("u", "active")))
	res = render(t, postgres.Dialect, allQ, nil)
	assert.Equal(t,
		`SELECT CASE WHEN NOT EXISTS (SELECT 1 FROM "users" WHERE NOT ("active")) THEN 1 ELSE 0 END`,
		res.SQL)
}

func TestGenerateContains(t *testing.T) {
	q := plan.NewSchema().From("orders").
		Select(pred("o", col("o", "total"))).
		ContainsValue(int64(100))

	res := render(t, postgres.Dialect, q, nil)
	assert.Equal(t,
		`SELECT CASE WHEN EXISTS (SELECT 1 FROM (SELECT "total" AS "v0" FROM "orders") AS "sub" WHERE "v0" = @__p1) THEN 1 ELSE 0 END`,
		res.SQL)
	assert.Equal(t, int64(100), res.Args[0].Value)
}

func TestGenerateUnboundParam(t *testing.T) {
	q := plan.NewSchema().From("users").
		Where(pred("u", ast.NewBinary("==", col("u", "org_id"), qparam("orgId"))))
	fin, err := q.Finalize(nil)
	require.NoError(t, err)

	_, err = sqlgen.Generate(postgres.Dialect, fin.Op, fin.Params)
	var pe *sqlgen.PolicyError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, sqlgen.ErrUnboundParam, pe.Code)
	assert.Equal(t, "users", pe.Table)
}

func TestGenerateNilOperation(t *testing.T) {
	_, err := sqlgen.Generate(postgres.Dialect, nil, nil)
	var pe *sqlgen.PolicyError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, sqlgen.ErrBadChain, pe.Code)
}

func TestGenerateIsDeterministic(t *testing.T) {
	q := plan.NewSchema().From("users").
		Where(pred("u", ast.NewLogical("&&",
			ast.NewBinary(">=", col("u", "age"), lit(18)),
			ast.MethodCall(qparam("roles"), "includes", col("u", "role"))))).
		OrderBy(pred("u", col("u", "name")))
	params := map[string]any{"roles": []string{"admin", "staff"}}

	first := render(t, postgres.Dialect, q, params)
	for i := 0; i < 3; i++ {
		again := render(t, postgres.Dialect, q, params)
		assert.Equal(t, first.SQL, again.SQL)
		assert.Equal(t, first.Args, again.Args)
	}
}
