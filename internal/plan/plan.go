package plan

import (
	"github.com/quillsql/quill/internal/ast"
	"github.com/quillsql/quill/internal/ir"
	"github.com/quillsql/quill/internal/parse"
	"github.com/quillsql/quill/internal/parsecache"
	"github.com/quillsql/quill/internal/rowfilter"
)

// builderName is the identifier synthesized fluent fragments root at;
// nested sub-chains passed as AST arguments must use the same name.
const builderName = "q"

// Chain starts a synthesized sub-chain for join/groupJoin inner sources:
// Chain("orders") is the AST for q.from("orders").
func Chain(table string) *ast.Call {
	return ast.MethodCall(ast.NewIdent(builderName), "from", ast.NewLiteral(table))
}

// Schema carries cross-query configuration: the row-filter policy, its
// bound context, and the parse cache. Schema values are immutable; With*
// methods return derived copies.
type Schema struct {
	policy *rowfilter.Policy
	cache  *parsecache.Cache
}

// NewSchema creates an unfiltered, uncached schema.
func NewSchema() *Schema {
	return &Schema{}
}

// WithRowFilters returns a schema enforcing per-table row filters.
func (s *Schema) WithRowFilters(filters rowfilter.Filters) *Schema {
	return &Schema{policy: rowfilter.NewPolicy(filters), cache: s.cache}
}

// WithContext returns a schema whose filters read values from ctx.
func (s *Schema) WithContext(ctx map[string]any) *Schema {
	if s.policy == nil {
		return s
	}
	return &Schema{policy: s.policy.WithContext(ctx), cache: s.cache}
}

// WithCache returns a schema memoizing Compile through a parse cache.
func (s *Schema) WithCache(cfg parsecache.Config) *Schema {
	return &Schema{policy: s.policy, cache: parsecache.New(cfg)}
}

// Policy exposes the row-filter policy for finalize.
func (s *Schema) Policy() *rowfilter.Policy { return s.policy }

// state is the shared snapshot every plan stage carries.
type state struct {
	schema *Schema
	op     ir.Op
	ctx    *parse.Context
	err    error
}

// apply restores a cloned context, applies one chain method, normalizes,
// and returns the successor state. Errors latch: once a stage fails,
// every derived stage carries the same error to Finalize.
func (st state) apply(method string, args ...ast.Node) state {
	if st.err != nil {
		return st
	}
	ctx := st.ctx.Clone()
	op, err := parse.Apply(ctx, builderName, ir.CloneOp(st.op), method, args)
	if err != nil {
		return state{schema: st.schema, op: st.op, ctx: st.ctx, err: err}
	}
	op = normalize(op)
	return state{schema: st.schema, op: op, ctx: ctx}
}

// Query is a composable SELECT chain.
type Query struct {
	st state
}

// newState roots a fresh fluent chain. The synthesized fragment context
// fixes the params record name to "p" and the helpers namespace to "h".
func (s *Schema) newState() state {
	ctx := parse.NewContext()
	ctx.QueryParams = paramsName
	ctx.Helpers = helpersName
	return state{schema: s, ctx: ctx}
}

// From roots a query in a table.
func (s *Schema) From(table string) *Query {
	return &Query{st: s.newState().apply("from", ast.NewLiteral(table))}
}

// FromAlias roots a query in a table with an explicit alias hint.
func (s *Schema) FromAlias(table, alias string) *Query {
	return &Query{st: s.newState().apply("from", ast.NewLiteral(table), ast.NewLiteral(alias))}
}

// Err returns the first error the chain has produced, if any.
func (q *Query) Err() error { return q.st.err }

// Operation exposes the current IR root, mainly for tests and tooling.
func (q *Query) Operation() ir.Op { return q.st.op }

func (q *Query) derive(method string, args ...ast.Node) *Query {
	return &Query{st: q.st.apply(method, args...)}
}

// Where filters with a predicate lambda.
func (q *Query) Where(pred *ast.Lambda) *Query { return q.derive("where", pred) }

// Select projects through a selector lambda.
func (q *Query) Select(sel *ast.Lambda) *Query { return q.derive("select", sel) }

// Join inner-joins a sub-chain (see Chain).
func (q *Query) Join(inner *ast.Call, outerKey, innerKey, result *ast.Lambda) *Query {
	return q.derive("join", inner, outerKey, innerKey, result)
}

// GroupJoin joins a collection of inner rows per outer row.
func (q *Query) GroupJoin(inner *ast.Call, outerKey, innerKey, result *ast.Lambda) *Query {
	return q.derive("groupJoin", inner, outerKey, innerKey, result)
}

// SelectMany flattens a collection field produced by GroupJoin.
func (q *Query) SelectMany(collection, result *ast.Lambda) *Query {
	return q.derive("selectMany", collection, result)
}

// GroupBy groups by a key selector.
func (q *Query) GroupBy(key *ast.Lambda) *Query { return q.derive("groupBy", key) }

// OrderBy establishes the primary ascending sort.
func (q *Query) OrderBy(key *ast.Lambda) *Query { return q.derive("orderBy", key) }

// OrderByDescending establishes the primary descending sort.
func (q *Query) OrderByDescending(key *ast.Lambda) *Query { return q.derive("orderByDescending", key) }

// ThenBy adds a subordinate ascending sort key.
func (q *Query) ThenBy(key *ast.Lambda) *Query { return q.derive("thenBy", key) }

// ThenByDescending adds a subordinate descending sort key.
func (q *Query) ThenByDescending(key *ast.Lambda) *Query { return q.derive("thenByDescending", key) }

// Distinct suppresses duplicate rows.
func (q *Query) Distinct() *Query { return q.derive("distinct") }

// Take limits the row count; the literal is auto-parameterized.
func (q *Query) Take(n int) *Query { return q.derive("take", ast.NewLiteral(int64(n))) }

// TakeParam limits the row count by a caller parameter.
func (q *Query) TakeParam(name string) *Query {
	return q.derive("take", paramRef(name))
}

// Skip offsets into the row set; the literal is auto-parameterized.
func (q *Query) Skip(n int) *Query { return q.derive("skip", ast.NewLiteral(int64(n))) }

// SkipParam offsets by a caller parameter.
func (q *Query) SkipParam(name string) *Query {
	return q.derive("skip", paramRef(name))
}

// Reverse flips the effective sort direction.
func (q *Query) Reverse() *Query { return q.derive("reverse") }

// paramRef synthesizes p.<name>; the synthesized fragment context always
// names the params record "p".
func paramRef(name string) ast.Node {
	return ast.NewMember(ast.NewIdent(paramsName), name)
}

const (
	paramsName  = "p"
	helpersName = "h"
)

// Terminal operations fix result cardinality; the returned Terminal only
// finalizes, so chaining past a terminal does not compile.

// Terminal is a finished query awaiting Finalize.
type Terminal struct {
	st state
}

// Err returns the first error the chain has produced, if any.
func (t *Terminal) Err() error { return t.st.err }

// Operation exposes the final IR root.
func (t *Terminal) Operation() ir.Op { return t.st.op }

func (q *Query) terminal(method string, args ...ast.Node) *Terminal {
	return &Terminal{st: q.st.apply(method, args...)}
}

func optionalPred(pred []*ast.Lambda) []ast.Node {
	if len(pred) == 0 {
		return nil
	}
	return []ast.Node{pred[0]}
}

// First retrieves the first row, optionally filtered.
func (q *Query) First(pred ...*ast.Lambda) *Terminal {
	return q.terminal("first", optionalPred(pred)...)
}

// FirstOrDefault is First tolerating zero rows.
func (q *Query) FirstOrDefault(pred ...*ast.Lambda) *Terminal {
	return q.terminal("firstOrDefault", optionalPred(pred)...)
}

// Single retrieves exactly one row; generation uses LIMIT 2 so adapters
// can detect multiplicity violations.
func (q *Query) Single(pred ...*ast.Lambda) *Terminal {
	return q.terminal("single", optionalPred(pred)...)
}

// SingleOrDefault is Single tolerating zero rows.
func (q *Query) SingleOrDefault(pred ...*ast.Lambda) *Terminal {
	return q.terminal("singleOrDefault", optionalPred(pred)...)
}

// Last retrieves the final row under the current ordering.
func (q *Query) Last(pred ...*ast.Lambda) *Terminal {
	return q.terminal("last", optionalPred(pred)...)
}

// LastOrDefault is Last tolerating zero rows.
func (q *Query) LastOrDefault(pred ...*ast.Lambda) *Terminal {
	return q.terminal("lastOrDefault", optionalPred(pred)...)
}

// Contains tests membership of a parameter value in the preceding scalar
// projection.
func (q *Query) Contains(param string) *Terminal {
	return q.terminal("contains", paramRef(param))
}

// ContainsValue tests membership of a literal value.
func (q *Query) ContainsValue(value any) *Terminal {
	return q.terminal("contains", ast.NewLiteral(value))
}

// Any tests row existence.
func (q *Query) Any(pred ...*ast.Lambda) *Terminal {
	return q.terminal("any", optionalPred(pred)...)
}

// All tests that every row satisfies the predicate.
func (q *Query) All(pred *ast.Lambda) *Terminal {
	return q.terminal("all", pred)
}

// Count counts rows, optionally filtered.
func (q *Query) Count(pred ...*ast.Lambda) *Terminal {
	return q.terminal("count", optionalPred(pred)...)
}

// LongCount is Count with 64-bit result handling in adapters.
func (q *Query) LongCount(pred ...*ast.Lambda) *Terminal {
	return q.terminal("longCount", optionalPred(pred)...)
}

// Sum aggregates a selector. Empty inputs yield SQL NULL.
func (q *Query) Sum(sel *ast.Lambda) *Terminal { return q.terminal("sum", sel) }

// Average aggregates a selector. Empty inputs yield SQL NULL.
func (q *Query) Average(sel *ast.Lambda) *Terminal { return q.terminal("average", sel) }

// Min aggregates a selector, or the preceding scalar projection.
func (q *Query) Min(sel ...*ast.Lambda) *Terminal {
	return q.terminal("min", optionalPred(sel)...)
}

// Max aggregates a selector, or the preceding scalar projection.
func (q *Query) Max(sel ...*ast.Lambda) *Terminal {
	return q.terminal("max", optionalPred(sel)...)
}
