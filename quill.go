// Package quill compiles query expression trees to parameterized SQL.
//
// A query is a small lambda AST over a fluent chain: the first parameter
// is the chain builder, the optional second names caller parameters, the
// optional third names scalar helpers. Quill parses the chain into a
// relational plan, applies row filter policies, and renders dialect SQL
// where every runtime value is a named placeholder.
//
// # Basic Usage
//
// Build the tree with the ast constructors (or decode one produced by a
// front end with UnmarshalQuery), compile it through a Schema, and render
// it for a dialect:
//
//	fn := quill.NewLambda([]string{"q", "p"},
//		quill.MethodCall(
//			quill.MethodCall(quill.NewIdent("q"), "from", quill.NewLiteral("users")),
//			"where",
//			quill.NewLambda([]string{"u"},
//				quill.NewBinary(">", quill.Dot(quill.NewIdent("u"), "age"), quill.Dot(quill.NewIdent("p"), "min")))))
//
//	fin, err := quill.NewSchema().Compile(fn, map[string]any{"min": 21})
//	res, err := quill.Generate(quill.Postgres, fin)
//	// res.SQL:  SELECT * FROM "users" WHERE "age" > @min
//	// res.Args: [{min 21}]
//
// The fluent Schema builders offer the same pipeline without hand-built
// trees:
//
//	fin, err := quill.NewSchema().
//		From("users").
//		Where(pred).
//		OrderBy(key).
//		Take(10).
//		Finalize(nil)
//
// # Literals Become Parameters
//
// Inline literals in predicates and projections are lifted into
// auto-parameters named __p1, __p2, ... in chain order; their values ride
// along in the finalized plan, so generated SQL never embeds data.
//
// # Row Filters
//
// A schema can carry per-table row filters, predicates of (row, ctx)
// that are conjoined into every SELECT, UPDATE and DELETE touching the
// table. Filter parameters live in a reserved __rf_ namespace and bind
// from the policy context, never from caller parameters:
//
//	filters := quill.Filters{"orders": orgFilter}
//	schema := quill.NewSchema().
//		WithRowFilters(filters).
//		WithContext(map[string]any{"orgId": 7})
//
// # Plan Caching
//
// Parsing is the expensive half of compilation. WithCache keeps
// fingerprint-keyed plans in an LRU so repeated shapes skip the parse:
//
//	schema := quill.NewSchema().WithCache(quill.CacheConfig{Enabled: true})
package quill

import (
	"github.com/quillsql/quill/internal/ast"
	"github.com/quillsql/quill/internal/parse"
	"github.com/quillsql/quill/internal/parsecache"
	"github.com/quillsql/quill/internal/plan"
	"github.com/quillsql/quill/internal/rowfilter"
	"github.com/quillsql/quill/internal/sqlgen"
	"github.com/quillsql/quill/internal/sqlgen/postgres"
	"github.com/quillsql/quill/internal/sqlgen/sqlitegen"
)

// Expression tree nodes and constructors.
type (
	Node   = ast.Node
	Lambda = ast.Lambda
	Field  = ast.Field
)

var (
	NewIdent       = ast.NewIdent
	NewLiteral     = ast.NewLiteral
	NewMember      = ast.NewMember
	NewIndex       = ast.NewIndex
	Dot            = ast.Dot
	NewBinary      = ast.NewBinary
	NewLogical     = ast.NewLogical
	NewUnary       = ast.NewUnary
	NewConditional = ast.NewConditional
	NewObject      = ast.NewObject
	NewArray       = ast.NewArray
	NewCall        = ast.NewCall
	MethodCall     = ast.MethodCall
	NewLambda      = ast.NewLambda
	NewBlockLambda = ast.NewBlockLambda

	// Fingerprint is the canonical cache key of a tree.
	Fingerprint = ast.Fingerprint
)

// MarshalQuery serializes an expression tree to its JSON wire form.
func MarshalQuery(n Node) ([]byte, error) { return ast.MarshalNode(n) }

// UnmarshalQuery decodes the JSON wire form back into a tree.
func UnmarshalQuery(data []byte) (Node, error) { return ast.UnmarshalNode(data) }

// Compilation pipeline.
type (
	Schema    = plan.Schema
	Query     = plan.Query
	Terminal  = plan.Terminal
	Finalized = plan.Finalized

	InsertBuilder   = plan.InsertBuilder
	InsertStatement = plan.InsertStatement
	ConflictTarget  = plan.ConflictTarget
	UpdateBuilder   = plan.UpdateBuilder
	UpdateStatement = plan.UpdateStatement
	DeleteBuilder   = plan.DeleteBuilder
	Statement       = plan.Statement

	Filters     = rowfilter.Filters
	CacheConfig = parsecache.Config

	AutoParam = parse.AutoParamInfo
)

// NewSchema creates an empty schema: no row filters, no context, no cache.
var NewSchema = plan.NewSchema

// Chain starts a fluent chain over a table, for use as the inner source
// of Join and GroupJoin.
var Chain = plan.Chain

// SQL generation.
type (
	Dialect = sqlgen.Dialect
	Result  = sqlgen.Result
	Arg     = sqlgen.Arg
)

// Supported dialects.
var (
	Postgres = postgres.Dialect
	SQLite   = sqlitegen.Dialect
)

// Generate renders a finalized plan as dialect SQL plus named arguments.
func Generate(d Dialect, fin *Finalized) (*Result, error) {
	return sqlgen.Generate(d, fin.Op, fin.Params)
}

// Error types surfaced by the pipeline, each carrying a stable Q-code.
type (
	StructureError     = parse.StructureError
	GenerationError    = sqlgen.PolicyError
	CapabilityError    = sqlgen.CapabilityError
	PolicyBindingError = rowfilter.BindingError
)
