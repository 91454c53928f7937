package parse

import (
	"github.com/quillsql/quill/internal/ast"
	"github.com/quillsql/quill/internal/ir"
)

// Result is the outcome of parsing a query-construction lambda.
type Result struct {
	Op  ir.Op
	Ctx *Context
}

// Parse lowers a top-level query-construction lambda
//
//	(q, params?, helpers?) => q.from("users").where(u => ...)...
//
// to operation IR, auto-parameterizing every literal it encounters.
func Parse(root *ast.Lambda) (*Result, error) {
	if root == nil {
		return nil, structErrf(ErrNotALambda, "", "query function is nil")
	}
	if len(root.Params) < 1 || len(root.Params) > 3 {
		return nil, structErrf(ErrBadArity, "",
			"query function takes 1-3 parameters (builder, params, helpers), got %d", len(root.Params))
	}
	ctx := NewContext()
	if len(root.Params) > 1 {
		ctx.QueryParams = root.Params[1]
	}
	if len(root.Params) > 2 {
		ctx.Helpers = root.Params[2]
	}

	v := newVisitor(ctx, root.Params[0])
	body, ok := root.ReturnExpr()
	if !ok {
		return nil, structErrf(ErrMissingReturn, "", "query function body has no return expression")
	}
	op, err := v.visitChain(body)
	if err != nil {
		return nil, err
	}
	return &Result{Op: op, Ctx: ctx}, nil
}

// Apply restores a context and applies a single chain method to an existing
// operation, as the plan builder does per fluent call. The builder name is
// only used for resolving nested sub-chains in the arguments.
func Apply(ctx *Context, builder string, op ir.Op, method string, args []ast.Node) (ir.Op, error) {
	v := newVisitor(ctx, builder)
	return v.applyMethod(op, method, args)
}

// visitor walks AST fragments, threading the persistent Context plus a
// stack of lambda-parameter scopes.
type visitor struct {
	ctx     *Context
	builder string
	scopes  []scope
	method  string // current chain method, for error context
}

func newVisitor(ctx *Context, builder string) *visitor {
	return &visitor{ctx: ctx, builder: builder}
}

// chainCall is one peeled (method, args) link of a fluent chain.
type chainCall struct {
	method string
	args   []ast.Node
}

// visitChain lowers a full fluent chain rooted at the builder identifier.
// Calls are peeled outside-in, then applied in source order so operations
// nearer from build first.
func (v *visitor) visitChain(node ast.Node) (ir.Op, error) {
	calls, err := v.peelChain(node)
	if err != nil {
		return nil, err
	}
	var op ir.Op
	for _, c := range calls {
		op, err = v.applyMethod(op, c.method, c.args)
		if err != nil {
			return nil, err
		}
	}
	return op, nil
}

// peelChain unwinds method calls down to the builder identifier.
func (v *visitor) peelChain(node ast.Node) ([]chainCall, error) {
	var calls []chainCall
	for {
		call, ok := node.(*ast.Call)
		if !ok {
			break
		}
		member, ok := call.Callee.(*ast.Member)
		if !ok || member.Computed() {
			return nil, structErrf(ErrNotAChain, "", "chain callee must be a method access, got %T", call.Callee)
		}
		calls = append([]chainCall{{method: member.Property, args: call.Args}}, calls...)
		node = member.Object
	}
	ident, ok := node.(*ast.Ident)
	if !ok || ident.Name != v.builder {
		return nil, structErrf(ErrNotAChain, "", "query chain must root at the builder parameter %q", v.builder)
	}
	if len(calls) == 0 {
		return nil, structErrf(ErrNotAChain, "", "builder parameter used without a chain")
	}
	return calls, nil
}

// applyMethod dispatches one chain method against the current operation.
func (v *visitor) applyMethod(op ir.Op, method string, args []ast.Node) (ir.Op, error) {
	prev := v.method
	v.method = method
	defer func() { v.method = prev }()

	if op != nil && isTerminal(op) {
		return nil, structErrf(ErrChainAfterTerminal, method,
			"cannot chain after terminal operation %q", ir.OpName(op))
	}

	if op == nil {
		switch method {
		case "from":
			return v.visitFrom(args)
		case "insertInto":
			return v.visitInsertInto(args)
		case "update":
			return v.visitUpdateRoot(args)
		case "deleteFrom":
			return v.visitDeleteRoot(args)
		default:
			return nil, structErrf(ErrUnknownMethod, method, "chain must start with from, insertInto, update, or deleteFrom")
		}
	}

	switch method {
	case "where":
		return v.visitWhere(op, args)
	case "select":
		return v.visitSelect(op, args)
	case "join":
		return v.visitJoin(op, args, false)
	case "groupJoin":
		return v.visitJoin(op, args, true)
	case "selectMany":
		return v.visitSelectMany(op, args)
	case "defaultIfEmpty":
		return v.visitDefaultIfEmpty(op, args)
	case "groupBy":
		return v.visitGroupBy(op, args)
	case "orderBy":
		return v.visitOrderBy(op, args, false)
	case "orderByDescending":
		return v.visitOrderBy(op, args, true)
	case "thenBy":
		return v.visitThenBy(op, args, false)
	case "thenByDescending":
		return v.visitThenBy(op, args, true)
	case "distinct":
		return v.visitDistinct(op, args)
	case "take":
		return v.visitTakeSkip(op, args, true)
	case "skip":
		return v.visitTakeSkip(op, args, false)
	case "reverse":
		return v.visitReverse(op, args)
	case "first", "firstOrDefault", "single", "singleOrDefault", "last", "lastOrDefault":
		return v.visitRowTerminal(op, method, args)
	case "contains":
		return v.visitContains(op, args)
	case "any", "all":
		return v.visitExistence(op, method, args)
	case "count", "longCount":
		return v.visitCount(op, method, args)
	case "sum", "average", "min", "max":
		return v.visitFold(op, method, args)
	case "values":
		return v.visitValues(op, args)
	case "onConflict":
		return v.visitOnConflict(op, args)
	case "doNothing":
		return v.visitDoNothing(op, args)
	case "doUpdateSet":
		return v.visitDoUpdateSet(op, args)
	case "returning":
		return v.visitReturning(op, args)
	case "set":
		return v.visitSet(op, args)
	case "allowFullTableUpdate":
		return v.visitAllowFullTable(op, args, true)
	case "allowFullTableDelete":
		return v.visitAllowFullTable(op, args, false)
	default:
		return nil, structErrf(ErrUnknownMethod, method, "unrecognized chain method on %s", ir.OpName(op))
	}
}

// isTerminal reports whether further chaining is illegal after op.
func isTerminal(op ir.Op) bool {
	switch op.(type) {
	case *ir.First, *ir.Single, *ir.Last, *ir.Contains, *ir.Any, *ir.All, *ir.CountOp, *ir.Fold:
		return true
	}
	return false
}

// pushScope adds a binding frame and returns a pop function.
func (v *visitor) pushScope(s scope) func() {
	v.scopes = append(v.scopes, s)
	return func() { v.scopes = v.scopes[:len(v.scopes)-1] }
}

// lookup resolves a lambda-parameter name against the scope stack,
// innermost first.
func (v *visitor) lookup(name string) (binding, bool) {
	for i := len(v.scopes) - 1; i >= 0; i-- {
		if b, ok := v.scopes[i].names[name]; ok {
			return b, true
		}
	}
	return binding{}, false
}

// rowBinding is the binding for a lambda parameter ranging over the current
// row: a grouping parameter while a groupBy is active, the result shape
// after a join/selectMany, the single table before.
func (v *visitor) rowBinding() binding {
	if v.ctx.GroupKeys != nil {
		return binding{kind: bindGroup}
	}
	return v.elementBinding()
}

// elementBinding ranges over the underlying rows, ignoring any active
// grouping. Aggregate selectors like g.sum(x => x.total) bind with it.
func (v *visitor) elementBinding() binding {
	if v.ctx.Shape != nil {
		return binding{kind: bindShape, shape: v.ctx.Shape}
	}
	return binding{kind: bindTable, table: 0}
}

// lambdaArg validates that an argument is a lambda with the wanted arity.
func (v *visitor) lambdaArg(n ast.Node, minParams, maxParams int) (*ast.Lambda, error) {
	l, ok := n.(*ast.Lambda)
	if !ok {
		return nil, structErrf(ErrNotALambda, v.method, "expected a lambda argument, got %T", n)
	}
	if len(l.Params) < minParams || len(l.Params) > maxParams {
		return nil, structErrf(ErrBadArity, v.method,
			"lambda takes %d-%d parameters, got %d", minParams, maxParams, len(l.Params))
	}
	return l, nil
}

// lambdaBody extracts the result expression, rejecting return-less blocks.
func (v *visitor) lambdaBody(l *ast.Lambda) (ast.Node, error) {
	body, ok := l.ReturnExpr()
	if !ok {
		return nil, structErrf(ErrMissingReturn, v.method, "lambda body has no return expression")
	}
	return body, nil
}

// visitPredicateLambda visits a single-parameter predicate lambda with the
// parameter bound to the current row.
func (v *visitor) visitPredicateLambda(n ast.Node) (ir.BoolExpr, error) {
	l, err := v.lambdaArg(n, 1, 1)
	if err != nil {
		return nil, err
	}
	body, err := v.lambdaBody(l)
	if err != nil {
		return nil, err
	}
	s := newScope()
	s.names[l.Params[0]] = v.rowBinding()
	defer v.pushScope(s)()
	return v.visitBool(body)
}

// visitSelectorLambda visits a single-parameter value selector.
func (v *visitor) visitSelectorLambda(n ast.Node) (ir.ValueExpr, error) {
	l, err := v.lambdaArg(n, 1, 1)
	if err != nil {
		return nil, err
	}
	body, err := v.lambdaBody(l)
	if err != nil {
		return nil, err
	}
	s := newScope()
	s.names[l.Params[0]] = v.rowBinding()
	defer v.pushScope(s)()
	return v.visitValue(body)
}
