package parse

import (
	"github.com/quillsql/quill/internal/ast"
	"github.com/quillsql/quill/internal/ir"
)

// visitBool lowers an AST fragment to a boolean expression.
func (v *visitor) visitBool(n ast.Node) (ir.BoolExpr, error) {
	switch node := n.(type) {
	case *ast.Logical:
		return v.visitLogical(node)
	case *ast.Unary:
		if node.Op != "!" {
			return nil, structErrf(ErrUnsupportedNode, v.method, "unary %q is not a boolean operator", node.Op)
		}
		inner, err := v.visitBool(node.Operand)
		if err != nil {
			return nil, err
		}
		// Fold negation into nodes that carry it natively so the
		// generator can emit NOT IN and IS NOT NULL directly.
		switch in := inner.(type) {
		case *ir.In:
			in.Negate = !in.Negate
			return in, nil
		case *ir.IsNull:
			in.Negate = !in.Negate
			return in, nil
		}
		return &ir.Not{Inner: inner}, nil
	case *ast.Binary:
		return v.visitComparison(node)
	case *ast.Literal:
		b, ok := node.Value.(bool)
		if !ok {
			return nil, structErrf(ErrBadLiteral, v.method, "literal %v is not a boolean predicate", node.Value)
		}
		return &ir.BoolConstant{Value: b}, nil
	case *ast.Ident, *ast.Member:
		return v.visitBoolRef(node)
	case *ast.Call:
		return v.visitBoolCall(node)
	default:
		return nil, structErrf(ErrUnsupportedNode, v.method, "unsupported expression node %T in predicate position", n)
	}
}

func (v *visitor) visitLogical(l *ast.Logical) (ir.BoolExpr, error) {
	var op ir.LogicKind
	switch l.Op {
	case "&&":
		op = ir.LogicAnd
	case "||":
		op = ir.LogicOr
	default:
		return nil, structErrf(ErrUnsupportedNode, v.method, "unsupported logical operator %q", l.Op)
	}
	left, err := v.visitBool(l.Left)
	if err != nil {
		return nil, err
	}
	right, err := v.visitBool(l.Right)
	if err != nil {
		return nil, err
	}
	return &ir.Logical{Op: op, Left: left, Right: right}, nil
}

func (v *visitor) visitComparison(b *ast.Binary) (ir.BoolExpr, error) {
	var op ir.CmpOp
	switch b.Op {
	case "==", "===":
		op = ir.CmpEq
	case "!=", "!==":
		op = ir.CmpNe
	case ">":
		op = ir.CmpGt
	case ">=":
		op = ir.CmpGe
	case "<":
		op = ir.CmpLt
	case "<=":
		op = ir.CmpLe
	default:
		return nil, structErrf(ErrUnsupportedNode, v.method, "operator %q is not a comparison", b.Op)
	}
	left, err := v.visitValue(b.Left)
	if err != nil {
		return nil, err
	}
	right, err := v.visitValue(b.Right)
	if err != nil {
		return nil, err
	}

	// Comparisons against a null literal become IS [NOT] NULL directly;
	// other NULL-awareness (nullable params) is the generator's concern.
	if isNullConst(right) {
		return nullTest(left, op, v.method)
	}
	if isNullConst(left) {
		return nullTest(right, op, v.method)
	}
	return &ir.Comparison{Op: op, Left: left, Right: right}, nil
}

func isNullConst(e ir.ValueExpr) bool {
	c, ok := e.(*ir.Constant)
	return ok && c.Null
}

func nullTest(expr ir.ValueExpr, op ir.CmpOp, method string) (ir.BoolExpr, error) {
	switch op {
	case ir.CmpEq:
		return &ir.IsNull{Expr: expr}, nil
	case ir.CmpNe:
		return &ir.IsNull{Expr: expr, Negate: true}, nil
	default:
		return nil, structErrf(ErrUnsupportedNode, method, "null supports only equality comparisons")
	}
}

// visitBoolRef handles a bare column or parameter used as a predicate.
func (v *visitor) visitBoolRef(n ast.Node) (ir.BoolExpr, error) {
	expr, err := v.visitValue(n)
	if err != nil {
		return nil, err
	}
	switch e := expr.(type) {
	case *ir.Column:
		return &ir.BoolColumn{Col: *e}, nil
	case *ir.Param:
		return &ir.BoolParam{P: *e}, nil
	default:
		return nil, structErrf(ErrUnsupportedNode, v.method, "expression cannot be used as a predicate by itself")
	}
}

// visitBoolCall lowers boolean-returning calls: string matches, membership
// tests, and case-insensitive helpers.
func (v *visitor) visitBoolCall(call *ast.Call) (ir.BoolExpr, error) {
	member, ok := call.Callee.(*ast.Member)
	if !ok || member.Computed() {
		return nil, structErrf(ErrUnsupportedNode, v.method, "only method calls are supported in predicates")
	}

	if ident, isIdent := member.Object.(*ast.Ident); isIdent {
		if handled, pred, err := v.tryHelperPredicate(ident.Name, member.Property, call.Args); handled {
			return pred, err
		}
	}

	switch member.Property {
	case "startsWith", "endsWith":
		if len(call.Args) != 1 {
			return nil, structErrf(ErrBadArity, v.method, "%s takes exactly one argument", member.Property)
		}
		recv, err := v.visitValue(member.Object)
		if err != nil {
			return nil, err
		}
		arg, err := v.visitValue(call.Args[0])
		if err != nil {
			return nil, err
		}
		fn := ir.MatchStartsWith
		if member.Property == "endsWith" {
			fn = ir.MatchEndsWith
		}
		return &ir.StringMatch{Fn: fn, Recv: recv, Arg: arg}, nil
	case "includes":
		return v.visitIncludes(member, call.Args)
	default:
		return nil, structErrf(ErrUnknownMethod, v.method, "unrecognized method %q in predicate", member.Property)
	}
}

// visitIncludes disambiguates array membership (IN) from substring match
// (LIKE) by the receiver: array literals and parameters are haystacks,
// anything else is a string receiver.
func (v *visitor) visitIncludes(member *ast.Member, args []ast.Node) (ir.BoolExpr, error) {
	if len(args) != 1 {
		return nil, structErrf(ErrBadArity, v.method, "includes takes exactly one argument")
	}
	recv, err := v.visitValue(member.Object)
	if err != nil {
		return nil, err
	}
	arg, err := v.visitValue(args[0])
	if err != nil {
		return nil, err
	}

	if _, isArrLit := member.Object.(*ast.Array); isArrLit {
		return &ir.In{Needle: arg, Haystack: recv}, nil
	}
	if p, isParam := recv.(*ir.Param); isParam {
		// A parameter receiver is an array haystack; string-typed params
		// appear as arguments, not receivers, in every supported pattern.
		return &ir.In{Needle: arg, Haystack: p}, nil
	}
	return &ir.StringMatch{Fn: ir.MatchIncludes, Recv: recv, Arg: arg}, nil
}

// tryHelperPredicate handles helpers.<fn>(...) boolean functions.
func (v *visitor) tryHelperPredicate(base, fn string, args []ast.Node) (bool, ir.BoolExpr, error) {
	if base != v.ctx.Helpers || v.ctx.Helpers == "" {
		return false, nil, nil
	}
	if _, shadowed := v.lookup(base); shadowed {
		return false, nil, nil
	}
	switch fn {
	case "iLike":
		if len(args) != 2 {
			return true, nil, structErrf(ErrBadArity, v.method, "iLike takes exactly two arguments")
		}
		left, err := v.visitValue(args[0])
		if err != nil {
			return true, nil, err
		}
		right, err := v.visitValue(args[1])
		if err != nil {
			return true, nil, err
		}
		return true, &ir.CaseInsensitiveLike{Left: left, Right: right}, nil
	case "iStartsWith", "iEndsWith", "iIncludes":
		if len(args) != 2 {
			return true, nil, structErrf(ErrBadArity, v.method, "%s takes exactly two arguments", fn)
		}
		recv, err := v.visitValue(args[0])
		if err != nil {
			return true, nil, err
		}
		arg, err := v.visitValue(args[1])
		if err != nil {
			return true, nil, err
		}
		var match ir.MatchFn
		switch fn {
		case "iStartsWith":
			match = ir.MatchStartsWith
		case "iEndsWith":
			match = ir.MatchEndsWith
		default:
			match = ir.MatchIncludes
		}
		return true, &ir.StringMatch{Fn: match, Recv: recv, Arg: arg, CaseInsensitive: true}, nil
	case "isNull", "isNotNull":
		if len(args) != 1 {
			return true, nil, structErrf(ErrBadArity, v.method, "%s takes exactly one argument", fn)
		}
		expr, err := v.visitValue(args[0])
		if err != nil {
			return true, nil, err
		}
		return true, &ir.IsNull{Expr: expr, Negate: fn == "isNotNull"}, nil
	default:
		return true, nil, structErrf(ErrUnknownMethod, v.method, "unrecognized helper predicate %q", fn)
	}
}
