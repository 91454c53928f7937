package parse

import (
	"strings"

	"github.com/quillsql/quill/internal/ast"
	"github.com/quillsql/quill/internal/ir"
)

// visitValue lowers an AST fragment to a scalar expression. Every literal
// except null/undefined mints an auto-parameter.
func (v *visitor) visitValue(n ast.Node) (ir.ValueExpr, error) {
	switch node := n.(type) {
	case *ast.Literal:
		return v.visitLiteral(node)
	case *ast.Ident:
		return v.visitIdentValue(node)
	case *ast.Member:
		return v.resolveMember(node)
	case *ast.Binary:
		return v.visitArithmetic(node)
	case *ast.Conditional:
		test, err := v.visitBool(node.Test)
		if err != nil {
			return nil, err
		}
		then, err := v.visitValue(node.Then)
		if err != nil {
			return nil, err
		}
		els, err := v.visitValue(node.Else)
		if err != nil {
			return nil, err
		}
		return &ir.Case{Branches: []ir.CaseBranch{{When: test, Then: then}}, Else: els}, nil
	case *ast.Call:
		return v.visitValueCall(node)
	case *ast.Array:
		return v.visitArrayLiteral(node)
	case *ast.Unary:
		return v.visitUnaryValue(node)
	default:
		return nil, structErrf(ErrUnsupportedNode, v.method, "unsupported expression node %T in value position", n)
	}
}

func (v *visitor) visitLiteral(lit *ast.Literal) (ir.ValueExpr, error) {
	switch val := lit.Value.(type) {
	case nil:
		return &ir.Constant{Null: true}, nil
	case ir.UndefinedValue:
		return &ir.Constant{Value: ir.Undefined}, nil
	case string, bool, int64, float64:
		return v.ctx.mintParam(val, v.method), nil
	case int:
		return v.ctx.mintParam(int64(val), v.method), nil
	default:
		return nil, structErrf(ErrBadLiteral, v.method, "unsupported literal type %T", lit.Value)
	}
}

// visitArrayLiteral mints one array-valued auto-parameter; generation
// expands it to indexed placeholders.
func (v *visitor) visitArrayLiteral(arr *ast.Array) (ir.ValueExpr, error) {
	values := make([]any, len(arr.Elems))
	for i, e := range arr.Elems {
		lit, ok := e.(*ast.Literal)
		if !ok {
			return nil, structErrf(ErrBadLiteral, v.method, "array literals must hold only literals, got %T", e)
		}
		switch val := lit.Value.(type) {
		case string, bool, int64, float64:
			values[i] = val
		case int:
			values[i] = int64(val)
		default:
			return nil, structErrf(ErrBadLiteral, v.method, "unsupported array element type %T", lit.Value)
		}
	}
	return v.ctx.mintParam(values, v.method), nil
}

func (v *visitor) visitUnaryValue(u *ast.Unary) (ir.ValueExpr, error) {
	if u.Op != "-" {
		return nil, structErrf(ErrUnsupportedNode, v.method, "unary %q is not a value operator", u.Op)
	}
	lit, ok := u.Operand.(*ast.Literal)
	if !ok {
		return nil, structErrf(ErrUnsupportedNode, v.method, "unary minus applies only to literals")
	}
	switch val := lit.Value.(type) {
	case int64:
		return v.ctx.mintParam(-val, v.method), nil
	case int:
		return v.ctx.mintParam(int64(-val), v.method), nil
	case float64:
		return v.ctx.mintParam(-val, v.method), nil
	default:
		return nil, structErrf(ErrBadLiteral, v.method, "unary minus on non-numeric literal %T", lit.Value)
	}
}

func (v *visitor) visitIdentValue(ident *ast.Ident) (ir.ValueExpr, error) {
	b, ok := v.lookup(ident.Name)
	if !ok {
		return nil, structErrf(ErrUnknownIdentifier, v.method, "identifier %q is not bound in any scope", ident.Name)
	}
	switch b.kind {
	case bindTable:
		return &ir.TableRef{Index: b.table}, nil
	case bindGroup:
		return nil, structErrf(ErrGroupKeyOutside, v.method, "grouping parameter %q must be used via .key or an aggregate", ident.Name)
	default:
		return nil, structErrf(ErrUnsupportedNode, v.method, "%q cannot be used as a value by itself", ident.Name)
	}
}

func (v *visitor) visitArithmetic(b *ast.Binary) (ir.ValueExpr, error) {
	var op ir.ArithOp
	switch b.Op {
	case "+":
		op = ir.OpAdd
	case "-":
		op = ir.OpSub
	case "*":
		op = ir.OpMul
	case "/":
		op = ir.OpDiv
	case "%":
		op = ir.OpMod
	default:
		return nil, structErrf(ErrUnsupportedNode, v.method, "operator %q is not a value operator", b.Op)
	}
	left, err := v.visitValue(b.Left)
	if err != nil {
		return nil, err
	}
	right, err := v.visitValue(b.Right)
	if err != nil {
		return nil, err
	}
	return &ir.Arithmetic{Op: op, Left: left, Right: right}, nil
}

// memberPath peels a member chain to its base identifier, collecting the
// property path and an optional trailing computed index.
type memberPath struct {
	base    string
	path    []string
	index   int
	indexed bool
}

func (v *visitor) peelMember(m *ast.Member) (*memberPath, error) {
	mp := &memberPath{}
	var node ast.Node = m
	for {
		member, ok := node.(*ast.Member)
		if !ok {
			break
		}
		if member.Computed() {
			if mp.indexed || len(mp.path) > 0 {
				return nil, structErrf(ErrBadParamIndex, v.method, "computed access is only supported as the final segment")
			}
			lit, isLit := member.Index.(*ast.Literal)
			idx, isInt := int64(0), false
			if isLit {
				idx, isInt = lit.Value.(int64)
			}
			if !isInt {
				return nil, structErrf(ErrBadParamIndex, v.method, "computed access requires an integer literal index")
			}
			mp.index = int(idx)
			mp.indexed = true
		} else {
			mp.path = append([]string{member.Property}, mp.path...)
		}
		node = member.Object
	}
	ident, ok := node.(*ast.Ident)
	if !ok {
		return nil, structErrf(ErrUnsupportedNode, v.method, "member chain must root at an identifier, got %T", node)
	}
	mp.base = ident.Name
	return mp, nil
}

// resolveMember lowers a property chain to a column, parameter, group key,
// or excluded-row reference, depending on what its base is bound to.
func (v *visitor) resolveMember(m *ast.Member) (ir.ValueExpr, error) {
	mp, err := v.peelMember(m)
	if err != nil {
		return nil, err
	}

	if mp.base == v.ctx.QueryParams && v.ctx.QueryParams != "" {
		if _, shadowed := v.lookup(mp.base); !shadowed {
			return v.resolveParam(mp)
		}
	}

	b, ok := v.lookup(mp.base)
	if !ok {
		if mp.base == v.ctx.Helpers && v.ctx.Helpers != "" {
			return nil, structErrf(ErrUnsupportedNode, v.method, "helpers namespace must be called, not read")
		}
		return nil, structErrf(ErrUnknownIdentifier, v.method, "identifier %q is not bound in any scope", mp.base)
	}

	switch b.kind {
	case bindQueryParams:
		return v.resolveParam(mp)
	case bindTable:
		return v.resolveTableMember(b.table, mp)
	case bindShape:
		return v.resolveShapeMember(b.shape, mp)
	case bindGroup:
		return v.resolveGroupMember(mp)
	case bindExcluded:
		if len(mp.path) != 1 || mp.indexed {
			return nil, structErrf(ErrUnresolvedField, v.method, "excluded row access must be a single column read")
		}
		return &ir.ExcludedColumn{Name: mp.path[0]}, nil
	case bindHelpers:
		return nil, structErrf(ErrUnsupportedNode, v.method, "helpers namespace must be called, not read")
	default:
		return nil, structErrf(ErrUnsupportedNode, v.method, "cannot resolve member on %q", mp.base)
	}
}

func (v *visitor) resolveParam(mp *memberPath) (ir.ValueExpr, error) {
	if len(mp.path) == 0 {
		return nil, structErrf(ErrUnresolvedField, v.method, "query parameter access needs a property name")
	}
	p := &ir.Param{Name: mp.path[0], Index: mp.index, Indexed: mp.indexed}
	if len(mp.path) > 1 {
		p.Path = mp.path[1:]
	}
	return p, nil
}

func (v *visitor) resolveTableMember(table int, mp *memberPath) (ir.ValueExpr, error) {
	if mp.indexed {
		return nil, structErrf(ErrBadParamIndex, v.method, "computed access is not supported on table columns")
	}
	if len(mp.path) == 0 {
		return &ir.TableRef{Index: table}, nil
	}
	if len(mp.path) == 2 && mp.path[1] == "length" {
		col, err := v.tableColumn(table, mp.path[0])
		if err != nil {
			return nil, err
		}
		return &ir.StringCall{Fn: ir.FnLength, Recv: col}, nil
	}
	if len(mp.path) > 1 {
		return nil, structErrf(ErrUnresolvedField, v.method,
			"nested access %q is not available before a join result shape exists", mp.path[0])
	}
	return v.tableColumn(table, mp.path[0])
}

func (v *visitor) tableColumn(table int, name string) (*ir.Column, error) {
	origin := ir.ColumnOrigin{Kind: ir.OriginDirect}
	if v.ctx.TableCount > 1 {
		origin = ir.ColumnOrigin{Kind: ir.OriginJoinParam, Index: table}
	}
	return &ir.Column{Name: name, Origin: origin}, nil
}

func (v *visitor) resolveShapeMember(shape *ir.Shape, mp *memberPath) (ir.ValueExpr, error) {
	if mp.indexed {
		return nil, structErrf(ErrBadParamIndex, v.method, "computed access is not supported on result shapes")
	}
	if len(mp.path) == 0 {
		return nil, structErrf(ErrUnresolvedField, v.method, "result shape cannot be used as a value by itself")
	}

	expr, err := v.walkShapePath(shape, mp.path)
	if err != nil {
		// .length on a string column reads as one extra path segment; retry
		// without it before giving up.
		if last := len(mp.path) - 1; last >= 1 && mp.path[last] == "length" {
			if recv, retryErr := v.walkShapePath(shape, mp.path[:last]); retryErr == nil {
				if _, isCol := recv.(*ir.Column); isCol {
					return &ir.StringCall{Fn: ir.FnLength, Recv: recv}, nil
				}
			}
		}
		return nil, err
	}
	return expr, nil
}

// walkShapePath resolves a property path through the shape: named fields,
// nested objects, whole-table references with one trailing column hop
// (r.order.total), and spread fallbacks.
func (v *visitor) walkShapePath(shape *ir.Shape, path []string) (ir.ValueExpr, error) {
	node, ok := shape.Field(path[0])
	if !ok {
		if len(path) == 1 && len(shape.Spreads) > 0 {
			if shape.Projected {
				// Spread columns survive the projection under their own
				// names; after the wrap only the derived table is in scope.
				return &ir.Column{Name: path[0], Origin: ir.ColumnOrigin{Kind: ir.OriginDirect}}, nil
			}
			spread := shape.Spreads[len(shape.Spreads)-1]
			return &ir.Column{Name: path[0], Origin: ir.ColumnOrigin{Kind: ir.OriginSpread, Index: spread}}, nil
		}
		return nil, structErrf(ErrUnresolvedField, v.method, "field %q is not in the current result shape", path[0])
	}

	rest := path[1:]
	for {
		switch sn := node.(type) {
		case *ir.ShapeColumn:
			if len(rest) > 0 {
				return nil, structErrf(ErrUnresolvedField, v.method, "column field has no sub-field %q", rest[0])
			}
			if shape.Projected {
				// A projection renames its outputs, so the field is
				// addressed by its dot-joined alias.
				return &ir.Column{Name: strings.Join(path, "."), Origin: ir.ColumnOrigin{Kind: ir.OriginDirect}}, nil
			}
			if sn.Table == ir.ComputedColumn {
				return &ir.Column{Name: path[len(path)-1], Origin: ir.ColumnOrigin{Kind: ir.OriginDirect}}, nil
			}
			return &ir.Column{Name: sn.Column, Origin: ir.ColumnOrigin{Kind: ir.OriginJoinResult, Index: sn.Table}}, nil
		case *ir.ShapeTable:
			switch len(rest) {
			case 0:
				return &ir.TableRef{Index: sn.Table}, nil
			case 1:
				if shape.Projected {
					return &ir.Column{Name: rest[0], Origin: ir.ColumnOrigin{Kind: ir.OriginDirect}}, nil
				}
				return &ir.Column{Name: rest[0], Origin: ir.ColumnOrigin{Kind: ir.OriginJoinResult, Index: sn.Table}}, nil
			default:
				return nil, structErrf(ErrUnresolvedField, v.method, "table reference supports one column hop, got %q", rest[1])
			}
		case *ir.ShapeObject:
			if len(rest) == 0 {
				return nil, structErrf(ErrUnresolvedField, v.method, "nested object cannot be used as a value")
			}
			var found bool
			node, found = (&ir.Shape{Fields: sn.Fields}).Field(rest[0])
			if !found {
				return nil, structErrf(ErrUnresolvedField, v.method, "field %q is not in the nested object", rest[0])
			}
			rest = rest[1:]
		case *ir.ShapeArray:
			return nil, structErrf(ErrUnresolvedField, v.method, "collection field cannot be used as a value")
		default:
			return nil, structErrf(ErrUnresolvedField, v.method, "field %q cannot be used as a value", path[0])
		}
	}
}

func (v *visitor) resolveGroupMember(mp *memberPath) (ir.ValueExpr, error) {
	if v.ctx.GroupKeys == nil {
		return nil, structErrf(ErrGroupKeyOutside, v.method, "grouping access outside a grouped chain")
	}
	if len(mp.path) == 0 || mp.path[0] != "key" {
		return nil, structErrf(ErrGroupKeyOutside, v.method, "grouping parameter supports only .key and aggregate calls")
	}
	switch len(mp.path) {
	case 1:
		if len(v.ctx.GroupKeys) != 1 || v.ctx.GroupKeys[0].Name != "" {
			return nil, structErrf(ErrUnresolvedField, v.method, ".key needs a field name for composite grouping keys")
		}
		return ir.CloneValue(v.ctx.GroupKeys[0].Expr), nil
	case 2:
		for _, k := range v.ctx.GroupKeys {
			if k.Name == mp.path[1] {
				return ir.CloneValue(k.Expr), nil
			}
		}
		return nil, structErrf(ErrUnresolvedField, v.method, "grouping key %q is not defined", mp.path[1])
	default:
		return nil, structErrf(ErrUnresolvedField, v.method, "grouping key access is at most two segments deep")
	}
}

// visitValueCall lowers value-returning calls: string methods, helper
// functions, window-function chains, and grouping aggregates.
func (v *visitor) visitValueCall(call *ast.Call) (ir.ValueExpr, error) {
	member, ok := call.Callee.(*ast.Member)
	if !ok || member.Computed() {
		return nil, structErrf(ErrUnsupportedNode, v.method, "only method calls are supported in expressions")
	}

	// Grouping aggregates: g.count(), g.sum(x => ...), ...
	if ident, isIdent := member.Object.(*ast.Ident); isIdent {
		if b, bound := v.lookup(ident.Name); bound && b.kind == bindGroup {
			return v.visitGroupAggregate(member.Property, call.Args)
		}
		if bound, helperExpr, err := v.tryHelperCall(ident.Name, member.Property, call.Args); bound {
			return helperExpr, err
		}
	}

	// Window chains root at a helpers call: helpers.rowNumber()....
	if win, isWin, err := v.tryWindowChain(call); isWin {
		return win, err
	}

	switch member.Property {
	case "toUpperCase", "toLowerCase", "trim":
		if len(call.Args) != 0 {
			return nil, structErrf(ErrBadArity, v.method, "%s takes no arguments", member.Property)
		}
		recv, err := v.visitValue(member.Object)
		if err != nil {
			return nil, err
		}
		fn := ir.FnTrim
		switch member.Property {
		case "toUpperCase":
			fn = ir.FnUpper
		case "toLowerCase":
			fn = ir.FnLower
		}
		return &ir.StringCall{Fn: fn, Recv: recv}, nil
	case "substring":
		if len(call.Args) < 1 || len(call.Args) > 2 {
			return nil, structErrf(ErrBadArity, v.method, "substring takes 1-2 arguments")
		}
		recv, err := v.visitValue(member.Object)
		if err != nil {
			return nil, err
		}
		args := make([]ir.ValueExpr, len(call.Args))
		for i, a := range call.Args {
			args[i], err = v.visitValue(a)
			if err != nil {
				return nil, err
			}
		}
		return &ir.StringCall{Fn: ir.FnSubstring, Recv: recv, Args: args}, nil
	default:
		return nil, structErrf(ErrUnknownMethod, v.method, "unrecognized method %q in expression", member.Property)
	}
}

// tryHelperCall handles helpers.<fn>(...) value functions. The first
// return reports whether the base identifier was the helpers namespace.
func (v *visitor) tryHelperCall(base, fn string, args []ast.Node) (bool, ir.ValueExpr, error) {
	if base != v.ctx.Helpers || v.ctx.Helpers == "" {
		return false, nil, nil
	}
	if _, shadowed := v.lookup(base); shadowed {
		return false, nil, nil
	}
	switch fn {
	case "coalesce", "concat":
		if len(args) < 2 {
			return true, nil, structErrf(ErrBadArity, v.method, "%s takes at least two arguments", fn)
		}
		exprs := make([]ir.ValueExpr, len(args))
		for i, a := range args {
			expr, err := v.visitValue(a)
			if err != nil {
				return true, nil, err
			}
			exprs[i] = expr
		}
		if fn == "coalesce" {
			return true, &ir.Coalesce{Exprs: exprs}, nil
		}
		return true, &ir.Concat{Parts: exprs}, nil
	case "rowNumber", "rank", "denseRank":
		// Bare window function with an empty OVER clause.
		if len(args) != 0 {
			return true, nil, structErrf(ErrBadArity, v.method, "%s takes no arguments", fn)
		}
		return true, &ir.WindowFunc{Fn: windowKind(fn)}, nil
	case "iLike":
		return true, nil, structErrf(ErrUnsupportedNode, v.method, "iLike is a predicate, not a value")
	default:
		return true, nil, structErrf(ErrUnknownMethod, v.method, "unrecognized helper function %q", fn)
	}
}

func windowKind(fn string) ir.WindowKind {
	switch fn {
	case "rank":
		return ir.WinRank
	case "denseRank":
		return ir.WinDenseRank
	default:
		return ir.WinRowNumber
	}
}

func (v *visitor) visitGroupAggregate(method string, args []ast.Node) (ir.ValueExpr, error) {
	switch method {
	case "count":
		if len(args) != 0 {
			return nil, structErrf(ErrBadArity, v.method, "group count takes no arguments")
		}
		return &ir.Aggregate{Fn: ir.AggCount}, nil
	case "sum", "average", "min", "max":
		if len(args) != 1 {
			return nil, structErrf(ErrBadArity, v.method, "group %s takes exactly one selector", method)
		}
		// The selector ranges over the rows inside the group, not the
		// grouping parameter.
		arg, err := v.visitSelectorLambdaBound(args[0], v.elementBinding())
		if err != nil {
			return nil, err
		}
		fn := ir.AggSum
		switch method {
		case "average":
			fn = ir.AggAvg
		case "min":
			fn = ir.AggMin
		case "max":
			fn = ir.AggMax
		}
		return &ir.Aggregate{Fn: fn, Arg: arg}, nil
	default:
		return nil, structErrf(ErrUnknownMethod, v.method, "unrecognized grouping method %q", method)
	}
}
