package parse

import (
	"github.com/quillsql/quill/internal/ast"
	"github.com/quillsql/quill/internal/ir"
)

// Operation visitors. Each consumes the already-built source operation and
// the raw argument nodes of one chain call, returning the extended chain.

func (v *visitor) visitFrom(args []ast.Node) (ir.Op, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, structErrf(ErrBadArity, "from", "from takes a table name (and optional alias), got %d args", len(args))
	}
	alias := ""
	if len(args) == 2 {
		lit, ok := args[1].(*ast.Literal)
		name, isStr := "", false
		if ok {
			name, isStr = lit.Value.(string)
		}
		if !isStr {
			return nil, structErrf(ErrBadLiteral, "from", "alias must be a string literal")
		}
		alias = name
	}

	// A string literal roots the chain in a table; a nested chain roots it
	// in a derived-table subquery.
	switch arg := args[0].(type) {
	case *ast.Literal:
		table, ok := arg.Value.(string)
		if !ok {
			return nil, structErrf(ErrBadLiteral, "from", "table name must be a string literal, got %T", arg.Value)
		}
		v.ctx.TableCount++
		return &ir.From{Table: table, Alias: alias}, nil
	case *ast.Call:
		sub, err := v.visitChain(arg)
		if err != nil {
			return nil, err
		}
		return &ir.From{Subquery: sub, Alias: alias}, nil
	default:
		return nil, structErrf(ErrUnsupportedNode, "from", "from takes a table name or a subquery chain, got %T", args[0])
	}
}

func (v *visitor) visitWhere(op ir.Op, args []ast.Node) (ir.Op, error) {
	if len(args) != 1 {
		return nil, structErrf(ErrBadArity, "where", "where takes exactly one predicate lambda")
	}

	// UPDATE/DELETE roots fold the predicate into the root instead of
	// adding a chain node; repeated wheres AND together.
	switch root := op.(type) {
	case *ir.Update:
		pred, err := v.visitTablePredicate(args[0])
		if err != nil {
			return nil, err
		}
		root.Pred = conjoin(root.Pred, pred)
		return root, nil
	case *ir.Delete:
		pred, err := v.visitTablePredicate(args[0])
		if err != nil {
			return nil, err
		}
		root.Pred = conjoin(root.Pred, pred)
		return root, nil
	case *ir.Insert:
		return nil, structErrf(ErrUnknownMethod, "where", "insert chains cannot be filtered")
	}

	pred, err := v.visitPredicateLambda(args[0])
	if err != nil {
		return nil, err
	}
	return &ir.Where{Src: op, Pred: pred}, nil
}

// visitTablePredicate binds a predicate lambda's parameter directly to the
// CRUD root's table.
func (v *visitor) visitTablePredicate(n ast.Node) (ir.BoolExpr, error) {
	l, err := v.lambdaArg(n, 1, 1)
	if err != nil {
		return nil, err
	}
	body, err := v.lambdaBody(l)
	if err != nil {
		return nil, err
	}
	s := newScope()
	s.names[l.Params[0]] = binding{kind: bindTable, table: 0}
	defer v.pushScope(s)()
	return v.visitBool(body)
}

func conjoin(left, right ir.BoolExpr) ir.BoolExpr {
	if left == nil {
		return right
	}
	return &ir.Logical{Op: ir.LogicAnd, Left: left, Right: right}
}

func (v *visitor) visitSelect(op ir.Op, args []ast.Node) (ir.Op, error) {
	if len(args) != 1 {
		return nil, structErrf(ErrBadArity, "select", "select takes exactly one projection lambda")
	}
	l, err := v.lambdaArg(args[0], 1, 1)
	if err != nil {
		return nil, err
	}
	body, err := v.lambdaBody(l)
	if err != nil {
		return nil, err
	}
	s := newScope()
	s.names[l.Params[0]] = v.rowBinding()
	pop := v.pushScope(s)
	proj, shape, err := v.visitProjection(body)
	pop()
	if err != nil {
		return nil, err
	}
	if shape != nil {
		shape.Projected = true
	}
	v.ctx.Shape = shape
	v.ctx.GroupKeys = nil
	return &ir.Select{Src: op, Projection: proj}, nil
}

// visitProjection lowers a select body to a projection plus the result
// shape later operations resolve against.
func (v *visitor) visitProjection(body ast.Node) (ir.Projection, *ir.Shape, error) {
	if obj, ok := body.(*ast.Object); ok {
		po, shape, err := v.visitProjectObject(obj)
		if err != nil {
			return nil, nil, err
		}
		return po, shape, nil
	}
	expr, err := v.visitValue(body)
	if err != nil {
		return nil, nil, err
	}
	// Scalar projections have no named fields to resolve later.
	return &ir.ProjectExpr{Expr: expr}, nil, nil
}

func (v *visitor) visitProjectObject(obj *ast.Object) (*ir.ProjectObject, *ir.Shape, error) {
	po := &ir.ProjectObject{}
	shape := &ir.Shape{}
	for _, f := range obj.Fields {
		if f.Name == ast.SpreadField {
			table, err := v.resolveSpread(f.Value)
			if err != nil {
				return nil, nil, err
			}
			po.Fields = append(po.Fields, ir.ProjectField{Table: &ir.TableRef{Index: table}})
			shape.Spreads = append(shape.Spreads, table)
			continue
		}
		switch val := f.Value.(type) {
		case *ast.Object:
			nested, nestedShape, err := v.visitProjectObject(val)
			if err != nil {
				return nil, nil, err
			}
			po.Fields = append(po.Fields, ir.ProjectField{Name: f.Name, Object: nested})
			shape.Fields = append(shape.Fields, ir.ShapeField{
				Name: f.Name,
				Node: &ir.ShapeObject{Fields: nestedShape.Fields},
			})
		default:
			expr, err := v.visitValue(f.Value)
			if err != nil {
				return nil, nil, err
			}
			if ref, ok := expr.(*ir.TableRef); ok {
				po.Fields = append(po.Fields, ir.ProjectField{Name: f.Name, Table: ref})
				shape.Fields = append(shape.Fields, ir.ShapeField{Name: f.Name, Node: &ir.ShapeTable{Table: ref.Index}})
				continue
			}
			po.Fields = append(po.Fields, ir.ProjectField{Name: f.Name, Expr: expr})
			shape.Fields = append(shape.Fields, ir.ShapeField{Name: f.Name, Node: shapeForExpr(expr)})
		}
	}
	return po, shape, nil
}

// shapeForExpr maps a projected expression to its shape node. Plain column
// reads keep their table; computed outputs resolve by output alias.
func shapeForExpr(expr ir.ValueExpr) ir.ShapeNode {
	if col, ok := expr.(*ir.Column); ok {
		switch col.Origin.Kind {
		case ir.OriginJoinParam, ir.OriginJoinResult, ir.OriginSpread:
			return &ir.ShapeColumn{Table: col.Origin.Index, Column: col.Name}
		default:
			return &ir.ShapeColumn{Table: 0, Column: col.Name}
		}
	}
	return &ir.ShapeColumn{Table: ir.ComputedColumn}
}

// resolveSpread resolves a spread field value to a table index.
func (v *visitor) resolveSpread(n ast.Node) (int, error) {
	expr, err := v.visitValue(n)
	if err != nil {
		return 0, err
	}
	ref, ok := expr.(*ir.TableRef)
	if !ok {
		return 0, structErrf(ErrUnsupportedNode, v.method, "spread must reference a whole table")
	}
	return ref.Index, nil
}

func (v *visitor) visitJoin(op ir.Op, args []ast.Node, group bool) (ir.Op, error) {
	method := "join"
	if group {
		method = "groupJoin"
	}
	if len(args) != 4 {
		return nil, structErrf(ErrBadArity, method,
			"%s takes (inner, outerKey, innerKey, resultSelector), got %d args", method, len(args))
	}

	innerChain, ok := args[0].(*ast.Call)
	if !ok {
		return nil, structErrf(ErrUnsupportedNode, method, "inner source must be a query chain, got %T", args[0])
	}
	inner, err := v.visitChain(innerChain)
	if err != nil {
		return nil, err
	}
	innerIdx := v.ctx.TableCount - 1 // visitChain counted the inner table

	outerKey, err := v.visitSelectorLambdaBound(args[1], v.outerBindingBefore(innerIdx))
	if err != nil {
		return nil, err
	}
	innerKey, err := v.visitSelectorLambdaBound(args[2], binding{kind: bindTable, table: innerIdx})
	if err != nil {
		return nil, err
	}

	shape, err := v.visitResultSelector(args[3], innerIdx, group)
	if err != nil {
		return nil, err
	}
	v.ctx.Shape = shape
	v.ctx.GroupKeys = nil

	if group {
		return &ir.GroupJoin{Src: op, Inner: inner, OuterKey: outerKey, InnerKey: innerKey, Shape: shape}, nil
	}
	return &ir.Join{Src: op, Inner: inner, OuterKey: outerKey, InnerKey: innerKey, Shape: shape}, nil
}

// outerBindingBefore returns the binding for outer-side lambda parameters
// given that innerIdx was just allocated to the joined table.
func (v *visitor) outerBindingBefore(innerIdx int) binding {
	if v.ctx.Shape != nil {
		return binding{kind: bindShape, shape: v.ctx.Shape}
	}
	return binding{kind: bindTable, table: 0}
}

func (v *visitor) visitSelectorLambdaBound(n ast.Node, b binding) (ir.ValueExpr, error) {
	l, err := v.lambdaArg(n, 1, 1)
	if err != nil {
		return nil, err
	}
	body, err := v.lambdaBody(l)
	if err != nil {
		return nil, err
	}
	s := newScope()
	s.names[l.Params[0]] = b
	defer v.pushScope(s)()
	return v.visitValue(body)
}

// visitResultSelector lowers a two-parameter join result selector to the
// new result shape. For groupJoin the inner parameter denotes a collection.
func (v *visitor) visitResultSelector(n ast.Node, innerIdx int, group bool) (*ir.Shape, error) {
	l, err := v.lambdaArg(n, 2, 2)
	if err != nil {
		return nil, err
	}
	body, err := v.lambdaBody(l)
	if err != nil {
		return nil, err
	}
	obj, ok := body.(*ast.Object)
	if !ok {
		return nil, structErrf(ErrUnsupportedNode, v.method, "result selector must return an object literal, got %T", body)
	}

	s := newScope()
	s.names[l.Params[0]] = v.outerBindingBefore(innerIdx)
	s.names[l.Params[1]] = binding{kind: bindTable, table: innerIdx}
	defer v.pushScope(s)()

	shape := &ir.Shape{}
	for _, f := range obj.Fields {
		if f.Name == ast.SpreadField {
			table, err := v.resolveSpread(f.Value)
			if err != nil {
				return nil, err
			}
			shape.Spreads = append(shape.Spreads, table)
			continue
		}
		node, err := v.shapeNodeFor(f.Value, l.Params[1], innerIdx, group)
		if err != nil {
			return nil, err
		}
		shape.Fields = append(shape.Fields, ir.ShapeField{Name: f.Name, Node: node})
	}
	return shape, nil
}

// shapeNodeFor classifies one result-selector field: a whole parameter
// becomes a table (or collection) reference, a member chain a column.
func (v *visitor) shapeNodeFor(n ast.Node, innerName string, innerIdx int, group bool) (ir.ShapeNode, error) {
	if ident, ok := n.(*ast.Ident); ok {
		if group && ident.Name == innerName {
			return &ir.ShapeArray{Table: innerIdx, Elem: &ir.ShapeTable{Table: innerIdx}}, nil
		}
		expr, err := v.visitValue(ident)
		if err != nil {
			return nil, err
		}
		switch e := expr.(type) {
		case *ir.TableRef:
			return &ir.ShapeTable{Table: e.Index}, nil
		case *ir.Column:
			return shapeForExpr(e), nil
		}
		return &ir.ShapeColumn{Table: ir.ComputedColumn}, nil
	}
	expr, err := v.visitValue(n)
	if err != nil {
		return nil, err
	}
	return shapeForExpr(expr), nil
}

func (v *visitor) visitSelectMany(op ir.Op, args []ast.Node) (ir.Op, error) {
	if len(args) != 2 {
		return nil, structErrf(ErrBadArity, "selectMany", "selectMany takes (collectionSelector, resultSelector)")
	}
	field, defaultIfEmpty, collTable, err := v.visitCollectionSelector(args[0])
	if err != nil {
		return nil, err
	}
	shape, err := v.visitResultSelector(args[1], collTable, false)
	if err != nil {
		return nil, err
	}
	v.ctx.Shape = shape
	v.ctx.GroupKeys = nil
	return &ir.SelectMany{Src: op, Field: field, DefaultIfEmpty: defaultIfEmpty, Shape: shape}, nil
}

// visitCollectionSelector handles x => x.items and
// x => x.items.defaultIfEmpty(), returning the flattened field name, the
// outer-join marker, and the collection's table index.
func (v *visitor) visitCollectionSelector(n ast.Node) (string, bool, int, error) {
	l, err := v.lambdaArg(n, 1, 1)
	if err != nil {
		return "", false, 0, err
	}
	body, err := v.lambdaBody(l)
	if err != nil {
		return "", false, 0, err
	}

	defaultIfEmpty := false
	if call, ok := body.(*ast.Call); ok {
		member, isMember := call.Callee.(*ast.Member)
		if !isMember || member.Property != "defaultIfEmpty" || len(call.Args) != 0 {
			return "", false, 0, structErrf(ErrUnknownMethod, "selectMany",
				"collection selector supports only .defaultIfEmpty() chaining")
		}
		defaultIfEmpty = true
		body = member.Object
	}

	member, ok := body.(*ast.Member)
	if !ok || member.Computed() {
		return "", false, 0, structErrf(ErrUnsupportedNode, "selectMany",
			"collection selector must read a shape field, got %T", body)
	}
	ident, ok := member.Object.(*ast.Ident)
	if !ok || ident.Name != l.Params[0] {
		return "", false, 0, structErrf(ErrUnsupportedNode, "selectMany",
			"collection selector must read a field of its parameter")
	}

	node, found := v.ctx.Shape.Field(member.Property)
	if !found {
		return "", false, 0, structErrf(ErrUnresolvedField, "selectMany",
			"field %q is not in the current result shape", member.Property)
	}
	arr, isArr := node.(*ir.ShapeArray)
	if !isArr {
		return "", false, 0, structErrf(ErrUnresolvedField, "selectMany",
			"field %q is not a collection", member.Property)
	}
	return member.Property, defaultIfEmpty, arr.Table, nil
}

func (v *visitor) visitDefaultIfEmpty(op ir.Op, args []ast.Node) (ir.Op, error) {
	if len(args) != 0 {
		return nil, structErrf(ErrBadArity, "defaultIfEmpty", "defaultIfEmpty takes no arguments")
	}
	return &ir.DefaultIfEmpty{Src: op}, nil
}

func (v *visitor) visitGroupBy(op ir.Op, args []ast.Node) (ir.Op, error) {
	if len(args) != 1 {
		return nil, structErrf(ErrBadArity, "groupBy", "groupBy takes exactly one key selector")
	}
	l, err := v.lambdaArg(args[0], 1, 1)
	if err != nil {
		return nil, err
	}
	body, err := v.lambdaBody(l)
	if err != nil {
		return nil, err
	}
	s := newScope()
	s.names[l.Params[0]] = v.rowBinding()
	pop := v.pushScope(s)
	defer pop()

	var keys []GroupKey
	if obj, ok := body.(*ast.Object); ok {
		for _, f := range obj.Fields {
			expr, err := v.visitValue(f.Value)
			if err != nil {
				return nil, err
			}
			keys = append(keys, GroupKey{Name: f.Name, Expr: expr})
		}
	} else {
		expr, err := v.visitValue(body)
		if err != nil {
			return nil, err
		}
		keys = append(keys, GroupKey{Expr: expr})
	}

	v.ctx.GroupKeys = keys
	exprs := make([]ir.ValueExpr, len(keys))
	for i, k := range keys {
		exprs[i] = k.Expr
	}
	return &ir.GroupBy{Src: op, Keys: exprs}, nil
}

func (v *visitor) visitOrderBy(op ir.Op, args []ast.Node, desc bool) (ir.Op, error) {
	if len(args) != 1 {
		return nil, structErrf(ErrBadArity, v.method, "%s takes exactly one key selector", v.method)
	}
	expr, err := v.visitSelectorLambda(args[0])
	if err != nil {
		return nil, err
	}
	return &ir.OrderBy{Src: op, Expr: expr, Desc: desc}, nil
}

func (v *visitor) visitThenBy(op ir.Op, args []ast.Node, desc bool) (ir.Op, error) {
	switch op.(type) {
	case *ir.OrderBy, *ir.ThenBy:
	default:
		return nil, structErrf(ErrUnknownMethod, v.method, "%s must follow orderBy or thenBy", v.method)
	}
	if len(args) != 1 {
		return nil, structErrf(ErrBadArity, v.method, "%s takes exactly one key selector", v.method)
	}
	expr, err := v.visitSelectorLambda(args[0])
	if err != nil {
		return nil, err
	}
	return &ir.ThenBy{Src: op, Expr: expr, Desc: desc}, nil
}

func (v *visitor) visitDistinct(op ir.Op, args []ast.Node) (ir.Op, error) {
	if len(args) != 0 {
		return nil, structErrf(ErrBadArity, "distinct", "distinct takes no arguments")
	}
	return &ir.Distinct{Src: op}, nil
}

func (v *visitor) visitTakeSkip(op ir.Op, args []ast.Node, take bool) (ir.Op, error) {
	if len(args) != 1 {
		return nil, structErrf(ErrBadArity, v.method, "%s takes exactly one count", v.method)
	}
	var count ir.ValueExpr
	switch arg := args[0].(type) {
	case *ast.Literal:
		n, ok := arg.Value.(int64)
		if !ok {
			return nil, structErrf(ErrBadLiteral, v.method, "count must be an integer literal, got %T", arg.Value)
		}
		count = v.ctx.mintParam(n, v.method)
	default:
		expr, err := v.visitValue(args[0])
		if err != nil {
			return nil, err
		}
		if _, ok := expr.(*ir.Param); !ok {
			return nil, structErrf(ErrUnsupportedNode, v.method, "count must be a literal or a query parameter")
		}
		count = expr
	}
	if take {
		return &ir.Take{Src: op, Count: count}, nil
	}
	return &ir.Skip{Src: op, Count: count}, nil
}

func (v *visitor) visitReverse(op ir.Op, args []ast.Node) (ir.Op, error) {
	if len(args) != 0 {
		return nil, structErrf(ErrBadArity, "reverse", "reverse takes no arguments")
	}
	return &ir.Reverse{Src: op}, nil
}

func (v *visitor) visitRowTerminal(op ir.Op, method string, args []ast.Node) (ir.Op, error) {
	if len(args) > 1 {
		return nil, structErrf(ErrBadArity, method, "%s takes at most one predicate lambda", method)
	}
	var pred ir.BoolExpr
	if len(args) == 1 {
		var err error
		pred, err = v.visitPredicateLambda(args[0])
		if err != nil {
			return nil, err
		}
	}
	orDefault := method == "firstOrDefault" || method == "singleOrDefault" || method == "lastOrDefault"
	switch method {
	case "first", "firstOrDefault":
		return &ir.First{Src: op, Pred: pred, OrDefault: orDefault}, nil
	case "single", "singleOrDefault":
		return &ir.Single{Src: op, Pred: pred, OrDefault: orDefault}, nil
	default:
		return &ir.Last{Src: op, Pred: pred, OrDefault: orDefault}, nil
	}
}

func (v *visitor) visitContains(op ir.Op, args []ast.Node) (ir.Op, error) {
	if len(args) != 1 {
		return nil, structErrf(ErrBadArity, "contains", "contains takes exactly one value")
	}
	value, err := v.visitValue(args[0])
	if err != nil {
		return nil, err
	}
	return &ir.Contains{Src: op, Value: value}, nil
}

func (v *visitor) visitExistence(op ir.Op, method string, args []ast.Node) (ir.Op, error) {
	var pred ir.BoolExpr
	switch {
	case method == "all" && len(args) != 1:
		return nil, structErrf(ErrBadArity, method, "all takes exactly one predicate lambda")
	case len(args) > 1:
		return nil, structErrf(ErrBadArity, method, "%s takes at most one predicate lambda", method)
	case len(args) == 1:
		var err error
		pred, err = v.visitPredicateLambda(args[0])
		if err != nil {
			return nil, err
		}
	}
	if method == "all" {
		return &ir.All{Src: op, Pred: pred}, nil
	}
	return &ir.Any{Src: op, Pred: pred}, nil
}

func (v *visitor) visitCount(op ir.Op, method string, args []ast.Node) (ir.Op, error) {
	if len(args) > 1 {
		return nil, structErrf(ErrBadArity, method, "%s takes at most one predicate lambda", method)
	}
	var pred ir.BoolExpr
	if len(args) == 1 {
		var err error
		pred, err = v.visitPredicateLambda(args[0])
		if err != nil {
			return nil, err
		}
	}
	return &ir.CountOp{Src: op, Pred: pred, Long: method == "longCount"}, nil
}

func (v *visitor) visitFold(op ir.Op, method string, args []ast.Node) (ir.Op, error) {
	if len(args) > 1 {
		return nil, structErrf(ErrBadArity, method, "%s takes at most one selector lambda", method)
	}
	var selector ir.ValueExpr
	if len(args) == 1 {
		var err error
		selector, err = v.visitSelectorLambda(args[0])
		if err != nil {
			return nil, err
		}
	}
	var fn ir.AggFn
	switch method {
	case "sum":
		fn = ir.AggSum
	case "average":
		fn = ir.AggAvg
	case "min":
		fn = ir.AggMin
	case "max":
		fn = ir.AggMax
	}
	return &ir.Fold{Src: op, Fn: fn, Selector: selector}, nil
}
