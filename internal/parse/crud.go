package parse

import (
	"github.com/quillsql/quill/internal/ast"
	"github.com/quillsql/quill/internal/ir"
)

// CRUD root and continuation visitors.

func (v *visitor) visitInsertInto(args []ast.Node) (ir.Op, error) {
	table, err := v.tableNameArg(args, "insertInto")
	if err != nil {
		return nil, err
	}
	v.ctx.TableCount++
	return &ir.Insert{Table: table}, nil
}

func (v *visitor) visitUpdateRoot(args []ast.Node) (ir.Op, error) {
	table, err := v.tableNameArg(args, "update")
	if err != nil {
		return nil, err
	}
	v.ctx.TableCount++
	return &ir.Update{Table: table}, nil
}

func (v *visitor) visitDeleteRoot(args []ast.Node) (ir.Op, error) {
	table, err := v.tableNameArg(args, "deleteFrom")
	if err != nil {
		return nil, err
	}
	v.ctx.TableCount++
	return &ir.Delete{Table: table}, nil
}

func (v *visitor) tableNameArg(args []ast.Node, method string) (string, error) {
	if len(args) != 1 {
		return "", structErrf(ErrBadArity, method, "%s takes exactly one table name", method)
	}
	lit, ok := args[0].(*ast.Literal)
	name, isStr := "", false
	if ok {
		name, isStr = lit.Value.(string)
	}
	if !isStr {
		return "", structErrf(ErrBadLiteral, method, "table name must be a string literal")
	}
	return name, nil
}

// visitValues lowers insertInto(...).values({...}). The argument is an
// object literal, or a lambda over the query parameters returning one.
// Undefined-valued fields are kept in the IR; generation omits them once
// caller parameters are known.
func (v *visitor) visitValues(op ir.Op, args []ast.Node) (ir.Op, error) {
	insert, ok := op.(*ir.Insert)
	if !ok {
		return nil, structErrf(ErrUnknownMethod, "values", "values is only legal after insertInto")
	}
	if insert.Columns != nil {
		return nil, structErrf(ErrRepeatedCall, "values", "values may be called once per insert")
	}
	if len(args) != 1 {
		return nil, structErrf(ErrBadArity, "values", "values takes exactly one row object")
	}

	obj, err := v.rowObjectArg(args[0], "values")
	if err != nil {
		return nil, err
	}
	for _, f := range obj.Fields {
		if f.Name == ast.SpreadField {
			return nil, structErrf(ErrUnsupportedNode, "values", "spread is not supported in insert values")
		}
		expr, exprErr := v.visitValue(f.Value)
		if exprErr != nil {
			return nil, exprErr
		}
		insert.Columns = append(insert.Columns, f.Name)
		insert.Values = append(insert.Values, expr)
	}
	if len(insert.Columns) == 0 {
		return nil, structErrf(ErrBadArity, "values", "insert row object has no columns")
	}
	return insert, nil
}

// rowObjectArg accepts either an object literal or a zero/one-parameter
// lambda returning one.
func (v *visitor) rowObjectArg(n ast.Node, method string) (*ast.Object, error) {
	if obj, ok := n.(*ast.Object); ok {
		return obj, nil
	}
	l, ok := n.(*ast.Lambda)
	if !ok {
		return nil, structErrf(ErrUnsupportedNode, method, "%s takes an object literal, got %T", method, n)
	}
	if len(l.Params) > 1 {
		return nil, structErrf(ErrBadArity, method, "%s lambda takes at most one parameter", method)
	}
	body, err := v.lambdaBody(l)
	if err != nil {
		return nil, err
	}
	obj, ok := body.(*ast.Object)
	if !ok {
		return nil, structErrf(ErrUnsupportedNode, method, "%s lambda must return an object literal", method)
	}
	return obj, nil
}

func (v *visitor) visitOnConflict(op ir.Op, args []ast.Node) (ir.Op, error) {
	insert, ok := op.(*ir.Insert)
	if !ok || insert.Columns == nil {
		return nil, structErrf(ErrUnknownMethod, "onConflict", "onConflict is only legal after values")
	}
	if insert.Conflict != nil {
		return nil, structErrf(ErrRepeatedCall, "onConflict", "onConflict may be called once per insert")
	}
	if len(args) == 0 {
		return nil, structErrf(ErrBadArity, "onConflict", "onConflict needs at least one conflict column")
	}

	target, err := v.conflictTarget(args)
	if err != nil {
		return nil, err
	}
	insert.Conflict = &ir.Conflict{Target: target}
	return insert, nil
}

// conflictTarget accepts string literals or a single column-selector
// lambda (scalar or object of columns).
func (v *visitor) conflictTarget(args []ast.Node) ([]string, error) {
	if l, isLambda := args[0].(*ast.Lambda); isLambda {
		if len(args) != 1 {
			return nil, structErrf(ErrBadArity, "onConflict", "pass either one selector lambda or string column names")
		}
		return v.columnSelector(l, "onConflict")
	}
	target := make([]string, len(args))
	for i, a := range args {
		lit, ok := a.(*ast.Literal)
		name, isStr := "", false
		if ok {
			name, isStr = lit.Value.(string)
		}
		if !isStr {
			return nil, structErrf(ErrBadLiteral, "onConflict", "conflict columns must be string literals")
		}
		target[i] = name
	}
	return target, nil
}

// columnSelector resolves u => u.email or u => ({a: u.a, b: u.b}) to
// physical column names.
func (v *visitor) columnSelector(l *ast.Lambda, method string) ([]string, error) {
	if len(l.Params) != 1 {
		return nil, structErrf(ErrBadArity, method, "column selector takes exactly one parameter")
	}
	body, err := v.lambdaBody(l)
	if err != nil {
		return nil, err
	}
	s := newScope()
	s.names[l.Params[0]] = binding{kind: bindTable, table: 0}
	defer v.pushScope(s)()

	collect := func(n ast.Node) (string, error) {
		expr, err := v.visitValue(n)
		if err != nil {
			return "", err
		}
		col, ok := expr.(*ir.Column)
		if !ok {
			return "", structErrf(ErrUnsupportedNode, method, "column selector must read plain columns")
		}
		return col.Name, nil
	}

	if obj, isObj := body.(*ast.Object); isObj {
		names := make([]string, 0, len(obj.Fields))
		for _, f := range obj.Fields {
			name, err := collect(f.Value)
			if err != nil {
				return nil, err
			}
			names = append(names, name)
		}
		return names, nil
	}
	name, err := collect(body)
	if err != nil {
		return nil, err
	}
	return []string{name}, nil
}

func (v *visitor) visitDoNothing(op ir.Op, args []ast.Node) (ir.Op, error) {
	insert, ok := op.(*ir.Insert)
	if !ok || insert.Conflict == nil {
		return nil, structErrf(ErrUnknownMethod, "doNothing", "doNothing is only legal after onConflict")
	}
	if len(args) != 0 {
		return nil, structErrf(ErrBadArity, "doNothing", "doNothing takes no arguments")
	}
	if insert.Conflict.Set != nil {
		return nil, structErrf(ErrRepeatedCall, "doNothing", "conflict action already set")
	}
	insert.Conflict.Action = ir.ConflictDoNothing
	insert.Conflict.Resolved = true
	return insert, nil
}

// visitDoUpdateSet lowers .doUpdateSet((row, excluded) => ({...})); the
// second parameter exposes the EXCLUDED pseudo-row.
func (v *visitor) visitDoUpdateSet(op ir.Op, args []ast.Node) (ir.Op, error) {
	insert, ok := op.(*ir.Insert)
	if !ok || insert.Conflict == nil {
		return nil, structErrf(ErrUnknownMethod, "doUpdateSet", "doUpdateSet is only legal after onConflict")
	}
	if insert.Conflict.Resolved {
		return nil, structErrf(ErrRepeatedCall, "doUpdateSet", "conflict action already set")
	}
	if len(args) != 1 {
		return nil, structErrf(ErrBadArity, "doUpdateSet", "doUpdateSet takes exactly one assignment lambda")
	}
	l, err := v.lambdaArg(args[0], 1, 2)
	if err != nil {
		return nil, err
	}
	body, err := v.lambdaBody(l)
	if err != nil {
		return nil, err
	}
	obj, isObj := body.(*ast.Object)
	if !isObj {
		return nil, structErrf(ErrUnsupportedNode, "doUpdateSet", "assignment lambda must return an object literal")
	}

	s := newScope()
	s.names[l.Params[0]] = binding{kind: bindTable, table: 0}
	if len(l.Params) == 2 {
		s.names[l.Params[1]] = binding{kind: bindExcluded}
	}
	defer v.pushScope(s)()

	for _, f := range obj.Fields {
		expr, exprErr := v.visitValue(f.Value)
		if exprErr != nil {
			return nil, exprErr
		}
		insert.Conflict.Set = append(insert.Conflict.Set, ir.Assignment{Column: f.Name, Value: expr})
	}
	if len(insert.Conflict.Set) == 0 {
		return nil, structErrf(ErrBadArity, "doUpdateSet", "assignment object has no columns")
	}
	insert.Conflict.Action = ir.ConflictDoUpdate
	insert.Conflict.Resolved = true
	return insert, nil
}

func (v *visitor) visitReturning(op ir.Op, args []ast.Node) (ir.Op, error) {
	if len(args) == 0 {
		return nil, structErrf(ErrBadArity, "returning", "returning needs at least one column")
	}
	var cols []string
	var err error
	if l, isLambda := args[0].(*ast.Lambda); isLambda {
		if len(args) != 1 {
			return nil, structErrf(ErrBadArity, "returning", "pass either one selector lambda or string column names")
		}
		cols, err = v.columnSelector(l, "returning")
		if err != nil {
			return nil, err
		}
	} else {
		cols = make([]string, len(args))
		for i, a := range args {
			lit, ok := a.(*ast.Literal)
			name, isStr := "", false
			if ok {
				name, isStr = lit.Value.(string)
			}
			if !isStr {
				return nil, structErrf(ErrBadLiteral, "returning", "returning columns must be string literals")
			}
			cols[i] = name
		}
	}

	switch root := op.(type) {
	case *ir.Insert:
		if root.Returning != nil {
			return nil, structErrf(ErrRepeatedCall, "returning", "returning may be called once")
		}
		root.Returning = cols
		return root, nil
	case *ir.Update:
		if root.Returning != nil {
			return nil, structErrf(ErrRepeatedCall, "returning", "returning may be called once")
		}
		root.Returning = cols
		return root, nil
	default:
		return nil, structErrf(ErrUnknownMethod, "returning", "returning is only legal on insert and update chains")
	}
}

// visitSet lowers update(...).set({...}) or .set(row => ({...})).
func (v *visitor) visitSet(op ir.Op, args []ast.Node) (ir.Op, error) {
	update, ok := op.(*ir.Update)
	if !ok {
		return nil, structErrf(ErrUnknownMethod, "set", "set is only legal after update")
	}
	if update.Set != nil {
		return nil, structErrf(ErrRepeatedCall, "set", "set may be called once per update")
	}
	if len(args) != 1 {
		return nil, structErrf(ErrBadArity, "set", "set takes exactly one assignment object")
	}

	var obj *ast.Object
	var pop func()
	if l, isLambda := args[0].(*ast.Lambda); isLambda {
		if len(l.Params) != 1 {
			return nil, structErrf(ErrBadArity, "set", "set lambda takes exactly one parameter")
		}
		body, err := v.lambdaBody(l)
		if err != nil {
			return nil, err
		}
		o, isObj := body.(*ast.Object)
		if !isObj {
			return nil, structErrf(ErrUnsupportedNode, "set", "set lambda must return an object literal")
		}
		obj = o
		s := newScope()
		s.names[l.Params[0]] = binding{kind: bindTable, table: 0}
		pop = v.pushScope(s)
	} else {
		o, err := v.rowObjectArg(args[0], "set")
		if err != nil {
			return nil, err
		}
		obj = o
	}
	if pop != nil {
		defer pop()
	}

	for _, f := range obj.Fields {
		expr, err := v.visitValue(f.Value)
		if err != nil {
			return nil, err
		}
		update.Set = append(update.Set, ir.Assignment{Column: f.Name, Value: expr})
	}
	if len(update.Set) == 0 {
		return nil, structErrf(ErrBadArity, "set", "assignment object has no columns")
	}
	return update, nil
}

func (v *visitor) visitAllowFullTable(op ir.Op, args []ast.Node, update bool) (ir.Op, error) {
	if len(args) != 0 {
		return nil, structErrf(ErrBadArity, v.method, "%s takes no arguments", v.method)
	}
	if update {
		u, ok := op.(*ir.Update)
		if !ok {
			return nil, structErrf(ErrUnknownMethod, v.method, "allowFullTableUpdate is only legal on update chains")
		}
		u.AllowFullTable = true
		return u, nil
	}
	d, ok := op.(*ir.Delete)
	if !ok {
		return nil, structErrf(ErrUnknownMethod, v.method, "allowFullTableDelete is only legal on delete chains")
	}
	d.AllowFullTable = true
	return d, nil
}
