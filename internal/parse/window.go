package parse

import (
	"github.com/quillsql/quill/internal/ast"
	"github.com/quillsql/quill/internal/ir"
)

// Window-function chains root at a helpers call and modify the OVER
// clause link by link:
//
//	helpers.rowNumber().partitionBy(u => u.dept).orderBy(u => u.hired)
//
// tryWindowChain reports (expr, true, err) when the call is such a chain,
// and (nil, false, nil) when it is something else entirely.
func (v *visitor) tryWindowChain(call *ast.Call) (ir.ValueExpr, bool, error) {
	type link struct {
		method string
		args   []ast.Node
	}
	var links []link
	node := ast.Node(call)
	for {
		c, ok := node.(*ast.Call)
		if !ok {
			return nil, false, nil
		}
		m, ok := c.Callee.(*ast.Member)
		if !ok || m.Computed() {
			return nil, false, nil
		}
		ident, isIdent := m.Object.(*ast.Ident)
		if !isIdent {
			links = append([]link{{m.Property, c.Args}}, links...)
			node = m.Object
			continue
		}

		// Reached the innermost call; it must be the helpers namespace
		// opening a window function.
		if ident.Name != v.ctx.Helpers || v.ctx.Helpers == "" {
			return nil, false, nil
		}
		if _, shadowed := v.lookup(ident.Name); shadowed {
			return nil, false, nil
		}
		switch m.Property {
		case "rowNumber", "rank", "denseRank":
		default:
			return nil, false, nil
		}
		if len(links) == 0 {
			// Bare helpers.rowNumber() is handled by tryHelperCall.
			return nil, false, nil
		}
		if len(c.Args) != 0 {
			return nil, true, structErrf(ErrBadArity, v.method, "%s takes no arguments", m.Property)
		}

		win := &ir.WindowFunc{Fn: windowKind(m.Property)}
		for _, l := range links {
			if err := v.applyWindowLink(win, l.method, l.args); err != nil {
				return nil, true, err
			}
		}
		return win, true, nil
	}
}

func (v *visitor) applyWindowLink(win *ir.WindowFunc, method string, args []ast.Node) error {
	switch method {
	case "partitionBy":
		if win.PartitionBy != nil {
			return structErrf(ErrRepeatedCall, v.method, "partitionBy may appear once per window")
		}
		if len(win.OrderBy) > 0 {
			return structErrf(ErrUnknownMethod, v.method, "partitionBy must precede orderBy in a window")
		}
		if len(args) != 1 {
			return structErrf(ErrBadArity, v.method, "partitionBy takes exactly one selector")
		}
		exprs, err := v.visitWindowSelectors(args[0])
		if err != nil {
			return err
		}
		win.PartitionBy = exprs
		return nil
	case "orderBy", "orderByDescending":
		if len(win.OrderBy) > 0 {
			return structErrf(ErrRepeatedCall, v.method, "window orderBy may appear once; chain thenBy for further keys")
		}
		return v.appendWindowOrder(win, args, method == "orderByDescending")
	case "thenBy", "thenByDescending":
		if len(win.OrderBy) == 0 {
			return structErrf(ErrUnknownMethod, v.method, "window thenBy must follow orderBy")
		}
		return v.appendWindowOrder(win, args, method == "thenByDescending")
	default:
		return structErrf(ErrUnknownMethod, v.method, "unrecognized window method %q", method)
	}
}

func (v *visitor) appendWindowOrder(win *ir.WindowFunc, args []ast.Node, desc bool) error {
	if len(args) != 1 {
		return structErrf(ErrBadArity, v.method, "window ordering takes exactly one selector")
	}
	expr, err := v.visitSelectorLambda(args[0])
	if err != nil {
		return err
	}
	win.OrderBy = append(win.OrderBy, ir.WindowOrder{Expr: expr, Desc: desc})
	return nil
}

// visitWindowSelectors accepts a selector lambda returning either a single
// key or an object of keys.
func (v *visitor) visitWindowSelectors(n ast.Node) ([]ir.ValueExpr, error) {
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

	if obj, isObj := body.(*ast.Object); isObj {
		exprs := make([]ir.ValueExpr, 0, len(obj.Fields))
		for _, f := range obj.Fields {
			expr, err := v.visitValue(f.Value)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, expr)
		}
		return exprs, nil
	}
	expr, err := v.visitValue(body)
	if err != nil {
		return nil, err
	}
	return []ir.ValueExpr{expr}, nil
}
