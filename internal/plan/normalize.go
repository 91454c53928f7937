package plan

import "github.com/quillsql/quill/internal/ir"

// normalize applies structural rewrites after each fluent call and after
// a whole-function parse.
//
// The one rewrite today: a filter over a projection that computed window
// functions cannot stay a plain WHERE, because SQL evaluates WHERE before
// window functions. The projection moves into a derived table and the
// filter applies to its output. The fluent path only ever produces the
// pattern at the root, but a whole-function parse can bury it, so the
// walk descends through sources and subqueries.
func normalize(op ir.Op) ir.Op {
	switch n := op.(type) {
	case nil:
		return nil
	case *ir.From:
		n.Subquery = normalize(n.Subquery)
	case *ir.Where:
		n.Src = normalize(n.Src)
		if sel, ok := n.Src.(*ir.Select); ok && projectionHasWindow(sel.Projection) {
			n.Src = &ir.From{Subquery: sel}
		}
	case *ir.Select:
		n.Src = normalize(n.Src)
	case *ir.Join:
		n.Src = normalize(n.Src)
		n.Inner = normalize(n.Inner)
	case *ir.GroupJoin:
		n.Src = normalize(n.Src)
		n.Inner = normalize(n.Inner)
	case *ir.SelectMany:
		n.Src = normalize(n.Src)
	case *ir.DefaultIfEmpty:
		n.Src = normalize(n.Src)
	case *ir.GroupBy:
		n.Src = normalize(n.Src)
	case *ir.OrderBy:
		n.Src = normalize(n.Src)
	case *ir.ThenBy:
		n.Src = normalize(n.Src)
	case *ir.Distinct:
		n.Src = normalize(n.Src)
	case *ir.Take:
		n.Src = normalize(n.Src)
	case *ir.Skip:
		n.Src = normalize(n.Src)
	case *ir.Reverse:
		n.Src = normalize(n.Src)
	case *ir.First:
		n.Src = normalize(n.Src)
	case *ir.Single:
		n.Src = normalize(n.Src)
	case *ir.Last:
		n.Src = normalize(n.Src)
	case *ir.Contains:
		n.Src = normalize(n.Src)
	case *ir.Any:
		n.Src = normalize(n.Src)
	case *ir.All:
		n.Src = normalize(n.Src)
	case *ir.CountOp:
		n.Src = normalize(n.Src)
	case *ir.Fold:
		n.Src = normalize(n.Src)
	}
	return op
}

func projectionHasWindow(p ir.Projection) bool {
	switch n := p.(type) {
	case *ir.ProjectExpr:
		return hasWindow(n.Expr)
	case *ir.ProjectObject:
		for _, f := range n.Fields {
			if hasWindow(f.Expr) {
				return true
			}
		}
	}
	return false
}

// hasWindow reports whether a window function appears anywhere in v.
// Window functions only nest inside scalar combinators, never inside
// predicates, so the walk stays on the value side.
func hasWindow(v ir.ValueExpr) bool {
	switch n := v.(type) {
	case *ir.WindowFunc:
		return true
	case *ir.Arithmetic:
		return hasWindow(n.Left) || hasWindow(n.Right)
	case *ir.Concat:
		for _, p := range n.Parts {
			if hasWindow(p) {
				return true
			}
		}
	case *ir.StringCall:
		if hasWindow(n.Recv) {
			return true
		}
		for _, a := range n.Args {
			if hasWindow(a) {
				return true
			}
		}
	case *ir.Coalesce:
		for _, e := range n.Exprs {
			if hasWindow(e) {
				return true
			}
		}
	case *ir.Case:
		for _, br := range n.Branches {
			if hasWindow(br.Then) {
				return true
			}
		}
		return hasWindow(n.Else)
	}
	return false
}
