package rowfilter

import "github.com/quillsql/quill/internal/ir"

// rewriteParams visits every parameter reference in a predicate, mutating
// in place. The predicate must be freshly built or cloned.
func rewriteParams(b ir.BoolExpr, visit func(*ir.Param)) {
	walkBool(b, visit)
}

func walkBool(b ir.BoolExpr, visit func(*ir.Param)) {
	switch n := b.(type) {
	case nil:
	case *ir.Comparison:
		walkValue(n.Left, visit)
		walkValue(n.Right, visit)
	case *ir.Logical:
		walkBool(n.Left, visit)
		walkBool(n.Right, visit)
	case *ir.Not:
		walkBool(n.Inner, visit)
	case *ir.BoolColumn, *ir.BoolConstant:
	case *ir.BoolParam:
		visit(&n.P)
	case *ir.StringMatch:
		walkValue(n.Recv, visit)
		walkValue(n.Arg, visit)
	case *ir.CaseInsensitiveLike:
		walkValue(n.Left, visit)
		walkValue(n.Right, visit)
	case *ir.In:
		walkValue(n.Needle, visit)
		walkValue(n.Haystack, visit)
	case *ir.IsNull:
		walkValue(n.Expr, visit)
	}
}

func walkValue(v ir.ValueExpr, visit func(*ir.Param)) {
	switch n := v.(type) {
	case nil:
	case *ir.Param:
		visit(n)
	case *ir.Arithmetic:
		walkValue(n.Left, visit)
		walkValue(n.Right, visit)
	case *ir.Concat:
		for _, p := range n.Parts {
			walkValue(p, visit)
		}
	case *ir.StringCall:
		walkValue(n.Recv, visit)
		for _, a := range n.Args {
			walkValue(a, visit)
		}
	case *ir.Coalesce:
		for _, e := range n.Exprs {
			walkValue(e, visit)
		}
	case *ir.Case:
		for _, br := range n.Branches {
			walkBool(br.When, visit)
			walkValue(br.Then, visit)
		}
		walkValue(n.Else, visit)
	case *ir.Aggregate:
		walkValue(n.Arg, visit)
	case *ir.WindowFunc:
		for _, e := range n.PartitionBy {
			walkValue(e, visit)
		}
		for _, o := range n.OrderBy {
			walkValue(o.Expr, visit)
		}
	}
}

// substituteBool replaces column references by their assigned values,
// producing the post-update view of a predicate. The input must be a
// clone; children are rewritten in place where possible.
func substituteBool(b ir.BoolExpr, assign map[string]ir.ValueExpr) ir.BoolExpr {
	switch n := b.(type) {
	case nil:
		return nil
	case *ir.Comparison:
		n.Left = substituteValue(n.Left, assign)
		n.Right = substituteValue(n.Right, assign)
	case *ir.Logical:
		n.Left = substituteBool(n.Left, assign)
		n.Right = substituteBool(n.Right, assign)
	case *ir.Not:
		n.Inner = substituteBool(n.Inner, assign)
	case *ir.BoolColumn:
		if value, ok := assign[n.Col.Name]; ok {
			return boolize(ir.CloneValue(value))
		}
	case *ir.StringMatch:
		n.Recv = substituteValue(n.Recv, assign)
		n.Arg = substituteValue(n.Arg, assign)
	case *ir.CaseInsensitiveLike:
		n.Left = substituteValue(n.Left, assign)
		n.Right = substituteValue(n.Right, assign)
	case *ir.In:
		n.Needle = substituteValue(n.Needle, assign)
		n.Haystack = substituteValue(n.Haystack, assign)
	case *ir.IsNull:
		n.Expr = substituteValue(n.Expr, assign)
	}
	return b
}

func substituteValue(v ir.ValueExpr, assign map[string]ir.ValueExpr) ir.ValueExpr {
	switch n := v.(type) {
	case nil:
		return nil
	case *ir.Column:
		if value, ok := assign[n.Name]; ok {
			return ir.CloneValue(value)
		}
	case *ir.Arithmetic:
		n.Left = substituteValue(n.Left, assign)
		n.Right = substituteValue(n.Right, assign)
	case *ir.Concat:
		for i, p := range n.Parts {
			n.Parts[i] = substituteValue(p, assign)
		}
	case *ir.StringCall:
		n.Recv = substituteValue(n.Recv, assign)
		for i, a := range n.Args {
			n.Args[i] = substituteValue(a, assign)
		}
	case *ir.Coalesce:
		for i, e := range n.Exprs {
			n.Exprs[i] = substituteValue(e, assign)
		}
	case *ir.Case:
		for i := range n.Branches {
			n.Branches[i].When = substituteBool(n.Branches[i].When, assign)
			n.Branches[i].Then = substituteValue(n.Branches[i].Then, assign)
		}
		n.Else = substituteValue(n.Else, assign)
	}
	return v
}

// boolize lifts a scalar substitution into predicate position.
func boolize(v ir.ValueExpr) ir.BoolExpr {
	switch n := v.(type) {
	case *ir.Column:
		return &ir.BoolColumn{Col: *n}
	case *ir.Param:
		return &ir.BoolParam{P: *n}
	case *ir.Constant:
		if b, ok := n.Value.(bool); ok {
			return &ir.BoolConstant{Value: b}
		}
	}
	return &ir.Comparison{Op: ir.CmpEq, Left: v, Right: &ir.Constant{Value: true}}
}
