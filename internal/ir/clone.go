package ir

// Explicit per-kind clone fold. The plan builder clones the whole chain on
// every fluent call so plan values never share mutable subtrees, and the
// row-filter rewriter reuses RewriteTables to swap table leaves without
// touching the original tree.

// CloneOp deep-copies an operation chain, including inner chains and
// subqueries. Returns nil for nil.
func CloneOp(op Op) Op {
	if op == nil {
		return nil
	}
	switch n := op.(type) {
	case *From:
		return &From{Table: n.Table, Alias: n.Alias, Subquery: CloneOp(n.Subquery)}
	case *Where:
		return &Where{Src: CloneOp(n.Src), Pred: CloneBool(n.Pred)}
	case *Select:
		return &Select{Src: CloneOp(n.Src), Projection: CloneProjection(n.Projection)}
	case *Join:
		return &Join{
			Src:      CloneOp(n.Src),
			Inner:    CloneOp(n.Inner),
			OuterKey: CloneValue(n.OuterKey),
			InnerKey: CloneValue(n.InnerKey),
			Shape:    CloneShape(n.Shape),
		}
	case *GroupJoin:
		return &GroupJoin{
			Src:      CloneOp(n.Src),
			Inner:    CloneOp(n.Inner),
			OuterKey: CloneValue(n.OuterKey),
			InnerKey: CloneValue(n.InnerKey),
			Shape:    CloneShape(n.Shape),
		}
	case *SelectMany:
		return &SelectMany{
			Src:            CloneOp(n.Src),
			Field:          n.Field,
			DefaultIfEmpty: n.DefaultIfEmpty,
			Shape:          CloneShape(n.Shape),
		}
	case *DefaultIfEmpty:
		return &DefaultIfEmpty{Src: CloneOp(n.Src)}
	case *GroupBy:
		return &GroupBy{Src: CloneOp(n.Src), Keys: cloneValues(n.Keys)}
	case *OrderBy:
		return &OrderBy{Src: CloneOp(n.Src), Expr: CloneValue(n.Expr), Desc: n.Desc}
	case *ThenBy:
		return &ThenBy{Src: CloneOp(n.Src), Expr: CloneValue(n.Expr), Desc: n.Desc}
	case *Distinct:
		return &Distinct{Src: CloneOp(n.Src)}
	case *Take:
		return &Take{Src: CloneOp(n.Src), Count: CloneValue(n.Count)}
	case *Skip:
		return &Skip{Src: CloneOp(n.Src), Count: CloneValue(n.Count)}
	case *Reverse:
		return &Reverse{Src: CloneOp(n.Src)}
	case *First:
		return &First{Src: CloneOp(n.Src), Pred: CloneBool(n.Pred), OrDefault: n.OrDefault}
	case *Single:
		return &Single{Src: CloneOp(n.Src), Pred: CloneBool(n.Pred), OrDefault: n.OrDefault}
	case *Last:
		return &Last{Src: CloneOp(n.Src), Pred: CloneBool(n.Pred), OrDefault: n.OrDefault}
	case *Contains:
		return &Contains{Src: CloneOp(n.Src), Value: CloneValue(n.Value)}
	case *Any:
		return &Any{Src: CloneOp(n.Src), Pred: CloneBool(n.Pred)}
	case *All:
		return &All{Src: CloneOp(n.Src), Pred: CloneBool(n.Pred)}
	case *CountOp:
		return &CountOp{Src: CloneOp(n.Src), Pred: CloneBool(n.Pred), Long: n.Long}
	case *Fold:
		return &Fold{Src: CloneOp(n.Src), Fn: n.Fn, Selector: CloneValue(n.Selector)}
	case *Insert:
		return &Insert{
			Table:     n.Table,
			Columns:   cloneStrings(n.Columns),
			Values:    cloneValues(n.Values),
			Conflict:  cloneConflict(n.Conflict),
			Returning: cloneStrings(n.Returning),
		}
	case *Update:
		return &Update{
			Table:          n.Table,
			Set:            cloneAssignments(n.Set),
			Pred:           CloneBool(n.Pred),
			AllowFullTable: n.AllowFullTable,
			Returning:      cloneStrings(n.Returning),
		}
	case *Delete:
		return &Delete{Table: n.Table, Pred: CloneBool(n.Pred), AllowFullTable: n.AllowFullTable}
	default:
		// Unreachable: Op is sealed to this package.
		return op
	}
}

// CloneValue deep-copies a scalar expression. Returns nil for nil.
func CloneValue(v ValueExpr) ValueExpr {
	if v == nil {
		return nil
	}
	switch n := v.(type) {
	case *Column:
		c := *n
		return &c
	case *ExcludedColumn:
		c := *n
		return &c
	case *Constant:
		c := *n
		return &c
	case *Param:
		c := *n
		c.Path = cloneStrings(n.Path)
		return &c
	case *Arithmetic:
		return &Arithmetic{Op: n.Op, Left: CloneValue(n.Left), Right: CloneValue(n.Right)}
	case *Concat:
		return &Concat{Parts: cloneValues(n.Parts)}
	case *StringCall:
		return &StringCall{Fn: n.Fn, Recv: CloneValue(n.Recv), Args: cloneValues(n.Args)}
	case *Coalesce:
		return &Coalesce{Exprs: cloneValues(n.Exprs)}
	case *Case:
		branches := make([]CaseBranch, len(n.Branches))
		for i, b := range n.Branches {
			branches[i] = CaseBranch{When: CloneBool(b.When), Then: CloneValue(b.Then)}
		}
		return &Case{Branches: branches, Else: CloneValue(n.Else)}
	case *Aggregate:
		return &Aggregate{Fn: n.Fn, Arg: CloneValue(n.Arg), Distinct: n.Distinct}
	case *WindowFunc:
		orders := make([]WindowOrder, len(n.OrderBy))
		for i, o := range n.OrderBy {
			orders[i] = WindowOrder{Expr: CloneValue(o.Expr), Desc: o.Desc}
		}
		return &WindowFunc{Fn: n.Fn, PartitionBy: cloneValues(n.PartitionBy), OrderBy: orders}
	case *TableRef:
		c := *n
		return &c
	case *AllColumns:
		return &AllColumns{}
	default:
		return v
	}
}

// CloneBool deep-copies a boolean expression. Returns nil for nil.
func CloneBool(b BoolExpr) BoolExpr {
	if b == nil {
		return nil
	}
	switch n := b.(type) {
	case *Comparison:
		return &Comparison{Op: n.Op, Left: CloneValue(n.Left), Right: CloneValue(n.Right)}
	case *Logical:
		return &Logical{Op: n.Op, Left: CloneBool(n.Left), Right: CloneBool(n.Right)}
	case *Not:
		return &Not{Inner: CloneBool(n.Inner)}
	case *BoolColumn:
		c := *n
		return &c
	case *BoolConstant:
		c := *n
		return &c
	case *BoolParam:
		c := *n
		c.P.Path = cloneStrings(n.P.Path)
		return &c
	case *StringMatch:
		return &StringMatch{
			Fn:              n.Fn,
			Recv:            CloneValue(n.Recv),
			Arg:             CloneValue(n.Arg),
			CaseInsensitive: n.CaseInsensitive,
		}
	case *CaseInsensitiveLike:
		return &CaseInsensitiveLike{Left: CloneValue(n.Left), Right: CloneValue(n.Right)}
	case *In:
		return &In{Needle: CloneValue(n.Needle), Haystack: CloneValue(n.Haystack), Negate: n.Negate}
	case *IsNull:
		return &IsNull{Expr: CloneValue(n.Expr), Negate: n.Negate}
	default:
		return b
	}
}

// CloneShape deep-copies a result shape. Returns nil for nil.
func CloneShape(s *Shape) *Shape {
	if s == nil {
		return nil
	}
	spreads := make([]int, len(s.Spreads))
	copy(spreads, s.Spreads)
	if s.Spreads == nil {
		spreads = nil
	}
	return &Shape{Fields: cloneShapeFields(s.Fields), Spreads: spreads, Projected: s.Projected}
}

func cloneShapeFields(fields []ShapeField) []ShapeField {
	if fields == nil {
		return nil
	}
	out := make([]ShapeField, len(fields))
	for i, f := range fields {
		out[i] = ShapeField{Name: f.Name, Node: cloneShapeNode(f.Node)}
	}
	return out
}

func cloneShapeNode(n ShapeNode) ShapeNode {
	switch node := n.(type) {
	case *ShapeColumn:
		c := *node
		return &c
	case *ShapeObject:
		return &ShapeObject{Fields: cloneShapeFields(node.Fields)}
	case *ShapeTable:
		c := *node
		return &c
	case *ShapeArray:
		return &ShapeArray{Table: node.Table, Elem: cloneShapeNode(node.Elem)}
	default:
		return n
	}
}

// CloneProjection deep-copies a projection. Returns nil for nil.
func CloneProjection(p Projection) Projection {
	switch n := p.(type) {
	case nil:
		return nil
	case *ProjectExpr:
		return &ProjectExpr{Expr: CloneValue(n.Expr)}
	case *ProjectObject:
		return cloneProjectObject(n)
	case *ProjectStar:
		return &ProjectStar{}
	default:
		return p
	}
}

func cloneProjectObject(o *ProjectObject) *ProjectObject {
	if o == nil {
		return nil
	}
	fields := make([]ProjectField, len(o.Fields))
	for i, f := range o.Fields {
		fields[i] = ProjectField{
			Name:   f.Name,
			Expr:   CloneValue(f.Expr),
			Object: cloneProjectObject(f.Object),
		}
		if f.Table != nil {
			t := *f.Table
			fields[i].Table = &t
		}
	}
	return &ProjectObject{Fields: fields}
}

func cloneConflict(c *Conflict) *Conflict {
	if c == nil {
		return nil
	}
	return &Conflict{
		Target:   cloneStrings(c.Target),
		Action:   c.Action,
		Set:      cloneAssignments(c.Set),
		Resolved: c.Resolved,
	}
}

func cloneAssignments(as []Assignment) []Assignment {
	if as == nil {
		return nil
	}
	out := make([]Assignment, len(as))
	for i, a := range as {
		out[i] = Assignment{Column: a.Column, Value: CloneValue(a.Value)}
	}
	return out
}

func cloneValues(vs []ValueExpr) []ValueExpr {
	if vs == nil {
		return nil
	}
	out := make([]ValueExpr, len(vs))
	for i, v := range vs {
		out[i] = CloneValue(v)
	}
	return out
}

func cloneStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	out := make([]string, len(ss))
	copy(out, ss)
	return out
}

// RewriteTables rebuilds a chain, replacing every table-rooted From leaf
// with the result of fn. fn receives a clone it may wrap or return as-is;
// it is applied inside join inners, groupJoin inners, defaultIfEmpty
// branches, and derived-table subqueries. The original tree is untouched.
func RewriteTables(op Op, fn func(*From) Op) Op {
	clone := CloneOp(op)
	return rewriteTables(clone, fn)
}

func rewriteTables(op Op, fn func(*From) Op) Op {
	switch n := op.(type) {
	case nil:
		return nil
	case *From:
		if n.Subquery != nil {
			n.Subquery = rewriteTables(n.Subquery, fn)
			return n
		}
		return fn(n)
	case *Where:
		n.Src = rewriteTables(n.Src, fn)
		return n
	case *Select:
		n.Src = rewriteTables(n.Src, fn)
		return n
	case *Join:
		n.Src = rewriteTables(n.Src, fn)
		n.Inner = rewriteTables(n.Inner, fn)
		return n
	case *GroupJoin:
		n.Src = rewriteTables(n.Src, fn)
		n.Inner = rewriteTables(n.Inner, fn)
		return n
	case *SelectMany:
		n.Src = rewriteTables(n.Src, fn)
		return n
	case *DefaultIfEmpty:
		n.Src = rewriteTables(n.Src, fn)
		return n
	case *GroupBy:
		n.Src = rewriteTables(n.Src, fn)
		return n
	case *OrderBy:
		n.Src = rewriteTables(n.Src, fn)
		return n
	case *ThenBy:
		n.Src = rewriteTables(n.Src, fn)
		return n
	case *Distinct:
		n.Src = rewriteTables(n.Src, fn)
		return n
	case *Take:
		n.Src = rewriteTables(n.Src, fn)
		return n
	case *Skip:
		n.Src = rewriteTables(n.Src, fn)
		return n
	case *Reverse:
		n.Src = rewriteTables(n.Src, fn)
		return n
	case *First:
		n.Src = rewriteTables(n.Src, fn)
		return n
	case *Single:
		n.Src = rewriteTables(n.Src, fn)
		return n
	case *Last:
		n.Src = rewriteTables(n.Src, fn)
		return n
	case *Contains:
		n.Src = rewriteTables(n.Src, fn)
		return n
	case *Any:
		n.Src = rewriteTables(n.Src, fn)
		return n
	case *All:
		n.Src = rewriteTables(n.Src, fn)
		return n
	case *CountOp:
		n.Src = rewriteTables(n.Src, fn)
		return n
	case *Fold:
		n.Src = rewriteTables(n.Src, fn)
		return n
	default:
		// CRUD roots have no table leaves to rewrite.
		return op
	}
}
