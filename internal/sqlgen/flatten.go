package sqlgen

import "github.com/quillsql/quill/internal/ir"

// terminalKind classifies what the outermost operation asks for.
type terminalKind int

const (
	termRows     terminalKind = iota // plain row set
	termExists                       // any -> CASE WHEN EXISTS
	termNotExists                    // all -> CASE WHEN NOT EXISTS
	termContains                     // membership in a scalar projection
	termCount                        // COUNT(*)
	termFold                         // SUM/AVG/MIN/MAX
)

// orderTerm is one resolved ORDER BY term before direction flipping.
type orderTerm struct {
	expr ir.ValueExpr
	desc bool
}

// joinEdge is one flattened join. Inner is either a bare table or a chain
// rendered as a derived table; pending marks a groupJoin that has not yet
// been flattened by selectMany.
type joinEdge struct {
	inner    ir.Op
	innerIdx int
	outerKey ir.ValueExpr
	innerKey ir.ValueExpr
	left     bool
	pending  bool
}

// selectSpec is a query chain flattened into clause buckets, ready for
// text assembly.
type selectSpec struct {
	from     *ir.From
	joins    []joinEdge
	where    []ir.BoolExpr
	having   []ir.BoolExpr
	groups   []ir.ValueExpr
	project  ir.Projection
	shape    *ir.Shape // result-selector shape, for derived projections
	distinct bool

	order    []orderTerm
	reverses int
	lastFlip bool

	take ir.ValueExpr
	skip ir.ValueExpr
	// limitOne forces LIMIT 1 (first/last) or LIMIT 2 (single).
	limitOne int

	terminal terminalKind
	foldFn   ir.AggFn
	foldSel  ir.ValueExpr
	value    ir.ValueExpr // contains needle

	rootTable string
}

// flatten walks source edges root-to-tip, bucketing each operation. A
// clause arriving after a projection exists restarts the spec over a
// derived table, because SQL cannot filter or re-project select output
// in the same query block.
func flatten(op ir.Op) (*selectSpec, error) {
	var ops []ir.Op
	for cur := op; cur != nil; cur = cur.Source() {
		ops = append(ops, cur)
	}
	// Reverse to source order.
	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}

	spec := &selectSpec{}
	nextIdx := 1
	opName := ir.OpName(op)
	table := ir.RootTable(op)

	wrap := func(at int) {
		inner := ops[at]
		spec = &selectSpec{from: &ir.From{Subquery: inner}}
		nextIdx = 1
	}

	// Terminal predicates conjoin into WHERE/HAVING with the same
	// post-projection wrapping as a standalone where: an alias is not
	// addressable from WHERE in the same query block.
	addPred := func(pred ir.BoolExpr, i int) {
		if pred == nil {
			return
		}
		switch {
		case spec.project != nil:
			wrap(i - 1)
			spec.where = append(spec.where, pred)
		case spec.groups != nil:
			spec.having = append(spec.having, pred)
		default:
			spec.where = append(spec.where, pred)
		}
	}

	for i, cur := range ops {
		switch n := cur.(type) {
		case *ir.From:
			if spec.from != nil {
				return nil, policyErrf(ErrBadChain, opName, table, "chain has two roots")
			}
			spec.from = n

		case *ir.Where:
			switch {
			case spec.project != nil:
				wrap(i - 1)
				spec.where = append(spec.where, n.Pred)
			case spec.groups != nil:
				spec.having = append(spec.having, n.Pred)
			default:
				spec.where = append(spec.where, n.Pred)
			}

		case *ir.Select:
			if spec.project != nil {
				wrap(i - 1)
			}
			spec.project = n.Projection
			spec.shape = nil

		case *ir.Join:
			if spec.project != nil {
				wrap(i - 1)
			}
			spec.joins = append(spec.joins, joinEdge{
				inner: n.Inner, innerIdx: nextIdx,
				outerKey: n.OuterKey, innerKey: n.InnerKey,
			})
			nextIdx++
			spec.shape = n.Shape

		case *ir.GroupJoin:
			if spec.project != nil {
				wrap(i - 1)
			}
			spec.joins = append(spec.joins, joinEdge{
				inner: n.Inner, innerIdx: nextIdx,
				outerKey: n.OuterKey, innerKey: n.InnerKey,
				pending: true,
			})
			nextIdx++
			spec.shape = n.Shape

		case *ir.SelectMany:
			last := len(spec.joins) - 1
			if last < 0 || !spec.joins[last].pending {
				return nil, policyErrf(ErrBadChain, opName, table,
					"selectMany without a preceding groupJoin collection")
			}
			spec.joins[last].pending = false
			spec.joins[last].left = n.DefaultIfEmpty
			spec.shape = n.Shape

		case *ir.DefaultIfEmpty:
			return nil, policyErrf(ErrBadChain, opName, table,
				"defaultIfEmpty is only meaningful inside a groupJoin collection")

		case *ir.GroupBy:
			if spec.project != nil {
				wrap(i - 1)
			}
			spec.groups = n.Keys

		case *ir.OrderBy:
			spec.order = []orderTerm{{expr: n.Expr, desc: n.Desc}}

		case *ir.ThenBy:
			spec.order = append(spec.order, orderTerm{expr: n.Expr, desc: n.Desc})

		case *ir.Distinct:
			spec.distinct = true

		case *ir.Take:
			spec.take = n.Count

		case *ir.Skip:
			spec.skip = n.Count

		case *ir.Reverse:
			if spec.take != nil || spec.skip != nil {
				return nil, policyErrf(ErrReverseAfterLimit, opName, table,
					"reverse after take/skip would reorder a truncated row set")
			}
			spec.reverses++

		case *ir.First:
			addPred(n.Pred, i)
			spec.limitOne = 1

		case *ir.Single:
			addPred(n.Pred, i)
			spec.limitOne = 2

		case *ir.Last:
			addPred(n.Pred, i)
			spec.limitOne = 1
			spec.lastFlip = true

		case *ir.Contains:
			if spec.take != nil || spec.skip != nil {
				return nil, policyErrf(ErrContainsLimited, opName, table,
					"contains cannot follow take or skip")
			}
			if _, ok := spec.project.(*ir.ProjectExpr); !ok {
				return nil, policyErrf(ErrContainsShape, opName, table,
					"contains requires an immediately preceding scalar select")
			}
			spec.terminal = termContains
			spec.value = n.Value

		case *ir.Any:
			addPred(n.Pred, i)
			spec.terminal = termExists

		case *ir.All:
			addPred(&ir.Not{Inner: n.Pred}, i)
			spec.terminal = termNotExists

		case *ir.CountOp:
			addPred(n.Pred, i)
			spec.terminal = termCount

		case *ir.Fold:
			spec.terminal = termFold
			spec.foldFn = n.Fn
			spec.foldSel = n.Selector

		default:
			return nil, policyErrf(ErrBadChain, opName, table,
				"operation %s cannot appear in a select chain", ir.OpName(cur))
		}
	}

	if spec.from == nil {
		return nil, policyErrf(ErrBadChain, opName, table, "chain has no from")
	}
	for _, j := range spec.joins {
		if j.pending {
			return nil, policyErrf(ErrUnflattenedGroup, opName, table,
				"groupJoin collection must be flattened by selectMany before generation")
		}
	}
	spec.rootTable = table
	return spec, nil
}

// tableCount reports how many physical tables the spec references, which
// decides whether columns render qualified.
func (s *selectSpec) tableCount() int {
	return 1 + len(s.joins)
}

// flipped reports the effective sort inversion: one flip per odd count of
// reverse, one more for last/lastOrDefault.
func (s *selectSpec) flipped() bool {
	odd := s.reverses%2 == 1
	return odd != s.lastFlip
}
