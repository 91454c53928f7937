package sqlgen

import (
	"fmt"
	"strings"

	"github.com/quillsql/quill/internal/ir"
)

// scope fixes how column references render inside one query block.
type scope struct {
	// qualify prefixes columns with table aliases; single-table blocks
	// render bare column names.
	qualify bool
	// aliases overrides the default t<index> alias per table index.
	aliases map[int]string
}

func (s *scope) alias(index int) string {
	if a, ok := s.aliases[index]; ok {
		return a
	}
	return fmt.Sprintf("t%d", index)
}

func (g *gen) column(sc *scope, c *ir.Column) string {
	if !sc.qualify {
		return QuoteIdent(c.Name)
	}
	switch c.Origin.Kind {
	case ir.OriginAlias:
		return QuoteIdent(c.Origin.Alias) + "." + QuoteIdent(c.Name)
	case ir.OriginJoinParam, ir.OriginJoinResult, ir.OriginSpread:
		return QuoteIdent(sc.alias(c.Origin.Index)) + "." + QuoteIdent(c.Name)
	default:
		return QuoteIdent(sc.alias(0)) + "." + QuoteIdent(c.Name)
	}
}

// param registers a parameter argument and renders its placeholder.
func (g *gen) param(p *ir.Param) (string, error) {
	res := resolveParam(g.params, p.Name, p.Path, p.Index, p.Indexed)
	if !res.defined {
		return "", policyErrf(ErrUnboundParam, g.opName, g.table,
			"no value bound for parameter %q", flatName(p.Name, p.Path, p.Index, p.Indexed))
	}
	name := flatName(p.Name, p.Path, p.Index, p.Indexed)
	g.args.add(name, res.value)
	return g.d.Placeholder(name), nil
}

// paramIsNull reports whether a param resolves to a present nil, which
// comparison rendering rewrites to IS [NOT] NULL.
func (g *gen) paramIsNull(p *ir.Param) bool {
	res := resolveParam(g.params, p.Name, p.Path, p.Index, p.Indexed)
	return res.defined && res.value == nil
}

func (g *gen) value(sc *scope, v ir.ValueExpr) (string, error) {
	switch n := v.(type) {
	case *ir.Column:
		return g.column(sc, n), nil

	case *ir.ExcludedColumn:
		return "excluded." + QuoteIdent(n.Name), nil

	case *ir.Constant:
		if n.Null {
			return "NULL", nil
		}
		if _, undef := n.Value.(ir.UndefinedValue); undef {
			return "", capErrf(ErrUnrenderable, g.d.Name(), "undefined value outside insert values")
		}
		if b, ok := n.Value.(bool); ok {
			return g.d.BoolLiteral(b), nil
		}
		// Non-null constants are confined to positions that expand into
		// placeholders; one surviving to here is an internal defect.
		return "", capErrf(ErrUnrenderable, g.d.Name(),
			"constant %v cannot render inline", n.Value)

	case *ir.Param:
		return g.param(n)

	case *ir.Arithmetic:
		left, err := g.value(sc, n.Left)
		if err != nil {
			return "", err
		}
		right, err := g.value(sc, n.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s %s %s)", left, arithToken(n.Op), right), nil

	case *ir.Concat:
		parts := make([]string, len(n.Parts))
		for i, p := range n.Parts {
			s, err := g.value(sc, p)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "(" + strings.Join(parts, " || ") + ")", nil

	case *ir.StringCall:
		return g.stringCall(sc, n)

	case *ir.Coalesce:
		parts := make([]string, len(n.Exprs))
		for i, e := range n.Exprs {
			s, err := g.value(sc, e)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "COALESCE(" + strings.Join(parts, ", ") + ")", nil

	case *ir.Case:
		var b strings.Builder
		b.WriteString("CASE")
		for _, br := range n.Branches {
			when, err := g.boolean(sc, br.When)
			if err != nil {
				return "", err
			}
			then, err := g.value(sc, br.Then)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, " WHEN %s THEN %s", when, then)
		}
		if n.Else != nil {
			s, err := g.value(sc, n.Else)
			if err != nil {
				return "", err
			}
			b.WriteString(" ELSE " + s)
		}
		b.WriteString(" END")
		return b.String(), nil

	case *ir.Aggregate:
		return g.aggregate(sc, n.Fn, n.Arg, n.Distinct)

	case *ir.WindowFunc:
		return g.window(sc, n)

	case *ir.TableRef:
		return "", capErrf(ErrUnrenderable, g.d.Name(), "whole-table reference in scalar position")

	case *ir.AllColumns:
		return "*", nil

	default:
		return "", capErrf(ErrUnrenderable, g.d.Name(), "unhandled value expression %T", v)
	}
}

func (g *gen) stringCall(sc *scope, n *ir.StringCall) (string, error) {
	recv, err := g.value(sc, n.Recv)
	if err != nil {
		return "", err
	}
	args := make([]string, 0, len(n.Args)+1)
	args = append(args, recv)
	for _, a := range n.Args {
		s, err := g.value(sc, a)
		if err != nil {
			return "", err
		}
		args = append(args, s)
	}
	switch n.Fn {
	case ir.FnUpper:
		return "UPPER(" + recv + ")", nil
	case ir.FnLower:
		return "LOWER(" + recv + ")", nil
	case ir.FnTrim:
		return "TRIM(" + recv + ")", nil
	case ir.FnSubstring:
		// SUBSTR is shared by both dialects; offsets are 1-based in SQL.
		return "SUBSTR(" + strings.Join(args, ", ") + ")", nil
	case ir.FnLength:
		return "LENGTH(" + recv + ")", nil
	default:
		return "", capErrf(ErrUnrenderable, g.d.Name(), "unhandled string function %d", n.Fn)
	}
}

func (g *gen) aggregate(sc *scope, fn ir.AggFn, arg ir.ValueExpr, distinct bool) (string, error) {
	if fn == ir.AggCount && arg == nil {
		return "COUNT(*)", nil
	}
	inner, err := g.value(sc, arg)
	if err != nil {
		return "", err
	}
	if distinct {
		inner = "DISTINCT " + inner
	}
	return aggToken(fn) + "(" + inner + ")", nil
}

func (g *gen) window(sc *scope, n *ir.WindowFunc) (string, error) {
	var over []string
	if len(n.PartitionBy) > 0 {
		parts := make([]string, len(n.PartitionBy))
		for i, e := range n.PartitionBy {
			s, err := g.value(sc, e)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		over = append(over, "PARTITION BY "+strings.Join(parts, ", "))
	}
	if len(n.OrderBy) > 0 {
		parts := make([]string, len(n.OrderBy))
		for i, o := range n.OrderBy {
			s, err := g.value(sc, o.Expr)
			if err != nil {
				return "", err
			}
			if o.Desc {
				s += " DESC"
			}
			parts[i] = s
		}
		over = append(over, "ORDER BY "+strings.Join(parts, ", "))
	}
	return windowToken(n.Fn) + "() OVER (" + strings.Join(over, " ") + ")", nil
}

func (g *gen) boolean(sc *scope, b ir.BoolExpr) (string, error) {
	switch n := b.(type) {
	case *ir.Comparison:
		return g.comparison(sc, n)

	case *ir.Logical:
		left, err := g.boolean(sc, n.Left)
		if err != nil {
			return "", err
		}
		right, err := g.boolean(sc, n.Right)
		if err != nil {
			return "", err
		}
		token := "AND"
		if n.Op == ir.LogicOr {
			token = "OR"
		}
		return fmt.Sprintf("(%s %s %s)", left, token, right), nil

	case *ir.Not:
		inner, err := g.boolean(sc, n.Inner)
		if err != nil {
			return "", err
		}
		return "NOT " + parenthesize(inner), nil

	case *ir.BoolColumn:
		return g.column(sc, &n.Col), nil

	case *ir.BoolConstant:
		return g.d.BoolLiteral(n.Value), nil

	case *ir.BoolParam:
		return g.param(&n.P)

	case *ir.StringMatch:
		return g.stringMatch(sc, n)

	case *ir.CaseInsensitiveLike:
		left, err := g.value(sc, n.Left)
		if err != nil {
			return "", err
		}
		right, err := g.value(sc, n.Right)
		if err != nil {
			return "", err
		}
		return g.d.CaseInsensitiveLike(left, right), nil

	case *ir.In:
		return g.inList(sc, n)

	case *ir.IsNull:
		inner, err := g.value(sc, n.Expr)
		if err != nil {
			return "", err
		}
		if n.Negate {
			return inner + " IS NOT NULL", nil
		}
		return inner + " IS NULL", nil

	default:
		return "", capErrf(ErrUnrenderable, g.d.Name(), "unhandled boolean expression %T", b)
	}
}

// comparison renders an operator, rewriting equality against a NULL-valued
// parameter into IS [NOT] NULL so the statement keeps three-valued logic
// out of the caller's way.
func (g *gen) comparison(sc *scope, n *ir.Comparison) (string, error) {
	if n.Op == ir.CmpEq || n.Op == ir.CmpNe {
		if other, isNull := g.nullComparand(n.Left, n.Right); isNull {
			inner, err := g.value(sc, other)
			if err != nil {
				return "", err
			}
			if n.Op == ir.CmpNe {
				return inner + " IS NOT NULL", nil
			}
			return inner + " IS NULL", nil
		}
	}
	left, err := g.value(sc, n.Left)
	if err != nil {
		return "", err
	}
	right, err := g.value(sc, n.Right)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", left, cmpToken(n.Op), right), nil
}

// nullComparand returns the non-null side when the other side is a NULL
// constant or a parameter currently bound to nil.
func (g *gen) nullComparand(left, right ir.ValueExpr) (ir.ValueExpr, bool) {
	if g.isNullValue(right) {
		return left, true
	}
	if g.isNullValue(left) {
		return right, true
	}
	return nil, false
}

func (g *gen) isNullValue(v ir.ValueExpr) bool {
	switch n := v.(type) {
	case *ir.Constant:
		return n.Null
	case *ir.Param:
		return g.paramIsNull(n)
	}
	return false
}

// stringMatch renders startsWith/endsWith/includes as LIKE over a pattern
// built by concatenation, so the needle stays parameterized.
func (g *gen) stringMatch(sc *scope, n *ir.StringMatch) (string, error) {
	recv, err := g.value(sc, n.Recv)
	if err != nil {
		return "", err
	}
	arg, err := g.value(sc, n.Arg)
	if err != nil {
		return "", err
	}
	var pattern string
	switch n.Fn {
	case ir.MatchStartsWith:
		pattern = arg + " || '%'"
	case ir.MatchEndsWith:
		pattern = "'%' || " + arg
	case ir.MatchIncludes:
		pattern = "'%' || " + arg + " || '%'"
	default:
		return "", capErrf(ErrUnrenderable, g.d.Name(), "unhandled string match %d", n.Fn)
	}
	if n.CaseInsensitive {
		return g.d.CaseInsensitiveLike(recv, pattern), nil
	}
	return recv + " LIKE " + pattern, nil
}

// inList expands an array-valued parameter into indexed placeholders.
// An empty array short-circuits to a boolean literal without emitting an
// IN clause at all.
func (g *gen) inList(sc *scope, n *ir.In) (string, error) {
	p, ok := n.Haystack.(*ir.Param)
	if !ok {
		return "", policyErrf(ErrBadHaystack, g.opName, g.table,
			"IN haystack must be an array-valued parameter, got %T", n.Haystack)
	}
	res := resolveParam(g.params, p.Name, p.Path, p.Index, p.Indexed)
	if !res.defined {
		return "", policyErrf(ErrUnboundParam, g.opName, g.table,
			"no value bound for parameter %q", flatName(p.Name, p.Path, p.Index, p.Indexed))
	}
	elems, ok := asSlice(res.value)
	if !ok {
		return "", policyErrf(ErrBadHaystack, g.opName, g.table,
			"IN haystack parameter %q is not an array", p.Name)
	}
	if len(elems) == 0 {
		return g.d.BoolLiteral(n.Negate), nil
	}

	needle, err := g.value(sc, n.Needle)
	if err != nil {
		return "", err
	}
	base := flatName(p.Name, p.Path, p.Index, p.Indexed)
	places := make([]string, len(elems))
	for i, e := range elems {
		name := fmt.Sprintf("%s_%d", base, i)
		g.args.add(name, e)
		places[i] = g.d.Placeholder(name)
	}
	op := "IN"
	if n.Negate {
		op = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", needle, op, strings.Join(places, ", ")), nil
}

func parenthesize(s string) string {
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		return s
	}
	return "(" + s + ")"
}

func arithToken(op ir.ArithOp) string {
	switch op {
	case ir.OpAdd:
		return "+"
	case ir.OpSub:
		return "-"
	case ir.OpMul:
		return "*"
	case ir.OpDiv:
		return "/"
	default:
		return "%"
	}
}

func cmpToken(op ir.CmpOp) string {
	switch op {
	case ir.CmpEq:
		return "="
	case ir.CmpNe:
		return "<>"
	case ir.CmpGt:
		return ">"
	case ir.CmpGe:
		return ">="
	case ir.CmpLt:
		return "<"
	default:
		return "<="
	}
}

func aggToken(fn ir.AggFn) string {
	switch fn {
	case ir.AggCount:
		return "COUNT"
	case ir.AggSum:
		return "SUM"
	case ir.AggAvg:
		return "AVG"
	case ir.AggMin:
		return "MIN"
	default:
		return "MAX"
	}
}

func windowToken(fn ir.WindowKind) string {
	switch fn {
	case ir.WinRowNumber:
		return "ROW_NUMBER"
	case ir.WinRank:
		return "RANK"
	default:
		return "DENSE_RANK"
	}
}
