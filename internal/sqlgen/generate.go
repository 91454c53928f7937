// Package sqlgen turns finalized operation trees into parameterized SQL.
//
// The core is dialect-agnostic: clause ordering, join symbol tables,
// terminal-operation semantics, NULL-aware comparisons, LIKE translation,
// and array-parameter expansion are shared, while placeholder syntax and
// the handful of genuinely divergent tokens come from a Dialect. No
// literal ever renders inline except NULL, booleans in short-circuit
// positions, and the structural LIMIT constants of first/single/last.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/quillsql/quill/internal/ir"
)

// containsColumn is the synthetic output column the contains terminal
// projects its scalar select through.
const containsColumn = "v0"

type gen struct {
	d      Dialect
	params map[string]any
	args   *argSet

	// opName/table seed error context.
	opName string
	table  string
}

// Generate compiles one finalized operation tree to dialect SQL plus its
// named arguments in first-use order.
func Generate(d Dialect, op ir.Op, params map[string]any) (*Result, error) {
	if op == nil {
		return nil, policyErrf(ErrBadChain, "", "", "cannot generate from a nil operation")
	}
	if params == nil {
		params = map[string]any{}
	}
	g := &gen{d: d, params: params, args: newArgSet(), opName: ir.OpName(op), table: ir.RootTable(op)}

	var sql string
	var err error
	switch root := op.(type) {
	case *ir.Insert:
		sql, err = g.insert(root)
	case *ir.Update:
		sql, err = g.update(root)
	case *ir.Delete:
		sql, err = g.deleteStmt(root)
	default:
		sql, err = g.selectStatement(op)
	}
	if err != nil {
		return nil, err
	}
	return &Result{SQL: sql, Args: g.args.list()}, nil
}

func (g *gen) selectStatement(op ir.Op) (string, error) {
	spec, err := flatten(op)
	if err != nil {
		return "", err
	}
	return g.renderSpec(spec)
}

// clauses are the rendered building blocks of one query block.
type clauses struct {
	sc      *scope
	from    string
	joins   []string
	where   string
	groupBy string
	having  string
	orderBy string
	limit   string
}

func (g *gen) buildClauses(spec *selectSpec) (*clauses, error) {
	sc := &scope{qualify: spec.tableCount() > 1, aliases: map[int]string{}}
	if spec.from.Alias != "" {
		sc.aliases[0] = spec.from.Alias
	}

	c := &clauses{sc: sc}
	from, err := g.tableRef(spec.from, 0, sc)
	if err != nil {
		return nil, err
	}
	c.from = from

	for _, j := range spec.joins {
		ref, err := g.joinRef(j, sc)
		if err != nil {
			return nil, err
		}
		outer, err := g.value(sc, j.outerKey)
		if err != nil {
			return nil, err
		}
		inner, err := g.value(sc, j.innerKey)
		if err != nil {
			return nil, err
		}
		kind := "INNER JOIN"
		if j.left {
			kind = "LEFT JOIN"
		}
		c.joins = append(c.joins, fmt.Sprintf("%s %s ON %s = %s", kind, ref, outer, inner))
	}

	if len(spec.where) > 0 {
		parts := make([]string, len(spec.where))
		for i, p := range spec.where {
			s, err := g.boolean(sc, p)
			if err != nil {
				return nil, err
			}
			parts[i] = s
		}
		c.where = strings.Join(parts, " AND ")
	}

	if len(spec.groups) > 0 {
		parts := make([]string, len(spec.groups))
		for i, k := range spec.groups {
			s, err := g.value(sc, k)
			if err != nil {
				return nil, err
			}
			parts[i] = s
		}
		c.groupBy = strings.Join(parts, ", ")
	}

	if len(spec.having) > 0 {
		parts := make([]string, len(spec.having))
		for i, p := range spec.having {
			s, err := g.boolean(sc, p)
			if err != nil {
				return nil, err
			}
			parts[i] = s
		}
		c.having = strings.Join(parts, " AND ")
	}

	flip := spec.flipped()
	if len(spec.order) > 0 {
		parts := make([]string, len(spec.order))
		for i, t := range spec.order {
			s, err := g.value(sc, t.expr)
			if err != nil {
				return nil, err
			}
			if t.desc != flip {
				s += " DESC"
			}
			parts[i] = s
		}
		c.orderBy = strings.Join(parts, ", ")
	} else if flip {
		// No explicit ordering to invert; fall back to the first output
		// column so last/reverse stay deterministic.
		c.orderBy = "1 DESC"
	}

	limit, offset := "", ""
	switch {
	case spec.limitOne > 0:
		limit = fmt.Sprintf("%d", spec.limitOne)
	case spec.take != nil:
		limit, err = g.value(sc, spec.take)
		if err != nil {
			return nil, err
		}
	}
	if spec.skip != nil {
		offset, err = g.value(sc, spec.skip)
		if err != nil {
			return nil, err
		}
	}
	if limit != "" || offset != "" {
		c.limit = g.d.LimitClause(limit, offset)
	}
	return c, nil
}

// tableRef renders one FROM/JOIN operand. Derived tables always get an
// alias; bare tables only when the block qualifies columns.
func (g *gen) tableRef(f *ir.From, index int, sc *scope) (string, error) {
	if f.Subquery != nil {
		inner, err := g.selectStatement(f.Subquery)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s) AS %s", inner, QuoteIdent(sc.alias(index))), nil
	}
	ref := QuoteIdent(f.Table)
	if sc.qualify || f.Alias != "" {
		ref += " AS " + QuoteIdent(sc.alias(index))
	}
	return ref, nil
}

func (g *gen) joinRef(j joinEdge, sc *scope) (string, error) {
	if from, ok := j.inner.(*ir.From); ok && from.Subquery == nil {
		if from.Alias != "" {
			sc.aliases[j.innerIdx] = from.Alias
		}
		return QuoteIdent(from.Table) + " AS " + QuoteIdent(sc.alias(j.innerIdx)), nil
	}
	// A join inner with its own operations renders as a derived table;
	// its internal column references resolve inside that block.
	inner, err := g.selectStatement(j.inner)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s) AS %s", inner, QuoteIdent(sc.alias(j.innerIdx))), nil
}

func (g *gen) renderSpec(spec *selectSpec) (string, error) {
	c, err := g.buildClauses(spec)
	if err != nil {
		return "", err
	}

	switch spec.terminal {
	case termCount:
		return g.assemble("COUNT(*)", c, false, false), nil

	case termFold:
		sel := spec.foldSel
		if sel == nil {
			pe, ok := spec.project.(*ir.ProjectExpr)
			if !ok {
				return "", policyErrf(ErrBadChain, g.opName, spec.rootTable,
					"aggregate without a selector requires a preceding scalar select")
			}
			sel = pe.Expr
		}
		agg, err := g.aggregate(c.sc, spec.foldFn, sel, false)
		if err != nil {
			return "", err
		}
		return g.assemble(agg, c, false, false), nil

	case termExists, termNotExists:
		inner := g.assemble("1", c, false, true)
		not := ""
		if spec.terminal == termNotExists {
			not = "NOT "
		}
		return fmt.Sprintf("SELECT CASE WHEN %sEXISTS (%s) THEN 1 ELSE 0 END", not, inner), nil

	case termContains:
		pe := spec.project.(*ir.ProjectExpr)
		scalar, err := g.value(c.sc, pe.Expr)
		if err != nil {
			return "", err
		}
		list := scalar + " AS " + QuoteIdent(containsColumn)
		inner := g.assemble(list, c, spec.distinct, true)
		needle, err := g.value(&scope{}, spec.value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(
			"SELECT CASE WHEN EXISTS (SELECT 1 FROM (%s) AS %s WHERE %s = %s) THEN 1 ELSE 0 END",
			inner, QuoteIdent("sub"), QuoteIdent(containsColumn), needle), nil

	default:
		list, err := g.selectList(c.sc, spec)
		if err != nil {
			return "", err
		}
		sql := g.assemble(list, c, spec.distinct, false)
		return sql, nil
	}
}

// assemble stitches the clause buckets into one SELECT. Aggregate and
// existence forms drop ORDER BY; existence forms keep LIMIT.
func (g *gen) assemble(list string, c *clauses, distinct, noOrder bool) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if distinct {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(list)
	b.WriteString(" FROM ")
	b.WriteString(c.from)
	for _, j := range c.joins {
		b.WriteString(" ")
		b.WriteString(j)
	}
	if c.where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(c.where)
	}
	if c.groupBy != "" {
		b.WriteString(" GROUP BY ")
		b.WriteString(c.groupBy)
	}
	if c.having != "" {
		b.WriteString(" HAVING ")
		b.WriteString(c.having)
	}
	if !noOrder && c.orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(c.orderBy)
	}
	if c.limit != "" {
		b.WriteString(" ")
		b.WriteString(c.limit)
	}
	return b.String()
}

// selectList renders the projection: an explicit select wins, a join or
// selectMany result shape is mandatory when no select followed, grouped
// chains fall back to their keys, and everything else projects *.
func (g *gen) selectList(sc *scope, spec *selectSpec) (string, error) {
	switch p := spec.project.(type) {
	case *ir.ProjectStar:
		return "*", nil
	case *ir.ProjectExpr:
		return g.value(sc, p.Expr)
	case *ir.ProjectObject:
		return g.objectList(sc, p, "")
	}
	if spec.shape != nil {
		return g.shapeList(sc, spec.shape)
	}
	if len(spec.groups) > 0 {
		parts := make([]string, len(spec.groups))
		for i, k := range spec.groups {
			s, err := g.value(sc, k)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, ", "), nil
	}
	return "*", nil
}

// objectList renders an object projection. Nested objects flatten into
// dot-separated quoted aliases ("order.total") that adapters rehydrate.
func (g *gen) objectList(sc *scope, p *ir.ProjectObject, prefix string) (string, error) {
	var parts []string
	for _, f := range p.Fields {
		switch {
		case f.Table != nil:
			parts = append(parts, g.star(sc, f.Table.Index))
		case f.Object != nil:
			nested, err := g.objectList(sc, f.Object, prefix+f.Name+".")
			if err != nil {
				return "", err
			}
			parts = append(parts, nested)
		default:
			s, err := g.value(sc, f.Expr)
			if err != nil {
				return "", err
			}
			alias := prefix + f.Name
			if col, isCol := f.Expr.(*ir.Column); !isCol || col.Name != alias {
				s += " AS " + QuoteIdent(alias)
			}
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", "), nil
}

// shapeList derives the mandatory projection from a join result shape.
func (g *gen) shapeList(sc *scope, shape *ir.Shape) (string, error) {
	parts, err := g.shapeFields(sc, shape.Fields, "")
	if err != nil {
		return "", err
	}
	for _, idx := range shape.Spreads {
		parts = append(parts, g.star(sc, idx))
	}
	return strings.Join(parts, ", "), nil
}

func (g *gen) shapeFields(sc *scope, fields []ir.ShapeField, prefix string) ([]string, error) {
	var parts []string
	for _, f := range fields {
		alias := prefix + f.Name
		switch n := f.Node.(type) {
		case *ir.ShapeColumn:
			if n.Table == ir.ComputedColumn {
				parts = append(parts, QuoteIdent(alias))
				continue
			}
			col := g.column(sc, &ir.Column{Name: n.Column, Origin: originFor(n.Table)})
			s := col
			if n.Column != alias || sc.qualify {
				s += " AS " + QuoteIdent(alias)
			}
			parts = append(parts, s)
		case *ir.ShapeTable:
			parts = append(parts, g.star(sc, n.Table))
		case *ir.ShapeObject:
			nested, err := g.shapeFields(sc, n.Fields, alias+".")
			if err != nil {
				return nil, err
			}
			parts = append(parts, nested...)
		case *ir.ShapeArray:
			return nil, policyErrf(ErrUnflattenedGroup, g.opName, g.table,
				"collection field %q must be flattened by selectMany", alias)
		}
	}
	return parts, nil
}

func originFor(table int) ir.ColumnOrigin {
	if table == 0 {
		return ir.ColumnOrigin{Kind: ir.OriginDirect}
	}
	return ir.ColumnOrigin{Kind: ir.OriginJoinResult, Index: table}
}

func (g *gen) star(sc *scope, index int) string {
	if !sc.qualify {
		return "*"
	}
	return QuoteIdent(sc.alias(index)) + ".*"
}
