package sqlgen

import (
	"strings"

	"github.com/quillsql/quill/internal/ir"
)

func (g *gen) insert(n *ir.Insert) (string, error) {
	sc := &scope{}
	var cols, vals []string
	for i, col := range n.Columns {
		sql, defined, err := g.insertValue(sc, n.Values[i])
		if err != nil {
			return "", err
		}
		if !defined {
			// Undefined means absent: the column drops out and the row
			// takes its default.
			continue
		}
		cols = append(cols, QuoteIdent(col))
		vals = append(vals, sql)
	}
	if len(cols) == 0 {
		return "", policyErrf(ErrAllValuesUndefined, "insert", n.Table,
			"every insert value resolved to undefined")
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(QuoteIdent(n.Table))
	b.WriteString(" (")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(") VALUES (")
	b.WriteString(strings.Join(vals, ", "))
	b.WriteString(")")

	if n.Conflict != nil {
		clause, err := g.conflict(sc, n.Conflict, n.Table)
		if err != nil {
			return "", err
		}
		b.WriteString(" ")
		b.WriteString(clause)
	}
	if len(n.Returning) > 0 {
		b.WriteString(returningClause(n.Returning))
	}
	return b.String(), nil
}

// insertValue resolves one insert value, reporting undefined separately
// so the caller can omit the column.
func (g *gen) insertValue(sc *scope, v ir.ValueExpr) (string, bool, error) {
	switch n := v.(type) {
	case *ir.Constant:
		if _, undef := n.Value.(ir.UndefinedValue); undef {
			return "", false, nil
		}
	case *ir.Param:
		res := resolveParam(g.params, n.Name, n.Path, n.Index, n.Indexed)
		if !res.defined {
			return "", false, nil
		}
	}
	sql, err := g.value(sc, v)
	if err != nil {
		return "", false, err
	}
	return sql, true, nil
}

func (g *gen) conflict(sc *scope, c *ir.Conflict, table string) (string, error) {
	if !c.Resolved {
		return "", policyErrf(ErrConflictUnresolved, "insert", table,
			"ON CONFLICT target needs doNothing or doUpdateSet")
	}
	var b strings.Builder
	b.WriteString("ON CONFLICT")
	if len(c.Target) > 0 {
		quoted := make([]string, len(c.Target))
		for i, t := range c.Target {
			quoted[i] = QuoteIdent(t)
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(quoted, ", "))
		b.WriteString(")")
	}
	if c.Action == ir.ConflictDoNothing {
		b.WriteString(" DO NOTHING")
		return b.String(), nil
	}

	set, err := g.assignments(sc, c.Set, "insert", table)
	if err != nil {
		return "", err
	}
	b.WriteString(" DO UPDATE SET ")
	b.WriteString(set)
	return b.String(), nil
}

func (g *gen) update(n *ir.Update) (string, error) {
	if n.Pred == nil && !n.AllowFullTable {
		return "", policyErrf(ErrMissingPredicate, "update", n.Table,
			"update without where needs allowFullTableUpdate")
	}
	sc := &scope{}
	set, err := g.assignments(sc, n.Set, "update", n.Table)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(QuoteIdent(n.Table))
	b.WriteString(" SET ")
	b.WriteString(set)
	if n.Pred != nil {
		pred, err := g.boolean(sc, n.Pred)
		if err != nil {
			return "", err
		}
		b.WriteString(" WHERE ")
		b.WriteString(pred)
	}
	if len(n.Returning) > 0 {
		b.WriteString(returningClause(n.Returning))
	}
	return b.String(), nil
}

func (g *gen) deleteStmt(n *ir.Delete) (string, error) {
	if n.Pred == nil && !n.AllowFullTable {
		return "", policyErrf(ErrMissingPredicate, "delete", n.Table,
			"delete without where needs allowFullTableDelete")
	}
	var b strings.Builder
	b.WriteString("DELETE FROM ")
	b.WriteString(QuoteIdent(n.Table))
	if n.Pred != nil {
		pred, err := g.boolean(&scope{}, n.Pred)
		if err != nil {
			return "", err
		}
		b.WriteString(" WHERE ")
		b.WriteString(pred)
	}
	return b.String(), nil
}

func (g *gen) assignments(sc *scope, set []ir.Assignment, op, table string) (string, error) {
	if len(set) == 0 {
		return "", policyErrf(ErrAllValuesUndefined, op, table, "no assignments to apply")
	}
	parts := make([]string, 0, len(set))
	for _, as := range set {
		if c, isConst := as.Value.(*ir.Constant); isConst {
			if _, undef := c.Value.(ir.UndefinedValue); undef {
				continue
			}
		}
		sql, err := g.value(sc, as.Value)
		if err != nil {
			return "", err
		}
		parts = append(parts, QuoteIdent(as.Column)+" = "+sql)
	}
	if len(parts) == 0 {
		return "", policyErrf(ErrAllValuesUndefined, op, table,
			"every assignment resolved to undefined")
	}
	return strings.Join(parts, ", "), nil
}

func returningClause(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = QuoteIdent(c)
	}
	return " RETURNING " + strings.Join(quoted, ", ")
}
