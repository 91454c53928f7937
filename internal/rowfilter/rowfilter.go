// Package rowfilter injects per-table row policies into finished
// operation chains.
//
// A policy maps table names to filter lambdas (row, ctx) => bool. When a
// statement finalizes, every occurrence of a filtered table gains the
// filter predicate: SELECT chains wrap each table leaf, UPDATE and DELETE
// conjoin the predicate into their WHERE clause. Context values the filter
// reads become parameters in the reserved __rf_ namespace, bound from the
// schema's context map; caller parameters may not use that namespace.
package rowfilter

import (
	"fmt"
	"strings"

	"github.com/quillsql/quill/internal/ast"
	"github.com/quillsql/quill/internal/ir"
	"github.com/quillsql/quill/internal/parse"
)

// Filters maps table names to filter lambdas. A lambda takes the row and,
// optionally, the filter context record: (o, ctx) => o.tenant_id == ctx.tenant.
type Filters map[string]*ast.Lambda

// Policy is an immutable filter set plus its bound context.
type Policy struct {
	filters Filters
	ctx     map[string]any
	bound   bool
}

// NewPolicy builds a policy over the given filters with no context bound.
func NewPolicy(filters Filters) *Policy {
	return &Policy{filters: filters}
}

// WithContext returns a policy whose filters read values from ctx.
func (p *Policy) WithContext(ctx map[string]any) *Policy {
	return &Policy{filters: p.filters, ctx: ctx, bound: true}
}

// Apply injects the policy into op, adding the filter's namespaced
// parameters to params. The input op is not mutated.
func (p *Policy) Apply(op ir.Op, params map[string]any) (ir.Op, error) {
	if p == nil || len(p.filters) == 0 {
		return op, nil
	}
	for name := range params {
		if strings.HasPrefix(name, "__rf_") {
			return nil, bindErrf(ErrReservedParam, "",
				"parameter %q uses the reserved row-filter namespace", name)
		}
	}
	a := &applier{policy: p, params: params}

	switch root := op.(type) {
	case *ir.Insert:
		// Inserts create rows rather than read them; filters do not apply.
		return op, nil
	case *ir.Update:
		return a.applyUpdate(root)
	case *ir.Delete:
		return a.applyDelete(root)
	default:
		return a.applySelect(op)
	}
}

// applier threads the per-statement state: minted auto-param numbering is
// statement-wide so two filters never share a name.
type applier struct {
	policy *Policy
	params map[string]any
	minted int
}

func (a *applier) applySelect(op ir.Op) (ir.Op, error) {
	var applyErr error
	out := ir.RewriteTables(op, func(f *ir.From) ir.Op {
		if applyErr != nil {
			return f
		}
		pred, err := a.compile(f.Table)
		if err != nil {
			applyErr = err
			return f
		}
		if pred == nil {
			return f
		}
		// The leaf becomes a derived table carrying the filter, keeping
		// any alias hint on the outer node.
		inner := &ir.From{Table: f.Table}
		return &ir.From{Subquery: &ir.Where{Src: inner, Pred: pred}, Alias: f.Alias}
	})
	if applyErr != nil {
		return nil, applyErr
	}
	return out, nil
}

func (a *applier) applyUpdate(u *ir.Update) (ir.Op, error) {
	pred, err := a.compile(u.Table)
	if err != nil {
		return nil, err
	}
	if pred == nil {
		return u, nil
	}
	// The filter must hold for the row as it is (the statement may only
	// touch visible rows) and for the row as it will be (the update may
	// not move a row outside the filter). The second check substitutes
	// each assigned column with its new value.
	assign := make(map[string]ir.ValueExpr, len(u.Set))
	for _, as := range u.Set {
		assign[as.Column] = as.Value
	}
	post := substituteBool(ir.CloneBool(pred), assign)

	out := *u
	out.Pred = conjoin(u.Pred, &ir.Logical{Op: ir.LogicAnd, Left: pred, Right: post})
	return &out, nil
}

func (a *applier) applyDelete(d *ir.Delete) (ir.Op, error) {
	pred, err := a.compile(d.Table)
	if err != nil {
		return nil, err
	}
	if pred == nil {
		return d, nil
	}
	out := *d
	out.Pred = conjoin(d.Pred, pred)
	return &out, nil
}

func conjoin(existing, added ir.BoolExpr) ir.BoolExpr {
	if existing == nil {
		return added
	}
	return &ir.Logical{Op: ir.LogicAnd, Left: existing, Right: added}
}

// compile lowers the filter lambda for one table to a predicate with all
// of its parameters moved into the reserved namespace and bound. Returns
// (nil, nil) when the table has no filter.
func (a *applier) compile(table string) (ir.BoolExpr, error) {
	filter, ok := a.policy.filters[table]
	if !ok {
		return nil, nil
	}
	if filter == nil || len(filter.Params) < 1 || len(filter.Params) > 2 {
		return nil, bindErrf(ErrBadFilter, table, "filter must be a (row) or (row, ctx) lambda")
	}

	rowOnly := &ast.Lambda{Params: filter.Params[:1], Body: filter.Body, Block: filter.Block}
	fctx := parse.NewContext()
	fctx.TableCount = 1
	if len(filter.Params) == 2 {
		fctx.QueryParams = filter.Params[1]
	}
	op, err := parse.Apply(fctx, "q", &ir.From{Table: table}, "where", []ast.Node{rowOnly})
	if err != nil {
		return nil, bindErrf(ErrBadFilter, table, "%v", err)
	}
	where, ok := op.(*ir.Where)
	if !ok {
		return nil, bindErrf(ErrBadFilter, table, "filter did not lower to a predicate")
	}
	pred := where.Pred

	var bindErr error
	rewriteParams(pred, func(p *ir.Param) {
		if bindErr != nil {
			return
		}
		if value, minted := fctx.AutoParams[p.Name]; minted {
			// A literal inside the filter. Mint a fresh namespaced name;
			// numbering is statement-wide.
			a.minted++
			p.Name = fmt.Sprintf("__rf_a%d", a.minted)
			a.params[p.Name] = value
			return
		}
		// A context read. Bind it from the policy context.
		key := p.Name
		if !a.policy.bound {
			bindErr = bindErrf(ErrUnboundContext, table,
				"filter reads context key %q but no context is bound", key)
			return
		}
		value, present := a.policy.ctx[key]
		if !present {
			bindErr = bindErrf(ErrMissingKey, table, "context has no key %q", key)
			return
		}
		p.Name = "__rf_" + key
		a.params[p.Name] = value
	})
	if bindErr != nil {
		return nil, bindErr
	}
	return pred, nil
}
