package plan

import (
	"errors"

	"github.com/quillsql/quill/internal/ir"
	"github.com/quillsql/quill/internal/parse"
)

// ErrEmptyPlan is returned when a chain finalizes before any operation.
var ErrEmptyPlan = errors.New("plan has no operation")

// Finalized is a complete operation tree ready for SQL generation: the IR
// root with row filters injected, the merged parameter values, and the
// auto-parameter provenance for diagnostics.
type Finalized struct {
	Op         ir.Op
	Params     map[string]any
	AutoParams []parse.AutoParamInfo
}

// finalize merges caller parameters over the minted auto-parameters
// (caller wins on a name collision) and injects the schema's row filters.
func (st state) finalize(callerParams map[string]any) (*Finalized, error) {
	if st.err != nil {
		return nil, st.err
	}
	if st.op == nil {
		return nil, ErrEmptyPlan
	}
	params := make(map[string]any, len(st.ctx.AutoParams)+len(callerParams))
	for k, v := range st.ctx.AutoParams {
		params[k] = v
	}
	for k, v := range callerParams {
		params[k] = v
	}

	op := ir.CloneOp(st.op)
	if st.schema != nil && st.schema.policy != nil {
		var err error
		op, err = st.schema.policy.Apply(op, params)
		if err != nil {
			return nil, err
		}
	}

	infos := make([]parse.AutoParamInfo, len(st.ctx.AutoInfos))
	copy(infos, st.ctx.AutoInfos)
	return &Finalized{Op: op, Params: params, AutoParams: infos}, nil
}

// Finalize completes a query that ends without a terminal operation.
func (q *Query) Finalize(params map[string]any) (*Finalized, error) {
	return q.st.finalize(params)
}

// Finalize completes a terminal query.
func (t *Terminal) Finalize(params map[string]any) (*Finalized, error) {
	return t.st.finalize(params)
}

// Finalize completes an insert.
func (i *InsertStatement) Finalize(params map[string]any) (*Finalized, error) {
	return i.st.finalize(params)
}

// Finalize completes an update.
func (u *UpdateStatement) Finalize(params map[string]any) (*Finalized, error) {
	return u.st.finalize(params)
}

// Finalize completes a delete.
func (d *DeleteBuilder) Finalize(params map[string]any) (*Finalized, error) {
	return d.st.finalize(params)
}

// Finalize completes a statement with a RETURNING projection.
func (s *Statement) Finalize(params map[string]any) (*Finalized, error) {
	return s.st.finalize(params)
}
