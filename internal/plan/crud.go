package plan

import (
	"github.com/quillsql/quill/internal/ast"
	"github.com/quillsql/quill/internal/ir"
)

// The CRUD builders are staged so that illegal sequences do not compile:
// an insert cannot take a conflict clause before its values, a conflict
// target cannot finalize without choosing an action, and set() appears
// exactly once on an update.

// InsertBuilder is an insert chain awaiting its row.
type InsertBuilder struct {
	st state
}

// InsertInto roots an insert statement in a table.
func (s *Schema) InsertInto(table string) *InsertBuilder {
	return &InsertBuilder{st: s.newState().apply("insertInto", ast.NewLiteral(table))}
}

// Values supplies the inserted row: an object literal or a lambda over the
// params record returning one.
func (b *InsertBuilder) Values(row ast.Node) *InsertStatement {
	return &InsertStatement{st: b.st.apply("values", row)}
}

// InsertStatement is an insert with values, ready to finalize or extend
// with a conflict clause and a RETURNING projection.
type InsertStatement struct {
	st state
}

// Err returns the first error the chain has produced, if any.
func (i *InsertStatement) Err() error { return i.st.err }

// Operation exposes the current IR root.
func (i *InsertStatement) Operation() ir.Op { return i.st.op }

// OnConflict names the conflict-target columns.
func (i *InsertStatement) OnConflict(columns ...string) *ConflictTarget {
	args := make([]ast.Node, len(columns))
	for n, c := range columns {
		args[n] = ast.NewLiteral(c)
	}
	return &ConflictTarget{st: i.st.apply("onConflict", args...)}
}

// OnConflictKey names the conflict target through a column selector lambda.
func (i *InsertStatement) OnConflictKey(sel *ast.Lambda) *ConflictTarget {
	return &ConflictTarget{st: i.st.apply("onConflict", sel)}
}

// Returning projects columns of the inserted rows.
func (i *InsertStatement) Returning(sel *ast.Lambda) *Statement {
	return &Statement{st: i.st.apply("returning", sel)}
}

// ConflictTarget is an ON CONFLICT clause awaiting its action; it cannot
// finalize until DoNothing or DoUpdateSet resolves it.
type ConflictTarget struct {
	st state
}

// Err returns the first error the chain has produced, if any.
func (c *ConflictTarget) Err() error { return c.st.err }

// DoNothing drops conflicting rows silently.
func (c *ConflictTarget) DoNothing() *InsertStatement {
	return &InsertStatement{st: c.st.apply("doNothing")}
}

// DoUpdateSet turns the insert into an upsert. The lambda receives the
// target row and the excluded (proposed) row.
func (c *ConflictTarget) DoUpdateSet(set *ast.Lambda) *InsertStatement {
	return &InsertStatement{st: c.st.apply("doUpdateSet", set)}
}

// UpdateBuilder is an update chain awaiting its assignments.
type UpdateBuilder struct {
	st state
}

// Update roots an update statement in a table.
func (s *Schema) Update(table string) *UpdateBuilder {
	return &UpdateBuilder{st: s.newState().apply("update", ast.NewLiteral(table))}
}

// Where filters the updated rows; calls conjoin.
func (b *UpdateBuilder) Where(pred *ast.Lambda) *UpdateBuilder {
	return &UpdateBuilder{st: b.st.apply("where", pred)}
}

// Set supplies the assignments: an object literal or a lambda over the
// current row returning one. Set appears exactly once.
func (b *UpdateBuilder) Set(assignments ast.Node) *UpdateStatement {
	return &UpdateStatement{st: b.st.apply("set", assignments)}
}

// UpdateStatement is an update with assignments, ready to finalize.
type UpdateStatement struct {
	st state
}

// Err returns the first error the chain has produced, if any.
func (u *UpdateStatement) Err() error { return u.st.err }

// Operation exposes the current IR root.
func (u *UpdateStatement) Operation() ir.Op { return u.st.op }

// Where filters the updated rows; calls conjoin.
func (u *UpdateStatement) Where(pred *ast.Lambda) *UpdateStatement {
	return &UpdateStatement{st: u.st.apply("where", pred)}
}

// AllowFullTableUpdate opts in to an update without any predicate.
func (u *UpdateStatement) AllowFullTableUpdate() *UpdateStatement {
	return &UpdateStatement{st: u.st.apply("allowFullTableUpdate")}
}

// Returning projects columns of the updated rows.
func (u *UpdateStatement) Returning(sel *ast.Lambda) *Statement {
	return &Statement{st: u.st.apply("returning", sel)}
}

// DeleteBuilder is a delete chain; it can finalize at any point, though
// generation rejects an unpredicated delete without the explicit opt-in.
type DeleteBuilder struct {
	st state
}

// DeleteFrom roots a delete statement in a table.
func (s *Schema) DeleteFrom(table string) *DeleteBuilder {
	return &DeleteBuilder{st: s.newState().apply("deleteFrom", ast.NewLiteral(table))}
}

// Err returns the first error the chain has produced, if any.
func (d *DeleteBuilder) Err() error { return d.st.err }

// Operation exposes the current IR root.
func (d *DeleteBuilder) Operation() ir.Op { return d.st.op }

// Where filters the deleted rows; calls conjoin.
func (d *DeleteBuilder) Where(pred *ast.Lambda) *DeleteBuilder {
	return &DeleteBuilder{st: d.st.apply("where", pred)}
}

// AllowFullTableDelete opts in to a delete without any predicate.
func (d *DeleteBuilder) AllowFullTableDelete() *DeleteBuilder {
	return &DeleteBuilder{st: d.st.apply("allowFullTableDelete")}
}

// Statement is a finished data-modification chain awaiting Finalize.
type Statement struct {
	st state
}

// Err returns the first error the chain has produced, if any.
func (s *Statement) Err() error { return s.st.err }

// Operation exposes the final IR root.
func (s *Statement) Operation() ir.Op { return s.st.op }
