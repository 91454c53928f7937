package ir

// Op represents one query operation in a chain.
//
// This is a sealed interface - only types in this package implement it.
// Every chainable operation carries a Src edge to its predecessor; CRUD
// roots (Insert, Update, Delete) and From have no predecessor and return
// nil from Source.
type Op interface {
	opNode() // Marker method - seals interface to this package

	// Source returns the predecessor operation, or nil at a root.
	Source() Op
}

// From roots a query chain in a table or a derived-table subquery.
// Exactly one of Table and Subquery is set.
type From struct {
	Table    string
	Alias    string
	Subquery Op
}

func (*From) opNode()      {}
func (f *From) Source() Op { return nil }

// Where filters rows by a predicate.
type Where struct {
	Src  Op
	Pred BoolExpr
}

func (*Where) opNode()      {}
func (w *Where) Source() Op { return w.Src }

// Select projects rows through an expression or object shape.
type Select struct {
	Src        Op
	Projection Projection
}

func (*Select) opNode()      {}
func (s *Select) Source() Op { return s.Src }

// Join is an inner join against a second chain. OuterKey and InnerKey are
// the equi-join keys; Shape records the result-selector's structure so
// later operations can resolve fields to tables.
type Join struct {
	Src      Op
	Inner    Op
	OuterKey ValueExpr
	InnerKey ValueExpr
	Shape    *Shape
}

func (*Join) opNode()      {}
func (j *Join) Source() Op { return j.Src }

// GroupJoin joins a collection of inner rows per outer row; combined with
// SelectMany and DefaultIfEmpty it expresses left outer joins.
type GroupJoin struct {
	Src      Op
	Inner    Op
	OuterKey ValueExpr
	InnerKey ValueExpr
	Shape    *Shape
}

func (*GroupJoin) opNode()      {}
func (g *GroupJoin) Source() Op { return g.Src }

// SelectMany flattens a collection-valued shape field, re-shaping the
// result. Field names the collection in the current shape; DefaultIfEmpty
// marks an outer (LEFT JOIN) flattening.
type SelectMany struct {
	Src            Op
	Field          string
	DefaultIfEmpty bool
	Shape          *Shape
}

func (*SelectMany) opNode()      {}
func (s *SelectMany) Source() Op { return s.Src }

// DefaultIfEmpty marks a chain as producing one all-NULL row instead of
// zero rows, used inside groupJoin collection selectors to express left
// outer joins.
type DefaultIfEmpty struct {
	Src Op
}

func (*DefaultIfEmpty) opNode()      {}
func (d *DefaultIfEmpty) Source() Op { return d.Src }

// GroupBy groups rows by key expressions.
type GroupBy struct {
	Src  Op
	Keys []ValueExpr
}

func (*GroupBy) opNode()      {}
func (g *GroupBy) Source() Op { return g.Src }

// OrderBy establishes the primary sort.
type OrderBy struct {
	Src  Op
	Expr ValueExpr
	Desc bool
}

func (*OrderBy) opNode()      {}
func (o *OrderBy) Source() Op { return o.Src }

// ThenBy adds a subordinate sort key.
type ThenBy struct {
	Src  Op
	Expr ValueExpr
	Desc bool
}

func (*ThenBy) opNode()      {}
func (t *ThenBy) Source() Op { return t.Src }

// Distinct suppresses duplicate rows.
type Distinct struct {
	Src Op
}

func (*Distinct) opNode()      {}
func (d *Distinct) Source() Op { return d.Src }

// Take limits the row count. Count is a *Param or NULL-free *Constant.
type Take struct {
	Src   Op
	Count ValueExpr
}

func (*Take) opNode()      {}
func (t *Take) Source() Op { return t.Src }

// Skip offsets into the row set.
type Skip struct {
	Src   Op
	Count ValueExpr
}

func (*Skip) opNode()      {}
func (s *Skip) Source() Op { return s.Src }

// Reverse flips the effective sort direction.
type Reverse struct {
	Src Op
}

func (*Reverse) opNode()      {}
func (r *Reverse) Source() Op { return r.Src }

// First is a terminal retrieving the first row (LIMIT 1).
type First struct {
	Src       Op
	Pred      BoolExpr
	OrDefault bool
}

func (*First) opNode()      {}
func (f *First) Source() Op { return f.Src }

// Single is a terminal retrieving exactly one row. It compiles to LIMIT 2
// so the execution layer can detect multiplicity violations.
type Single struct {
	Src       Op
	Pred      BoolExpr
	OrDefault bool
}

func (*Single) opNode()      {}
func (s *Single) Source() Op { return s.Src }

// Last is a terminal retrieving the final row; generation flips the sort
// direction and applies LIMIT 1, synthesizing ORDER BY 1 DESC when the
// chain has no explicit ordering.
type Last struct {
	Src       Op
	Pred      BoolExpr
	OrDefault bool
}

func (*Last) opNode()      {}
func (l *Last) Source() Op { return l.Src }

// Contains is a terminal testing membership of a value in the preceding
// scalar projection; it compiles to an EXISTS wrapper.
type Contains struct {
	Src   Op
	Value ValueExpr
}

func (*Contains) opNode()      {}
func (c *Contains) Source() Op { return c.Src }

// Any is a terminal testing row existence, compiled to EXISTS.
type Any struct {
	Src  Op
	Pred BoolExpr
}

func (*Any) opNode()      {}
func (a *Any) Source() Op { return a.Src }

// All is a terminal testing that every row satisfies Pred, compiled to
// NOT EXISTS over the negated predicate.
type All struct {
	Src  Op
	Pred BoolExpr
}

func (*All) opNode()      {}
func (a *All) Source() Op { return a.Src }

// CountOp is a terminal counting rows. Long distinguishes longCount; both
// generate identical SQL and differ only in how adapters read the result.
type CountOp struct {
	Src  Op
	Pred BoolExpr
	Long bool
}

func (*CountOp) opNode()      {}
func (c *CountOp) Source() Op { return c.Src }

// Fold is a terminal aggregate over a selector: sum, average, min, max.
// Empty inputs yield SQL NULL; interpreting that is the adapter's concern.
type Fold struct {
	Src      Op
	Fn       AggFn
	Selector ValueExpr
}

func (*Fold) opNode()      {}
func (f *Fold) Source() Op { return f.Src }

// ConflictAction discriminates upsert handling.
type ConflictAction int

const (
	// ConflictDoNothing drops the conflicting row silently.
	ConflictDoNothing ConflictAction = iota

	// ConflictDoUpdate rewrites the conflicting row via Set assignments.
	ConflictDoUpdate
)

// Conflict is the ON CONFLICT clause of an upsert. Resolved records that
// an action was chosen; a target with no action is rejected at generation.
type Conflict struct {
	Target   []string
	Action   ConflictAction
	Set      []Assignment
	Resolved bool
}

// Assignment is one column = expression pair in UPDATE or DO UPDATE SET.
type Assignment struct {
	Column string
	Value  ValueExpr
}

// Insert is a CRUD root. Columns and Values are parallel; a column whose
// resolved value is undefined is omitted before generation.
type Insert struct {
	Table     string
	Columns   []string
	Values    []ValueExpr
	Conflict  *Conflict
	Returning []string
}

func (*Insert) opNode()      {}
func (i *Insert) Source() Op { return nil }

// Update is a CRUD root. Generation refuses a missing predicate unless
// AllowFullTable is set.
type Update struct {
	Table          string
	Set            []Assignment
	Pred           BoolExpr
	AllowFullTable bool
	Returning      []string
}

func (*Update) opNode()      {}
func (u *Update) Source() Op { return nil }

// Delete is a CRUD root with the same full-table guard as Update.
type Delete struct {
	Table          string
	Pred           BoolExpr
	AllowFullTable bool
}

func (*Delete) opNode()      {}
func (d *Delete) Source() Op { return nil }

// Projection is the target of a Select.
//
// This is a sealed interface - only types in this package implement it.
type Projection interface {
	projection() // Marker method - seals interface to this package
}

// ProjectExpr projects a single scalar expression.
type ProjectExpr struct {
	Expr ValueExpr
}

func (*ProjectExpr) projection() {}

// ProjectField is one named output of an object projection. Exactly one
// of Expr, Object, Table is set.
type ProjectField struct {
	Name   string
	Expr   ValueExpr
	Object *ProjectObject
	Table  *TableRef
}

// ProjectObject projects an ordered object of named outputs.
type ProjectObject struct {
	Fields []ProjectField
}

func (*ProjectObject) projection() {}

// ProjectStar projects all columns.
type ProjectStar struct{}

func (*ProjectStar) projection() {}

// OpName names an operation for diagnostics.
func OpName(op Op) string {
	switch op.(type) {
	case *From:
		return "from"
	case *Where:
		return "where"
	case *Select:
		return "select"
	case *Join:
		return "join"
	case *GroupJoin:
		return "groupJoin"
	case *SelectMany:
		return "selectMany"
	case *DefaultIfEmpty:
		return "defaultIfEmpty"
	case *GroupBy:
		return "groupBy"
	case *OrderBy:
		return "orderBy"
	case *ThenBy:
		return "thenBy"
	case *Distinct:
		return "distinct"
	case *Take:
		return "take"
	case *Skip:
		return "skip"
	case *Reverse:
		return "reverse"
	case *First:
		return "first"
	case *Single:
		return "single"
	case *Last:
		return "last"
	case *Contains:
		return "contains"
	case *Any:
		return "any"
	case *All:
		return "all"
	case *CountOp:
		return "count"
	case *Fold:
		return "aggregate"
	case *Insert:
		return "insert"
	case *Update:
		return "update"
	case *Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// RootTable walks source edges to the rooting From or CRUD root and
// returns its table name, or "" for a subquery root.
func RootTable(op Op) string {
	for op != nil {
		switch root := op.(type) {
		case *From:
			return root.Table
		case *Insert:
			return root.Table
		case *Update:
			return root.Table
		case *Delete:
			return root.Table
		}
		op = op.Source()
	}
	return ""
}
