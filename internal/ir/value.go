package ir

// ValueExpr represents a scalar-valued expression.
//
// This is a sealed interface - only types in this package implement it.
// A node's concrete type fully determines which fields are populated.
type ValueExpr interface {
	valueExpr() // Marker method - seals interface to this package
}

// ColumnOriginKind discriminates how a column reference resolves to a table
// in the operation chain.
type ColumnOriginKind int

const (
	// OriginDirect resolves against the single current table.
	OriginDirect ColumnOriginKind = iota

	// OriginAlias resolves against an explicitly aliased table.
	OriginAlias

	// OriginJoinParam resolves through a join result-selector parameter:
	// Index identifies which joined table the parameter was bound to.
	OriginJoinParam

	// OriginJoinResult resolves through the current result shape: Index
	// identifies the table the shape maps the referenced field onto.
	OriginJoinResult

	// OriginSpread resolves a column that survived a whole-table spread in
	// a projection; Index identifies the spread table.
	OriginSpread
)

// ColumnOrigin pins a column reference to a table in the chain.
type ColumnOrigin struct {
	Kind  ColumnOriginKind
	Alias string // set for OriginAlias
	Index int    // table index for the indexed kinds
}

// Column references a physical column.
type Column struct {
	Name   string
	Origin ColumnOrigin
}

func (*Column) valueExpr() {}

// ExcludedColumn references EXCLUDED.<name> inside an upsert's
// DO UPDATE SET clause.
type ExcludedColumn struct {
	Name string
}

func (*ExcludedColumn) valueExpr() {}

// Constant is an inline value. Only NULL constants ever reach generated
// SQL as text; every other literal is minted into an auto-parameter by the
// parse layer, so a non-null Constant surviving to the generator is
// confined to positions that never render (e.g. IN-list haystacks, which
// expand to placeholders).
type Constant struct {
	Value any
	Null  bool
}

func (*Constant) valueExpr() {}

// UndefinedValue marks a value as absent rather than NULL. An insert
// column resolving to Undefined is omitted from the statement entirely.
type UndefinedValue struct{}

// Undefined is the canonical absent-value sentinel.
var Undefined = UndefinedValue{}

// Param references a named query parameter, optionally narrowed by a
// property path (p.filter.name) and an array index (p.ids[0]).
type Param struct {
	Name    string
	Path    []string
	Index   int
	Indexed bool
}

func (*Param) valueExpr() {}

// ArithOp is an arithmetic operator.
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
)

// Arithmetic applies a binary arithmetic operator.
type Arithmetic struct {
	Op    ArithOp
	Left  ValueExpr
	Right ValueExpr
}

func (*Arithmetic) valueExpr() {}

// Concat concatenates string-valued operands.
type Concat struct {
	Parts []ValueExpr
}

func (*Concat) valueExpr() {}

// StringFn is a value-returning string function.
type StringFn int

const (
	FnUpper StringFn = iota
	FnLower
	FnTrim
	FnSubstring
	FnLength
)

// StringCall applies a string function to a receiver expression.
type StringCall struct {
	Fn   StringFn
	Recv ValueExpr
	Args []ValueExpr
}

func (*StringCall) valueExpr() {}

// Coalesce returns the first non-null operand.
type Coalesce struct {
	Exprs []ValueExpr
}

func (*Coalesce) valueExpr() {}

// CaseBranch is a single WHEN/THEN arm.
type CaseBranch struct {
	When BoolExpr
	Then ValueExpr
}

// Case is a searched CASE expression. Else may be nil (SQL ELSE NULL).
type Case struct {
	Branches []CaseBranch
	Else     ValueExpr
}

func (*Case) valueExpr() {}

// AggFn is an aggregate function.
type AggFn int

const (
	AggCount AggFn = iota
	AggSum
	AggAvg
	AggMin
	AggMax
)

// Aggregate applies an aggregate function. Arg is nil for COUNT(*).
type Aggregate struct {
	Fn       AggFn
	Arg      ValueExpr
	Distinct bool
}

func (*Aggregate) valueExpr() {}

// WindowKind is a window function.
type WindowKind int

const (
	WinRowNumber WindowKind = iota
	WinRank
	WinDenseRank
)

// WindowOrder is one ORDER BY term inside an OVER clause.
type WindowOrder struct {
	Expr ValueExpr
	Desc bool
}

// WindowFunc is a window function with its OVER clause.
type WindowFunc struct {
	Fn          WindowKind
	PartitionBy []ValueExpr
	OrderBy     []WindowOrder
}

func (*WindowFunc) valueExpr() {}

// TableRef is a whole-row reference to a table in the chain, used when a
// projection or shape carries an entire joined table through.
type TableRef struct {
	Index int
}

func (*TableRef) valueExpr() {}

// AllColumns is the default `*` projection.
type AllColumns struct{}

func (*AllColumns) valueExpr() {}
