package ir

// BoolExpr represents a boolean-valued expression.
//
// This is a sealed interface - only types in this package implement it.
type BoolExpr interface {
	boolExpr() // Marker method - seals interface to this package
}

// CmpOp is a comparison operator.
type CmpOp int

const (
	CmpEq CmpOp = iota
	CmpNe
	CmpGt
	CmpGe
	CmpLt
	CmpLe
)

// Comparison compares two scalar expressions.
type Comparison struct {
	Op    CmpOp
	Left  ValueExpr
	Right ValueExpr
}

func (*Comparison) boolExpr() {}

// LogicKind is a boolean connective.
type LogicKind int

const (
	LogicAnd LogicKind = iota
	LogicOr
)

// Logical combines two boolean expressions.
type Logical struct {
	Op    LogicKind
	Left  BoolExpr
	Right BoolExpr
}

func (*Logical) boolExpr() {}

// Not negates a boolean expression.
type Not struct {
	Inner BoolExpr
}

func (*Not) boolExpr() {}

// BoolColumn uses a boolean-typed column directly as a predicate.
type BoolColumn struct {
	Col Column
}

func (*BoolColumn) boolExpr() {}

// BoolConstant is a boolean literal used as a predicate.
type BoolConstant struct {
	Value bool
}

func (*BoolConstant) boolExpr() {}

// BoolParam uses a boolean-typed parameter directly as a predicate.
type BoolParam struct {
	P Param
}

func (*BoolParam) boolExpr() {}

// MatchFn is a boolean-returning string match method.
type MatchFn int

const (
	MatchStartsWith MatchFn = iota
	MatchEndsWith
	MatchIncludes
)

// StringMatch is a LIKE-translated string method: startsWith, endsWith, or
// includes, optionally case-insensitive.
type StringMatch struct {
	Fn              MatchFn
	Recv            ValueExpr
	Arg             ValueExpr
	CaseInsensitive bool
}

func (*StringMatch) boolExpr() {}

// CaseInsensitiveLike is a whole-string case-insensitive comparison
// (ILIKE on dialects that support it, LOWER(a) LIKE LOWER(b) otherwise).
type CaseInsensitiveLike struct {
	Left  ValueExpr
	Right ValueExpr
}

func (*CaseInsensitiveLike) boolExpr() {}

// In tests membership of Needle in an array-valued Haystack. Haystack is a
// *Param bound to an array or a *Constant holding one; generation expands
// it into indexed placeholders, short-circuiting when the array is empty.
type In struct {
	Needle   ValueExpr
	Haystack ValueExpr
	Negate   bool
}

func (*In) boolExpr() {}

// IsNull tests an expression against SQL NULL.
type IsNull struct {
	Expr   ValueExpr
	Negate bool
}

func (*IsNull) boolExpr() {}
