package ast

// Node represents a single node of the generic input tree.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in the visitor layer.
type Node interface {
	astNode() // Marker method - seals interface to this package
}

// Ident is a bare identifier reference, usually a lambda parameter.
type Ident struct {
	Name string
}

func (*Ident) astNode() {}

// Member is a property access on an object expression.
//
// Non-computed access (x.name) sets Property and leaves Index nil.
// Computed access (x[0], x[k]) sets Index and leaves Property empty.
type Member struct {
	Object   Node
	Property string
	Index    Node
}

func (*Member) astNode() {}

// Computed reports whether the access is computed (x[expr]) rather than a
// plain property read (x.name).
func (m *Member) Computed() bool { return m.Index != nil }

// Literal is an inline constant: string, int64, float64, bool, or nil.
//
// Numeric literals must be int64 or float64; the front end is responsible
// for widening smaller integer types before handing trees to the compiler.
type Literal struct {
	Value any
}

func (*Literal) astNode() {}

// Binary is an arithmetic or comparison expression.
//
// Ops: "+", "-", "*", "/", "%", "==", "!=", ">", ">=", "<", "<=".
type Binary struct {
	Op    string
	Left  Node
	Right Node
}

func (*Binary) astNode() {}

// Logical is a boolean connective: "&&" or "||".
type Logical struct {
	Op    string
	Left  Node
	Right Node
}

func (*Logical) astNode() {}

// Unary is a prefix expression: "!" or "-".
type Unary struct {
	Op      string
	Operand Node
}

func (*Unary) astNode() {}

// Conditional is a ternary expression (test ? then : else).
type Conditional struct {
	Test Node
	Then Node
	Else Node
}

func (*Conditional) astNode() {}

// SpreadField is the reserved field name representing an object spread
// (...expr). The field's value must reference a whole table.
const SpreadField = "..."

// Object is an object literal with ordered fields.
//
// Field order is significant: it determines projection column order.
// A field named SpreadField spreads a whole-table reference.
type Object struct {
	Fields []Field
}

func (*Object) astNode() {}

// Field is one key/value pair of an object literal.
type Field struct {
	Name  string
	Value Node
}

// Array is an array literal.
type Array struct {
	Elems []Node
}

func (*Array) astNode() {}

// Call is a function or method invocation. Method calls have a Member
// callee; the visitor layer dispatches on the member's Property.
type Call struct {
	Callee Node
	Args   []Node
}

func (*Call) astNode() {}

// Return is a return statement inside a block-bodied lambda.
type Return struct {
	Expr Node
}

func (*Return) astNode() {}

// Lambda is an anonymous function.
//
// An expression body has len(Body) == 1 and Block == false. A block body
// sets Block and lists statements in order; the compiler requires the last
// statement to be a *Return.
type Lambda struct {
	Params []string
	Body   []Node
	Block  bool
}

func (*Lambda) astNode() {}

// ReturnExpr extracts the effective result expression of the lambda body.
// Returns false when the body is a block with no trailing return, or empty.
func (l *Lambda) ReturnExpr() (Node, bool) {
	if len(l.Body) == 0 {
		return nil, false
	}
	if !l.Block {
		return l.Body[0], true
	}
	last := l.Body[len(l.Body)-1]
	ret, ok := last.(*Return)
	if !ok || ret.Expr == nil {
		return nil, false
	}
	return ret.Expr, true
}
