package ast

// Constructor helpers for front ends that build trees programmatically.
// They return the concrete node types so callers can still reach into the
// structs when needed.

// NewIdent creates an identifier reference.
func NewIdent(name string) *Ident {
	return &Ident{Name: name}
}

// NewLiteral creates an inline constant node.
func NewLiteral(value any) *Literal {
	return &Literal{Value: value}
}

// NewMember creates a non-computed property access.
func NewMember(object Node, property string) *Member {
	return &Member{Object: object, Property: property}
}

// NewIndex creates a computed member access (object[index]).
func NewIndex(object Node, index Node) *Member {
	return &Member{Object: object, Index: index}
}

// Dot chains non-computed property accesses left to right:
// Dot(NewIdent("u"), "address", "city") is u.address.city.
func Dot(object Node, properties ...string) Node {
	for _, p := range properties {
		object = &Member{Object: object, Property: p}
	}
	return object
}

// NewBinary creates an arithmetic or comparison expression.
func NewBinary(op string, left, right Node) *Binary {
	return &Binary{Op: op, Left: left, Right: right}
}

// NewLogical creates a boolean connective.
func NewLogical(op string, left, right Node) *Logical {
	return &Logical{Op: op, Left: left, Right: right}
}

// NewUnary creates a prefix expression.
func NewUnary(op string, operand Node) *Unary {
	return &Unary{Op: op, Operand: operand}
}

// NewConditional creates a ternary expression.
func NewConditional(test, then, els Node) *Conditional {
	return &Conditional{Test: test, Then: then, Else: els}
}

// NewObject creates an object literal from ordered fields.
func NewObject(fields ...Field) *Object {
	return &Object{Fields: fields}
}

// NewArray creates an array literal.
func NewArray(elems ...Node) *Array {
	return &Array{Elems: elems}
}

// NewCall creates a plain function call.
func NewCall(callee Node, args ...Node) *Call {
	return &Call{Callee: callee, Args: args}
}

// MethodCall creates a method invocation recv.name(args...).
func MethodCall(recv Node, name string, args ...Node) *Call {
	return &Call{Callee: &Member{Object: recv, Property: name}, Args: args}
}

// NewLambda creates an expression-bodied lambda.
func NewLambda(params []string, body Node) *Lambda {
	return &Lambda{Params: params, Body: []Node{body}}
}

// NewBlockLambda creates a block-bodied lambda from ordered statements.
func NewBlockLambda(params []string, stmts ...Node) *Lambda {
	return &Lambda{Params: params, Body: stmts, Block: true}
}
