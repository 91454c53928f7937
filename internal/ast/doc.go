// Package ast defines the generic expression-tree input format for the
// query compiler.
//
// The compiler does not parse source text. A front end (code generator,
// expression-builder API, or hand-written literals) produces trees of these
// nodes describing a query-construction function, and the parse package
// lowers them to query IR.
//
// The node set is deliberately small and host-agnostic: identifiers, member
// access (computed and non-computed), binary/logical/unary/conditional
// expressions, object and array literals, calls, and lambdas whose body is
// either a single expression or a block ending in a return.
//
// Node is a sealed interface - only types in this package implement it,
// which keeps type switches in the visitor layer exhaustive.
package ast
