// Package ir defines the intermediate representation produced by the parse
// layer and consumed by the SQL generators.
//
// Two node families exist:
//
//   - Expression IR: ValueExpr and BoolExpr, tagged-union trees for scalar
//     and boolean computation (columns, parameters, arithmetic, aggregates,
//     CASE, IN, ...).
//   - Operation IR: Op, a chain of query operations linked to their
//     predecessor through a source edge (from -> where -> select -> ...),
//     plus CRUD roots (Insert, Update, Delete) that have no source.
//
// All three families are sealed interfaces with marker methods, so backend
// type switches are exhaustive and there is no "unknown node" fallback.
//
// Trees are treated as immutable once built: the plan builder hands out
// clones (see clone.go) so no two observable plan values share a mutable
// subtree.
package ir
