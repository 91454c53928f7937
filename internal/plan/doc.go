// Package plan is the immutable, snapshot-based fluent layer over the
// parse visitors.
//
// Every fluent call restores a clone of the saved front-end context,
// synthesizes the AST fragment for that single call, re-invokes the
// matching visitor, normalizes the resulting IR, and returns a brand-new
// plan value. Prior plans are never mutated and never share a mutable IR
// subtree with their successors, so plans fork freely:
//
//	base := schema.From("users").Where(activePred)
//	a := base.OrderBy(nameSel)   // base is still usable
//	b := base.Take(10)
//
// Finalize merges caller parameters over auto-parameters (caller wins),
// runs the row-filter policy for select/update/delete, and hands the
// normalized IR plus the parameter map to a SQL generator.
package plan
