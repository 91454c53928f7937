package parse

import (
	"fmt"

	"github.com/quillsql/quill/internal/ir"
)

// AutoParamInfo records one minted auto-parameter for diagnostics.
type AutoParamInfo struct {
	Name   string `json:"name"`
	Value  any    `json:"value"`
	Method string `json:"method"` // chain method that introduced the literal
}

// Context is the persistent front-end state threaded between fluent calls.
//
// The plan builder snapshots a Context after every call and restores a
// clone before the next, so a Context is never mutated once handed out.
// Lambda-parameter bindings are deliberately absent: they live on the
// visitor's scope stack and die with each visit.
type Context struct {
	// QueryParams / Helpers are the names of the second and third
	// top-level lambda parameters ("" when absent).
	QueryParams string
	Helpers     string

	// AutoCounter numbers minted auto-parameters, scoped per top-level
	// parse. AutoParams maps minted name to literal value.
	AutoCounter int
	AutoParams  map[string]any
	AutoInfos   []AutoParamInfo

	// TableCount is the number of physical tables in the chain so far;
	// joins extend it and use it to assign table indices.
	TableCount int

	// Shape is the current result shape, nil before the first join,
	// groupJoin, selectMany, or shaping select.
	Shape *ir.Shape

	// GroupKeys holds the active GROUP BY key expressions, with the field
	// names a grouping lambda may use to address them. Nil outside a
	// grouped chain.
	GroupKeys []GroupKey
}

// GroupKey is one active grouping key.
type GroupKey struct {
	Name string // "" for a single scalar key
	Expr ir.ValueExpr
}

// NewContext creates a fresh context for a new top-level parse.
func NewContext() *Context {
	return &Context{AutoParams: make(map[string]any)}
}

// Clone copies the context deeply enough that mutating the clone never
// affects the original. Maps are small (a handful of auto-params), so a
// plain copy beats structural sharing machinery.
func (c *Context) Clone() *Context {
	params := make(map[string]any, len(c.AutoParams))
	for k, v := range c.AutoParams {
		params[k] = v
	}
	infos := make([]AutoParamInfo, len(c.AutoInfos))
	copy(infos, c.AutoInfos)
	keys := make([]GroupKey, len(c.GroupKeys))
	for i, k := range c.GroupKeys {
		keys[i] = GroupKey{Name: k.Name, Expr: ir.CloneValue(k.Expr)}
	}
	if c.GroupKeys == nil {
		keys = nil
	}
	return &Context{
		QueryParams: c.QueryParams,
		Helpers:     c.Helpers,
		AutoCounter: c.AutoCounter,
		AutoParams:  params,
		AutoInfos:   infos,
		TableCount:  c.TableCount,
		Shape:       ir.CloneShape(c.Shape),
		GroupKeys:   keys,
	}
}

// mintParam auto-parameterizes a literal: sequential names __p1, __p2, ...
// scoped to the top-level parse.
func (c *Context) mintParam(value any, method string) *ir.Param {
	c.AutoCounter++
	name := fmt.Sprintf("__p%d", c.AutoCounter)
	c.AutoParams[name] = value
	c.AutoInfos = append(c.AutoInfos, AutoParamInfo{Name: name, Value: value, Method: method})
	return &ir.Param{Name: name}
}

// bindingKind discriminates what a lambda parameter name resolves to.
type bindingKind int

const (
	bindTable       bindingKind = iota // one physical table, by index
	bindShape                          // the current result shape
	bindGroup                          // a grouping lambda parameter
	bindExcluded                       // EXCLUDED row in doUpdateSet
	bindQueryParams                    // the caller's params record
	bindHelpers                        // the helpers namespace
)

// binding resolves one lambda-parameter name inside a visitor scope.
type binding struct {
	kind  bindingKind
	table int       // for bindTable
	shape *ir.Shape // for bindShape
}

// scope is one frame of lambda-parameter bindings. Frames nest: an inner
// lambda (join key selector, window order selector) pushes a frame and
// pops it when the visit returns.
type scope struct {
	names map[string]binding
}

func newScope() scope {
	return scope{names: make(map[string]binding)}
}
