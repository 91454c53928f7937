package ir

// Shape describes the structural result of a join, groupJoin, selectMany,
// or object projection: which field names exist and which physical table
// and column each resolves to.
//
// Later visitors consult the current shape to turn property chains like
// r.order.total into a Column pinned to a concrete table index.
//
// Fields are ordered because projection order follows declaration order.
// Spreads lists table indices whose columns were spread into the result
// without being enumerated; lookups that miss every named field fall back
// to the most recent spread table.
type Shape struct {
	Fields  []ShapeField
	Spreads []int

	// Projected is set when the shape comes from an object projection
	// that emits its own select list. Later clauses run against the
	// projected output, so field lookups must resolve to the output
	// aliases, not the physical columns behind them.
	Projected bool
}

// ComputedColumn is the table index of a shape column that maps to a
// computed projection output rather than a physical column; such fields
// are addressed by their output alias in generated SQL.
const ComputedColumn = -1

// ShapeField is one named field of a shape.
type ShapeField struct {
	Name string
	Node ShapeNode
}

// ShapeNode classifies what a shape field resolves to.
//
// This is a sealed interface - only types in this package implement it.
type ShapeNode interface {
	shapeNode() // Marker method - seals interface to this package
}

// ShapeColumn maps a field to one physical column of a chain table.
type ShapeColumn struct {
	Table  int
	Column string
}

func (*ShapeColumn) shapeNode() {}

// ShapeObject maps a field to a nested object of further fields.
type ShapeObject struct {
	Fields []ShapeField
}

func (*ShapeObject) shapeNode() {}

// ShapeTable maps a field to an entire table (whole-row reference).
type ShapeTable struct {
	Table int
}

func (*ShapeTable) shapeNode() {}

// ShapeArray maps a field to a collection of rows from a table, as
// produced by groupJoin before a flattening selectMany.
type ShapeArray struct {
	Table int
	Elem  ShapeNode
}

func (*ShapeArray) shapeNode() {}

// Field returns the node for a top-level field name.
func (s *Shape) Field(name string) (ShapeNode, bool) {
	if s == nil {
		return nil, false
	}
	return lookupShapeField(s.Fields, name)
}

// Resolve walks a property path through the shape, descending nested
// objects. An empty path is not resolvable.
func (s *Shape) Resolve(path []string) (ShapeNode, bool) {
	if s == nil || len(path) == 0 {
		return nil, false
	}
	node, ok := lookupShapeField(s.Fields, path[0])
	if !ok {
		return nil, false
	}
	for _, p := range path[1:] {
		obj, isObj := node.(*ShapeObject)
		if !isObj {
			return nil, false
		}
		node, ok = lookupShapeField(obj.Fields, p)
		if !ok {
			return nil, false
		}
	}
	return node, true
}

func lookupShapeField(fields []ShapeField, name string) (ShapeNode, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f.Node, true
		}
	}
	return nil, false
}
