package ast

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSON codec for AST documents. Each node serializes as an object with a
// "kind" tag, letting external tooling (and the CLI) store query trees on
// disk and replay them through the compiler.

type jsonNode struct {
	Kind     string            `json:"kind"`
	Name     string            `json:"name,omitempty"`
	Property string            `json:"property,omitempty"`
	Op       string            `json:"op,omitempty"`
	Value    json.RawMessage   `json:"value,omitempty"`
	Object   json.RawMessage   `json:"object,omitempty"`
	Index    json.RawMessage   `json:"index,omitempty"`
	Left     json.RawMessage   `json:"left,omitempty"`
	Right    json.RawMessage   `json:"right,omitempty"`
	Operand  json.RawMessage   `json:"operand,omitempty"`
	Test     json.RawMessage   `json:"test,omitempty"`
	Then     json.RawMessage   `json:"then,omitempty"`
	Else     json.RawMessage   `json:"else,omitempty"`
	Callee   json.RawMessage   `json:"callee,omitempty"`
	Expr     json.RawMessage   `json:"expr,omitempty"`
	Args     []json.RawMessage `json:"args,omitempty"`
	Elems    []json.RawMessage `json:"elems,omitempty"`
	Fields   []jsonField       `json:"fields,omitempty"`
	Params   []string          `json:"params,omitempty"`
	Body     []json.RawMessage `json:"body,omitempty"`
	Block    bool              `json:"block,omitempty"`
}

type jsonField struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// MarshalNode encodes a node tree as tagged JSON.
func MarshalNode(n Node) ([]byte, error) {
	enc, err := encodeNode(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(enc)
}

// UnmarshalNode decodes a tagged JSON document into a node tree.
func UnmarshalNode(data []byte) (Node, error) {
	return decodeNode(data)
}

func encodeNode(n Node) (*jsonNode, error) {
	if n == nil {
		return nil, fmt.Errorf("cannot encode nil node")
	}
	switch node := n.(type) {
	case *Ident:
		return &jsonNode{Kind: "ident", Name: node.Name}, nil
	case *Member:
		obj, err := encodeRaw(node.Object)
		if err != nil {
			return nil, err
		}
		if node.Computed() {
			idx, err := encodeRaw(node.Index)
			if err != nil {
				return nil, err
			}
			return &jsonNode{Kind: "index", Object: obj, Index: idx}, nil
		}
		return &jsonNode{Kind: "member", Object: obj, Property: node.Property}, nil
	case *Literal:
		raw, err := json.Marshal(node.Value)
		if err != nil {
			return nil, fmt.Errorf("encode literal: %w", err)
		}
		return &jsonNode{Kind: "literal", Value: raw}, nil
	case *Binary:
		left, err := encodeRaw(node.Left)
		if err != nil {
			return nil, err
		}
		right, err := encodeRaw(node.Right)
		if err != nil {
			return nil, err
		}
		return &jsonNode{Kind: "binary", Op: node.Op, Left: left, Right: right}, nil
	case *Logical:
		left, err := encodeRaw(node.Left)
		if err != nil {
			return nil, err
		}
		right, err := encodeRaw(node.Right)
		if err != nil {
			return nil, err
		}
		return &jsonNode{Kind: "logical", Op: node.Op, Left: left, Right: right}, nil
	case *Unary:
		operand, err := encodeRaw(node.Operand)
		if err != nil {
			return nil, err
		}
		return &jsonNode{Kind: "unary", Op: node.Op, Operand: operand}, nil
	case *Conditional:
		test, err := encodeRaw(node.Test)
		if err != nil {
			return nil, err
		}
		then, err := encodeRaw(node.Then)
		if err != nil {
			return nil, err
		}
		els, err := encodeRaw(node.Else)
		if err != nil {
			return nil, err
		}
		return &jsonNode{Kind: "conditional", Test: test, Then: then, Else: els}, nil
	case *Object:
		fields := make([]jsonField, len(node.Fields))
		for i, f := range node.Fields {
			raw, err := encodeRaw(f.Value)
			if err != nil {
				return nil, err
			}
			fields[i] = jsonField{Name: f.Name, Value: raw}
		}
		return &jsonNode{Kind: "object", Fields: fields}, nil
	case *Array:
		elems, err := encodeRawList(node.Elems)
		if err != nil {
			return nil, err
		}
		return &jsonNode{Kind: "array", Elems: elems}, nil
	case *Call:
		callee, err := encodeRaw(node.Callee)
		if err != nil {
			return nil, err
		}
		args, err := encodeRawList(node.Args)
		if err != nil {
			return nil, err
		}
		return &jsonNode{Kind: "call", Callee: callee, Args: args}, nil
	case *Return:
		expr, err := encodeRaw(node.Expr)
		if err != nil {
			return nil, err
		}
		return &jsonNode{Kind: "return", Expr: expr}, nil
	case *Lambda:
		body, err := encodeRawList(node.Body)
		if err != nil {
			return nil, err
		}
		params := node.Params
		if params == nil {
			params = []string{}
		}
		return &jsonNode{Kind: "lambda", Params: params, Body: body, Block: node.Block}, nil
	default:
		return nil, fmt.Errorf("unsupported node type: %T", n)
	}
}

func encodeRaw(n Node) (json.RawMessage, error) {
	enc, err := encodeNode(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(enc)
}

func encodeRawList(nodes []Node) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(nodes))
	for i, n := range nodes {
		raw, err := encodeRaw(n)
		if err != nil {
			return nil, err
		}
		out[i] = raw
	}
	return out, nil
}

func decodeNode(data []byte) (Node, error) {
	var jn jsonNode
	if err := json.Unmarshal(data, &jn); err != nil {
		return nil, fmt.Errorf("decode node: %w", err)
	}
	switch jn.Kind {
	case "ident":
		return &Ident{Name: jn.Name}, nil
	case "member":
		obj, err := decodeNode(jn.Object)
		if err != nil {
			return nil, err
		}
		return &Member{Object: obj, Property: jn.Property}, nil
	case "index":
		obj, err := decodeNode(jn.Object)
		if err != nil {
			return nil, err
		}
		idx, err := decodeNode(jn.Index)
		if err != nil {
			return nil, err
		}
		return &Member{Object: obj, Index: idx}, nil
	case "literal":
		return decodeLiteral(jn.Value)
	case "binary":
		left, err := decodeNode(jn.Left)
		if err != nil {
			return nil, err
		}
		right, err := decodeNode(jn.Right)
		if err != nil {
			return nil, err
		}
		return &Binary{Op: jn.Op, Left: left, Right: right}, nil
	case "logical":
		left, err := decodeNode(jn.Left)
		if err != nil {
			return nil, err
		}
		right, err := decodeNode(jn.Right)
		if err != nil {
			return nil, err
		}
		return &Logical{Op: jn.Op, Left: left, Right: right}, nil
	case "unary":
		operand, err := decodeNode(jn.Operand)
		if err != nil {
			return nil, err
		}
		return &Unary{Op: jn.Op, Operand: operand}, nil
	case "conditional":
		test, err := decodeNode(jn.Test)
		if err != nil {
			return nil, err
		}
		then, err := decodeNode(jn.Then)
		if err != nil {
			return nil, err
		}
		els, err := decodeNode(jn.Else)
		if err != nil {
			return nil, err
		}
		return &Conditional{Test: test, Then: then, Else: els}, nil
	case "object":
		fields := make([]Field, len(jn.Fields))
		for i, f := range jn.Fields {
			val, err := decodeNode(f.Value)
			if err != nil {
				return nil, err
			}
			fields[i] = Field{Name: f.Name, Value: val}
		}
		return &Object{Fields: fields}, nil
	case "array":
		elems, err := decodeList(jn.Elems)
		if err != nil {
			return nil, err
		}
		return &Array{Elems: elems}, nil
	case "call":
		callee, err := decodeNode(jn.Callee)
		if err != nil {
			return nil, err
		}
		args, err := decodeList(jn.Args)
		if err != nil {
			return nil, err
		}
		return &Call{Callee: callee, Args: args}, nil
	case "return":
		expr, err := decodeNode(jn.Expr)
		if err != nil {
			return nil, err
		}
		return &Return{Expr: expr}, nil
	case "lambda":
		body, err := decodeList(jn.Body)
		if err != nil {
			return nil, err
		}
		return &Lambda{Params: jn.Params, Body: body, Block: jn.Block}, nil
	default:
		return nil, fmt.Errorf("unknown node kind: %q", jn.Kind)
	}
}

func decodeList(raws []json.RawMessage) ([]Node, error) {
	out := make([]Node, len(raws))
	for i, raw := range raws {
		n, err := decodeNode(raw)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// decodeLiteral normalizes JSON numbers: integral values become int64 so
// the compiler never sees a float where the source had an integer.
func decodeLiteral(raw json.RawMessage) (Node, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode literal: %w", err)
	}
	if num, ok := v.(json.Number); ok {
		if i, err := num.Int64(); err == nil {
			return &Literal{Value: i}, nil
		}
		f, err := num.Float64()
		if err != nil {
			return nil, fmt.Errorf("decode literal number %q: %w", num, err)
		}
		return &Literal{Value: f}, nil
	}
	return &Literal{Value: v}, nil
}
