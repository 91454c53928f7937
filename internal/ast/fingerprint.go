package ast

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Domain prefix for fingerprint hashing. The version suffix enables future
// algorithm migration without colliding with old cache entries.
const fingerprintDomain = "quill/ast/v1"

// Fingerprint computes a content-addressed identity for a lambda tree.
//
// Two structurally identical trees always produce the same fingerprint, so
// it serves as the parse-cache key: it is the Go-native stand-in for
// "function source text". String literals are NFC normalized before hashing
// so visually identical sources cannot diverge.
func Fingerprint(n Node) string {
	var sb strings.Builder
	writeCanonical(&sb, n)
	h := sha256.New()
	h.Write([]byte(fingerprintDomain))
	h.Write([]byte{0x00}) // null separator prevents domain/data boundary ambiguity
	h.Write([]byte(sb.String()))
	return hex.EncodeToString(h.Sum(nil))
}

// writeCanonical serializes a node into an unambiguous prefix form.
// Every production is parenthesized and tagged, so no two distinct trees
// share a serialization.
func writeCanonical(sb *strings.Builder, n Node) {
	switch node := n.(type) {
	case nil:
		sb.WriteString("(nil)")
	case *Ident:
		fmt.Fprintf(sb, "(id %s)", node.Name)
	case *Member:
		if node.Computed() {
			sb.WriteString("(idx ")
			writeCanonical(sb, node.Object)
			sb.WriteByte(' ')
			writeCanonical(sb, node.Index)
			sb.WriteByte(')')
			return
		}
		fmt.Fprintf(sb, "(dot %s ", node.Property)
		writeCanonical(sb, node.Object)
		sb.WriteByte(')')
	case *Literal:
		writeCanonicalLiteral(sb, node.Value)
	case *Binary:
		fmt.Fprintf(sb, "(bin %s ", node.Op)
		writeCanonical(sb, node.Left)
		sb.WriteByte(' ')
		writeCanonical(sb, node.Right)
		sb.WriteByte(')')
	case *Logical:
		fmt.Fprintf(sb, "(log %s ", node.Op)
		writeCanonical(sb, node.Left)
		sb.WriteByte(' ')
		writeCanonical(sb, node.Right)
		sb.WriteByte(')')
	case *Unary:
		fmt.Fprintf(sb, "(un %s ", node.Op)
		writeCanonical(sb, node.Operand)
		sb.WriteByte(')')
	case *Conditional:
		sb.WriteString("(cond ")
		writeCanonical(sb, node.Test)
		sb.WriteByte(' ')
		writeCanonical(sb, node.Then)
		sb.WriteByte(' ')
		writeCanonical(sb, node.Else)
		sb.WriteByte(')')
	case *Object:
		sb.WriteString("(obj")
		for _, f := range node.Fields {
			fmt.Fprintf(sb, " (%s ", norm.NFC.String(f.Name))
			writeCanonical(sb, f.Value)
			sb.WriteByte(')')
		}
		sb.WriteByte(')')
	case *Array:
		sb.WriteString("(arr")
		for _, e := range node.Elems {
			sb.WriteByte(' ')
			writeCanonical(sb, e)
		}
		sb.WriteByte(')')
	case *Call:
		sb.WriteString("(call ")
		writeCanonical(sb, node.Callee)
		for _, a := range node.Args {
			sb.WriteByte(' ')
			writeCanonical(sb, a)
		}
		sb.WriteByte(')')
	case *Return:
		sb.WriteString("(ret ")
		writeCanonical(sb, node.Expr)
		sb.WriteByte(')')
	case *Lambda:
		sb.WriteString("(fn (")
		sb.WriteString(strings.Join(node.Params, " "))
		sb.WriteByte(')')
		if node.Block {
			sb.WriteString(" block")
		}
		for _, s := range node.Body {
			sb.WriteByte(' ')
			writeCanonical(sb, s)
		}
		sb.WriteByte(')')
	default:
		// Unreachable: Node is sealed to this package.
		fmt.Fprintf(sb, "(unknown %T)", n)
	}
}

// writeCanonicalLiteral serializes a literal value deterministically.
// Floats use the shortest round-trip form; strings are NFC normalized and
// quoted so they cannot collide with tag syntax.
func writeCanonicalLiteral(sb *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
		sb.WriteString("(null)")
	case string:
		fmt.Fprintf(sb, "(str %s)", strconv.Quote(norm.NFC.String(val)))
	case bool:
		fmt.Fprintf(sb, "(bool %t)", val)
	case int64:
		fmt.Fprintf(sb, "(int %d)", val)
	case int:
		fmt.Fprintf(sb, "(int %d)", val)
	case float64:
		fmt.Fprintf(sb, "(num %s)", strconv.FormatFloat(val, 'g', -1, 64))
	default:
		fmt.Fprintf(sb, "(lit %T %v)", v, v)
	}
}
