package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whereChain(table string, threshold int64) *Lambda {
	chain := MethodCall(NewIdent("q"), "from", NewLiteral(table))
	pred := NewLambda([]string{"u"},
		NewBinary(">", NewMember(NewIdent("u"), "age"), NewLiteral(threshold)))
	return NewLambda([]string{"q"}, MethodCall(chain, "where", pred))
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint(whereChain("users", 21))
	b := Fingerprint(whereChain("users", 21))
	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // hex sha256
}

func TestFingerprintSeparatesStructure(t *testing.T) {
	base := Fingerprint(whereChain("users", 21))

	assert.NotEqual(t, base, Fingerprint(whereChain("orders", 21)), "table name must contribute")
	assert.NotEqual(t, base, Fingerprint(whereChain("users", 22)), "literal value must contribute")

	// Same shape, different comparison op.
	chain := MethodCall(NewIdent("q"), "from", NewLiteral("users"))
	pred := NewLambda([]string{"u"},
		NewBinary(">=", NewMember(NewIdent("u"), "age"), NewLiteral(int64(21))))
	ge := NewLambda([]string{"q"}, MethodCall(chain, "where", pred))
	assert.NotEqual(t, base, Fingerprint(ge))
}

func TestFingerprintIntWidthsAgree(t *testing.T) {
	// int and int64 literals of the same value are the same source text.
	a := NewLambda([]string{"q"}, NewLiteral(5))
	b := NewLambda([]string{"q"}, NewLiteral(int64(5)))
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprintNormalizesStrings(t *testing.T) {
	// U+00E9 vs e + U+0301 combining acute: same rendered text.
	composed := NewLambda([]string{"q"}, NewLiteral("café"))
	decomposed := NewLambda([]string{"q"}, NewLiteral("café"))
	assert.Equal(t, Fingerprint(composed), Fingerprint(decomposed))
}

func TestFingerprintBlockDistinctFromExpression(t *testing.T) {
	expr := NewLambda([]string{"u"}, NewLiteral(true))
	block := NewBlockLambda([]string{"u"}, &Return{Expr: NewLiteral(true)})
	require.NotEqual(t, Fingerprint(expr), Fingerprint(block))
}

func TestFingerprintParamNamesContribute(t *testing.T) {
	// Renaming the row variable changes the source, so it changes the key.
	// The parse cache can afford false misses, never false hits.
	a := NewLambda([]string{"u"}, NewMember(NewIdent("u"), "age"))
	b := NewLambda([]string{"x"}, NewMember(NewIdent("x"), "age"))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}
