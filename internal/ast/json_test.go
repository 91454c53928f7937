package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONRoundTrip(t *testing.T) {
	pred := NewLambda([]string{"u"},
		NewLogical("&&",
			NewBinary(">=", Dot(NewIdent("u"), "age"), Dot(NewIdent("p"), "min")),
			NewUnary("!", NewMember(NewIdent("u"), "deleted"))))
	sel := NewLambda([]string{"u"},
		NewObject(
			Field{Name: "name", Value: Dot(NewIdent("u"), "name")},
			Field{Name: "tags", Value: NewArray(NewLiteral("a"), NewLiteral("b"))},
			Field{Name: "score", Value: NewConditional(
				NewBinary(">", Dot(NewIdent("u"), "score"), NewLiteral(int64(0))),
				Dot(NewIdent("u"), "score"),
				NewLiteral(int64(0)))},
		))
	chain := MethodCall(NewIdent("q"), "from", NewLiteral("users"))
	chain = MethodCall(chain, "where", pred)
	chain = MethodCall(chain, "select", sel)
	fn := NewLambda([]string{"q", "p"}, chain)

	data, err := MarshalNode(fn)
	require.NoError(t, err)

	decoded, err := UnmarshalNode(data)
	require.NoError(t, err)
	assert.Equal(t, fn, decoded)

	// Round trip preserves identity, so the cache key survives the wire.
	assert.Equal(t, Fingerprint(fn), Fingerprint(decoded))
}

func TestJSONRoundTripBlockLambda(t *testing.T) {
	fn := NewBlockLambda([]string{"u"},
		&Return{Expr: NewBinary("==", Dot(NewIdent("u"), "id"), NewLiteral(int64(1)))})

	data, err := MarshalNode(fn)
	require.NoError(t, err)
	decoded, err := UnmarshalNode(data)
	require.NoError(t, err)

	lam, ok := decoded.(*Lambda)
	require.True(t, ok)
	assert.True(t, lam.Block)
	assert.Equal(t, fn, decoded)
}

func TestJSONRoundTripComputedMember(t *testing.T) {
	fn := NewLambda([]string{"p"}, NewIndex(NewMember(NewIdent("p"), "ids"), NewLiteral(int64(0))))

	data, err := MarshalNode(fn)
	require.NoError(t, err)
	decoded, err := UnmarshalNode(data)
	require.NoError(t, err)
	assert.Equal(t, fn, decoded)
}

func TestJSONLiteralNumbers(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"int_stays_integral", int64(42), int64(42)},
		{"float_stays_float", 2.5, 2.5},
		{"string", "hello", "hello"},
		{"bool", true, true},
		{"null", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalNode(NewLiteral(tt.in))
			require.NoError(t, err)
			decoded, err := UnmarshalNode(data)
			require.NoError(t, err)
			lit, ok := decoded.(*Literal)
			require.True(t, ok)
			assert.Equal(t, tt.want, lit.Value)
		})
	}
}

func TestJSONUnknownKind(t *testing.T) {
	_, err := UnmarshalNode([]byte(`{"kind": "goto"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown node kind")
}

func TestJSONMarshalNilNode(t *testing.T) {
	_, err := MarshalNode(nil)
	require.Error(t, err)
}
