package parse

import "fmt"

// Structure error codes (Q100-Q199).
const (
	// General shape errors (Q100-Q109)
	ErrUnsupportedNode   = "Q100" // AST node kind not handled in this position
	ErrUnknownMethod     = "Q101" // unrecognized chain or helper method
	ErrBadArity          = "Q102" // wrong argument count for a method
	ErrMissingReturn     = "Q103" // block-bodied lambda without trailing return
	ErrNotALambda        = "Q104" // argument expected to be a lambda
	ErrNotAChain         = "Q105" // root is not a builder-rooted call chain
	ErrBadLiteral        = "Q106" // literal of an unsupported Go type
	ErrRepeatedCall      = "Q107" // method legal at most once was repeated
	ErrUnknownIdentifier = "Q108" // identifier not bound in any scope

	// Resolution errors (Q110-Q119)
	ErrUnresolvedField    = "Q110" // property chain not present in result shape
	ErrBadParamIndex      = "Q111" // computed access with non-integer index
	ErrGroupKeyOutside    = "Q112" // .key used outside a grouping lambda
	ErrChainAfterTerminal = "Q113" // chain method after a terminal operation
)

// StructureError reports an unsupported or malformed AST shape.
//
// Parsing fails fast: the first structural problem aborts the whole parse,
// because a clause silently dropped would change query semantics.
type StructureError struct {
	Code    string // one of the Q1xx constants
	Method  string // chain/helper method being visited, if any
	Message string
}

// Error implements the error interface.
func (e *StructureError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Method, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func structErrf(code, method, format string, args ...any) *StructureError {
	return &StructureError{Code: code, Method: method, Message: fmt.Sprintf(format, args...)}
}
