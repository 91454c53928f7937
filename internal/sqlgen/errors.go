package sqlgen

import "fmt"

// Semantic policy error codes (Q200-Q299). These catch logically dangerous
// or meaningless statements before they reach a database.
const (
	ErrMissingPredicate   = "Q200" // UPDATE/DELETE without WHERE or opt-in
	ErrConflictUnresolved = "Q201" // ON CONFLICT target with no action
	ErrAllValuesUndefined = "Q202" // INSERT with every column omitted
	ErrUnboundParam       = "Q203" // parameter absent from the value map
	ErrContainsShape      = "Q204" // contains without a scalar projection
	ErrContainsLimited    = "Q205" // contains combined with take/skip
	ErrBadHaystack        = "Q206" // IN haystack is not an array value
	ErrUnflattenedGroup   = "Q207" // groupJoin never flattened by selectMany
	ErrReverseAfterLimit  = "Q208" // reverse() after take/skip
	ErrBadChain           = "Q209" // operation sequence the generator cannot order
)

// PolicyError reports a statement the generator refuses to emit.
type PolicyError struct {
	Code    string // one of the Q2xx constants
	Op      string // operation kind (ir.OpName)
	Table   string // root table, if known
	Message string
}

// Error implements the error interface.
func (e *PolicyError) Error() string {
	ctx := e.Op
	if e.Table != "" {
		ctx = fmt.Sprintf("%s %q", e.Op, e.Table)
	}
	if ctx != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, ctx, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Dialect capability error codes (Q300-Q309). Raised when a construct has
// no rendering on the target dialect. Execution adapters reuse the type
// for back-end-specific gaps (e.g. drivers without RETURNING support).
const (
	ErrUnrenderable = "Q300" // expression kind illegal in this position
	ErrUnsupported  = "Q301" // construct unsupported by the dialect
)

// CapabilityError reports a construct the target dialect cannot express.
type CapabilityError struct {
	Code    string // one of the Q3xx constants
	Dialect string
	Message string
}

// Error implements the error interface.
func (e *CapabilityError) Error() string {
	if e.Dialect != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Dialect, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func policyErrf(code, op, table, format string, args ...any) *PolicyError {
	return &PolicyError{Code: code, Op: op, Table: table, Message: fmt.Sprintf(format, args...)}
}

func capErrf(code, dialect, format string, args ...any) *CapabilityError {
	return &CapabilityError{Code: code, Dialect: dialect, Message: fmt.Sprintf(format, args...)}
}
