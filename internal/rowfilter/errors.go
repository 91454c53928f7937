package rowfilter

import "fmt"

// Binding error codes (Q400-Q499).
const (
	ErrUnboundContext = "Q400" // filter reads context but none is bound
	ErrMissingKey     = "Q401" // bound context lacks a referenced key
	ErrReservedParam  = "Q402" // caller parameter inside the reserved namespace
	ErrBadFilter      = "Q403" // filter lambda failed to lower
)

// BindingError reports a row-filter policy that cannot be satisfied for
// the current statement.
type BindingError struct {
	Code    string // one of the Q4xx constants
	Table   string // filtered table, if known
	Message string
}

// Error implements the error interface.
func (e *BindingError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("[%s] table %q: %s", e.Code, e.Table, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func bindErrf(code, table, format string, args ...any) *BindingError {
	return &BindingError{Code: code, Table: table, Message: fmt.Sprintf(format, args...)}
}
