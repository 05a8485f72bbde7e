package exec

import "errors"

// Internal sentinel errors for the calculator stack; the executor
// wraps these in a *diag.Error (with file/section/offset context) at
// the point of use, matching spec.md §7's "each stage returns a typed
// error enum" policy — callers never string-match these.
var (
	errStackOverflow  = errors.New("stack overflow")
	errStackUnderflow = errors.New("stack empty")
)
