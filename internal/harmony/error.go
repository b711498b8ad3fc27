package harmony

import (
	"fmt"
	"runtime"
)

// ConciseError wraps a failure from anywhere in Adapter.Process with the
// file, line, and function of the call site that reported it, so a
// caller surfaces a pinpointable location rather than a bare message -
// grounded on original_source's ConciseException, which walks a Python
// traceback for the same purpose. Go has no exception traceback to walk,
// so this captures the one frame that matters: where Process wrapped the
// failure, not every frame beneath it.
type ConciseError struct {
	File    string
	Line    int
	Func    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConciseError) Error() string {
	return fmt.Sprintf("error in file '%s', line %d, in function '%s': %s", e.File, e.Line, e.Func, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *ConciseError) Unwrap() error {
	return e.Err
}

// wrapError builds a *ConciseError pinned to its caller's call site.
// Returns nil if err is nil, so callers can write `return wrapError(err)`
// unconditionally.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	pc, file, line, ok := runtime.Caller(1)
	funcName := "unknown"
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			funcName = fn.Name()
		}
	} else {
		file, line = "unknown", 0
	}

	return &ConciseError{File: file, Line: line, Func: funcName, Message: err.Error(), Err: err}
}
