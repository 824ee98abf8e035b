package filter

import (
	"fmt"
	"runtime/debug"

	"github.com/pkg/errors"
)

// PanicError is what a filter or resource method that panicked returns
// instead.  Where is the filter name, or "resource" for the matched
// endpoint.  When a filter panicked it arrives wrapped in a
// MappableError naming the same filter.
type PanicError struct {
	Where  string
	Method string
	Path   string
	Value  interface{}
	Stack  string
}

func (err *PanicError) Error() string {
	return fmt.Sprintf("panic in %s during %s %s: %v", err.Where, err.Method, err.Path, err.Value)
}

// recoverPanic is deferred around calls into user code.  It turns a
// panic into a *PanicError stored in *ep.
func recoverPanic(pc *ProcessingContext, where string, ep *error) {
	r := recover()
	if r == nil {
		return
	}
	pe := &PanicError{
		Where: where,
		Value: r,
		Stack: string(debug.Stack()),
	}
	if req := pc.Request(); req != nil {
		pe.Method = req.Method
		if req.URL != nil {
			pe.Path = req.URL.Path
		}
	}
	*ep = errors.WithStack(pe)
	pc.log.Error("recovered panic", map[string]interface{}{
		"where":  pe.Where,
		"method": pe.Method,
		"path":   pe.Path,
		"panic":  fmt.Sprint(r),
		"stack":  pe.Stack,
	})
}

// RecoverInterface returns the value that recover() originally
// provided, or nil if the error did not come from a panic.
func RecoverInterface(err error) interface{} {
	var pe *PanicError
	if errors.As(err, &pe) {
		return pe.Value
	}
	return nil
}

// RecoverStack returns the stack captured when the panic was
// recovered, or "" if the error did not come from a panic.
func RecoverStack(err error) string {
	var pe *PanicError
	if errors.As(err, &pe) {
		return pe.Stack
	}
	return ""
}
