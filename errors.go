package inject

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

var (
	// ErrShutdown is returned by instance-producing calls on an
	// InjectionManager that has been shut down.
	ErrShutdown = errors.New("injection manager is shut down")

	// ErrRegistrationIncomplete is returned by lookups made before
	// CompleteRegistration.
	ErrRegistrationIncomplete = errors.New("injection manager registration is not complete")

	// ErrNotInRequestScope is returned when a RequestScoped binding is
	// looked up without a RequestContext in the context.Context.
	ErrNotInRequestScope = errors.New("not in a request scope")

	// ErrReleased is returned by a RequestContext that has already been
	// released.
	ErrReleased = errors.New("request context already released")
)

// IllegalStateError reports an operation made at the wrong point of
// a lifecycle.  Use errors.Is with ErrShutdown, ErrRegistrationIncomplete,
// or ErrNotInRequestScope to find out which.
type IllegalStateError struct {
	Op  string
	Err error
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IllegalStateError) Unwrap() error {
	return e.Err
}

// IllegalState wraps one of the lifecycle sentinels
func IllegalState(op string, err error) error {
	return errors.WithStack(&IllegalStateError{Op: op, Err: err})
}

// UnsupportedProviderError is returned by InjectionManager.RegisterProvider
// for objects whose type the manager does not know how to register.
type UnsupportedProviderError struct {
	Type reflect.Type
}

func (e *UnsupportedProviderError) Error() string {
	return "unsupported provider: " + typeName(e.Type)
}

// NilInstanceError is returned when a binding that requires a value
// was given nil.
type NilInstanceError struct {
	What string
}

func (e *NilInstanceError) Error() string {
	return "nil instance provided for " + e.What
}

// ConfigureError wraps a failure from a Binder's configure function.
type ConfigureError struct {
	Binder string
	Err    error
}

func (e *ConfigureError) Error() string {
	return fmt.Sprintf("configure %s: %v", e.Binder, e.Err)
}

func (e *ConfigureError) Unwrap() error {
	return e.Err
}

// UnsatisfiedDependencyError is returned when a required injection point
// has no matching binding.
type UnsatisfiedDependencyError struct {
	Injectee Injectee
}

func (e *UnsatisfiedDependencyError) Error() string {
	return "unsatisfied dependency: " + e.Injectee.String()
}

// ScopeError is returned when a binding uses a custom scope that has
// no ScopeResolver.
type ScopeError struct {
	Scope Scope
}

func (e *ScopeError) Error() string {
	return "no resolver for scope " + e.Scope.String()
}

type detailedError struct {
	err     error
	details string
}

func (de *detailedError) Error() string {
	return de.err.Error()
}

func (de *detailedError) Unwrap() error {
	return de.err
}

// WithDetails attaches diagnostic text to an error.  The text is
// not part of Error() but is returned by DetailedError.
func WithDetails(err error, details string) error {
	if err == nil {
		return nil
	}
	return &detailedError{
		err:     err,
		details: details,
	}
}

// DetailedError transforms errors into strings.  If the error carries
// diagnostic details (for example, the bindings that were considered
// when a lookup failed) then it returns a much more detailed error
// than just calling err.Error().  A nil error gives "".
func DetailedError(err error) string {
	if err == nil {
		return ""
	}
	var de *detailedError
	if errors.As(err, &de) {
		return err.Error() + "\n\n" + de.details
	}
	return err.Error()
}
