package paramconv

import (
	"context"
	"encoding"
	"fmt"
	"net/http"
	"reflect"
	"time"

	inject "github.com/eclipse-ee4j/jersey-sub005"
	"github.com/muir/reflectutils"
	"github.com/pkg/errors"
)

// Converter turns a string taken from a request into a value of one
// type and back.
//
// FromString returns nil (and no error) when value is empty and cannot
// be converted.  Any other failure is an *ExtractorError or a
// *ProcessingError.
type Converter interface {
	FromString(value string) (any, error)
	ToString(value any) (string, error)
}

// Provider offers a Converter for a type or returns nil
type Provider interface {
	Converter(t reflect.Type) Converter
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(t reflect.Type) Converter

func (f ProviderFunc) Converter(t reflect.Type) Converter { return f(t) }

var providerType = inject.TypeOf[Provider]()

func init() {
	inject.RegisterProviderContract(providerType)
}

// ExtractorError means that the input string could not be converted.
// It maps to 400 Bad Request.
type ExtractorError struct {
	Type  reflect.Type
	Value string
	Err   error
}

func (err *ExtractorError) Error() string {
	return fmt.Sprintf("cannot convert %q to %s: %s", err.Value, reflectutils.TypeName(err.Type), err.Err)
}

func (err *ExtractorError) Cause() error    { return err.Err }
func (err *ExtractorError) Unwrap() error   { return err.Err }
func (err *ExtractorError) StatusCode() int { return http.StatusBadRequest }

// ProcessingError means that conversion itself broke, for example a
// converter that panicked or produced the wrong type.  It maps to 500.
type ProcessingError struct {
	Type reflect.Type
	Err  error
}

func (err *ProcessingError) Error() string {
	return fmt.Sprintf("converting to %s: %s", reflectutils.TypeName(err.Type), err.Err)
}

func (err *ProcessingError) Cause() error    { return err.Err }
func (err *ProcessingError) Unwrap() error   { return err.Err }
func (err *ProcessingError) StatusCode() int { return http.StatusInternalServerError }

// ErrNoConverter is returned by Lookup when nothing can convert a type
var ErrNoConverter = errors.New("no parameter converter")

// reader is the common shape of the built-in converters: parse fills
// a new value of the target type.
type reader struct {
	t     reflect.Type
	parse func(target reflect.Value, value string) error
}

func newReader(t reflect.Type, parse func(target reflect.Value, value string) error) Converter {
	return reader{t: t, parse: parse}
}

func (r reader) FromString(value string) (v any, err error) {
	defer func() {
		if p := recover(); p != nil {
			v = nil
			err = errors.WithStack(&ProcessingError{Type: r.t, Err: errors.Errorf("panic: %v", p)})
		}
	}()
	target := reflect.New(r.t).Elem()
	err = r.parse(target, value)
	if err == nil {
		return target.Interface(), nil
	}
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return nil, err
	}
	if value == "" {
		return nil, nil
	}
	var ee *ExtractorError
	if errors.As(err, &ee) {
		return nil, err
	}
	return nil, errors.WithStack(&ExtractorError{Type: r.t, Value: value, Err: err})
}

func (r reader) ToString(value any) (string, error) {
	return toString(value)
}

func toString(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", errors.New("value must not be nil")
	case time.Time:
		return v.UTC().Format(http.TimeFormat), nil
	case encoding.TextMarshaler:
		b, err := v.MarshalText()
		return string(b), err
	case fmt.Stringer:
		return v.String(), nil
	}
	return fmt.Sprint(value), nil
}

// Lookup finds a converter for t.  Providers registered with im are
// asked first, best rank first; the first to answer wins.  Aggregated
// is asked last.
func Lookup(ctx context.Context, im inject.InjectionManager, t reflect.Type) (Converter, error) {
	if im != nil {
		providers, err := inject.GetAll[Provider](ctx, im)
		if err != nil {
			return nil, errors.Wrap(err, "lookup parameter converter providers")
		}
		for _, p := range providers {
			if c := p.Converter(t); c != nil {
				return c, nil
			}
		}
	}
	if c := Aggregated.Converter(t); c != nil {
		return c, nil
	}
	return nil, errors.Wrapf(ErrNoConverter, "for %s", reflectutils.TypeName(t))
}

// Convert is Lookup plus FromString for a known type.  The zero value
// and ok=false are returned when the input degraded to nil.
func Convert[T any](ctx context.Context, im inject.InjectionManager, value string) (result T, ok bool, err error) {
	t := inject.TypeOf[T]()
	c, err := Lookup(ctx, im, t)
	if err != nil {
		return result, false, err
	}
	v, err := c.FromString(value)
	if err != nil || v == nil {
		return result, false, err
	}
	result, ok = v.(T)
	if !ok {
		return result, false, errors.WithStack(&ProcessingError{
			Type: t,
			Err:  errors.Errorf("converter produced %T", v),
		})
	}
	return result, true, nil
}
