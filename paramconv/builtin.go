package paramconv

import (
	"encoding"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	inject "github.com/eclipse-ee4j/jersey-sub005"
	"github.com/pkg/errors"
)

// Enum is implemented by types with a fixed set of values.  Values is
// called on the zero value.  Input matches a value by its string form,
// exactly or else ignoring case.
type Enum interface {
	Values() []any
}

// Parser is implemented by types that read themselves from a string.
// Parse is called on the zero value, or on a pointer to a new one.
type Parser interface {
	Parse(value string) (any, error)
}

var (
	timeType            = inject.TypeOf[time.Time]()
	durationType        = inject.TypeOf[time.Duration]()
	enumType            = inject.TypeOf[Enum]()
	parserType          = inject.TypeOf[Parser]()
	textUnmarshalerType = inject.TypeOf[encoding.TextUnmarshaler]()
)

// Delimiter separates the elements of slice parameters
const Delimiter = ","

// TimeProvider converts time.Time from HTTP dates (with RFC 3339 as a
// fallback) and time.Duration with time.ParseDuration
var TimeProvider Provider = ProviderFunc(func(t reflect.Type) Converter {
	switch t {
	case timeType:
		return newReader(t, func(target reflect.Value, value string) error {
			when, err := http.ParseTime(value)
			if err != nil {
				var err2 error
				when, err2 = time.Parse(time.RFC3339Nano, value)
				if err2 != nil {
					return err
				}
			}
			target.Set(reflect.ValueOf(when))
			return nil
		})
	case durationType:
		return newReader(t, func(target reflect.Value, value string) error {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			target.SetInt(int64(d))
			return nil
		})
	}
	return nil
})

// EnumProvider converts types that implement Enum
var EnumProvider Provider = ProviderFunc(func(t reflect.Type) Converter {
	if !t.Implements(enumType) {
		return nil
	}
	return newReader(t, func(target reflect.Value, value string) error {
		values := reflect.Zero(t).Interface().(Enum).Values()
		var folded any
		for _, v := range values {
			s, err := toString(v)
			if err != nil {
				continue
			}
			if s == value {
				return assign(target, v)
			}
			if folded == nil && strings.EqualFold(s, value) {
				folded = v
			}
		}
		if folded != nil {
			return assign(target, folded)
		}
		return errors.Errorf("not one of %d values", len(values))
	})
})

// ParserProvider converts types that implement Parser
var ParserProvider Provider = ProviderFunc(func(t reflect.Type) Converter {
	switch {
	case t.Implements(parserType):
		return newReader(t, func(target reflect.Value, value string) error {
			return parseWith(target, reflect.Zero(t).Interface().(Parser), value)
		})
	case reflect.PtrTo(t).Implements(parserType):
		return newReader(t, func(target reflect.Value, value string) error {
			return parseWith(target, reflect.New(t).Interface().(Parser), value)
		})
	}
	return nil
})

func parseWith(target reflect.Value, p Parser, value string) error {
	v, err := p.Parse(value)
	if err != nil {
		return err
	}
	return assign(target, v)
}

// TextProvider converts types that implement encoding.TextUnmarshaler
var TextProvider Provider = ProviderFunc(func(t reflect.Type) Converter {
	switch {
	case t.Kind() == reflect.Ptr && t.Implements(textUnmarshalerType):
		return newReader(t, func(target reflect.Value, value string) error {
			target.Set(reflect.New(t.Elem()))
			return target.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(value))
		})
	case reflect.PtrTo(t).Implements(textUnmarshalerType):
		return newReader(t, func(target reflect.Value, value string) error {
			return target.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(value))
		})
	}
	return nil
})

// PrimitiveProvider converts numbers and booleans
var PrimitiveProvider Provider = ProviderFunc(func(t reflect.Type) Converter {
	// nolint:exhaustive
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return newReader(t, func(target reflect.Value, value string) error {
			i, err := strconv.ParseInt(value, 10, t.Bits())
			if err != nil {
				return err
			}
			target.SetInt(i)
			return nil
		})
	case reflect.Uint, reflect.Uintptr, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return newReader(t, func(target reflect.Value, value string) error {
			i, err := strconv.ParseUint(value, 10, t.Bits())
			if err != nil {
				return err
			}
			target.SetUint(i)
			return nil
		})
	case reflect.Float32, reflect.Float64:
		return newReader(t, func(target reflect.Value, value string) error {
			f, err := strconv.ParseFloat(value, t.Bits())
			if err != nil {
				return err
			}
			target.SetFloat(f)
			return nil
		})
	case reflect.Complex64, reflect.Complex128:
		return newReader(t, func(target reflect.Value, value string) error {
			c, err := strconv.ParseComplex(value, t.Bits())
			if err != nil {
				return err
			}
			target.SetComplex(c)
			return nil
		})
	case reflect.Bool:
		return newReader(t, func(target reflect.Value, value string) error {
			b, err := strconv.ParseBool(value)
			if err != nil {
				return err
			}
			target.SetBool(b)
			return nil
		})
	}
	return nil
})

// StringProvider converts string types
var StringProvider Provider = ProviderFunc(func(t reflect.Type) Converter {
	if t.Kind() != reflect.String {
		return nil
	}
	return newReader(t, func(target reflect.Value, value string) error {
		target.SetString(value)
		return nil
	})
})

func assign(target reflect.Value, v any) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || !rv.Type().AssignableTo(target.Type()) {
		return errors.WithStack(&ProcessingError{
			Type: target.Type(),
			Err:  errors.Errorf("converter produced %T", v),
		})
	}
	target.Set(rv)
	return nil
}

// Aggregated asks the built-in providers in a fixed order: time,
// Enum, Parser, TextUnmarshaler, primitives, strings.  Pointers and
// slices are converted through their element type; slice input is
// split on Delimiter.
var Aggregated Provider = NewAggregated(
	TimeProvider,
	EnumProvider,
	ParserProvider,
	TextProvider,
	PrimitiveProvider,
	StringProvider,
)

type aggregated []Provider

// NewAggregated asks providers in order.  The first converter offered wins.
func NewAggregated(providers ...Provider) Provider {
	return aggregated(providers)
}

func (a aggregated) Converter(t reflect.Type) Converter {
	for _, p := range a {
		if c := p.Converter(t); c != nil {
			return c
		}
	}
	// nolint:exhaustive
	switch t.Kind() {
	case reflect.Ptr:
		elem := a.Converter(t.Elem())
		if elem == nil {
			return nil
		}
		return newReader(t, func(target reflect.Value, value string) error {
			v, err := elem.FromString(value)
			if err != nil {
				return err
			}
			if v == nil {
				return errors.New("empty")
			}
			p := reflect.New(t.Elem())
			if err := assign(p.Elem(), v); err != nil {
				return err
			}
			target.Set(p)
			return nil
		})
	case reflect.Slice:
		elem := a.Converter(t.Elem())
		if elem == nil {
			return nil
		}
		return newReader(t, func(target reflect.Value, value string) error {
			if value == "" {
				return errors.New("empty")
			}
			values := strings.Split(value, Delimiter)
			s := reflect.MakeSlice(t, len(values), len(values))
			for i, value := range values {
				v, err := elem.FromString(value)
				if err != nil {
					return errors.Wrapf(err, "element %d", i)
				}
				if v == nil {
					continue
				}
				if err := assign(s.Index(i), v); err != nil {
					return err
				}
			}
			target.Set(s)
			return nil
		})
	}
	return nil
}
