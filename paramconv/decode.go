package paramconv

import (
	"context"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	inject "github.com/eclipse-ee4j/jersey-sub005"
	"github.com/eclipse-ee4j/jersey-sub005/filter"
	"github.com/muir/reflectutils"
	"github.com/pkg/errors"
)

// Source supplies raw request values by location ("path", "query",
// "header", or "cookie") and name.
type Source interface {
	Values(base, name string) []string
}

// SourceFunc adapts a function to Source
type SourceFunc func(base, name string) []string

func (f SourceFunc) Values(base, name string) []string { return f(base, name) }

// RequestSource reads path variables, query parameters, headers, and
// cookies from req.
func RequestSource(req *filter.Request) Source {
	return SourceFunc(func(base, name string) []string {
		switch base {
		case "path":
			if v, ok := req.Vars[name]; ok {
				return []string{v}
			}
		case "query":
			if req.URL != nil {
				return req.URL.Query()[name]
			}
		case "header":
			return req.Header.Values(name)
		case "cookie":
			r := req.HTTP
			if r == nil {
				r = &http.Request{Header: req.Header}
			}
			if c, err := r.Cookie(name); err == nil {
				return []string{c.Value}
			}
		}
		return nil
	})
}

type decoderOpts struct {
	tag string
}

// DecoderOpt are functional arguments for NewDecoder
type DecoderOpt func(*decoderOpts)

// WithTag overrides the struct tag that marks fields to fill.  The
// default is "param".
func WithTag(tag string) DecoderOpt {
	return func(o *decoderOpts) {
		o.tag = tag
	}
}

type tags struct {
	name       string
	explode    bool
	defaultVal *string
}

type filler struct {
	field reflect.StructField
	base  string
	tags  tags
	one   Converter
	each  Converter
}

// Decoder fills tagged struct fields from a Source.  The following
// tags are recognized:
//
//	`param:"path,name=id"`
//	`param:"query,name=q,default=10"`
//	`param:"header,name=X-Trace"`
//	`param:"cookie,name=session"`
//
// name defaults to the field name.  Slice fields take every value
// when exploded (the default for query and header) and otherwise
// split one value on Delimiter.
type Decoder struct {
	t       reflect.Type
	fillers []filler
}

// NewDecoder resolves a converter for every tagged field of the
// struct type t, once.
func NewDecoder(ctx context.Context, im inject.InjectionManager, t reflect.Type, opts ...DecoderOpt) (*Decoder, error) {
	options := decoderOpts{tag: "param"}
	for _, opt := range opts {
		opt(&options)
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, errors.Errorf("cannot decode into %s, not a struct", reflectutils.TypeName(t))
	}
	d := &Decoder{t: t}
	var returnError error
	reflectutils.WalkStructElements(t, func(field reflect.StructField) bool {
		tag, ok := field.Tag.Lookup(options.tag)
		if !ok {
			return true
		}
		base, tags, err := parseTag(tag)
		if err != nil {
			returnError = errors.Wrap(err, field.Name)
			return false
		}
		if tags.name == "" {
			tags.name = field.Name
		}
		f := filler{field: field, base: base, tags: tags}
		if tags.explode && field.Type.Kind() == reflect.Slice {
			f.each, err = Lookup(ctx, im, field.Type.Elem())
		} else {
			f.one, err = Lookup(ctx, im, field.Type)
		}
		if err != nil {
			returnError = errors.Wrapf(err, "field %s", field.Name)
			return false
		}
		d.fillers = append(d.fillers, f)
		return false
	})
	if returnError != nil {
		return nil, returnError
	}
	return d, nil
}

// Decode fills target, which must be a pointer to the decoder's type.
// Every field is attempted; the first error is returned.
func (d *Decoder) Decode(src Source, target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.Type().Elem() != d.t {
		return errors.Errorf("decode target must be *%s, not %T", reflectutils.TypeName(d.t), target)
	}
	model := v.Elem()
	var err error
	setError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}
	for _, f := range d.fillers {
		setError(errors.Wrapf(f.fill(model.FieldByIndex(f.field.Index), src.Values(f.base, f.tags.name)),
			"%s parameter %s into field %s", f.base, f.tags.name, f.field.Name))
	}
	return err
}

func (f filler) fill(target reflect.Value, values []string) error {
	if len(values) == 0 {
		if f.tags.defaultVal == nil {
			return nil
		}
		values = []string{*f.tags.defaultVal}
	}
	if f.each != nil {
		s := reflect.MakeSlice(target.Type(), 0, len(values))
		for _, value := range values {
			v, err := f.each.FromString(value)
			if err != nil {
				return err
			}
			e := reflect.New(target.Type().Elem()).Elem()
			if v != nil {
				if err := assign(e, v); err != nil {
					return err
				}
			}
			s = reflect.Append(s, e)
		}
		target.Set(s)
		return nil
	}
	v, err := f.one.FromString(values[0])
	if err != nil || v == nil {
		return err
	}
	return assign(target, v)
}

// Decode builds a Decoder for target's type and fills target
func Decode(ctx context.Context, im inject.InjectionManager, src Source, target any, opts ...DecoderOpt) error {
	d, err := NewDecoder(ctx, im, reflect.TypeOf(target), opts...)
	if err != nil {
		return err
	}
	return d.Decode(src, target)
}

func parseTag(s string) (string, tags, error) {
	a := strings.Split(s, ",")
	var tags tags
	switch a[0] {
	case "path":
	case "query", "header":
		tags.explode = true
	case "cookie":
	default:
		return "", tags, errors.Errorf("'%s' is not a valid source of the data use ('path', 'query', 'header', or 'cookie')", a[0])
	}
	for _, v := range a[1:] {
		kvs := strings.SplitN(v, "=", 2)
		k := kvs[0]
		var val string
		if len(kvs) == 2 {
			val = kvs[1]
		}
		var err error
		switch k {
		case "name":
			tags.name = val
		case "explode":
			tags.explode, err = strconv.ParseBool(val)
		case "default":
			tags.defaultVal = &val
		default:
			err = errors.Errorf("unknown option")
		}
		if err != nil {
			return "", tags, errors.Wrap(err, k)
		}
	}
	return a[0], tags, nil
}
