package inject

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/muir/reflectutils"
	"github.com/pkg/errors"
)

// InjectTag is the struct tag that marks injection points.  The tag
// value is a comma separated list of options:
//
//	optional          leave the field alone when nothing matches
//	named=NAME        require the Named(NAME) qualifier
//	qualifier=K:V     require Qualifier{Kind: K, Value: V}
//	custom            require the Custom qualifier
//	all               the field is a slice; fill it with every match
//	factory           inject the Supplier that produces the field type
//
// For example:
//
//	type Handler struct {
//		Log     inject.BasicLogger      `inject:""`
//		Readers []Reader                `inject:"all"`
//		Cache   Cache                   `inject:"named=fast,optional"`
//		Clock   inject.Lazy[Clock]      `inject:""`
//	}
const InjectTag = "inject"

// Injectee describes one injection point: a struct field or a
// function parameter.
type Injectee struct {
	RequiredType       reflect.Type
	RequiredQualifiers []Qualifier
	// Position is the parameter index or -1 for a field
	Position      int
	DeclaringType reflect.Type
	// Field is set for fields
	Field *reflect.StructField
	// Optional injection points are left alone when nothing matches
	Optional bool
	// Factory injection points want the Supplier rather than its product
	Factory bool
	// Provider injection points are Lazy[T]; RequiredType is T
	Provider bool
	// All injection points are slices filled with every match; RequiredType
	// is the element type
	All bool
	// Tag is the struct tag key that declared the field: InjectTag or
	// the tag of an InjectionResolver
	Tag               string
	TagValue          string
	ForeignDescriptor *ForeignDescriptor
	ParentScope       Scope
}

func (i Injectee) String() string {
	var where string
	if i.Position < 0 && i.Field != nil {
		where = fmt.Sprintf("field %s.%s", typeName(i.DeclaringType), i.Field.Name)
	} else {
		where = fmt.Sprintf("parameter %d of %s", i.Position, typeName(i.DeclaringType))
	}
	s := where + " requires " + typeName(i.RequiredType)
	if len(i.RequiredQualifiers) > 0 {
		s += " " + qualifierSet(i.RequiredQualifiers)
	}
	if i.Optional {
		s += " (optional)"
	}
	return s
}

var (
	lazyTargetType = reflect.TypeOf((*lazyTarget)(nil)).Elem()
	contextType    = TypeOf[context.Context]()
	errorType      = TypeOf[error]()
)

type lazyTarget interface {
	lazyType() reflect.Type
	setLazy(func(context.Context) (any, error))
}

// Lazy defers a lookup until Get is called.  Use it as a field type
// to break construction cycles or to look up request scoped services
// from a singleton.
type Lazy[T any] struct {
	get func(context.Context) (any, error)
}

func (Lazy[T]) lazyType() reflect.Type { return TypeOf[T]() }

func (l *Lazy[T]) setLazy(get func(context.Context) (any, error)) { l.get = get }

// Get does the lookup.  Requests made through a context that carries a
// RequestContext see request scoped instances.
func (l Lazy[T]) Get(ctx context.Context) (T, error) {
	var zero T
	if l.get == nil {
		return zero, errors.Errorf("Lazy[%s] was not injected", typeName(TypeOf[T]()))
	}
	v, err := l.get(ctx)
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, errors.Errorf("Lazy[%s] resolved to %T", typeName(TypeOf[T]()), v)
	}
	return t, nil
}

// SetLazy fills a Lazy[T] field.  target must be addressable.
func SetLazy(target reflect.Value, get func(context.Context) (any, error)) error {
	if !target.CanAddr() {
		return errors.Errorf("cannot set lazy value in unaddressable %s", target.Type())
	}
	lt, ok := target.Addr().Interface().(lazyTarget)
	if !ok {
		return errors.Errorf("%s is not a Lazy", target.Type())
	}
	lt.setLazy(get)
	return nil
}

func lazyElem(t reflect.Type) (reflect.Type, bool) {
	if !reflect.PtrTo(t).Implements(lazyTargetType) {
		return nil, false
	}
	//nolint:errcheck // checked by Implements
	return reflect.New(t).Interface().(lazyTarget).lazyType(), true
}

type describeKey struct {
	t    reflect.Type
	tags string
}

var describeCache sync.Map

// DescribeInjectionPoints returns the fields of t (a struct or pointer
// to struct) that are tagged with InjectTag or with any of resolverTags.
// The result is computed once per type and tag set.
func DescribeInjectionPoints(t reflect.Type, resolverTags ...string) ([]Injectee, error) {
	key := describeKey{t: t, tags: strings.Join(resolverTags, ",")}
	if cached, ok := describeCache.Load(key); ok {
		return cached.([]Injectee), nil
	}
	injectees, err := describeInjectionPoints(t, resolverTags)
	if err != nil {
		return nil, err
	}
	describeCache.Store(key, injectees)
	return injectees, nil
}

func describeInjectionPoints(t reflect.Type, resolverTags []string) ([]Injectee, error) {
	st := t
	if st.Kind() == reflect.Ptr {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return nil, nil
	}
	injectees := []Injectee{}
	var returnError error
	reflectutils.WalkStructElements(st, func(field reflect.StructField) bool {
		if !field.IsExported() {
			return true
		}
		for _, rt := range resolverTags {
			if v, ok := field.Tag.Lookup(rt); ok {
				f := field
				injectees = append(injectees, Injectee{
					RequiredType:  field.Type,
					Position:      -1,
					DeclaringType: t,
					Field:         &f,
					Tag:           rt,
					TagValue:      v,
				})
				return false
			}
		}
		tag, ok := field.Tag.Lookup(InjectTag)
		if !ok {
			return true
		}
		injectee, err := parseInjectTag(t, field, tag)
		if err != nil {
			returnError = err
			return false
		}
		injectees = append(injectees, injectee)
		return false
	})
	if returnError != nil {
		return nil, returnError
	}
	return injectees, nil
}

func parseInjectTag(declaring reflect.Type, field reflect.StructField, tag string) (Injectee, error) {
	f := field
	injectee := Injectee{
		RequiredType:  field.Type,
		Position:      -1,
		DeclaringType: declaring,
		Field:         &f,
		Tag:           InjectTag,
		TagValue:      tag,
	}
	if tag != "" {
		for _, opt := range strings.Split(tag, ",") {
			kv := strings.SplitN(opt, "=", 2)
			var val string
			if len(kv) == 2 {
				val = kv[1]
			}
			switch kv[0] {
			case "":
			case "optional":
				injectee.Optional = true
			case "all":
				injectee.All = true
			case "factory":
				injectee.Factory = true
			case "custom":
				injectee.RequiredQualifiers = append(injectee.RequiredQualifiers, Custom)
			case "named":
				injectee.RequiredQualifiers = append(injectee.RequiredQualifiers, Named(val))
			case "qualifier":
				q := strings.SplitN(val, ":", 2)
				qual := Qualifier{Kind: q[0]}
				if len(q) == 2 {
					qual.Value = q[1]
				}
				injectee.RequiredQualifiers = append(injectee.RequiredQualifiers, qual)
			default:
				return Injectee{}, errors.Errorf("field %s of %s: unknown %s tag option '%s'",
					field.Name, typeName(declaring), InjectTag, kv[0])
			}
		}
	}
	if elem, ok := lazyElem(field.Type); ok {
		injectee.Provider = true
		injectee.RequiredType = elem
	}
	if injectee.All {
		if field.Type.Kind() != reflect.Slice {
			return Injectee{}, errors.Errorf("field %s of %s: 'all' requires a slice, not %s",
				field.Name, typeName(declaring), typeName(field.Type))
		}
		injectee.RequiredType = field.Type.Elem()
	}
	return injectee, nil
}

// DescribeFuncInjectionPoints describes the parameters of fn.  A
// context.Context parameter is not an injection point and is reported
// with RequiredType set to the context type so that callers can pass
// their own.
func DescribeFuncInjectionPoints(fn any) ([]Injectee, error) {
	ft := reflect.TypeOf(fn)
	if ft == nil || ft.Kind() != reflect.Func {
		return nil, errors.Errorf("%T is not a function", fn)
	}
	injectees := make([]Injectee, ft.NumIn())
	for i := 0; i < ft.NumIn(); i++ {
		in := ft.In(i)
		injectees[i] = Injectee{
			RequiredType:  in,
			Position:      i,
			DeclaringType: ft,
		}
		if elem, ok := lazyElem(in); ok {
			injectees[i].Provider = true
			injectees[i].RequiredType = elem
		}
	}
	return injectees, nil
}

// IsContextParameter is true for the context.Context parameter of a
// function injection point
func (i Injectee) IsContextParameter() bool {
	return i.Position >= 0 && i.RequiredType == contextType
}

// describeConstructor validates a ClassBinding constructor: a function
// returning something assignable to service and optionally an error.
func describeConstructor(fn any, service reflect.Type) ([]Injectee, error) {
	ft := reflect.TypeOf(fn)
	if ft == nil || ft.Kind() != reflect.Func {
		return nil, errors.Errorf("constructor for %s: %T is not a function", typeName(service), fn)
	}
	switch ft.NumOut() {
	case 1:
	case 2:
		if ft.Out(1) != errorType {
			return nil, errors.Errorf("constructor for %s: second return value must be error, not %s",
				typeName(service), typeName(ft.Out(1)))
		}
	default:
		return nil, errors.Errorf("constructor for %s: must return one or two values", typeName(service))
	}
	if !ft.Out(0).AssignableTo(service) {
		return nil, errors.Errorf("constructor for %s returns %s", typeName(service), typeName(ft.Out(0)))
	}
	return DescribeFuncInjectionPoints(fn)
}

// DescribeConstructor is describeConstructor for back ends
func DescribeConstructor(b *ClassBinding) ([]Injectee, error) {
	return describeConstructor(b.constructor, b.service)
}
