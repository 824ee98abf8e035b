package locator

import (
	"context"
	"reflect"
	"sort"

	inject "github.com/eclipse-ee4j/jersey-sub005"
	"github.com/pkg/errors"
)

// produce makes a new instance for e.  The returned func, if any,
// disposes of the instance when its scope ends.
func (l *Locator) produce(ctx context.Context, e *entry) (any, func(any), error) {
	switch b := e.binding.(type) {
	case *inject.ClassBinding:
		if fn := b.ConstructorFunc(); fn != nil {
			instance, err := l.call(ctx, fn)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "construct %s", b)
			}
			if err := l.initialize(ctx, instance); err != nil {
				return nil, nil, err
			}
			return instance, nil, nil
		}
		instance, err := l.CreateAndInitialize(ctx, b.Service())
		return instance, nil, errors.Wrapf(err, "create %s", b)

	case *inject.InstanceBinding:
		return b.Service(), nil, nil

	case *inject.SupplierInstanceBinding:
		return supply(ctx, b.Supplier(), b)

	case *inject.SupplierClassBinding:
		s, err := l.instance(ctx, e.supplier)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "create supplier for %s", b)
		}
		return supply(ctx, s.(inject.Supplier), b)

	default:
		return nil, nil, errors.Errorf("cannot produce an instance from %s", e.binding)
	}
}

func supply(ctx context.Context, s inject.Supplier, b inject.Binding) (any, func(any), error) {
	instance, err := s.Get(ctx)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "supplier for %s", b)
	}
	if ds, ok := s.(inject.DisposableSupplier); ok {
		return instance, ds.Dispose, nil
	}
	return instance, nil, nil
}

func instantiable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Struct:
		return true
	case reflect.Ptr:
		return t.Elem().Kind() == reflect.Struct
	default:
		return false
	}
}

// Create allocates t.  For a struct type the value is returned; for a
// pointer to struct type a pointer to a new zero value is returned.
func (l *Locator) Create(ctx context.Context, t reflect.Type) (any, error) {
	if err := l.checkReady("Create"); err != nil {
		return nil, err
	}
	v, err := allocate(t)
	if err != nil {
		return nil, err
	}
	if t.Kind() == reflect.Ptr {
		return v.Interface(), nil
	}
	return v.Elem().Interface(), nil
}

// allocate returns a pointer to a new value of the struct type named by t
func allocate(t reflect.Type) (reflect.Value, error) {
	if t == nil || !instantiable(t) {
		return reflect.Value{}, errors.Errorf("cannot create %v: only structs and pointers to structs can be created", t)
	}
	if t.Kind() == reflect.Ptr {
		return reflect.New(t.Elem()), nil
	}
	return reflect.New(t), nil
}

// CreateAndInitialize allocates t, injects its fields, and calls PostConstruct
func (l *Locator) CreateAndInitialize(ctx context.Context, t reflect.Type) (any, error) {
	if err := l.checkReady("CreateAndInitialize"); err != nil {
		return nil, err
	}
	v, err := allocate(t)
	if err != nil {
		return nil, err
	}
	if err := l.injectFields(ctx, v); err != nil {
		return nil, err
	}
	if err := l.initialize(ctx, v.Interface()); err != nil {
		return nil, err
	}
	if t.Kind() == reflect.Ptr {
		return v.Interface(), nil
	}
	return v.Elem().Interface(), nil
}

func (l *Locator) initialize(ctx context.Context, instance any) error {
	if pc, ok := instance.(inject.PostConstructor); ok {
		return errors.Wrapf(pc.PostConstruct(ctx), "post construct %T", instance)
	}
	return nil
}

// Inject fills the injection points of target, which must be a pointer to a struct.
func (l *Locator) Inject(ctx context.Context, target any) error {
	if err := l.checkReady("Inject"); err != nil {
		return err
	}
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return errors.Errorf("inject: %T is not a pointer to a struct", target)
	}
	return l.injectFields(ctx, v)
}

// PreDestroy calls PreDestroy if target is a PreDestroyer
func (l *Locator) PreDestroy(target any) error {
	if pd, ok := target.(inject.PreDestroyer); ok {
		pd.PreDestroy()
	}
	return nil
}

func (l *Locator) resolverTags() []string {
	l.lock.RLock()
	defer l.lock.RUnlock()
	tags := make([]string, 0, len(l.resolvers))
	for tag := range l.resolvers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// injectFields fills the tagged fields of the struct that v points to
func (l *Locator) injectFields(ctx context.Context, v reflect.Value) error {
	injectees, err := inject.DescribeInjectionPoints(v.Type(), l.resolverTags()...)
	if err != nil {
		return err
	}
	for _, injectee := range injectees {
		field := v.Elem().FieldByIndex(injectee.Field.Index)
		if err := l.fill(ctx, injectee, field); err != nil {
			return err
		}
	}
	return nil
}

func (l *Locator) fill(ctx context.Context, injectee inject.Injectee, field reflect.Value) error {
	if injectee.Provider {
		plain := injectee
		plain.Provider = false
		return inject.SetLazy(field, func(ctx context.Context) (any, error) {
			return l.GetInjecteeInstance(ctx, plain)
		})
	}
	if injectee.All {
		all, err := l.GetAllInstances(ctx, injectee.RequiredType, injectee.RequiredQualifiers...)
		if err != nil {
			return err
		}
		slice := reflect.MakeSlice(field.Type(), 0, len(all))
		for _, instance := range all {
			iv := reflect.ValueOf(instance)
			if iv.IsValid() && iv.Type().AssignableTo(injectee.RequiredType) {
				slice = reflect.Append(slice, iv)
			}
		}
		field.Set(slice)
		return nil
	}
	instance, err := l.GetInjecteeInstance(ctx, injectee)
	if err != nil {
		return err
	}
	if instance == nil {
		return nil
	}
	return assign(injectee, field, instance)
}

func assign(injectee inject.Injectee, target reflect.Value, instance any) error {
	iv := reflect.ValueOf(instance)
	if !iv.Type().AssignableTo(target.Type()) {
		return errors.Errorf("%s: resolved value of type %s is not assignable", injectee, iv.Type())
	}
	target.Set(iv)
	return nil
}

// GetInjecteeInstance resolves one injection point.  It returns nil for
// optional injection points that have no match.
func (l *Locator) GetInjecteeInstance(ctx context.Context, injectee inject.Injectee) (any, error) {
	if err := l.checkReady("GetInjecteeInstance"); err != nil {
		return nil, err
	}
	if injectee.ForeignDescriptor != nil {
		return l.GetInstanceFromForeign(ctx, injectee.ForeignDescriptor)
	}
	if injectee.Tag != "" && injectee.Tag != inject.InjectTag {
		l.lock.RLock()
		resolver, ok := l.resolvers[injectee.Tag]
		l.lock.RUnlock()
		if !ok {
			return nil, errors.Errorf("%s: no injection resolver for tag %q", injectee, injectee.Tag)
		}
		return resolver.Resolve(ctx, injectee)
	}
	var instance any
	var err error
	if injectee.Factory {
		instance, err = l.factory(ctx, injectee)
	} else {
		instance, err = l.GetInstance(ctx, injectee.RequiredType, injectee.RequiredQualifiers...)
	}
	if err != nil {
		return nil, err
	}
	if instance == nil && !injectee.Optional {
		return nil, inject.WithDetails(
			errors.WithStack(&inject.UnsatisfiedDependencyError{Injectee: injectee}),
			l.describeCandidates(injectee.RequiredType))
	}
	return instance, nil
}

// factory finds the supplier, rather than the supplied value, for a
// supplier binding whose supplier has the required type.
func (l *Locator) factory(ctx context.Context, injectee inject.Injectee) (any, error) {
	l.lock.RLock()
	var found []*entry
	for _, e := range l.entries {
		switch b := e.binding.(type) {
		case *inject.SupplierClassBinding:
			if e.supplier != nil && b.SupplierType() == injectee.RequiredType &&
				inject.HasQualifiers(e.qualifiers, injectee.RequiredQualifiers...) {
				found = append(found, e)
			}
		case *inject.SupplierInstanceBinding:
			if reflect.TypeOf(b.Supplier()) == injectee.RequiredType &&
				inject.HasQualifiers(e.qualifiers, injectee.RequiredQualifiers...) {
				found = append(found, e)
			}
		}
	}
	l.lock.RUnlock()
	if len(found) == 0 {
		return nil, nil
	}
	sortEntries(found)
	if sb, ok := found[0].binding.(*inject.SupplierInstanceBinding); ok {
		return sb.Supplier(), nil
	}
	return l.instance(ctx, found[0].supplier)
}

// call invokes fn with injected arguments.  fn returns a value and
// optionally an error.
func (l *Locator) call(ctx context.Context, fn any) (any, error) {
	injectees, err := inject.DescribeFuncInjectionPoints(fn)
	if err != nil {
		return nil, err
	}
	args := make([]reflect.Value, len(injectees))
	for i, injectee := range injectees {
		if injectee.IsContextParameter() {
			args[i] = reflect.ValueOf(ctx)
			continue
		}
		arg := reflect.New(reflect.TypeOf(fn).In(i)).Elem()
		if injectee.Provider {
			plain := injectee
			plain.Provider = false
			if err := inject.SetLazy(arg, func(ctx context.Context) (any, error) {
				return l.GetInjecteeInstance(ctx, plain)
			}); err != nil {
				return nil, err
			}
		} else {
			instance, err := l.GetInjecteeInstance(ctx, injectee)
			if err != nil {
				return nil, err
			}
			if err := assign(injectee, arg, instance); err != nil {
				return nil, err
			}
		}
		args[i] = arg
	}
	out := reflect.ValueOf(fn).Call(args)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}
