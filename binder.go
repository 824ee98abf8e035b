package inject

import (
	"context"
	"reflect"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Binder is a unit of bindings.  Bindings() may be called any number of
// times but must always return the same bindings.
type Binder interface {
	Bindings() ([]Binding, error)
}

// ManagerAware is implemented by binders that want to know which
// InjectionManager they were registered with.
type ManagerAware interface {
	SetInjectionManager(InjectionManager)
}

type binderState int

const (
	unconfigured binderState = iota
	configuring
	configured
)

func (s binderState) String() string {
	switch s {
	case unconfigured:
		return "unconfigured"
	case configuring:
		return "configuring"
	default:
		return "configured"
	}
}

// AbstractBinder is the usual way to write a Binder.  The configure
// function is called exactly once, the first time Bindings() is called.
// It declares bindings with Bind, BindAsContract, BindInstance,
// BindSupplier, BindSupplierType, BindResolver and it can Install other
// binders.
//
// The bindings of installed binders come first, in install order,
// followed by the binder's own bindings in declaration order.
//
// configure must not call Bindings() on its own binder.
type AbstractBinder struct {
	name      string
	configure func(*AbstractBinder) error

	lock      sync.Mutex
	state     binderState
	own       []Binding
	installed []Binder
	seen      map[Binder]struct{}
	result    []Binding
	err       error

	managerLock sync.Mutex
	manager     InjectionManager
}

var (
	_ Binder       = &AbstractBinder{}
	_ ManagerAware = &AbstractBinder{}
)

// NewBinder creates an AbstractBinder.  The name is used in error messages.
func NewBinder(name string, configure func(b *AbstractBinder) error) *AbstractBinder {
	return &AbstractBinder{
		name:      name,
		configure: configure,
		seen:      make(map[Binder]struct{}),
	}
}

func (b *AbstractBinder) String() string {
	return "binder " + b.name
}

// Bind declares a binding that instantiates service.  The service type
// is not automatically a contract.
func (b *AbstractBinder) Bind(service reflect.Type) *ClassBinding {
	cb := NewClassBinding(service)
	b.add(cb)
	return cb
}

// BindAsContract declares a binding that instantiates service and
// advertises service as its contract.
func (b *AbstractBinder) BindAsContract(service reflect.Type) *ClassBinding {
	cb := NewContractBinding(service)
	b.add(cb)
	return cb
}

// BindInstance declares a binding for an existing object.  Binding nil
// causes Bindings() to fail.
func (b *AbstractBinder) BindInstance(service any) *InstanceBinding {
	ib := NewInstanceBinding(service)
	b.add(ib)
	return ib
}

// BindSupplier declares a binding whose instances come from supplier
func (b *AbstractBinder) BindSupplier(supplier Supplier) *SupplierInstanceBinding {
	sb := NewSupplierInstanceBinding(supplier)
	b.add(sb)
	return sb
}

// BindSupplierType declares a binding whose instances come from a
// Supplier that the InjectionManager creates.  The supplier lives in
// supplierScope.
func (b *AbstractBinder) BindSupplierType(supplier reflect.Type, supplierScope Scope) *SupplierClassBinding {
	sb := NewSupplierClassBinding(supplier, supplierScope)
	b.add(sb)
	return sb
}

// BindResolver declares an InjectionResolver
func (b *AbstractBinder) BindResolver(resolver InjectionResolver) *InjectionResolverBinding {
	rb := NewInjectionResolverBinding(resolver)
	b.add(rb)
	return rb
}

// Add declares an already-built binding.
func (b *AbstractBinder) Add(bindings ...Binding) {
	for _, binding := range bindings {
		b.add(binding)
	}
}

func (b *AbstractBinder) add(binding Binding) {
	b.own = append(b.own, binding)
}

// Install adds other binders.  Installing the same binder more than
// once into the same parent only counts once.  Binders that are not
// comparable (for example, func-based binders) cannot be de-duplicated.
func (b *AbstractBinder) Install(binders ...Binder) {
	for _, child := range binders {
		if child == nil || child == Binder(b) {
			continue
		}
		if reflect.TypeOf(child).Comparable() {
			if _, ok := b.seen[child]; ok {
				continue
			}
			b.seen[child] = struct{}{}
		}
		b.installed = append(b.installed, child)
	}
}

// SetInjectionManager is called by InjectionManager implementations when
// the binder is registered.  It is passed on to installed binders.
func (b *AbstractBinder) SetInjectionManager(im InjectionManager) {
	b.managerLock.Lock()
	b.manager = im
	b.managerLock.Unlock()
	b.lock.Lock()
	children := append([]Binder(nil), b.installed...)
	b.lock.Unlock()
	for _, child := range children {
		if ma, ok := child.(ManagerAware); ok {
			ma.SetInjectionManager(im)
		}
	}
}

func (b *AbstractBinder) injectionManager() InjectionManager {
	b.managerLock.Lock()
	defer b.managerLock.Unlock()
	return b.manager
}

// ManagedInstanceProvider returns a Supplier that looks up contract in
// the InjectionManager this binder is registered with.  The supplier
// fails if the binder has not been registered.
func (b *AbstractBinder) ManagedInstanceProvider(contract reflect.Type, qualifiers ...Qualifier) Supplier {
	return SupplierFunc(func(ctx context.Context) (any, error) {
		im := b.injectionManager()
		if im == nil {
			return nil, IllegalState("managed instance of "+typeName(contract)+" from "+b.String(),
				errors.New("binder is not registered with an injection manager"))
		}
		return im.GetInstance(ctx, contract, qualifiers...)
	})
}

// Bindings runs configure (once) and returns the accumulated bindings.
func (b *AbstractBinder) Bindings() ([]Binding, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.state == configured {
		return b.result, b.err
	}
	b.state = configuring
	debugf("configuring %s", b)
	if b.configure != nil {
		if err := b.configure(b); err != nil {
			b.state = configured
			b.err = errors.WithStack(&ConfigureError{Binder: b.name, Err: err})
			return nil, b.err
		}
	}
	var all []Binding
	for _, child := range b.installed {
		cb, err := child.Bindings()
		if err != nil {
			b.state = configured
			b.err = errors.Wrapf(err, "installed into %s", b)
			return nil, b.err
		}
		all = append(all, cb...)
	}
	var invalid []string
	var firstInvalid error
	for _, binding := range b.own {
		if err := binding.Validate(); err != nil {
			if firstInvalid == nil {
				firstInvalid = err
			}
			invalid = append(invalid, binding.String()+": "+err.Error())
		}
	}
	b.state = configured
	if firstInvalid != nil {
		b.err = WithDetails(errors.WithStack(&ConfigureError{Binder: b.name, Err: firstInvalid}),
			"invalid bindings:\n\t"+strings.Join(invalid, "\n\t"))
		return nil, b.err
	}
	b.result = append(all, b.own...)
	return b.result, nil
}

// Compose combines several binders into one.  Their bindings are
// returned in the order given.
func Compose(name string, binders ...Binder) *AbstractBinder {
	return NewBinder(name, func(b *AbstractBinder) error {
		b.Install(binders...)
		return nil
	})
}

// BindingsOf flattens binders into their bindings in order.
func BindingsOf(binders ...Binder) ([]Binding, error) {
	var all []Binding
	for _, b := range binders {
		bindings, err := b.Bindings()
		if err != nil {
			return nil, err
		}
		all = append(all, bindings...)
	}
	return all, nil
}
