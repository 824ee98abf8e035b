package inject

import (
	"context"
	"reflect"
)

// InjectionManager is the contract that a dependency injection back end
// implements.  The locator package provides the in-memory implementation.
//
// Lookups made before CompleteRegistration fail with an error matching
// ErrRegistrationIncomplete.  Lookups made after Shutdown fail with an
// error matching ErrShutdown.  Finding nothing is not an error: GetInstance
// returns nil and the GetAll methods return an empty slice.
type InjectionManager interface {
	// CompleteRegistration activates the registered bindings.
	CompleteRegistration() error

	// Shutdown destroys singletons.  It is idempotent.
	Shutdown()
	IsShutdown() bool

	// Register adds bindings.  Registration is additive.  A binding
	// whose ID has already been registered is ignored.
	Register(bindings ...Binding) error

	// RegisterBinder adds the bindings of binders.
	RegisterBinder(binders ...Binder) error

	// RegisterProvider accepts anything IsRegistrable says yes to and
	// fails with UnsupportedProviderError otherwise.
	RegisterProvider(provider any) error
	IsRegistrable(t reflect.Type) bool

	// Create builds an instance of t without injecting it.  The result
	// is not managed.
	Create(ctx context.Context, t reflect.Type) (any, error)

	// CreateAndInitialize builds an instance of t, injects its fields,
	// and calls PostConstruct.  The result is not managed.
	CreateAndInitialize(ctx context.Context, t reflect.Type) (any, error)

	// GetAllServiceHolders returns every match ordered by descending
	// rank, with ties in registration order.
	GetAllServiceHolders(ctx context.Context, contract reflect.Type, qualifiers ...Qualifier) ([]ServiceHolder, error)

	// GetInstance returns the best match or nil if there is none.
	GetInstance(ctx context.Context, contract reflect.Type, qualifiers ...Qualifier) (any, error)

	// GetAllInstances is GetAllServiceHolders without the holders.
	GetAllInstances(ctx context.Context, contract reflect.Type, qualifiers ...Qualifier) ([]any, error)

	// GetInjecteeInstance resolves one injection point
	GetInjecteeInstance(ctx context.Context, injectee Injectee) (any, error)

	// CreateForeignDescriptor turns a binding into a handle that can be
	// cached outside the manager and resolved with GetInstanceFromForeign.
	CreateForeignDescriptor(binding Binding) (*ForeignDescriptor, error)
	GetInstanceFromForeign(ctx context.Context, fd *ForeignDescriptor) (any, error)

	// Inject fills the injection points of an object the caller owns.
	Inject(ctx context.Context, target any) error

	// PreDestroy runs the teardown callback of an object the caller owns.
	PreDestroy(target any) error
}

// ForeignDescriptor is an InjectionManager-specific handle for a binding.
type ForeignDescriptor struct {
	Binding Binding
	// Handle is private to the InjectionManager that created it
	Handle any
	// Disposer, if set, releases an instance obtained through this descriptor
	Disposer func(instance any)
}

// Dispose releases an instance obtained through the descriptor
func (fd *ForeignDescriptor) Dispose(instance any) {
	if fd.Disposer != nil {
		fd.Disposer(instance)
	}
}

// PostConstructor is implemented by services that want a callback after
// their injection points are filled.
type PostConstructor interface {
	PostConstruct(ctx context.Context) error
}

// PreDestroyer is implemented by services that want a callback before
// they go out of scope.
type PreDestroyer interface {
	PreDestroy()
}

// ScopeResolver manages instances for a custom scope.  Back ends call
// Resolve with a key that is unique per binding; create must be called
// at most once per key for as long as the scope instance lives, unless
// it fails.  When the scope instance ends, the resolver calls dispose
// on every instance that create produced: that runs PreDestroy and
// hands the instance back to a DisposableSupplier.
type ScopeResolver interface {
	Scope() Scope
	Resolve(ctx context.Context, key int64, create func() (any, error), dispose func(any)) (any, error)
}

// Get looks up the best instance of T.  The zero value is returned when
// nothing is bound.
func Get[T any](ctx context.Context, im InjectionManager, qualifiers ...Qualifier) (T, error) {
	var zero T
	v, err := im.GetInstance(ctx, TypeOf[T](), qualifiers...)
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, &UnsupportedProviderError{Type: reflect.TypeOf(v)}
	}
	return t, nil
}

// GetAll looks up every instance of T in rank order.
func GetAll[T any](ctx context.Context, im InjectionManager, qualifiers ...Qualifier) ([]T, error) {
	all, err := im.GetAllInstances(ctx, TypeOf[T](), qualifiers...)
	if err != nil {
		return nil, err
	}
	ts := make([]T, 0, len(all))
	for _, v := range all {
		if t, ok := v.(T); ok {
			ts = append(ts, t)
		}
	}
	return ts, nil
}
