package inject

import (
	"context"
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

// RuntimeType says which side of a connection a provider is for
type RuntimeType string

const (
	AnyRuntime RuntimeType = ""
	Server     RuntimeType = "server"
	Client     RuntimeType = "client"
)

// NoPriority means that a provider did not declare a priority
const NoPriority = -1

// PerLookupComponent is implemented by components that want a new
// instance per lookup instead of the Singleton default.
type PerLookupComponent interface {
	PerLookup()
}

// Prioritized components carry a rank into their bindings
type Prioritized interface {
	Priority() int
}

// Constrained components only apply to one RuntimeType
type Constrained interface {
	ConstrainedTo() RuntimeType
}

// Resource is implemented by resource types.  Resources are bound as
// their own contract; any provider contracts they also implement become
// aliases.
type Resource interface {
	ResourcePath() string
}

var (
	perLookupType   = TypeOf[PerLookupComponent]()
	prioritizedType = TypeOf[Prioritized]()
	constrainedType = TypeOf[Constrained]()
	resourceType    = TypeOf[Resource]()
)

var (
	contractLock      sync.RWMutex
	providerContracts []reflect.Type
)

// RegisterProviderContract adds an interface to the set of provider
// contracts that ProviderContracts recognizes.  Packages register their
// provider interfaces from init().
func RegisterProviderContract(contracts ...reflect.Type) {
	contractLock.Lock()
	defer contractLock.Unlock()
	for _, c := range contracts {
		if !containsType(providerContracts, c) {
			providerContracts = append(providerContracts, c)
		}
	}
}

// ProviderContracts returns the registered provider contracts that t
// satisfies, in the order they were registered.
func ProviderContracts(t reflect.Type) []reflect.Type {
	contractLock.RLock()
	defer contractLock.RUnlock()
	var found []reflect.Type
	for _, c := range providerContracts {
		if Satisfies(t, c) {
			found = append(found, c)
		}
	}
	return found
}

// markerValue returns a zero value of t for calling marker methods
func markerValue(t reflect.Type, marker reflect.Type) (any, bool) {
	switch {
	case t.Implements(marker):
		if t.Kind() == reflect.Ptr {
			return reflect.New(t.Elem()).Interface(), true
		}
		return reflect.Zero(t).Interface(), true
	case t.Kind() != reflect.Ptr && reflect.PtrTo(t).Implements(marker):
		return reflect.New(t).Interface(), true
	default:
		return nil, false
	}
}

func implementsMarker(t reflect.Type, marker reflect.Type) bool {
	_, ok := markerValue(t, marker)
	return ok
}

// ContractModel is what the ProviderBinder knows about a component.
type ContractModel struct {
	Implementation reflect.Type
	Contracts      []reflect.Type
	Scope          Scope
	ConstrainedTo  RuntimeType
	// Priorities overrides DefaultPriority per contract
	Priorities      map[reflect.Type]int
	DefaultPriority int
}

// NewContractModel derives a model from t.  If contracts are given, they
// replace the registered provider contracts.
func NewContractModel(t reflect.Type, contracts ...reflect.Type) *ContractModel {
	m := &ContractModel{
		Implementation:  t,
		Contracts:       contracts,
		Scope:           ProviderScope(t),
		DefaultPriority: NoPriority,
		Priorities:      make(map[reflect.Type]int),
	}
	if len(m.Contracts) == 0 {
		m.Contracts = ProviderContracts(t)
	}
	if v, ok := markerValue(t, prioritizedType); ok {
		m.DefaultPriority = v.(Prioritized).Priority()
	}
	if v, ok := markerValue(t, constrainedType); ok {
		m.ConstrainedTo = v.(Constrained).ConstrainedTo()
	}
	return m
}

// Priority returns the priority for contract or NoPriority
func (m *ContractModel) Priority(contract reflect.Type) int {
	if p, ok := m.Priorities[contract]; ok {
		return p
	}
	return m.DefaultPriority
}

// Empty is true when the model has no contracts.  Resources have empty models.
func (m *ContractModel) Empty() bool {
	return len(m.Contracts) == 0
}

// AppliesTo checks the runtime constraint
func (m *ContractModel) AppliesTo(runtime RuntimeType) bool {
	return runtime == AnyRuntime || m.ConstrainedTo == AnyRuntime || m.ConstrainedTo == runtime
}

// ProviderScope is Singleton unless t implements PerLookupComponent
func ProviderScope(t reflect.Type) Scope {
	if implementsMarker(t, perLookupType) {
		return PerLookup
	}
	return Singleton
}

// IsResource is true for instantiable types that implement Resource
func IsResource(t reflect.Type) bool {
	return instantiable(t) && implementsMarker(t, resourceType)
}

// ComponentProvider lets another component model take ownership of
// some types.  Initialize is called once before any Bind; Done is
// called once after all binding.
type ComponentProvider interface {
	Initialize(im InjectionManager)
	Bind(component reflect.Type, contracts []reflect.Type) bool
	Done()
}

// ProviderBinder turns components into bindings and registers them.
type ProviderBinder struct {
	im                 InjectionManager
	log                BasicLogger
	runtime            RuntimeType
	componentProviders []ComponentProvider
	initOnce           sync.Once
	doneOnce           sync.Once
}

// ProviderBinderOpt are options for NewProviderBinder
type ProviderBinderOpt func(*ProviderBinder)

// WithProviderLogger overrides DefaultLogger()
func WithProviderLogger(log BasicLogger) ProviderBinderOpt {
	return func(pb *ProviderBinder) {
		pb.log = log
	}
}

// WithRuntime sets the runtime that resources must be compatible with
func WithRuntime(runtime RuntimeType) ProviderBinderOpt {
	return func(pb *ProviderBinder) {
		pb.runtime = runtime
	}
}

// WithComponentProviders adds ComponentProviders that are asked first
func WithComponentProviders(cps ...ComponentProvider) ProviderBinderOpt {
	return func(pb *ProviderBinder) {
		pb.componentProviders = append(pb.componentProviders, cps...)
	}
}

// NewProviderBinder creates a ProviderBinder for im
func NewProviderBinder(im InjectionManager, opts ...ProviderBinderOpt) *ProviderBinder {
	pb := &ProviderBinder{
		im:  im,
		log: DefaultLogger(),
	}
	for _, opt := range opts {
		opt(pb)
	}
	return pb
}

func (pb *ProviderBinder) initialize() {
	pb.initOnce.Do(func() {
		for _, cp := range pb.componentProviders {
			cp.Initialize(pb.im)
		}
	})
}

// Done tells the ComponentProviders that binding is finished
func (pb *ProviderBinder) Done() {
	pb.initialize()
	pb.doneOnce.Do(func() {
		for _, cp := range pb.componentProviders {
			cp.Done()
		}
	})
}

// claimed asks the ComponentProviders to take t
func (pb *ProviderBinder) claimed(t reflect.Type, contracts []reflect.Type) bool {
	pb.initialize()
	for _, cp := range pb.componentProviders {
		if cp.Bind(t, contracts) {
			pb.log.Debug("component claimed by component provider", map[string]interface{}{
				"component": typeName(t),
				"provider":  reflect.TypeOf(cp).String(),
			})
			return true
		}
	}
	return false
}

func rank[B interface{ Ranked(int) B }](b B, priority int) {
	if priority > NoPriority {
		b.Ranked(priority)
	}
}

// BindProvider registers a provider class.  If the InjectionManager can
// already produce an instance of the class then that instance is bound
// instead of the class.
func (pb *ProviderBinder) BindProvider(ctx context.Context, class reflect.Type, model *ContractModel) error {
	instance, err := pb.im.GetInstance(ctx, class)
	if err != nil && !errors.Is(err, ErrRegistrationIncomplete) {
		return err
	}
	if instance != nil {
		return pb.BindProviderInstance(instance, model)
	}
	return pb.im.Register(classBindingFor(model, class))
}

// BindProviderInstance registers a provider instance
func (pb *ProviderBinder) BindProviderInstance(instance any, model *ContractModel) error {
	b := NewInstanceBinding(instance).
		In(model.Scope).
		QualifiedBy(Custom).
		To(model.Contracts...)
	rank(b, model.Priority(model.Implementation))
	return pb.im.Register(b)
}

func classBindingFor(model *ContractModel, class reflect.Type) *ClassBinding {
	b := NewClassBinding(class).
		In(model.Scope).
		QualifiedBy(Custom).
		To(model.Contracts...)
	rank(b, model.Priority(class))
	return b
}

// BindInstances binds each instance to each provider contract it satisfies
func (pb *ProviderBinder) BindInstances(instances ...any) error {
	binders := make([]Binder, 0, len(instances))
	for _, instance := range instances {
		instance := instance
		if isNil(instance) {
			return &NilInstanceError{What: "provider instance"}
		}
		binders = append(binders, NewBinder("instance "+typeName(reflect.TypeOf(instance)),
			func(b *AbstractBinder) error {
				for _, contract := range ProviderContracts(reflect.TypeOf(instance)) {
					b.BindInstance(instance).To(contract).QualifiedBy(Custom)
				}
				return nil
			}))
	}
	return pb.im.RegisterBinder(Compose("provider instances", binders...))
}

// BindClasses binds classes.  With resources true, each class is bound as
// its own contract with its provider contracts as aliases.  Otherwise
// each class is bound to its provider contracts.  Classes claimed by a
// ComponentProvider are skipped.
func (pb *ProviderBinder) BindClasses(resources bool, classes ...reflect.Type) error {
	binders := make([]Binder, 0, len(classes))
	for _, class := range classes {
		contracts := ProviderContracts(class)
		if pb.claimed(class, contracts) {
			continue
		}
		binders = append(binders, pb.classBinder(class, contracts, resources))
	}
	return pb.im.RegisterBinder(Compose("provider classes", binders...))
}

func (pb *ProviderBinder) classBinder(class reflect.Type, contracts []reflect.Type, resource bool) Binder {
	scope := ProviderScope(class)
	if !resource {
		return NewBinder("provider "+typeName(class), func(b *AbstractBinder) error {
			b.Bind(class).In(scope).QualifiedBy(Custom).To(contracts...)
			return nil
		})
	}
	model := NewContractModel(class, contracts...)
	degraded := !model.AppliesTo(pb.runtime)
	if degraded {
		pb.log.Warn("resource is not compatible with this runtime; binding it without its provider contracts",
			map[string]interface{}{
				"resource":      typeName(class),
				"constrainedTo": string(model.ConstrainedTo),
				"runtime":       string(pb.runtime),
			})
	}
	return NewBinder("resource "+typeName(class), func(b *AbstractBinder) error {
		cb := b.BindAsContract(class).In(scope)
		if degraded {
			return nil
		}
		for _, contract := range contracts {
			cb.AddAlias(contract).In(scope).QualifiedBy(Custom)
		}
		return nil
	})
}

// BindComponents classifies each type as a resource or a provider and
// binds it accordingly.
func (pb *ProviderBinder) BindComponents(classes ...reflect.Type) error {
	var resources, providers []reflect.Type
	for _, class := range classes {
		if IsResource(class) {
			resources = append(resources, class)
		} else {
			providers = append(providers, class)
		}
	}
	if err := pb.BindClasses(true, resources...); err != nil {
		return err
	}
	return pb.BindClasses(false, providers...)
}

// BindProviders binds everything in bag that has a contract and applies
// to constrainedTo.  Components whose type is in registered were asked
// for explicitly, so skipping them is a warning rather than a debug
// message.
func (pb *ProviderBinder) BindProviders(bag *ComponentBag, constrainedTo RuntimeType, registered map[reflect.Type]bool) error {
	correctlyConfigured := func(model *ContractModel) bool {
		if model.AppliesTo(constrainedTo) {
			return true
		}
		fields := map[string]interface{}{
			"provider":      typeName(model.Implementation),
			"constrainedTo": string(model.ConstrainedTo),
			"runtime":       string(constrainedTo),
		}
		if registered[model.Implementation] {
			pb.log.Warn("provider is constrained to a different runtime and was ignored", fields)
		} else {
			pb.log.Debug("provider is constrained to a different runtime and was ignored", fields)
		}
		return false
	}

	var binders []Binder
	for _, class := range bag.Classes(ExcludeEmpty) {
		model := bag.Model(class)
		if !correctlyConfigured(model) {
			continue
		}
		if pb.claimed(class, model.Contracts) {
			continue
		}
		for _, contract := range model.Contracts {
			class, contract, model := class, contract, model
			binders = append(binders, NewBinder("provider "+typeName(class), func(b *AbstractBinder) error {
				cb := b.Bind(class).In(model.Scope).QualifiedBy(Custom).To(contract)
				rank(cb, model.Priority(contract))
				return nil
			}))
		}
	}
	for _, instance := range bag.Instances(ExcludeEmpty) {
		model := bag.Model(reflect.TypeOf(instance))
		if !correctlyConfigured(model) {
			continue
		}
		for _, contract := range model.Contracts {
			instance, contract, model := instance, contract, model
			binders = append(binders, NewBinder("provider instance "+typeName(model.Implementation),
				func(b *AbstractBinder) error {
					ib := b.BindInstance(instance).QualifiedBy(Custom).To(contract)
					rank(ib, model.Priority(contract))
					return nil
				}))
		}
	}
	return pb.im.RegisterBinder(Compose("providers", binders...))
}
