package locator

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	inject "github.com/eclipse-ee4j/jersey-sub005"
	"github.com/pkg/errors"
)

type state int

const (
	registering state = iota
	ready
	shutdown
)

func (s state) String() string {
	switch s {
	case registering:
		return "registering"
	case ready:
		return "ready"
	default:
		return "shutdown"
	}
}

// entry is one advertisement of a binding: the binding itself or one
// of its aliases.  Aliases share the key of their parent so that they
// share instances when they share a scope.
type entry struct {
	owner      *Locator
	binding    inject.Binding
	seq        int
	key        int64
	contracts  []reflect.Type
	qualifiers []inject.Qualifier
	scope      inject.Scope
	rank       int
	ranked     bool
	// supplier is the hidden entry that produces the Supplier for
	// SupplierClassBindings
	supplier *entry
}

func (e *entry) String() string {
	return fmt.Sprintf("#%d %s", e.seq, e.binding)
}

func (e *entry) holder(instance any) inject.ServiceHolder {
	impl := e.binding.Desc().Implementation()
	if impl == nil && instance != nil {
		impl = reflect.TypeOf(instance)
	}
	return inject.NewServiceHolder(instance, impl, e.contracts, e.rank, e.ranked)
}

// Locator is an in-memory inject.InjectionManager.
type Locator struct {
	lock       sync.RWMutex
	state      state
	seq        int
	entries    []*entry
	byContract map[reflect.Type][]*entry
	ids        map[int64]*entry
	resolvers  map[string]inject.InjectionResolver
	scopes     map[inject.Scope]inject.ScopeResolver
	parent     inject.InjectionManager
	log        inject.BasicLogger

	singletons *singletonStore
	threads    *threadStore
}

var _ inject.InjectionManager = &Locator{}

// Opt are options for New
type Opt func(*Locator)

// WithLogger overrides inject.DefaultLogger()
func WithLogger(log inject.BasicLogger) Opt {
	return func(l *Locator) {
		l.log = log
	}
}

// WithScope adds a resolver for a custom scope
func WithScope(resolvers ...inject.ScopeResolver) Opt {
	return func(l *Locator) {
		for _, r := range resolvers {
			l.scopes[r.Scope()] = r
		}
	}
}

// WithParent makes lookups that find nothing ask parent
func WithParent(parent inject.InjectionManager) Opt {
	return func(l *Locator) {
		l.parent = parent
	}
}

// New creates an empty Locator.  Register bindings and then call
// CompleteRegistration before looking anything up.
func New(opts ...Opt) *Locator {
	l := &Locator{
		byContract: make(map[reflect.Type][]*entry),
		ids:        make(map[int64]*entry),
		resolvers:  make(map[string]inject.InjectionResolver),
		scopes:     make(map[inject.Scope]inject.ScopeResolver),
		log:        inject.DefaultLogger(),
		singletons: newSingletonStore(),
		threads:    newThreadStore(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CompleteRegistration moves the Locator to ready.  Calling it again is
// harmless.
func (l *Locator) CompleteRegistration() error {
	l.lock.Lock()
	defer l.lock.Unlock()
	switch l.state {
	case shutdown:
		return inject.IllegalState("CompleteRegistration", inject.ErrShutdown)
	case ready:
		return nil
	}
	for _, e := range l.entries {
		if !e.scope.IsBuiltin() {
			if _, ok := l.scopes[e.scope]; !ok {
				return inject.WithDetails(errors.WithStack(&inject.ScopeError{Scope: e.scope}), e.String())
			}
		}
	}
	l.state = ready
	inject.Debugf("locator ready with %d entries", len(l.entries))
	return nil
}

// Shutdown destroys singletons in the reverse of their creation order.
func (l *Locator) Shutdown() {
	l.lock.Lock()
	if l.state == shutdown {
		l.lock.Unlock()
		return
	}
	l.state = shutdown
	l.lock.Unlock()
	l.singletons.destroy()
	l.threads.clear()
	inject.Debugf("locator shut down")
}

func (l *Locator) IsShutdown() bool {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.state == shutdown
}

func (l *Locator) checkReady(op string) error {
	l.lock.RLock()
	defer l.lock.RUnlock()
	switch l.state {
	case registering:
		return inject.IllegalState(op, inject.ErrRegistrationIncomplete)
	case shutdown:
		return inject.IllegalState(op, inject.ErrShutdown)
	}
	return nil
}

// Register adds bindings.  Bindings whose ID is already registered are
// skipped.  Registering after CompleteRegistration is allowed and does
// not disturb existing instances.
func (l *Locator) Register(bindings ...inject.Binding) error {
	for _, b := range bindings {
		if err := b.Validate(); err != nil {
			return inject.WithDetails(errors.Wrap(err, "register"), inject.Dump(b))
		}
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.state == shutdown {
		return inject.IllegalState("Register", inject.ErrShutdown)
	}
	for _, b := range bindings {
		l.register(b)
	}
	return nil
}

func (l *Locator) register(b inject.Binding) *entry {
	d := b.Desc()
	if existing, ok := l.ids[d.ID()]; ok {
		return existing
	}
	if rb, ok := b.(*inject.InjectionResolverBinding); ok {
		l.resolvers[rb.Resolver().Tag()] = rb.Resolver()
		e := &entry{owner: l, binding: b, key: d.ID()}
		l.ids[d.ID()] = e
		inject.Debugf("registered %s", b)
		return e
	}
	rank, ranked := d.Rank()
	main := l.add(&entry{
		binding:    b,
		key:        d.ID(),
		contracts:  inject.EffectiveContracts(b),
		qualifiers: d.Qualifiers(),
		scope:      defaultScope(b, d.Scope()),
		rank:       rank,
		ranked:     ranked,
	})
	if sb, ok := b.(*inject.SupplierClassBinding); ok {
		main.supplier = &entry{
			owner:   l,
			binding: inject.NewClassBinding(sb.SupplierType()),
			key:     -d.ID(),
			scope:   defaultSupplierScope(sb.SupplierScope()),
		}
	}
	for _, alias := range d.Aliases() {
		scope := alias.Scope()
		if scope == inject.NoScope {
			scope = main.scope
		}
		aliasRank, aliasRanked := alias.Rank()
		if !aliasRanked {
			aliasRank, aliasRanked = rank, ranked
		}
		l.add(&entry{
			binding:    b,
			key:        d.ID(),
			contracts:  []reflect.Type{alias.Contract()},
			qualifiers: alias.Qualifiers(),
			scope:      scope,
			rank:       aliasRank,
			ranked:     aliasRanked,
			supplier:   main.supplier,
		})
	}
	l.ids[d.ID()] = main
	inject.Debugf("registered %s", b)
	return main
}

func (l *Locator) add(e *entry) *entry {
	l.seq++
	e.owner = l
	e.seq = l.seq
	l.entries = append(l.entries, e)
	for _, c := range e.contracts {
		l.byContract[c] = append(l.byContract[c], e)
	}
	return e
}

func defaultScope(b inject.Binding, scope inject.Scope) inject.Scope {
	if scope != inject.NoScope {
		return scope
	}
	if b.Kind() == inject.InstanceKind {
		return inject.Singleton
	}
	return inject.PerLookup
}

func defaultSupplierScope(scope inject.Scope) inject.Scope {
	if scope == inject.NoScope {
		return inject.PerLookup
	}
	return scope
}

// RegisterBinder registers the bindings of each binder
func (l *Locator) RegisterBinder(binders ...inject.Binder) error {
	for _, b := range binders {
		if ma, ok := b.(inject.ManagerAware); ok {
			ma.SetInjectionManager(l)
		}
		bindings, err := b.Bindings()
		if err != nil {
			return err
		}
		if err := l.Register(bindings...); err != nil {
			return err
		}
	}
	return nil
}

var (
	binderType        = inject.TypeOf[inject.Binder]()
	bindingType       = inject.TypeOf[inject.Binding]()
	scopeResolverType = inject.TypeOf[inject.ScopeResolver]()
)

// IsRegistrable is true for Binders, Bindings, and ScopeResolvers
func (l *Locator) IsRegistrable(t reflect.Type) bool {
	return t != nil && (t.Implements(binderType) || t.Implements(bindingType) || t.Implements(scopeResolverType))
}

// RegisterProvider registers a Binder, a Binding, or a ScopeResolver
func (l *Locator) RegisterProvider(provider any) error {
	switch p := provider.(type) {
	case inject.Binder:
		return l.RegisterBinder(p)
	case inject.Binding:
		return l.Register(p)
	case inject.ScopeResolver:
		l.lock.Lock()
		defer l.lock.Unlock()
		l.scopes[p.Scope()] = p
		return nil
	default:
		return errors.WithStack(&inject.UnsupportedProviderError{Type: reflect.TypeOf(provider)})
	}
}

// matches returns entries for contract that have all of the qualifiers,
// ordered by descending rank then registration order.
func (l *Locator) matches(contract reflect.Type, qualifiers []inject.Qualifier) []*entry {
	l.lock.RLock()
	candidates := l.byContract[contract]
	found := make([]*entry, 0, len(candidates))
	for _, e := range candidates {
		if inject.HasQualifiers(e.qualifiers, qualifiers...) {
			found = append(found, e)
		}
	}
	l.lock.RUnlock()
	sortEntries(found)
	return found
}

// GetAllServiceHolders resolves every match
func (l *Locator) GetAllServiceHolders(ctx context.Context, contract reflect.Type, qualifiers ...inject.Qualifier) ([]inject.ServiceHolder, error) {
	if err := l.checkReady("GetAllServiceHolders"); err != nil {
		return nil, err
	}
	found := l.matches(contract, qualifiers)
	if len(found) == 0 && l.parent != nil {
		return l.parent.GetAllServiceHolders(ctx, contract, qualifiers...)
	}
	holders := make([]inject.ServiceHolder, 0, len(found))
	for _, e := range found {
		instance, err := l.instance(ctx, e)
		if err != nil {
			return nil, err
		}
		holders = append(holders, e.holder(instance))
	}
	return holders, nil
}

// GetInstance resolves the best match or returns nil
func (l *Locator) GetInstance(ctx context.Context, contract reflect.Type, qualifiers ...inject.Qualifier) (any, error) {
	if err := l.checkReady("GetInstance"); err != nil {
		return nil, err
	}
	found := l.matches(contract, qualifiers)
	if len(found) == 0 {
		if l.parent != nil {
			return l.parent.GetInstance(ctx, contract, qualifiers...)
		}
		return nil, nil
	}
	return l.instance(ctx, found[0])
}

func (l *Locator) GetAllInstances(ctx context.Context, contract reflect.Type, qualifiers ...inject.Qualifier) ([]any, error) {
	holders, err := l.GetAllServiceHolders(ctx, contract, qualifiers...)
	if err != nil {
		return nil, err
	}
	return inject.Instances(holders), nil
}

// CreateForeignDescriptor registers the binding if needed and returns a
// handle to it.
func (l *Locator) CreateForeignDescriptor(b inject.Binding) (*inject.ForeignDescriptor, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	l.lock.Lock()
	if l.state == shutdown {
		l.lock.Unlock()
		return nil, inject.IllegalState("CreateForeignDescriptor", inject.ErrShutdown)
	}
	e := l.register(b)
	l.lock.Unlock()
	return &inject.ForeignDescriptor{
		Binding: b,
		Handle:  e,
		Disposer: func(instance any) {
			if pd, ok := instance.(inject.PreDestroyer); ok {
				pd.PreDestroy()
			}
		},
	}, nil
}

func (l *Locator) GetInstanceFromForeign(ctx context.Context, fd *inject.ForeignDescriptor) (any, error) {
	if err := l.checkReady("GetInstanceFromForeign"); err != nil {
		return nil, err
	}
	e, ok := fd.Handle.(*entry)
	if !ok || e.owner != l {
		return nil, errors.Errorf("foreign descriptor for %s was not created by this locator", fd.Binding)
	}
	return l.instance(ctx, e)
}

// describeCandidates lists everything bound to contract regardless of
// qualifiers, for error details.
func (l *Locator) describeCandidates(contract reflect.Type) string {
	l.lock.RLock()
	defer l.lock.RUnlock()
	candidates := l.byContract[contract]
	if len(candidates) == 0 {
		return "nothing is bound to " + contract.String()
	}
	s := make([]string, len(candidates))
	for i, e := range candidates {
		s[i] = e.String()
	}
	return "bound to " + contract.String() + ":\n\t" + strings.Join(s, "\n\t")
}
