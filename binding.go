package inject

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"
)

// BindingKind says how a binding produces its service.
type BindingKind int

const (
	ClassKind             BindingKind = iota // class
	InstanceKind                             // instance
	SupplierClassKind                        // supplier-class
	SupplierInstanceKind                     // supplier-instance
	InjectionResolverKind                    // injection-resolver
)

func (k BindingKind) String() string {
	switch k {
	case ClassKind:
		return "class"
	case InstanceKind:
		return "instance"
	case SupplierClassKind:
		return "supplier-class"
	case SupplierInstanceKind:
		return "supplier-instance"
	case InjectionResolverKind:
		return "injection-resolver"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Binding describes one injectable service.  There are exactly five
// implementations: *ClassBinding, *InstanceBinding, *SupplierClassBinding,
// *SupplierInstanceBinding, and *InjectionResolverBinding.  Switch on the
// concrete type (or on Kind) to get at the variant-specific fields.
//
// Bindings are configured with chained calls until they are registered
// with an InjectionManager, after which they must not be modified.
type Binding interface {
	Kind() BindingKind
	// Desc returns the fields common to every variant
	Desc() *Descriptor
	// Validate reports construction errors (like a nil instance) that
	// the fluent API cannot return directly.
	Validate() error
	String() string
}

// Supplier produces instances for supplier bindings.
type Supplier interface {
	Get(ctx context.Context) (any, error)
}

// SupplierFunc adapts a function to be a Supplier
type SupplierFunc func(ctx context.Context) (any, error)

func (f SupplierFunc) Get(ctx context.Context) (any, error) { return f(ctx) }

// DisposableSupplier is a Supplier that wants to be told when an
// instance it produced goes out of scope.
type DisposableSupplier interface {
	Supplier
	Dispose(instance any)
}

// InjectionResolver supplies the values for fields tagged with its Tag().
// For example, a resolver whose Tag() is "context" fills
//
//	Request *filter.Request `context:""`
type InjectionResolver interface {
	Tag() string
	Resolve(ctx context.Context, injectee Injectee) (any, error)
}

var supplierType = TypeOf[Supplier]()

var idCounter int64

// Descriptor holds the fields shared by every binding variant.
type Descriptor struct {
	contracts         []reflect.Type
	qualifiers        []Qualifier
	scope             Scope
	name              string
	rank              int
	ranked            bool
	implementation    reflect.Type
	aliases           []*AliasBinding
	proxiable         *bool
	proxyForSameScope *bool
	analyzer          string
	forClient         bool
	id                int64
}

func newDescriptor(impl reflect.Type) Descriptor {
	return Descriptor{
		implementation: impl,
		contracts:      []reflect.Type{},
		id:             atomic.AddInt64(&idCounter, 1),
	}
}

// Contracts returns the contract types.  The returned slice must not be modified.
func (d *Descriptor) Contracts() []reflect.Type { return d.contracts }

// Qualifiers returns the qualifiers.  The returned slice must not be modified.
func (d *Descriptor) Qualifiers() []Qualifier { return d.qualifiers }

func (d *Descriptor) Scope() Scope                 { return d.scope }
func (d *Descriptor) Name() string                 { return d.name }
func (d *Descriptor) Implementation() reflect.Type { return d.implementation }
func (d *Descriptor) Aliases() []*AliasBinding     { return d.aliases }
func (d *Descriptor) ClassAnalyzer() string        { return d.analyzer }
func (d *Descriptor) IsForClient() bool            { return d.forClient }
func (d *Descriptor) ID() int64                    { return d.id }

// Rank returns the rank and whether one was set.  Unranked bindings
// sort as rank 0.
func (d *Descriptor) Rank() (int, bool) { return d.rank, d.ranked }

// IsProxiable returns the proxiable flag and whether it was set.
func (d *Descriptor) IsProxiable() (bool, bool) {
	if d.proxiable == nil {
		return false, false
	}
	return *d.proxiable, true
}

// IsProxiedForSameScope returns the flag and whether it was set.
func (d *Descriptor) IsProxiedForSameScope() (bool, bool) {
	if d.proxyForSameScope == nil {
		return false, false
	}
	return *d.proxyForSameScope, true
}

func (d *Descriptor) to(contracts ...reflect.Type) {
	for _, c := range contracts {
		if c != nil && !containsType(d.contracts, c) {
			d.contracts = append(d.contracts, c)
		}
	}
}

func (d *Descriptor) qualifiedBy(qualifiers ...Qualifier) {
	for _, q := range qualifiers {
		if q.IsNamed() {
			d.name = q.Value
		}
		if !HasQualifiers(d.qualifiers, q) {
			d.qualifiers = append(d.qualifiers, q)
		}
	}
}

func (d *Descriptor) named(name string) {
	d.qualifiedBy(Named(name))
}

func (d *Descriptor) addAlias(contract reflect.Type) *AliasBinding {
	a := &AliasBinding{contract: contract}
	d.aliases = append(d.aliases, a)
	return a
}

func (d *Descriptor) describe(kind BindingKind, what string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s binding #%d %s", kind, d.id, what)
	if len(d.contracts) > 0 {
		fmt.Fprintf(&b, " to [%s]", strings.Join(typeNames(d.contracts), ", "))
	}
	if d.scope != NoScope {
		fmt.Fprintf(&b, " in %s", d.scope)
	}
	if d.ranked {
		fmt.Fprintf(&b, " rank %d", d.rank)
	}
	if len(d.qualifiers) > 0 {
		b.WriteString(" " + qualifierSet(d.qualifiers))
	}
	return b.String()
}

// EffectiveContracts is the set of contracts a binding is advertised
// under.  Instance bindings with no explicit contracts default to the
// runtime type of the instance.
func EffectiveContracts(b Binding) []reflect.Type {
	d := b.Desc()
	if len(d.contracts) == 0 && d.implementation != nil {
		return []reflect.Type{d.implementation}
	}
	return d.contracts
}

// AliasBinding is a secondary registration that shares the lifecycle of
// its parent binding but advertises a different contract, possibly with
// its own scope, rank, and qualifiers.
type AliasBinding struct {
	contract   reflect.Type
	scope      Scope
	rank       int
	ranked     bool
	qualifiers []Qualifier
}

func (a *AliasBinding) Contract() reflect.Type  { return a.contract }
func (a *AliasBinding) Scope() Scope            { return a.scope }
func (a *AliasBinding) Rank() (int, bool)       { return a.rank, a.ranked }
func (a *AliasBinding) Qualifiers() []Qualifier { return a.qualifiers }

// In sets the alias scope.  An alias with NoScope uses its parent's scope.
func (a *AliasBinding) In(scope Scope) *AliasBinding {
	a.scope = scope
	return a
}

func (a *AliasBinding) Ranked(rank int) *AliasBinding {
	a.rank = rank
	a.ranked = true
	return a
}

func (a *AliasBinding) QualifiedBy(qualifiers ...Qualifier) *AliasBinding {
	for _, q := range qualifiers {
		if !HasQualifiers(a.qualifiers, q) {
			a.qualifiers = append(a.qualifiers, q)
		}
	}
	return a
}

//
// ClassBinding
//

// ClassBinding produces instances by instantiating a concrete type.  If
// a constructor function has been provided, it is called with its
// parameters injected; otherwise the type is allocated and its tagged
// fields are injected.
type ClassBinding struct {
	Descriptor
	service     reflect.Type
	constructor any
}

var _ Binding = &ClassBinding{}

// NewClassBinding creates a binding for a service type.  The service type
// is not a contract unless added with To().
func NewClassBinding(service reflect.Type) *ClassBinding {
	return &ClassBinding{
		Descriptor: newDescriptor(service),
		service:    service,
	}
}

// NewContractBinding creates a binding for a service type that is also
// its own contract.
func NewContractBinding(service reflect.Type) *ClassBinding {
	b := NewClassBinding(service)
	b.to(service)
	return b
}

func (b *ClassBinding) Kind() BindingKind                            { return ClassKind }
func (b *ClassBinding) Desc() *Descriptor                            { return &b.Descriptor }
func (b *ClassBinding) Service() reflect.Type                        { return b.service }
func (b *ClassBinding) ConstructorFunc() any                         { return b.constructor }
func (b *ClassBinding) String() string                               { return b.describe(ClassKind, typeName(b.service)) }
func (b *ClassBinding) AddAlias(contract reflect.Type) *AliasBinding { return b.addAlias(contract) }

func (b *ClassBinding) To(contracts ...reflect.Type) *ClassBinding { b.to(contracts...); return b }
func (b *ClassBinding) In(scope Scope) *ClassBinding               { b.scope = scope; return b }
func (b *ClassBinding) Named(name string) *ClassBinding            { b.named(name); return b }
func (b *ClassBinding) Ranked(rank int) *ClassBinding              { b.rank, b.ranked = rank, true; return b }
func (b *ClassBinding) Proxy(p bool) *ClassBinding                 { b.proxiable = &p; return b }
func (b *ClassBinding) ProxyForSameScope(p bool) *ClassBinding     { b.proxyForSameScope = &p; return b }
func (b *ClassBinding) Analyzer(name string) *ClassBinding         { b.analyzer = name; return b }
func (b *ClassBinding) ForClient(c bool) *ClassBinding             { b.forClient = c; return b }
func (b *ClassBinding) WithID(id int64) *ClassBinding              { b.id = id; return b }

func (b *ClassBinding) QualifiedBy(qualifiers ...Qualifier) *ClassBinding {
	b.qualifiedBy(qualifiers...)
	return b
}

// Constructor sets the function used to build instances.  It must
// return the service (or something assignable to it) and optionally
// an error.  Its parameters are resolved as injection points.
func (b *ClassBinding) Constructor(fn any) *ClassBinding {
	b.constructor = fn
	return b
}

func (b *ClassBinding) Validate() error {
	if b.service == nil {
		return &NilInstanceError{What: "class binding service type"}
	}
	if b.constructor != nil {
		if _, err := describeConstructor(b.constructor, b.service); err != nil {
			return err
		}
		return nil
	}
	if !instantiable(b.service) {
		return fmt.Errorf("class binding %s: type cannot be instantiated without a constructor", typeName(b.service))
	}
	return nil
}

// instantiable is true for struct types and pointers to struct types
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

//
// InstanceBinding
//

// InstanceBinding binds exactly one already-constructed object.
type InstanceBinding struct {
	Descriptor
	service any
}

var _ Binding = &InstanceBinding{}

// NewInstanceBinding binds an object.  A nil object is reported by Validate.
func NewInstanceBinding(service any) *InstanceBinding {
	var impl reflect.Type
	if service != nil {
		impl = reflect.TypeOf(service)
	}
	return &InstanceBinding{
		Descriptor: newDescriptor(impl),
		service:    service,
	}
}

func (b *InstanceBinding) Kind() BindingKind                            { return InstanceKind }
func (b *InstanceBinding) Desc() *Descriptor                            { return &b.Descriptor }
func (b *InstanceBinding) Service() any                                 { return b.service }
func (b *InstanceBinding) String() string                               { return b.describe(InstanceKind, typeName(b.implementation)) }
func (b *InstanceBinding) AddAlias(contract reflect.Type) *AliasBinding { return b.addAlias(contract) }

func (b *InstanceBinding) To(contracts ...reflect.Type) *InstanceBinding { b.to(contracts...); return b }
func (b *InstanceBinding) In(scope Scope) *InstanceBinding               { b.scope = scope; return b }
func (b *InstanceBinding) Named(name string) *InstanceBinding            { b.named(name); return b }
func (b *InstanceBinding) Ranked(rank int) *InstanceBinding              { b.rank, b.ranked = rank, true; return b }
func (b *InstanceBinding) Proxy(p bool) *InstanceBinding                 { b.proxiable = &p; return b }
func (b *InstanceBinding) ProxyForSameScope(p bool) *InstanceBinding {
	b.proxyForSameScope = &p
	return b
}
func (b *InstanceBinding) Analyzer(name string) *InstanceBinding { b.analyzer = name; return b }
func (b *InstanceBinding) ForClient(c bool) *InstanceBinding     { b.forClient = c; return b }
func (b *InstanceBinding) WithID(id int64) *InstanceBinding      { b.id = id; return b }

func (b *InstanceBinding) QualifiedBy(qualifiers ...Qualifier) *InstanceBinding {
	b.qualifiedBy(qualifiers...)
	return b
}

func (b *InstanceBinding) Validate() error {
	if isNil(b.service) {
		return &NilInstanceError{What: "instance binding"}
	}
	return nil
}

//
// SupplierClassBinding
//

// SupplierClassBinding names a Supplier implementation type.  The
// supplier itself is created by the InjectionManager and lives in the
// supplier scope; the values it produces live in the binding scope.
// The two scopes are independent.
type SupplierClassBinding struct {
	Descriptor
	supplierType  reflect.Type
	supplierScope Scope
}

var _ Binding = &SupplierClassBinding{}

// NewSupplierClassBinding creates a binding for a Supplier type
func NewSupplierClassBinding(supplier reflect.Type, supplierScope Scope) *SupplierClassBinding {
	return &SupplierClassBinding{
		Descriptor:    newDescriptor(nil),
		supplierType:  supplier,
		supplierScope: supplierScope,
	}
}

func (b *SupplierClassBinding) Kind() BindingKind          { return SupplierClassKind }
func (b *SupplierClassBinding) Desc() *Descriptor          { return &b.Descriptor }
func (b *SupplierClassBinding) SupplierType() reflect.Type { return b.supplierType }
func (b *SupplierClassBinding) SupplierScope() Scope       { return b.supplierScope }
func (b *SupplierClassBinding) String() string {
	return b.describe(SupplierClassKind, typeName(b.supplierType))
}
func (b *SupplierClassBinding) AddAlias(contract reflect.Type) *AliasBinding {
	return b.addAlias(contract)
}

func (b *SupplierClassBinding) To(contracts ...reflect.Type) *SupplierClassBinding {
	b.to(contracts...)
	return b
}
func (b *SupplierClassBinding) In(scope Scope) *SupplierClassBinding    { b.scope = scope; return b }
func (b *SupplierClassBinding) Named(name string) *SupplierClassBinding { b.named(name); return b }
func (b *SupplierClassBinding) Ranked(rank int) *SupplierClassBinding {
	b.rank, b.ranked = rank, true
	return b
}
func (b *SupplierClassBinding) Proxy(p bool) *SupplierClassBinding { b.proxiable = &p; return b }
func (b *SupplierClassBinding) ProxyForSameScope(p bool) *SupplierClassBinding {
	b.proxyForSameScope = &p
	return b
}
func (b *SupplierClassBinding) Analyzer(name string) *SupplierClassBinding {
	b.analyzer = name
	return b
}
func (b *SupplierClassBinding) ForClient(c bool) *SupplierClassBinding { b.forClient = c; return b }
func (b *SupplierClassBinding) WithID(id int64) *SupplierClassBinding  { b.id = id; return b }

func (b *SupplierClassBinding) QualifiedBy(qualifiers ...Qualifier) *SupplierClassBinding {
	b.qualifiedBy(qualifiers...)
	return b
}

func (b *SupplierClassBinding) Validate() error {
	if b.supplierType == nil {
		return &NilInstanceError{What: "supplier class binding supplier type"}
	}
	if !b.supplierType.Implements(supplierType) {
		return fmt.Errorf("supplier class binding: %s does not implement %s",
			typeName(b.supplierType), typeName(supplierType))
	}
	if !instantiable(b.supplierType) {
		return fmt.Errorf("supplier class binding: %s cannot be instantiated", typeName(b.supplierType))
	}
	return nil
}

//
// SupplierInstanceBinding
//

// SupplierInstanceBinding uses a Supplier object to produce instances.
type SupplierInstanceBinding struct {
	Descriptor
	supplier Supplier
}

var _ Binding = &SupplierInstanceBinding{}

// NewSupplierInstanceBinding creates a binding around a Supplier
func NewSupplierInstanceBinding(supplier Supplier) *SupplierInstanceBinding {
	return &SupplierInstanceBinding{
		Descriptor: newDescriptor(nil),
		supplier:   supplier,
	}
}

func (b *SupplierInstanceBinding) Kind() BindingKind  { return SupplierInstanceKind }
func (b *SupplierInstanceBinding) Desc() *Descriptor  { return &b.Descriptor }
func (b *SupplierInstanceBinding) Supplier() Supplier { return b.supplier }
func (b *SupplierInstanceBinding) String() string {
	return b.describe(SupplierInstanceKind, fmt.Sprintf("%T", b.supplier))
}
func (b *SupplierInstanceBinding) AddAlias(contract reflect.Type) *AliasBinding {
	return b.addAlias(contract)
}

func (b *SupplierInstanceBinding) To(contracts ...reflect.Type) *SupplierInstanceBinding {
	b.to(contracts...)
	return b
}
func (b *SupplierInstanceBinding) In(scope Scope) *SupplierInstanceBinding    { b.scope = scope; return b }
func (b *SupplierInstanceBinding) Named(name string) *SupplierInstanceBinding { b.named(name); return b }
func (b *SupplierInstanceBinding) Ranked(rank int) *SupplierInstanceBinding {
	b.rank, b.ranked = rank, true
	return b
}
func (b *SupplierInstanceBinding) Proxy(p bool) *SupplierInstanceBinding { b.proxiable = &p; return b }
func (b *SupplierInstanceBinding) ProxyForSameScope(p bool) *SupplierInstanceBinding {
	b.proxyForSameScope = &p
	return b
}
func (b *SupplierInstanceBinding) Analyzer(name string) *SupplierInstanceBinding {
	b.analyzer = name
	return b
}
func (b *SupplierInstanceBinding) ForClient(c bool) *SupplierInstanceBinding {
	b.forClient = c
	return b
}
func (b *SupplierInstanceBinding) WithID(id int64) *SupplierInstanceBinding { b.id = id; return b }

func (b *SupplierInstanceBinding) QualifiedBy(qualifiers ...Qualifier) *SupplierInstanceBinding {
	b.qualifiedBy(qualifiers...)
	return b
}

func (b *SupplierInstanceBinding) Validate() error {
	if isNil(b.supplier) {
		return &NilInstanceError{What: "supplier instance binding"}
	}
	return nil
}

//
// InjectionResolverBinding
//

// InjectionResolverBinding registers an InjectionResolver.  The resolver
// is the only meaningful field.
type InjectionResolverBinding struct {
	Descriptor
	resolver InjectionResolver
}

var _ Binding = &InjectionResolverBinding{}

// NewInjectionResolverBinding creates a binding for a resolver
func NewInjectionResolverBinding(resolver InjectionResolver) *InjectionResolverBinding {
	var impl reflect.Type
	if resolver != nil {
		impl = reflect.TypeOf(resolver)
	}
	return &InjectionResolverBinding{
		Descriptor: newDescriptor(impl),
		resolver:   resolver,
	}
}

func (b *InjectionResolverBinding) Kind() BindingKind           { return InjectionResolverKind }
func (b *InjectionResolverBinding) Desc() *Descriptor           { return &b.Descriptor }
func (b *InjectionResolverBinding) Resolver() InjectionResolver { return b.resolver }
func (b *InjectionResolverBinding) String() string {
	if b.resolver == nil {
		return b.describe(InjectionResolverKind, "<nil>")
	}
	return b.describe(InjectionResolverKind, fmt.Sprintf("%T for tag %q", b.resolver, b.resolver.Tag()))
}

func (b *InjectionResolverBinding) Validate() error {
	if isNil(b.resolver) {
		return &NilInstanceError{What: "injection resolver binding"}
	}
	return nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
