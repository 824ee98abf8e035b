// Obligatory // comment

/*
Package inject is the binding layer between components and a dependency
injection back end.  Components are described with bindings; bindings are
grouped into Binders; Binders are registered with an InjectionManager
which resolves instances by contract, qualifiers, and rank.

# Bindings

There are five kinds of binding, one per way of producing a service:

	NewClassBinding(t)              instantiate t (or call a constructor)
	NewInstanceBinding(v)           always v
	NewSupplierClassBinding(t, s)   create a Supplier of type t, ask it
	NewSupplierInstanceBinding(s)   ask Supplier s
	NewInjectionResolverBinding(r)  fill fields tagged r.Tag()

Each returns its concrete type so that configuration chains:

	b := inject.NewClassBinding(inject.TypeOf[*fileCache]()).
		To(inject.TypeOf[Cache]()).
		In(inject.Singleton).
		Named("files").
		Ranked(10)

Contracts are cumulative.  Named sets the name and adds the Named
qualifier.  Once a binding is registered it must not be changed.

# Binders

Most code writes bindings inside an AbstractBinder:

	var CacheBinder = inject.NewBinder("cache", func(b *inject.AbstractBinder) error {
		b.Install(StorageBinder)
		b.Bind(inject.TypeOf[*fileCache]()).To(inject.TypeOf[Cache]()).In(inject.Singleton)
		b.BindInstance(defaultConfig)
		return nil
	})

The configure function runs once no matter how many times Bindings()
is called.  Bindings of installed binders come first, depth first, in
install order.

# Resolution

InjectionManager.GetInstance returns the best match: highest rank, with
ties going to the binding registered first.  GetAllServiceHolders returns
every match in that order.  Nothing matching is not an error.

# Scopes

Singleton, RequestScoped, PerLookup and PerThread are built in.  Request
scoped instances live in a RequestContext carried by the context.Context
passed to lookups:

	rc := inject.NewRequestContext()
	defer rc.Release()
	ctx = inject.WithRequestContext(ctx, rc)

# Injection points

Struct fields tagged `inject:""` are filled by Inject and by
CreateAndInitialize.  See InjectTag for the tag options.
*/
package inject
