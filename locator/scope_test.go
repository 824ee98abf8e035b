package locator_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	inject "github.com/eclipse-ee4j/jersey-sub005"
	"github.com/eclipse-ee4j/jersey-sub005/locator"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	n int32
}

type counted struct {
	ID int32
}

func countingBinding(c *counter, scope inject.Scope) *inject.ClassBinding {
	return inject.NewClassBinding(inject.TypeOf[*counted]()).
		To(inject.TypeOf[*counted]()).
		In(scope).
		Constructor(func() *counted {
			return &counted{ID: atomic.AddInt32(&c.n, 1)}
		})
}

func TestSingletonScope(t *testing.T) {
	var c counter
	l := ready(t, countingBinding(&c, inject.Singleton))
	a, err := inject.Get[*counted](context.Background(), l)
	require.NoError(t, err)
	b, err := inject.Get[*counted](context.Background(), l)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestPerLookupScope(t *testing.T) {
	var c counter
	l := ready(t, countingBinding(&c, inject.PerLookup))
	a, err := inject.Get[*counted](context.Background(), l)
	require.NoError(t, err)
	b, err := inject.Get[*counted](context.Background(), l)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestUnscopedClassIsPerLookup(t *testing.T) {
	var c counter
	l := ready(t, countingBinding(&c, inject.NoScope))
	_, _ = inject.Get[*counted](context.Background(), l)
	_, _ = inject.Get[*counted](context.Background(), l)
	assert.Equal(t, int32(2), atomic.LoadInt32(&c.n))
}

type disposingSupplier struct {
	disposed []any
	lock     sync.Mutex
}

func (s *disposingSupplier) Get(ctx context.Context) (any, error) {
	return &counted{ID: 99}, nil
}

func (s *disposingSupplier) Dispose(instance any) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.disposed = append(s.disposed, instance)
}

func TestRequestScope(t *testing.T) {
	var c counter
	supplier := &disposingSupplier{}
	l := ready(t,
		countingBinding(&c, inject.RequestScoped),
		inject.NewSupplierInstanceBinding(supplier).
			To(inject.TypeOf[*counted]()).
			Named("supplied").
			In(inject.RequestScoped),
	)

	_, err := inject.Get[*counted](context.Background(), l)
	require.Error(t, err)
	assert.True(t, errors.Is(err, inject.ErrNotInRequestScope))

	rc1 := inject.NewRequestContext()
	ctx1 := inject.WithRequestContext(context.Background(), rc1)
	a1, err := inject.Get[*counted](ctx1, l)
	require.NoError(t, err)
	a2, err := inject.Get[*counted](ctx1, l)
	require.NoError(t, err)
	assert.Same(t, a1, a2)

	rc2 := inject.NewRequestContext()
	assert.NotEqual(t, rc1.ID(), rc2.ID())
	ctx2 := inject.WithRequestContext(context.Background(), rc2)
	b1, err := inject.Get[*counted](ctx2, l)
	require.NoError(t, err)
	assert.NotSame(t, a1, b1)

	s1, err := inject.Get[*counted](ctx1, l, inject.Named("supplied"))
	require.NoError(t, err)
	assert.Equal(t, int32(99), s1.ID)

	rc1.Release()
	rc1.Release()
	assert.Equal(t, []any{s1}, supplier.disposed)

	_, err = inject.Get[*counted](ctx1, l)
	assert.True(t, errors.Is(err, inject.ErrReleased))
}

func TestPerThreadScope(t *testing.T) {
	var c counter
	l := ready(t, countingBinding(&c, inject.PerThread))
	a, err := inject.Get[*counted](context.Background(), l)
	require.NoError(t, err)
	b, err := inject.Get[*counted](context.Background(), l)
	require.NoError(t, err)
	assert.Same(t, a, b)

	var other *counted
	done := make(chan struct{})
	go func() {
		defer close(done)
		other, err = inject.Get[*counted](context.Background(), l)
	}()
	<-done
	require.NoError(t, err)
	assert.NotSame(t, a, other)
}

type tenantScope struct {
	lock      sync.Mutex
	tenants   map[string]map[int64]any
	disposers map[string][]func()
}

type tenantKey struct{}

func (s *tenantScope) Scope() inject.Scope { return "tenant" }

func (s *tenantScope) Resolve(ctx context.Context, key int64, create func() (any, error), dispose func(any)) (any, error) {
	tenant, _ := ctx.Value(tenantKey{}).(string)
	s.lock.Lock()
	defer s.lock.Unlock()
	m, ok := s.tenants[tenant]
	if !ok {
		m = make(map[int64]any)
		s.tenants[tenant] = m
	}
	if v, ok := m[key]; ok {
		return v, nil
	}
	v, err := create()
	if err != nil {
		return nil, err
	}
	m[key] = v
	s.disposers[tenant] = append(s.disposers[tenant], func() { dispose(v) })
	return v, nil
}

// end closes out one tenant
func (s *tenantScope) end(tenant string) {
	s.lock.Lock()
	disposers := s.disposers[tenant]
	delete(s.disposers, tenant)
	delete(s.tenants, tenant)
	s.lock.Unlock()
	for i := len(disposers) - 1; i >= 0; i-- {
		disposers[i]()
	}
}

func newTenantScope() *tenantScope {
	return &tenantScope{
		tenants:   map[string]map[int64]any{},
		disposers: map[string][]func(){},
	}
}

func TestCustomScope(t *testing.T) {
	var c counter
	l := locator.New(locator.WithLogger(inject.NoLogger()))
	require.NoError(t, l.Register(countingBinding(&c, "tenant")))
	err := l.CompleteRegistration()
	var se *inject.ScopeError
	require.True(t, errors.As(err, &se), "missing scope resolver")
	assert.Equal(t, inject.Scope("tenant"), se.Scope)

	require.NoError(t, l.RegisterProvider(newTenantScope()))
	require.NoError(t, l.CompleteRegistration())

	red := context.WithValue(context.Background(), tenantKey{}, "red")
	blue := context.WithValue(context.Background(), tenantKey{}, "blue")
	r1, err := inject.Get[*counted](red, l)
	require.NoError(t, err)
	r2, err := inject.Get[*counted](red, l)
	require.NoError(t, err)
	b1, err := inject.Get[*counted](blue, l)
	require.NoError(t, err)
	assert.Same(t, r1, r2)
	assert.NotSame(t, r1, b1)
}

type tenantGreeting struct {
	destroyed bool
}

func (g *tenantGreeting) PreDestroy() { g.destroyed = true }

type greetingSupplier struct {
	disposingSupplier
}

func (s *greetingSupplier) Get(ctx context.Context) (any, error) {
	return &tenantGreeting{}, nil
}

func TestCustomScopeDisposes(t *testing.T) {
	supplier := &greetingSupplier{}
	scope := newTenantScope()
	l := locator.New(locator.WithLogger(inject.NoLogger()), locator.WithScope(scope))
	require.NoError(t, l.Register(inject.NewSupplierInstanceBinding(supplier).
		To(inject.TypeOf[*tenantGreeting]()).
		In("tenant")))
	require.NoError(t, l.CompleteRegistration())

	red := context.WithValue(context.Background(), tenantKey{}, "red")
	g, err := inject.Get[*tenantGreeting](red, l)
	require.NoError(t, err)
	again, err := inject.Get[*tenantGreeting](red, l)
	require.NoError(t, err)
	assert.Same(t, g, again)
	assert.Empty(t, supplier.disposed)

	scope.end("red")
	assert.True(t, g.destroyed)
	assert.Equal(t, []any{g}, supplier.disposed)
}

type sessionCache struct {
	Counted *counted `inject:""`
}

func TestFailedSingletonIsRetried(t *testing.T) {
	var c counter
	l := ready(t,
		countingBinding(&c, inject.RequestScoped),
		inject.NewContractBinding(inject.TypeOf[*sessionCache]()).In(inject.Singleton),
	)
	_, err := inject.Get[*sessionCache](context.Background(), l)
	require.Error(t, err)
	assert.True(t, errors.Is(err, inject.ErrNotInRequestScope))

	ctx := inject.WithRequestContext(context.Background(), inject.NewRequestContext())
	first, err := inject.Get[*sessionCache](ctx, l)
	require.NoError(t, err)
	require.NotNil(t, first.Counted)

	again, err := inject.Get[*sessionCache](context.Background(), l)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&c.n))
}

type clockSupplier struct {
	made int32
}

func (s *clockSupplier) Get(ctx context.Context) (any, error) {
	return &counted{ID: atomic.AddInt32(&s.made, 1)}, nil
}

func TestSupplierClassScopesAreIndependent(t *testing.T) {
	l := ready(t,
		inject.NewSupplierClassBinding(inject.TypeOf[*clockSupplier](), inject.Singleton).
			To(inject.TypeOf[*counted]()).
			In(inject.PerLookup),
	)
	ctx := context.Background()
	a, err := inject.Get[*counted](ctx, l)
	require.NoError(t, err)
	b, err := inject.Get[*counted](ctx, l)
	require.NoError(t, err)
	// the values are per lookup but come from a single supplier
	assert.Equal(t, int32(1), a.ID)
	assert.Equal(t, int32(2), b.ID)
}

func TestAliasesShareSingleton(t *testing.T) {
	b := inject.NewClassBinding(inject.TypeOf[*counted]()).
		To(inject.TypeOf[*counted]()).
		In(inject.Singleton)
	b.AddAlias(inject.TypeOf[any]()).QualifiedBy(inject.Custom).Ranked(7)
	l := ready(t, b)
	ctx := context.Background()
	main, err := l.GetInstance(ctx, inject.TypeOf[*counted]())
	require.NoError(t, err)
	alias, err := l.GetInstance(ctx, inject.TypeOf[any](), inject.Custom)
	require.NoError(t, err)
	assert.Same(t, main, alias)

	holders, err := l.GetAllServiceHolders(ctx, inject.TypeOf[any]())
	require.NoError(t, err)
	require.Len(t, holders, 1)
	assert.Equal(t, 7, holders[0].Rank())
}
