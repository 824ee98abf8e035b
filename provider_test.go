package inject_test

import (
	"bytes"
	"context"
	"log"
	"reflect"
	"testing"

	inject "github.com/eclipse-ee4j/jersey-sub005"
	"github.com/eclipse-ee4j/jersey-sub005/locator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Reader interface {
	Read() string
}

type Writer interface {
	Write(string)
}

func init() {
	inject.RegisterProviderContract(inject.TypeOf[Reader](), inject.TypeOf[Writer]())
}

type jsonReader struct{}

func (*jsonReader) Read() string  { return "json" }
func (*jsonReader) Priority() int { return 20 }

type xmlReader struct{ version int }

func (*xmlReader) Read() string { return "xml" }
func (*xmlReader) PerLookup()   {}

type readWriter struct{ last string }

func (*readWriter) Read() string      { return "rw" }
func (rw *readWriter) Write(s string) { rw.last = s }

type clientReader struct{}

func (*clientReader) Read() string                      { return "client" }
func (*clientReader) ConstrainedTo() inject.RuntimeType { return inject.Client }

type widgets struct{ count int }

func (*widgets) ResourcePath() string { return "/widgets" }
func (*widgets) Read() string         { return "widgets" }

type clientOnlyResource struct{}

func (*clientOnlyResource) ResourcePath() string              { return "/remote" }
func (*clientOnlyResource) Read() string                      { return "remote" }
func (*clientOnlyResource) ConstrainedTo() inject.RuntimeType { return inject.Client }

var readerType = inject.TypeOf[Reader]()

func newLocator() *locator.Locator {
	return locator.New(locator.WithLogger(inject.NoLogger()))
}

func TestProviderContracts(t *testing.T) {
	assert.Equal(t, []reflect.Type{readerType}, inject.ProviderContracts(inject.TypeOf[*jsonReader]()))
	assert.Equal(t, []reflect.Type{readerType, inject.TypeOf[Writer]()}, inject.ProviderContracts(inject.TypeOf[*readWriter]()))
	assert.Empty(t, inject.ProviderContracts(inject.TypeOf[jsonReader]()))
}

func TestProviderScope(t *testing.T) {
	assert.Equal(t, inject.Singleton, inject.ProviderScope(inject.TypeOf[*jsonReader]()))
	assert.Equal(t, inject.PerLookup, inject.ProviderScope(inject.TypeOf[*xmlReader]()))
	assert.Equal(t, inject.PerLookup, inject.ProviderScope(inject.TypeOf[xmlReader]()))
}

func TestContractModel(t *testing.T) {
	m := inject.NewContractModel(inject.TypeOf[*jsonReader]())
	assert.Equal(t, 20, m.Priority(readerType))
	assert.Equal(t, inject.AnyRuntime, m.ConstrainedTo)
	assert.False(t, m.Empty())

	c := inject.NewContractModel(inject.TypeOf[*clientReader]())
	assert.Equal(t, inject.NoPriority, c.Priority(readerType))
	assert.True(t, c.AppliesTo(inject.Client))
	assert.False(t, c.AppliesTo(inject.Server))
	assert.True(t, c.AppliesTo(inject.AnyRuntime))

	assert.True(t, inject.IsResource(inject.TypeOf[*widgets]()))
	assert.False(t, inject.IsResource(inject.TypeOf[*jsonReader]()))
}

func TestBindClasses(t *testing.T) {
	l := newLocator()
	pb := inject.NewProviderBinder(l, inject.WithProviderLogger(inject.NoLogger()))
	require.NoError(t, pb.BindClasses(false, inject.TypeOf[*xmlReader](), inject.TypeOf[*readWriter]()))
	require.NoError(t, l.CompleteRegistration())
	ctx := context.Background()

	all, err := inject.GetAll[Reader](ctx, l, inject.Custom)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "xml", all[0].Read())

	a, err := inject.Get[Reader](ctx, l)
	require.NoError(t, err)
	b, err := inject.Get[Reader](ctx, l)
	require.NoError(t, err)
	assert.NotSame(t, a, b, "per lookup")

	w1, err := inject.Get[Writer](ctx, l, inject.Custom)
	require.NoError(t, err)
	w2, err := inject.Get[Writer](ctx, l, inject.Custom)
	require.NoError(t, err)
	assert.Same(t, w1, w2, "singleton by default")
}

func TestBindResources(t *testing.T) {
	var buf bytes.Buffer
	l := newLocator()
	pb := inject.NewProviderBinder(l,
		inject.WithProviderLogger(inject.LoggerFromStd(log.New(&buf, "", 0))),
		inject.WithRuntime(inject.Server))
	require.NoError(t, pb.BindComponents(
		inject.TypeOf[*widgets](),
		inject.TypeOf[*clientOnlyResource](),
		inject.TypeOf[*jsonReader](),
	))
	require.NoError(t, l.CompleteRegistration())
	ctx := context.Background()

	w, err := l.GetInstance(ctx, inject.TypeOf[*widgets]())
	require.NoError(t, err)
	require.NotNil(t, w)

	readers, err := inject.GetAll[Reader](ctx, l, inject.Custom)
	require.NoError(t, err)
	var got []string
	for _, r := range readers {
		got = append(got, r.Read())
	}
	assert.Equal(t, []string{"widgets", "json"}, got, "degraded resource has no alias")
	alias, err := inject.Get[Reader](ctx, l, inject.Custom)
	require.NoError(t, err)
	assert.Same(t, w, alias, "resource alias shares the singleton")

	remote, err := l.GetInstance(ctx, inject.TypeOf[*clientOnlyResource]())
	require.NoError(t, err)
	assert.NotNil(t, remote, "degraded resource is still bound as itself")
	assert.Contains(t, buf.String(), "not compatible with this runtime")
}

type claimingProvider struct {
	initialized int
	done        int
	claimed     []reflect.Type
}

func (c *claimingProvider) Initialize(inject.InjectionManager) { c.initialized++ }
func (c *claimingProvider) Done()                              { c.done++ }
func (c *claimingProvider) Bind(t reflect.Type, contracts []reflect.Type) bool {
	if t == inject.TypeOf[*xmlReader]() {
		c.claimed = append(c.claimed, t)
		return true
	}
	return false
}

func TestComponentProviderClaims(t *testing.T) {
	cp := &claimingProvider{}
	l := newLocator()
	pb := inject.NewProviderBinder(l,
		inject.WithProviderLogger(inject.NoLogger()),
		inject.WithComponentProviders(cp))
	require.NoError(t, pb.BindClasses(false, inject.TypeOf[*xmlReader](), inject.TypeOf[*jsonReader]()))
	pb.Done()
	pb.Done()
	require.NoError(t, l.CompleteRegistration())
	assert.Equal(t, 1, cp.initialized)
	assert.Equal(t, 1, cp.done)
	assert.Equal(t, []reflect.Type{inject.TypeOf[*xmlReader]()}, cp.claimed)

	all, err := inject.GetAll[Reader](context.Background(), l)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "json", all[0].Read())
}

func TestBindProviders(t *testing.T) {
	bag := inject.NewComponentBag()
	assert.True(t, bag.RegisterClass(inject.TypeOf[*jsonReader]()))
	assert.False(t, bag.RegisterClass(inject.TypeOf[*jsonReader]()), "registered once")
	assert.True(t, bag.RegisterClass(inject.TypeOf[*clientReader]()))
	assert.True(t, bag.RegisterClass(inject.TypeOf[*widgets]()))
	assert.True(t, bag.RegisterInstance(&xmlReader{}))
	bag.SetPriority(inject.TypeOf[*xmlReader](), readerType, 50)

	l := newLocator()
	pb := inject.NewProviderBinder(l, inject.WithProviderLogger(inject.NoLogger()))
	require.NoError(t, pb.BindProviders(bag, inject.Server, map[reflect.Type]bool{
		inject.TypeOf[*clientReader](): true,
	}))
	require.NoError(t, l.CompleteRegistration())

	holders, err := l.GetAllServiceHolders(context.Background(), readerType, inject.Custom)
	require.NoError(t, err)
	var got []string
	var ranks []int
	for _, h := range holders {
		got = append(got, h.Instance().(Reader).Read())
		ranks = append(ranks, h.Rank())
	}
	assert.Equal(t, []string{"xml", "json", "widgets"}, got, "client reader is filtered out")
	assert.Equal(t, []int{50, 20, 0}, ranks)
}

func TestBindInstances(t *testing.T) {
	l := newLocator()
	pb := inject.NewProviderBinder(l, inject.WithProviderLogger(inject.NoLogger()))
	rw := &readWriter{}
	require.NoError(t, pb.BindInstances(rw))
	assert.Error(t, pb.BindInstances(nil))
	require.NoError(t, l.CompleteRegistration())
	w, err := inject.Get[Writer](context.Background(), l, inject.Custom)
	require.NoError(t, err)
	w.Write("hello")
	assert.Equal(t, "hello", rw.last)
}

func TestBindProvider(t *testing.T) {
	l := newLocator()
	pb := inject.NewProviderBinder(l, inject.WithProviderLogger(inject.NoLogger()))
	model := inject.NewContractModel(inject.TypeOf[*jsonReader]())
	require.NoError(t, pb.BindProvider(context.Background(), inject.TypeOf[*jsonReader](), model))
	require.NoError(t, l.CompleteRegistration())
	holders, err := l.GetAllServiceHolders(context.Background(), readerType, inject.Custom)
	require.NoError(t, err)
	require.Len(t, holders, 1)
	assert.Equal(t, 20, holders[0].Rank())
	assert.Equal(t, inject.TypeOf[*jsonReader](), holders[0].ImplementationType())
}
