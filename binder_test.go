package inject_test

import (
	"reflect"
	"testing"

	inject "github.com/eclipse-ee4j/jersey-sub005"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Animal interface {
	Sound() string
}

type dog struct{}

func (dog) Sound() string { return "woof" }

type cat struct{ name string }

func (c *cat) Sound() string { return "meow" }

var animalType = inject.TypeOf[Animal]()

func TestBinderConfiguresOnce(t *testing.T) {
	var calls int
	b := inject.NewBinder("once", func(b *inject.AbstractBinder) error {
		calls++
		b.BindInstance(dog{}).To(animalType)
		return nil
	})
	first, err := b.Bindings()
	require.NoError(t, err)
	second, err := b.Bindings()
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.Len(t, first, 1)
	assert.Same(t, first[0], second[0])
}

func TestBinderConfigureError(t *testing.T) {
	var calls int
	b := inject.NewBinder("broken", func(b *inject.AbstractBinder) error {
		calls++
		return errors.New("no database")
	})
	_, err := b.Bindings()
	require.Error(t, err)
	var ce *inject.ConfigureError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "broken", ce.Binder)
	_, err2 := b.Bindings()
	assert.Equal(t, err, err2)
	assert.Equal(t, 1, calls)
}

func TestBinderInstallOrder(t *testing.T) {
	leaf := func(name string) inject.Binder {
		return inject.NewBinder(name, func(b *inject.AbstractBinder) error {
			b.BindInstance(&cat{name: name}).To(animalType).Named(name)
			return nil
		})
	}
	left := leaf("left")
	right := leaf("right")
	middle := inject.NewBinder("middle", func(b *inject.AbstractBinder) error {
		b.Install(left)
		b.BindInstance(&cat{name: "middle"}).To(animalType).Named("middle")
		return nil
	})
	root := inject.NewBinder("root", func(b *inject.AbstractBinder) error {
		b.BindInstance(&cat{name: "root"}).To(animalType).Named("root")
		b.Install(middle, right, middle)
		return nil
	})
	bindings, err := root.Bindings()
	require.NoError(t, err)
	var names []string
	for _, b := range bindings {
		names = append(names, b.Desc().Name())
	}
	assert.Equal(t, []string{"left", "middle", "right", "root"}, names)
}

func TestBinderNilInstance(t *testing.T) {
	b := inject.NewBinder("nil", func(b *inject.AbstractBinder) error {
		b.BindInstance(dog{}).To(animalType)
		var c *cat
		b.BindInstance(c).To(animalType)
		return nil
	})
	_, err := b.Bindings()
	require.Error(t, err)
	var nie *inject.NilInstanceError
	assert.True(t, errors.As(err, &nie))
	assert.Contains(t, inject.DetailedError(err), "invalid bindings")
}

func TestCompose(t *testing.T) {
	a := inject.NewBinder("a", func(b *inject.AbstractBinder) error {
		b.BindInstance(dog{}).To(animalType)
		return nil
	})
	c := inject.NewBinder("c", func(b *inject.AbstractBinder) error {
		b.Bind(inject.TypeOf[*cat]()).To(animalType)
		return nil
	})
	bindings, err := inject.Compose("both", a, c).Bindings()
	require.NoError(t, err)
	require.Len(t, bindings, 2)
	assert.Equal(t, inject.InstanceKind, bindings[0].Kind())
	assert.Equal(t, inject.ClassKind, bindings[1].Kind())

	flat, err := inject.BindingsOf(a, c)
	require.NoError(t, err)
	assert.Equal(t, bindings, flat)
}

func TestBindingFluent(t *testing.T) {
	b := inject.NewClassBinding(inject.TypeOf[*cat]()).
		To(animalType).
		To(animalType, inject.TypeOf[any]()).
		In(inject.Singleton).
		Named("tom").
		QualifiedBy(inject.Custom).
		Ranked(4).
		Proxy(true).
		ProxyForSameScope(false).
		Analyzer("default").
		ForClient(true)
	d := b.Desc()
	assert.Equal(t, []reflect.Type{animalType, inject.TypeOf[any]()}, d.Contracts())
	assert.Equal(t, inject.Singleton, d.Scope())
	assert.Equal(t, "tom", d.Name())
	assert.Equal(t, []inject.Qualifier{inject.Named("tom"), inject.Custom}, d.Qualifiers())
	rank, ok := d.Rank()
	assert.True(t, ok)
	assert.Equal(t, 4, rank)
	p, set := d.IsProxiable()
	assert.True(t, p)
	assert.True(t, set)
	p, set = d.IsProxiedForSameScope()
	assert.False(t, p)
	assert.True(t, set)
	assert.Equal(t, "default", d.ClassAnalyzer())
	assert.True(t, d.IsForClient())
	assert.NoError(t, b.Validate())

	other := inject.NewClassBinding(inject.TypeOf[*cat]())
	assert.NotEqual(t, d.ID(), other.Desc().ID())
	assert.Equal(t, int64(42), other.WithID(42).Desc().ID())
	assert.Empty(t, other.Desc().Contracts())
	assert.NotNil(t, other.Desc().Contracts())
}

func TestInstanceBindingDefaultContract(t *testing.T) {
	b := inject.NewInstanceBinding(&cat{})
	assert.Equal(t, []reflect.Type{inject.TypeOf[*cat]()}, inject.EffectiveContracts(b))
	b.To(animalType)
	assert.Equal(t, []reflect.Type{animalType}, inject.EffectiveContracts(b))
}

func TestContractBinding(t *testing.T) {
	b := inject.NewContractBinding(inject.TypeOf[*cat]())
	assert.Equal(t, []reflect.Type{inject.TypeOf[*cat]()}, b.Desc().Contracts())
	assert.Equal(t, inject.TypeOf[*cat](), b.Service())
}

func TestBindingValidate(t *testing.T) {
	assert.Error(t, inject.NewClassBinding(inject.TypeOf[int]()).Validate())
	assert.NoError(t, inject.NewClassBinding(inject.TypeOf[int]()).
		Constructor(func() int { return 3 }).Validate())
	assert.Error(t, inject.NewClassBinding(inject.TypeOf[int]()).
		Constructor(func() string { return "" }).Validate())
	assert.Error(t, inject.NewClassBinding(inject.TypeOf[int]()).
		Constructor(func() (int, int) { return 1, 2 }).Validate())
	assert.Error(t, inject.NewSupplierClassBinding(inject.TypeOf[*cat](), inject.Singleton).Validate())
	assert.Error(t, inject.NewSupplierInstanceBinding(nil).Validate())
	assert.Error(t, inject.NewInjectionResolverBinding(nil).Validate())
}

func TestAlias(t *testing.T) {
	b := inject.NewContractBinding(inject.TypeOf[*cat]()).In(inject.Singleton)
	b.AddAlias(animalType).In(inject.PerLookup).Ranked(3).QualifiedBy(inject.Custom, inject.Custom)
	aliases := b.Desc().Aliases()
	require.Len(t, aliases, 1)
	assert.Equal(t, animalType, aliases[0].Contract())
	assert.Equal(t, inject.PerLookup, aliases[0].Scope())
	rank, ok := aliases[0].Rank()
	assert.True(t, ok)
	assert.Equal(t, 3, rank)
	assert.Equal(t, []inject.Qualifier{inject.Custom}, aliases[0].Qualifiers())
}

func TestScope(t *testing.T) {
	assert.True(t, inject.Singleton.IsBuiltin())
	assert.True(t, inject.NoScope.IsBuiltin())
	assert.False(t, inject.Scope("tenant").IsBuiltin())
	assert.Equal(t, "unscoped", inject.NoScope.String())
}

func TestQualifier(t *testing.T) {
	assert.Equal(t, inject.Named("x"), inject.Named("x"))
	assert.True(t, inject.Named("x").IsNamed())
	assert.False(t, inject.Custom.IsNamed())
	assert.Equal(t, "@named(x)", inject.Named("x").String())
	assert.Equal(t, "@custom", inject.Custom.String())
	assert.True(t, inject.HasQualifiers([]inject.Qualifier{inject.Custom, inject.Named("x")}, inject.Named("x")))
	assert.False(t, inject.HasQualifiers([]inject.Qualifier{inject.Custom}, inject.Named("x")))
	assert.True(t, inject.HasQualifiers(nil))
}
