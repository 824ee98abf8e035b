package inject_test

import (
	"context"
	"fmt"

	inject "github.com/eclipse-ee4j/jersey-sub005"
	"github.com/eclipse-ee4j/jersey-sub005/locator"
)

type Greeting interface {
	Say(who string) string
}

type english struct{}

func (english) Say(who string) string { return "hello " + who }

type french struct{}

func (french) Say(who string) string { return "bonjour " + who }

type Welcome struct {
	Greeting Greeting   `inject:""`
	All      []Greeting `inject:"all"`
	French   Greeting   `inject:"named=fr"`
}

// Bindings are collected by binders and handed to a locator.  The
// highest ranked binding wins a plain lookup.
func Example() {
	binder := inject.NewBinder("greetings", func(b *inject.AbstractBinder) error {
		b.BindInstance(english{}).To(inject.TypeOf[Greeting]()).Ranked(10)
		b.BindInstance(french{}).To(inject.TypeOf[Greeting]()).Named("fr")
		return nil
	})
	l := locator.New(locator.WithLogger(inject.NoLogger()))
	if err := l.RegisterBinder(binder); err != nil {
		fmt.Println(err)
		return
	}
	if err := l.CompleteRegistration(); err != nil {
		fmt.Println(err)
		return
	}
	defer l.Shutdown()

	v, err := l.CreateAndInitialize(context.Background(), inject.TypeOf[*Welcome]())
	if err != nil {
		fmt.Println(err)
		return
	}
	w := v.(*Welcome)
	fmt.Println(w.Greeting.Say("world"))
	fmt.Println(w.French.Say("monde"))
	fmt.Println(len(w.All))
	// Output: hello world
	// bonjour monde
	// 2
}
