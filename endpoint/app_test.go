package endpoint_test

import (
	"context"
	"testing"

	inject "github.com/eclipse-ee4j/jersey-sub005"
	"github.com/eclipse-ee4j/jersey-sub005/endpoint"
	"github.com/eclipse-ee4j/jersey-sub005/locator"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookOrderAndErrors(t *testing.T) {
	combine := func(e1, e2 error) error {
		return errors.New(e1.Error() + "; " + e2.Error())
	}
	stop := endpoint.NewHook("stop", endpoint.ReverseOrder).ContinuePastError(true).SetErrorCombiner(combine)
	start := endpoint.NewHook("start", endpoint.ForwardOrder).OnError(stop).SetErrorCombiner(combine)

	app := endpoint.NewApp("hooks", locator.New(locator.WithLogger(inject.NoLogger())),
		endpoint.WithAppLogger(inject.NoLogger()))
	var calls []string
	library := func(name string, startErr error) {
		app.On(start, func(ctx context.Context) error {
			calls = append(calls, name+" started")
			app.On(stop, func(ctx context.Context) error {
				calls = append(calls, name+" stopped")
				return errors.New(name + " stop error")
			})
			return startErr
		})
	}
	library("L1", nil)
	library("L2", errors.New("L2 start error"))
	library("L3", nil)

	err := app.Do(start)
	require.Error(t, err)
	assert.Equal(t, "L2 start error; L2 stop error; L1 stop error", err.Error())
	assert.Equal(t, []string{"L1 started", "L2 started", "L2 stopped", "L1 stopped"}, calls)
}

func TestHookWithoutErrorSkipsOnError(t *testing.T) {
	var stopped bool
	stop := endpoint.NewHook("stop", endpoint.ReverseOrder)
	start := endpoint.NewHook("start", endpoint.ForwardOrder).OnError(stop)
	app := endpoint.NewApp("quiet", locator.New(locator.WithLogger(inject.NoLogger())),
		endpoint.WithAppLogger(inject.NoLogger()))
	app.On(stop, func(context.Context) error {
		stopped = true
		return nil
	})
	require.NoError(t, app.Do(start))
	assert.False(t, stopped)
	assert.Equal(t, "hook start", start.String())
	assert.Empty(t, start.OnError(nil).InvokeOnError)
}

func TestStartCompletesRegistration(t *testing.T) {
	l := locator.New(locator.WithLogger(inject.NoLogger()))
	require.NoError(t, l.Register(inject.NewInstanceBinding("value").To(inject.TypeOf[string]())))
	app := endpoint.NewApp("registration", l, endpoint.WithAppLogger(inject.NoLogger()))
	_, err := l.GetInstance(context.Background(), inject.TypeOf[string]())
	assert.True(t, errors.Is(err, inject.ErrRegistrationIncomplete))

	require.NoError(t, app.Do(endpoint.Start))
	v, err := l.GetInstance(app.Context(), inject.TypeOf[string]())
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	require.NoError(t, app.Do(endpoint.Shutdown))
	_, err = l.GetInstance(context.Background(), inject.TypeOf[string]())
	assert.True(t, errors.Is(err, inject.ErrShutdown))
}
