package runtime

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/fluxorio/threadpool/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recorder(log *[]string, name string, startErr, stopErr error) Component {
	return Hooks{
		ComponentName: name,
		OnStart: func(context.Context) error {
			*log = append(*log, "start "+name)
			return startErr
		},
		OnStop: func(context.Context) error {
			*log = append(*log, "stop "+name)
			return stopErr
		},
	}
}

func newTestRuntime() *Runtime {
	return NewRuntime(core.NewLogger(core.LoggerConfig{Level: "ERROR", Output: &bytes.Buffer{}}))
}

func TestRuntime_StartStopOrder(t *testing.T) {
	var log []string
	r := newTestRuntime()
	require.NoError(t, r.Register(recorder(&log, "store", nil, nil)))
	require.NoError(t, r.Register(recorder(&log, "nats", nil, nil)))
	require.NoError(t, r.Register(recorder(&log, "pool", nil, nil)))

	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Stop(context.Background()))

	assert.Equal(t, []string{
		"start store", "start nats", "start pool",
		"stop pool", "stop nats", "stop store",
	}, log)
}

func TestRuntime_FailedStartUnwinds(t *testing.T) {
	var log []string
	r := newTestRuntime()
	require.NoError(t, r.Register(recorder(&log, "store", nil, nil)))
	require.NoError(t, r.Register(recorder(&log, "nats", errors.New("no servers available"), nil)))
	require.NoError(t, r.Register(recorder(&log, "pool", nil, nil)))

	err := r.Start(context.Background())
	assert.ErrorContains(t, err, "start nats: no servers available")
	assert.Equal(t, []string{"start store", "start nats", "stop store"}, log)

	assert.ErrorIs(t, r.Stop(context.Background()), ErrRuntimeNotStarted)
}

func TestRuntime_StopJoinsErrors(t *testing.T) {
	var log []string
	r := newTestRuntime()
	errStore := errors.New("close store")
	require.NoError(t, r.Register(recorder(&log, "store", nil, errStore)))
	require.NoError(t, r.Register(recorder(&log, "pool", nil, nil)))

	require.NoError(t, r.Start(context.Background()))
	err := r.Stop(context.Background())

	assert.ErrorIs(t, err, errStore)
	assert.Equal(t, []string{"start store", "start pool", "stop pool", "stop store"}, log)
}

func TestRuntime_StateTransitions(t *testing.T) {
	r := newTestRuntime()

	assert.ErrorIs(t, r.Stop(context.Background()), ErrRuntimeNotStarted)
	require.NoError(t, r.Start(context.Background()))
	assert.ErrorIs(t, r.Start(context.Background()), ErrRuntimeAlreadyStarted)
	assert.ErrorIs(t, r.Register(Hooks{ComponentName: "late"}), ErrRuntimeAlreadyStarted)
	require.NoError(t, r.Stop(context.Background()))
	assert.ErrorIs(t, r.Stop(context.Background()), ErrRuntimeNotStarted)
}

func TestRuntime_RegisterNil(t *testing.T) {
	assert.Error(t, newTestRuntime().Register(nil))
}
