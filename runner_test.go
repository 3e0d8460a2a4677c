package servicegraph

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerSignal(t *testing.T) {
	start := make(map[string]Action)
	for _, id := range []string{persister, aggAB, calcC, handlerA, handlerB,
		handlerC} {
		start[id] = After(time.Millisecond)
	}
	b := modelA(start)
	m, o := newTestManager(t, withStopActions(t, b, After(time.Millisecond)),
		Compiled())
	r := NewRunner(m, &RunnerOptions{
		StopTimeout: time.Second,
		Signals:     []os.Signal{syscall.SIGUSR2},
		Logger:      stdoutLogger{},
	})

	errs := make(chan error, 1)
	go func() { errs <- r.Run(context.Background()) }()
	waitClosed(t, r.Ready())

	syscall.Kill(syscall.Getpid(), syscall.SIGUSR2)
	waitClosed(t, r.Done())
	assert.NoError(t, <-errs)

	states := make(map[string]Status)
	for _, p := range o.Publications() {
		for _, rec := range p {
			states[rec.ServiceID] = rec.Status
		}
	}
	for _, id := range []string{persister, aggAB, calcC, handlerA, handlerB,
		handlerC} {
		assert.Equal(t, Stopped, states[id], id)
	}
	_, err := m.Status(persister)
	assert.True(t, IsShutdown(err))
}

func TestRunnerContextCancel(t *testing.T) {
	b := NewBuilder().AddService(Service{
		ID:    "svc",
		Start: Inline(nil),
		Stop:  Inline(nil),
	})
	m, _ := newTestManager(t, b, Interpreted())
	r := NewRunner(m, &RunnerOptions{Signals: []os.Signal{}})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.StartBackground(ctx))
	waitClosed(t, r.Ready())
	assert.ErrorIs(t, r.StartBackground(ctx), errRunning)

	cancel()
	waitClosed(t, r.Done())
	assert.NoError(t, r.Shutdown())
}

func TestRunnerStopTimeout(t *testing.T) {
	// svc never reports it stopped
	b := NewBuilder().AddService(Service{ID: "svc", Start: Inline(nil)})
	m, _ := newTestManager(t, b, Interpreted())
	r := NewRunner(m, &RunnerOptions{
		StopTimeout: 50 * time.Millisecond,
		Signals:     []os.Signal{},
	})

	require.NoError(t, r.StartBackground(context.Background()))
	waitClosed(t, r.Ready())
	err := r.Shutdown()
	assert.True(t, IsStopTimeout(err), "unexpected error: %v", err)
	assert.Contains(t, err.Error(), "svc")
	assert.True(t, IsShutdown(m.StartService("svc")))
}

func TestNewRunnerNilManager(t *testing.T) {
	assert.Nil(t, NewRunner(nil, nil))
}

func withStopActions(t *testing.T, b *Builder, stop Action) *Builder {
	t.Helper()
	res := NewBuilder()
	for _, s := range b.services {
		s.Stop = stop
		res.AddService(s)
	}
	return res
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
}
