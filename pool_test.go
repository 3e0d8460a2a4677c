package servicegraph

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionPoolBoundsConcurrency(t *testing.T) {
	const services = 8
	var running, peak int32
	pool := NewActionPool(2)
	action := pool.Action(func(ctx context.Context) error {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		<-time.After(10 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	})

	b := NewBuilder()
	for i := 0; i < services; i++ {
		b.AddService(Service{ID: string(rune('a' + i)), Start: action})
	}
	m, _ := newTestManager(t, b, Compiled())

	require.NoError(t, m.StartAllServices())
	require.NoError(t, pool.Wait())
	// completions may have joined a cascade still being processed
	require.NoError(t, m.PublishServiceStatus())
	for _, r := range m.Snapshot() {
		assert.Equal(t, Started, r.Status, r.ServiceID)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestActionPoolAggregatesErrors(t *testing.T) {
	pool := NewActionPool(0)
	failing := pool.Action(func(ctx context.Context) error {
		return errors.New("oops")
	})
	b := NewBuilder().
		AddService(Service{ID: "a", Start: failing}).
		AddService(Service{ID: "b", Start: failing}).
		AddService(Service{ID: "c", Start: pool.Action(nil)})
	m, _ := newTestManager(t, b, Interpreted())

	require.NoError(t, m.StartAllServices())
	err := pool.Wait()
	require.Error(t, err)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 2)
	assert.Contains(t, err.Error(), `service "a": oops`)
	assert.Contains(t, err.Error(), `service "b": oops`)

	require.NoError(t, m.PublishServiceStatus())
	assertStatus(t, m, map[string]Status{
		"a": Starting,
		"b": Starting,
		"c": Started,
	})
}
