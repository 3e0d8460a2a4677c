package servicegraph

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ActionPool runs actions on a bounded number of goroutines. Actions beyond
// the limit wait for a slot without blocking the manager.
type ActionPool struct {
	slots *semaphore.Weighted
	group errgroup.Group
	mut   sync.Mutex
	errs  *multierror.Error
}

// NewActionPool creates a pool running at most size actions at once. A size
// lower than one is treated as one.
func NewActionPool(size int) *ActionPool {
	if size < 1 {
		size = 1
	}
	return &ActionPool{slots: semaphore.NewWeighted(int64(size))}
}

// Action wraps fn as an action running on the pool. The action completes once
// fn returns without error.
func (p *ActionPool) Action(fn func(context.Context) error) Action {
	return func(ctx context.Context) error {
		p.group.Go(func() error {
			if err := p.slots.Acquire(ctx, 1); err != nil {
				return p.fail(ctx, err)
			}
			defer p.slots.Release(1)
			if fn != nil {
				if err := fn(ctx); err != nil {
					return p.fail(ctx, err)
				}
			}
			if err := Complete(ctx); err != nil {
				return p.fail(ctx, err)
			}
			return nil
		})
		return nil
	}
}

// Wait blocks until every action submitted so far returned, and returns their
// errors.
func (p *ActionPool) Wait() error {
	_ = p.group.Wait()
	p.mut.Lock()
	defer p.mut.Unlock()
	return p.errs.ErrorOrNil()
}

func (p *ActionPool) fail(ctx context.Context, err error) error {
	if id, ok := ServiceID(ctx); ok {
		err = fmt.Errorf("service %q: %w", id, err)
	}
	reportActionError(ctx, err)
	p.mut.Lock()
	p.errs = multierror.Append(p.errs, err)
	p.mut.Unlock()
	return err
}
