package servicegraph

import (
	"context"
	"errors"
	"time"
)

var errNoAction = errors.New("context does not belong to a service action")

// Complete reports that the action owning ctx completed: a start action
// notifies Started, a stop action Stopped. It may be called inline, before the
// action returns, or later from any goroutine.
func Complete(ctx context.Context) error {
	s := scopeFrom(ctx)
	if s == nil {
		return errNoAction
	}
	return s.cascade.manager.submit(ctx, s.completion, s.serviceID())
}

// ServiceID returns the id of the service whose action owns ctx.
func ServiceID(ctx context.Context) (string, bool) {
	s := scopeFrom(ctx)
	if s == nil {
		return "", false
	}
	return s.serviceID(), true
}

// DropContext is a helper function wrapping a context-naive function as a
// context function. The context provided to the result is discarded.
func DropContext(fn func() error) func(context.Context) error {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return fn()
	}
}

// Inline is an action running fn on the processing context and completing as
// soon as fn returns without error. The completion joins the cascade that
// invoked the action.
func Inline(fn func(context.Context) error) Action {
	return func(ctx context.Context) error {
		if fn != nil {
			if err := fn(ctx); err != nil {
				return err
			}
		}
		return Complete(ctx)
	}
}

// Async is an action running fn on a new goroutine and completing once fn
// returns without error. The invoking cascade does not wait for fn.
func Async(fn func(context.Context) error) Action {
	return func(ctx context.Context) error {
		go func() {
			if fn != nil {
				if err := fn(ctx); err != nil {
					reportActionError(ctx, err)
					return
				}
			}
			if err := Complete(ctx); err != nil {
				reportActionError(ctx, err)
			}
		}()
		return nil
	}
}

// After is an action completing after the specified duration. It is mostly
// useful to simulate slow services.
func After(duration time.Duration) Action {
	return Async(func(ctx context.Context) error {
		<-time.After(duration)
		return nil
	})
}

// reportActionError logs an error raised after the action returned.
func reportActionError(ctx context.Context, err error) {
	s := scopeFrom(ctx)
	if s == nil {
		return
	}
	if IsShutdown(err) {
		return
	}
	s.cascade.manager.error(err, "asynchronous action failed",
		"service", s.serviceID(), "cascade", s.cascade.id)
}
