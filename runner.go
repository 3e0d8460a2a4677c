package servicegraph

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// RunnerOptions contains options for the runner.
type RunnerOptions struct {
	// StopTimeout defines a maximum amount of time to wait for every service
	// to report it stopped once the runner shuts down. When it is elapsed, the
	// manager is shut down anyway (default: 15 seconds).
	StopTimeout time.Duration
	// Signals defines the signals to listen to. When one of these signals is
	// received, the runner shuts down (default: syscall.SIGINT,
	// syscall.SIGTERM).
	Signals []os.Signal
	// Sets the Logger to use to log runner events. If nil, the logging
	// messages are discarded.
	Logger Logger
}

func (o RunnerOptions) copy() *RunnerOptions {
	return &o
}

// Runner drives a Manager as a long running process: it starts every
// service, waits for a signal, then stops every service and shuts the manager
// down.
type Runner struct {
	manager *Manager
	opts    *RunnerOptions
	// Guards started
	mut     sync.Mutex
	started bool
	// Poked on every publication
	changed chan struct{}
	// Prevent against double close of the chans
	readyOnce   sync.Once
	shutdown    sync.Once
	shutdownErr error
	// Closed when every service is started
	ready chan struct{}
	// Closed when the manager is shut down
	done chan struct{}
}

// NewRunner creates a Runner for the provided manager. It returns nil if m is
// nil.
func NewRunner(m *Manager, opts *RunnerOptions) *Runner {
	if m == nil {
		return nil
	}
	if opts == nil {
		opts = &RunnerOptions{}
	}
	opts = opts.copy()
	if opts.Signals == nil {
		opts.Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	if opts.StopTimeout == 0 {
		opts.StopTimeout = 15 * time.Second
	}
	return &Runner{
		manager: m,
		opts:    opts,
		changed: make(chan struct{}, 1),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run starts every service and blocks until the runner is shut down, either
// by a signal, by cancelling ctx or by calling Shutdown.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.StartBackground(ctx); err != nil {
		return err
	}
	<-r.Done()
	return r.shutdownErr
}

// StartBackground requests every service to start and returns without
// waiting for them. Cancelling ctx shuts the runner down.
func (r *Runner) StartBackground(ctx context.Context) error {
	r.mut.Lock()
	if r.started {
		r.mut.Unlock()
		return errRunning
	}
	r.started = true
	r.mut.Unlock()

	if err := r.manager.RegisterStatusListener(r.observe); err != nil {
		return err
	}
	r.info("starting all services")
	if err := r.manager.StartAllServicesCtx(ctx); err != nil {
		return err
	}

	// Install signal handlers
	sc := make(chan os.Signal, 1)
	if len(r.opts.Signals) > 0 {
		signal.Notify(sc, r.opts.Signals...)
	}
	go func() {
		defer signal.Stop(sc)

		select {
		case sig := <-sc:
			r.info("received signal", "signal", sig)
			go r.Shutdown()
		case <-ctx.Done():
			r.info("context done", "cause", ctx.Err())
			go r.Shutdown()
		case <-r.done:
		}
	}()

	return nil
}

// Shutdown requests every service to stop and waits for them, at most
// StopTimeout, then shuts the manager down. Concurrent and repeated calls
// return the result of the first one.
func (r *Runner) Shutdown() error {
	r.shutdown.Do(func() {
		r.shutdownErr = r.stop()
		close(r.done)
	})
	<-r.done
	return r.shutdownErr
}

func (r *Runner) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(),
		r.opts.StopTimeout)
	defer cancel()

	r.info("stopping all services", "timeout", r.opts.StopTimeout)
	err := r.manager.StopAllServicesCtx(ctx)
	if err == nil {
		err = r.waitStopped(ctx)
	}
	if err != nil && !IsShutdown(err) {
		r.error(err, "services did not stop gracefully -- shutting down")
	}

	if serr := r.manager.Shutdown(); serr != nil && err == nil {
		err = serr
	}
	if IsShutdown(err) {
		return nil
	}
	return err
}

// waitStopped blocks until every service is stopped or ctx is done.
func (r *Runner) waitStopped(ctx context.Context) error {
	for {
		var pending []string
		for _, rec := range r.manager.Snapshot() {
			if rec.Status != Stopped {
				pending = append(pending, rec.ServiceID)
			}
		}
		if len(pending) == 0 {
			return nil
		}
		select {
		case <-r.changed:
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", errStopTimeout, pending)
		}
	}
}

// observe tracks publications. It runs on the processing context of the
// manager and never calls it back.
func (r *Runner) observe(records []StatusRecord) error {
	select {
	case r.changed <- struct{}{}:
	default:
	}
	for _, rec := range r.manager.Snapshot() {
		if rec.Status != Started {
			return nil
		}
	}
	r.readyOnce.Do(func() {
		r.info("all services started")
		close(r.ready)
	})
	return nil
}

// Ready returns a chan that is closed once every service is started.
func (r *Runner) Ready() <-chan struct{} {
	return r.ready
}

// Done returns a chan that is closed once the manager is shut down.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// info logs an information message.
func (r *Runner) info(msg string, keysAndValues ...interface{}) {
	if r.opts.Logger != nil {
		r.opts.Logger.Info(msg, keysAndValues...)
	}
}

// error logs an error
func (r *Runner) error(err error, msg string, keysAndValues ...interface{}) {
	if r.opts.Logger != nil {
		r.opts.Logger.Error(err, msg, keysAndValues...)
	}
}
