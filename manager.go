package servicegraph

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Options contains options for the manager.
type Options struct {
	// Strategy used to evaluate the graph (default: Interpreted()).
	Strategy Strategy
	// Sets the Logger to use to log transitions and failures. If nil, the
	// logging messages are discarded.
	Logger Logger
	// Audit receives one entry per transition and per ignored event
	// (optional).
	Audit AuditSink
}

func (o Options) copy() *Options {
	return &o
}

// Manager drives the services of a Graph through their lifecycle. Requests
// and notifications are processed one cascade at a time: a cascade starts with
// the submitted event and runs every event it triggers until no transition is
// pending, then publishes the records that changed.
type Manager struct {
	// Manager options
	opts *Options
	// Serializes cascades, and guards graph, eval and bus for writers
	sem *semaphore.Weighted
	// Guards graph and status for readers outside of a cascade
	mut sync.RWMutex
	// Nil once shut down
	graph  *Graph
	eval   evaluator
	status []Status
	// Status listeners
	bus *notificationBus
	// Running cascade, nil between cascades
	curMut  sync.Mutex
	current *cascade
}

var _ ServiceManager = (*Manager)(nil)

// NewManager creates a Manager for the provided graph. Every service starts
// in the Unknown status.
func NewManager(g *Graph, opts *Options) (*Manager, error) {
	if g == nil {
		return nil, errors.New("graph is nil")
	}
	if opts == nil {
		opts = &Options{}
	}
	opts = opts.copy()
	if opts.Strategy == nil {
		opts.Strategy = Interpreted()
	}
	m := &Manager{
		opts:   opts,
		sem:    semaphore.NewWeighted(1),
		graph:  g,
		eval:   opts.Strategy.evaluator(g),
		status: make([]Status, g.Len()),
	}
	m.bus = &notificationBus{onError: func(err error) {
		m.error(err, "status listener failed")
	}}
	m.info("service manager created", "services", g.Len(),
		"strategy", opts.Strategy.Name())
	return m, nil
}

// StartService requests a service to start. Prerequisites that are not
// started yet are requested to start as well.
func (m *Manager) StartService(id string) error {
	return m.StartServiceCtx(context.Background(), id)
}

// StartServiceCtx is StartService providing context. When ctx is the context
// of a running action, the request joins the current cascade and the call
// returns immediately.
func (m *Manager) StartServiceCtx(ctx context.Context, id string) error {
	return m.submit(ctx, EventRequestStart, id)
}

// StopService requests a service to stop. Dependents that are not stopped yet
// are requested to stop as well.
func (m *Manager) StopService(id string) error {
	return m.StopServiceCtx(context.Background(), id)
}

// StopServiceCtx is StopService providing context.
func (m *Manager) StopServiceCtx(ctx context.Context, id string) error {
	return m.submit(ctx, EventRequestStop, id)
}

// StartAllServices requests every service to start.
func (m *Manager) StartAllServices() error {
	return m.StartAllServicesCtx(context.Background())
}

// StartAllServicesCtx is StartAllServices providing context.
func (m *Manager) StartAllServicesCtx(ctx context.Context) error {
	return m.submit(ctx, EventRequestStartAll, "")
}

// StopAllServices requests every service to stop.
func (m *Manager) StopAllServices() error {
	return m.StopAllServicesCtx(context.Background())
}

// StopAllServicesCtx is StopAllServices providing context.
func (m *Manager) StopAllServicesCtx(ctx context.Context) error {
	return m.submit(ctx, EventRequestStopAll, "")
}

// ServiceStarted notifies that a service is started. The notification is
// ignored unless the service is Starting. While a cascade runs, the
// notification joins it and the call returns without waiting, so actions may
// call it inline.
func (m *Manager) ServiceStarted(id string) error {
	return m.ServiceStartedCtx(context.Background(), id)
}

// ServiceStartedCtx is ServiceStarted providing context.
func (m *Manager) ServiceStartedCtx(ctx context.Context, id string) error {
	return m.submit(ctx, EventStarted, id)
}

// ServiceStopped notifies that a service is stopped. The notification is
// ignored unless the service is Stopping. It joins a running cascade the same
// way ServiceStarted does.
func (m *Manager) ServiceStopped(id string) error {
	return m.ServiceStoppedCtx(context.Background(), id)
}

// ServiceStoppedCtx is ServiceStopped providing context.
func (m *Manager) ServiceStoppedCtx(ctx context.Context, id string) error {
	return m.submit(ctx, EventStopped, id)
}

// RegisterStatusListener adds a listener and delivers the full current status
// to it. No action is taken if listener is nil.
func (m *Manager) RegisterStatusListener(listener StatusListener) error {
	if listener == nil {
		return nil
	}
	if err := m.sem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer m.sem.Release(1)
	if m.graph == nil {
		return errShutdown
	}
	m.bus.register(listener)
	m.bus.deliver([]StatusListener{listener}, m.Snapshot())
	return nil
}

// PublishServiceStatus delivers the full status of every service to every
// listener.
func (m *Manager) PublishServiceStatus() error {
	return m.PublishServiceStatusCtx(context.Background())
}

// PublishServiceStatusCtx is PublishServiceStatus providing context.
func (m *Manager) PublishServiceStatusCtx(ctx context.Context) error {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.sem.Release(1)
	if m.graph == nil {
		return errShutdown
	}
	m.bus.publish(m.Snapshot())
	return nil
}

// Status returns the current status of a service.
func (m *Manager) Status(id string) (Status, error) {
	m.mut.RLock()
	defer m.mut.RUnlock()
	if m.graph == nil {
		return Unknown, errShutdown
	}
	i, err := m.graph.lookup(id)
	if err != nil {
		return Unknown, err
	}
	return m.status[i], nil
}

// Snapshot returns the current status of every service in topological order.
// It returns nil once the manager is shut down.
func (m *Manager) Snapshot() []StatusRecord {
	m.mut.RLock()
	defer m.mut.RUnlock()
	if m.graph == nil {
		return nil
	}
	records := make([]StatusRecord, len(m.status))
	for i, s := range m.status {
		records[i] = StatusRecord{ServiceID: m.graph.nodes[i].id, Status: s}
	}
	return records
}

// Shutdown discards the graph and the listeners. It waits for the running
// cascade, if any. Every later call on the manager returns an error for which
// IsShutdown is true; completions of in-flight actions included.
func (m *Manager) Shutdown() error {
	return m.ShutdownCtx(context.Background())
}

// ShutdownCtx is Shutdown providing context.
func (m *Manager) ShutdownCtx(ctx context.Context) error {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.sem.Release(1)
	if m.graph == nil {
		return nil
	}
	m.mut.Lock()
	m.graph = nil
	m.eval = nil
	m.status = nil
	m.mut.Unlock()
	m.bus.clear()
	m.info("service manager shut down")
	return nil
}

// submit runs the event as a new cascade, or appends it to the running
// cascade when ctx belongs to one of its actions.
func (m *Manager) submit(ctx context.Context, kind EventKind, id string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if s := scopeFrom(ctx); s != nil && s.cascade.manager == m {
		ev, err := s.cascade.event(kind, id)
		if err != nil {
			return err
		}
		if s.cascade.push(ev) {
			return nil
		}
	}
	if kind == EventStarted || kind == EventStopped {
		if c := m.running(); c != nil {
			ev, err := c.event(kind, id)
			if err != nil {
				return err
			}
			if c.push(ev) {
				return nil
			}
		}
	}

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.sem.Release(1)
	if m.graph == nil {
		return errShutdown
	}
	c := &cascade{
		manager:  m,
		graph:    m.graph,
		id:       uuid.NewString(),
		expanded: make(map[expansion]bool),
		active:   true,
	}
	ev, err := c.event(kind, id)
	if err != nil {
		return err
	}
	c.queue = append(c.queue, ev)
	m.setRunning(c)
	defer m.setRunning(nil)
	m.run(ctx, c)
	return nil
}

// running returns the cascade being processed, if any.
func (m *Manager) running() *cascade {
	m.curMut.Lock()
	defer m.curMut.Unlock()
	return m.current
}

func (m *Manager) setRunning(c *cascade) {
	m.curMut.Lock()
	m.current = c
	m.curMut.Unlock()
}

// run drains the cascade queue, then publishes the records whose status
// changed. Once started, a cascade runs to quiescence regardless of ctx.
func (m *Manager) run(ctx context.Context, c *cascade) {
	ctx = context.WithoutCancel(ctx)
	before := append([]Status(nil), m.status...)
	for {
		ev, ok := c.next()
		if !ok {
			break
		}
		m.process(ctx, c, ev)
	}

	var records []StatusRecord
	for i, s := range m.status {
		if s != before[i] {
			records = append(records,
				StatusRecord{ServiceID: m.graph.nodes[i].id, Status: s})
		}
	}
	if len(records) > 0 {
		m.bus.publish(records)
	}
}

func (m *Manager) process(ctx context.Context, c *cascade, ev event) {
	switch ev.kind {
	case EventRequestStart:
		m.requestStart(ctx, c, ev.kind, ev.index)
	case EventRequestStop:
		m.requestStop(ctx, c, ev.kind, ev.index)
	case EventRequestStartAll:
		for i := range m.status {
			m.requestStart(ctx, c, ev.kind, i)
		}
	case EventRequestStopAll:
		for i := len(m.status) - 1; i >= 0; i-- {
			m.requestStop(ctx, c, ev.kind, i)
		}
	case EventStarted:
		m.started(ctx, c, ev.index)
	case EventStopped:
		m.stopped(ctx, c, ev.index)
	}
}

// requestStart moves a service to Starting when all its prerequisites are
// started, or to WaitingToStart while requesting the pending prerequisites to
// start. A waiting service requests its prerequisites once per cascade.
func (m *Manager) requestStart(ctx context.Context, c *cascade, kind EventKind,
	i int) {
	if isStatusOneOf(m.status[i], Starting, Started) ||
		c.expanded[expansion{index: i, to: WaitingToStart}] {
		m.ignore(ctx, c, kind, i)
		return
	}
	pending := m.notInStatus(m.eval.requires(i), Started)
	if len(pending) == 0 {
		m.enter(ctx, c, kind, i, Starting)
		return
	}
	m.transition(ctx, c, kind, i, WaitingToStart)
	c.expanded[expansion{index: i, to: WaitingToStart}] = true
	for _, p := range pending {
		if m.status[p] != Starting {
			c.push(event{kind: EventRequestStart, index: p})
		}
	}
}

// requestStop mirrors requestStart over the dependents.
func (m *Manager) requestStop(ctx context.Context, c *cascade, kind EventKind,
	i int) {
	if isStatusOneOf(m.status[i], Stopping, Stopped) ||
		c.expanded[expansion{index: i, to: WaitingToStop}] {
		m.ignore(ctx, c, kind, i)
		return
	}
	pending := m.notInStatus(m.eval.requiredBy(i), Stopped)
	if len(pending) == 0 {
		m.enter(ctx, c, kind, i, Stopping)
		return
	}
	m.transition(ctx, c, kind, i, WaitingToStop)
	c.expanded[expansion{index: i, to: WaitingToStop}] = true
	for _, d := range pending {
		if m.status[d] != Stopping {
			c.push(event{kind: EventRequestStop, index: d})
		}
	}
}

// started completes a start and releases every waiting dependent whose
// prerequisites are now all started.
func (m *Manager) started(ctx context.Context, c *cascade, i int) {
	if m.status[i] != Starting {
		m.ignore(ctx, c, EventStarted, i)
		return
	}
	m.transition(ctx, c, EventStarted, i, Started)
	for _, d := range m.eval.requiredBy(i) {
		if m.status[d] != WaitingToStart {
			continue
		}
		if len(m.notInStatus(m.eval.requires(d), Started)) == 0 {
			m.enter(ctx, c, EventStarted, d, Starting)
		}
	}
}

// stopped mirrors started over the prerequisites.
func (m *Manager) stopped(ctx context.Context, c *cascade, i int) {
	if m.status[i] != Stopping {
		m.ignore(ctx, c, EventStopped, i)
		return
	}
	m.transition(ctx, c, EventStopped, i, Stopped)
	for _, p := range m.eval.requires(i) {
		if m.status[p] != WaitingToStop {
			continue
		}
		if len(m.notInStatus(m.eval.requiredBy(p), Stopped)) == 0 {
			m.enter(ctx, c, EventStopped, p, Stopping)
		}
	}
}

// enter transitions a service to Starting or Stopping and invokes the
// matching action once.
func (m *Manager) enter(ctx context.Context, c *cascade, kind EventKind, i int,
	to Status) {
	m.transition(ctx, c, kind, i, to)
	n := m.graph.nodes[i]
	action, completion, name := n.start, EventStarted, "start"
	if to == Stopping {
		action, completion, name = n.stop, EventStopped, "stop"
	}
	if action == nil {
		return
	}
	actx := context.WithValue(ctx, scopeKey{}, &actionScope{
		cascade:    c,
		index:      i,
		completion: completion,
	})
	if err := action(actx); err != nil {
		m.error(err, "action failed", "service", n.id, "action", name,
			"cascade", c.id)
	}
}

func (m *Manager) notInStatus(indexes []int, status Status) []int {
	var res []int
	for _, i := range indexes {
		if m.status[i] != status {
			res = append(res, i)
		}
	}
	return res
}

// transition is the only place where the status of a service changes. This
// function must be called from the processing context.
func (m *Manager) transition(ctx context.Context, c *cascade, kind EventKind,
	i int, to Status) {
	from := m.status[i]
	if from != to {
		delete(c.expanded, expansion{index: i, to: from})
		m.mut.Lock()
		m.status[i] = to
		m.mut.Unlock()
		m.info("transitioned to status", "service", m.graph.nodes[i].id,
			"from", from.String(), "to", to.String(), "event", kind.String(),
			"cascade", c.id)
	}
	m.audit(ctx, c, kind, i, from, to)
}

// ignore records an event that leaves the service unchanged: a request on a
// service already heading there, or a stale notification.
func (m *Manager) ignore(ctx context.Context, c *cascade, kind EventKind,
	i int) {
	current := m.status[i]
	m.info("ignored event", "service", m.graph.nodes[i].id,
		"event", kind.String(), "status", current.String(), "cascade", c.id)
	m.audit(ctx, c, kind, i, current, current)
}

func (m *Manager) audit(ctx context.Context, c *cascade, kind EventKind,
	i int, from, to Status) {
	if m.opts.Audit == nil {
		return
	}
	c.seq++
	entry := AuditEntry{
		CascadeID: c.id,
		Seq:       c.seq,
		Event:     kind,
		ServiceID: m.graph.nodes[i].id,
		From:      from,
		To:        to,
		Time:      time.Now(),
	}
	if err := m.opts.Audit.Record(ctx, entry); err != nil {
		m.error(err, "audit sink failed", "cascade", c.id)
	}
}

// info logs an information message.
func (m *Manager) info(msg string, keysAndValues ...interface{}) {
	if m.opts.Logger != nil {
		m.opts.Logger.Info(msg, keysAndValues...)
	}
}

// error logs an error
func (m *Manager) error(err error, msg string, keysAndValues ...interface{}) {
	if m.opts.Logger != nil {
		m.opts.Logger.Error(err, msg, keysAndValues...)
	}
}

// cascade holds the queue of a running cascade. Actions may push completions
// from other goroutines while it is active.
type cascade struct {
	manager *Manager
	graph   *Graph
	id      string
	// Processing context only
	seq      int
	expanded map[expansion]bool

	mut    sync.Mutex
	queue  []event
	active bool
}

// event resolves the target of an event against the graph of the cascade.
func (c *cascade) event(kind EventKind, id string) (event, error) {
	ev := event{kind: kind, index: -1}
	if !ev.targetsService() {
		return ev, nil
	}
	i, err := c.graph.lookup(id)
	if err != nil {
		return ev, err
	}
	ev.index = i
	return ev, nil
}

// push appends an event unless the cascade is over.
func (c *cascade) push(ev event) bool {
	c.mut.Lock()
	defer c.mut.Unlock()
	if !c.active {
		return false
	}
	c.queue = append(c.queue, ev)
	return true
}

// next pops the next event. The cascade is over once the queue is empty.
func (c *cascade) next() (event, bool) {
	c.mut.Lock()
	defer c.mut.Unlock()
	if len(c.queue) == 0 {
		c.active = false
		return event{}, false
	}
	ev := c.queue[0]
	c.queue = c.queue[1:]
	return ev, true
}

// expansion marks a service that entered a waiting status and requested its
// neighbours during the cascade.
type expansion struct {
	index int
	to    Status
}

type scopeKey struct{}

// actionScope is carried by the context passed to actions.
type actionScope struct {
	cascade    *cascade
	index      int
	completion EventKind
}

func (s *actionScope) serviceID() string {
	return s.cascade.graph.nodes[s.index].id
}

func scopeFrom(ctx context.Context) *actionScope {
	s, _ := ctx.Value(scopeKey{}).(*actionScope)
	return s
}
