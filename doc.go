// Package servicegraph orchestrates the startup and shutdown of services
// depending on one another.
//
// A service is only started once every service it requires is started, and
// only stopped once every service requiring it is stopped. Declaring a graph
// could look like:
//
//     g, err := servicegraph.NewBuilder().
//         AddService(servicegraph.Service{
//             ID:    "persister",
//             Start: servicegraph.Inline(db.Open),
//             Stop:  servicegraph.Inline(servicegraph.DropContext(db.Close)),
//         }).
//         AddService(servicegraph.Service{
//             ID:       "aggAB",
//             Requires: []string{"persister"},
//             Start:    servicegraph.After(time.Second),
//         }).
//         Build()
//     if err != nil {
//         return err // cycle or unknown service
//     }
//     m, err := servicegraph.NewManager(g, &servicegraph.Options{
//         Logger: servicegraph.SlogLogger(slog.Default()),
//     })
//
// Starting aggAB first moves it to WAITING_TO_START and persister to
// STARTING, invoking its start action. Once persister reports it is started,
// aggAB moves to STARTING in turn:
//
//     m.RegisterStatusListener(func(records []servicegraph.StatusRecord) error {
//         fmt.Println(records)
//         return nil
//     })
//     m.StartService("aggAB")
//
// Actions never change the status of a service by returning. Completion is
// reported explicitly, either inline with Complete(ctx) before the action
// returns, or later from any goroutine with Complete(ctx) or
// Manager.ServiceStarted. Until then the service stays in STARTING (or
// STOPPING); there is no timeout.
//
// Every request and notification is processed as a cascade: the event and all
// the events it triggers are processed one at a time until no transition is
// pending. Cascades never overlap, so the barrier releasing a service with
// several prerequisites sees a consistent view no matter how the completions
// of those prerequisites interleave. When a cascade is over, the records of
// the services whose status changed are delivered to the status listeners.
//
// A Runner drives a manager for the lifetime of a process: it starts every
// service, and stops them all on SIGINT or SIGTERM before shutting the manager
// down.
package servicegraph
