package servicegraph

import "context"

// Service declares a node of the dependency graph: its identity, its edges and
// the actions controlling the underlying process.
type Service struct {
	// Unique identifier of the service, also used in the logs.
	ID string
	// Requires lists the prerequisites: services that must be started before
	// this one may begin starting.
	Requires []string
	// RequiredBy lists dependents declared from this side of the edge. It is
	// merged with the inverse of every Requires declaration, so the same edge
	// may be declared on either end (or both).
	RequiredBy []string
	// Start is invoked once per entry into Starting (optional). Without a start
	// action the service stays in Starting until notified.
	Start Action
	// Stop is invoked once per entry into Stopping (optional).
	Stop Action
}

// StatusRecord is the externally visible unit of change: the status of one
// service at the time of publication.
type StatusRecord struct {
	ServiceID string `json:"serviceId" yaml:"serviceId"`
	Status    Status `json:"status" yaml:"status"`
}

// ServiceManager represents the control surface of a dependency graph of
// services. It is implemented by Manager.
type ServiceManager interface {
	// StartService requests the service and, recursively, its prerequisites
	// to start. It returns once the resulting cascade is quiescent.
	StartService(id string) error
	// StartServiceCtx is StartService providing context.
	StartServiceCtx(ctx context.Context, id string) error
	// StopService requests the service and, recursively, its dependents to
	// stop. It returns once the resulting cascade is quiescent.
	StopService(id string) error
	// StopServiceCtx is StopService providing context.
	StopServiceCtx(ctx context.Context, id string) error
	// StartAllServices requests every service to start.
	StartAllServices() error
	// StartAllServicesCtx is StartAllServices providing context.
	StartAllServicesCtx(ctx context.Context) error
	// StopAllServices requests every service to stop.
	StopAllServices() error
	// StopAllServicesCtx is StopAllServices providing context.
	StopAllServicesCtx(ctx context.Context) error
	// ServiceStarted notifies that the start action of a service completed.
	// It is ignored unless the service is Starting.
	ServiceStarted(id string) error
	// ServiceStartedCtx is ServiceStarted providing context.
	ServiceStartedCtx(ctx context.Context, id string) error
	// ServiceStopped notifies that the stop action of a service completed.
	// It is ignored unless the service is Stopping.
	ServiceStopped(id string) error
	// ServiceStoppedCtx is ServiceStopped providing context.
	ServiceStoppedCtx(ctx context.Context, id string) error
	// RegisterStatusListener adds a listener receiving the records changed by
	// each cascade. The listener immediately receives the full status.
	RegisterStatusListener(listener StatusListener) error
	// PublishServiceStatus delivers the full status of every service to all
	// listeners.
	PublishServiceStatus() error
	// Status returns the current status of a service.
	Status(id string) (Status, error)
	// Snapshot returns the current status of every service.
	Snapshot() []StatusRecord
	// Shutdown discards the graph. Every later call returns an error.
	Shutdown() error
}
