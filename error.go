package servicegraph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	errShutdown    = errors.New("service manager is shut down")
	errStopTimeout = errors.New("services did not stop in time")
	errRunning     = errors.New("runner already started")
)

// UnknownServiceError is returned when a service id is not part of the graph,
// either while building it or when calling the manager.
type UnknownServiceError struct {
	ID string
	// Referrer is the service declaring the unknown id, empty when the id was
	// passed to the manager directly.
	Referrer string
}

func (e *UnknownServiceError) Error() string {
	if e.Referrer != "" {
		return fmt.Sprintf("service %q references unknown service %q",
			e.Referrer, e.ID)
	}
	return fmt.Sprintf("unknown service %q", e.ID)
}

// CyclicDependencyError is returned by Build when the requires relation
// contains a cycle. Cycle starts and ends with the same id.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return "cyclic dependency: " + strings.Join(e.Cycle, " -> ")
}

// DuplicateServiceError is returned by Build when an id is added twice.
type DuplicateServiceError struct {
	ID string
}

func (e *DuplicateServiceError) Error() string {
	return fmt.Sprintf("service %q is defined more than once", e.ID)
}

// IsUnknownService returns true if the cause of the error is a reference to a
// service that is not part of the graph.
func IsUnknownService(err error) bool {
	var target *UnknownServiceError
	return errors.As(err, &target)
}

// IsCyclicDependency returns true if the cause of the error is a dependency
// cycle detected while building the graph.
func IsCyclicDependency(err error) bool {
	var target *CyclicDependencyError
	return errors.As(err, &target)
}

// IsShutdown returns true if the error was returned because the manager was
// shut down before the call.
func IsShutdown(err error) bool {
	return errors.Is(err, errShutdown)
}

// IsStopTimeout returns true if the cause of the error is a runner shutting
// the manager down before every service reported it stopped.
func IsStopTimeout(err error) bool {
	return errors.Is(err, errStopTimeout)
}
