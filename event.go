package servicegraph

import "fmt"

// EventKind identifies an event processed by the manager.
type EventKind uint8

const (
	// EventRequestStart asks a service to start.
	EventRequestStart EventKind = iota + 1
	// EventRequestStop asks a service to stop.
	EventRequestStop
	// EventRequestStartAll asks every service to start.
	EventRequestStartAll
	// EventRequestStopAll asks every service to stop.
	EventRequestStopAll
	// EventStarted notifies the completion of a start action.
	EventStarted
	// EventStopped notifies the completion of a stop action.
	EventStopped
)

func (k EventKind) String() string {
	switch k {
	case EventRequestStart:
		return "RequestStart"
	case EventRequestStop:
		return "RequestStop"
	case EventRequestStartAll:
		return "RequestStartAll"
	case EventRequestStopAll:
		return "RequestStopAll"
	case EventStarted:
		return "Started"
	case EventStopped:
		return "Stopped"
	default:
		return fmt.Sprintf("%d", int(k))
	}
}

// event is a queued unit of work. index is -1 for graph-wide events.
type event struct {
	kind  EventKind
	index int
}

func (e event) targetsService() bool {
	return e.kind != EventRequestStartAll && e.kind != EventRequestStopAll
}

// ParseEventKind is the inverse of EventKind.String.
func ParseEventKind(s string) (EventKind, error) {
	for k := EventRequestStart; k <= EventStopped; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}
