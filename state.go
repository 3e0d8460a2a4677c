package servicegraph

import "fmt"

// Status represents the state of a single service in the dependency graph.
// The state machine provided by this package is the following:
//
//          +----------------+
//          | Unknown        +------------+
//          +-+--------------+            |
//            |                           |
//          +-v--------------+            |
//          | WaitingToStart +-----+      |
//          +----------------+     |      |
//                                 |      |
//          +----------------+     |      |
//          | Starting       <-----+      |
//          +-+--------------+            |
//            |                           |
//          +-v--------------+            |
//          | Started        |            |
//          +-+--------------+            |
//            |                           |
//          +-v--------------+            |
//          | WaitingToStop  <------------+
//          +-+--------------+
//            |
//          +-v--------------+
//          | Stopping       |
//          +-+--------------+
//            |
//          +-v--------------+
//          | Stopped        |
//          +----------------+
//
// Requests may skip the waiting states when the guard already holds: a
// service without prerequisites goes straight to Starting, one without
// dependents straight to Stopping.
//
// Starting and Stopping are only left through an explicit completion
// notification. A start request moves a service out of any state other than
// Starting and Started, a stop request out of any state other than Stopping and
// Stopped.
type Status uint8

const (
	// Unknown is the initial status of every service of a freshly built graph.
	Unknown Status = iota
	// WaitingToStart represents a service that was asked to start but has at
	// least one prerequisite that is not started yet.
	WaitingToStart
	// Starting represents a service whose start action was invoked and which
	// waits for its started notification.
	Starting
	// Started represents a running service.
	Started
	// WaitingToStop represents a service that was asked to stop but has at
	// least one dependent that is not stopped yet.
	WaitingToStop
	// Stopping represents a service whose stop action was invoked and which
	// waits for its stopped notification.
	Stopping
	// Stopped represents a service that confirmed it stopped.
	Stopped
)

func (s Status) String() string {
	switch s {
	case Unknown:
		return "UNKNOWN"
	case WaitingToStart:
		return "WAITING_TO_START"
	case Starting:
		return "STARTING"
	case Started:
		return "STARTED"
	case WaitingToStop:
		return "WAITING_TO_STOP"
	case Stopping:
		return "STOPPING"
	case Stopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("%d", int(s))
	}
}

// MarshalText renders the status with its String form, which keeps published
// records stable in YAML or JSON output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	for st := Unknown; st <= Stopped; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return Unknown, fmt.Errorf("unknown status %q", s)
}

// isStatusOneOf checks whether s is in the list of provided statuses.
func isStatusOneOf(s Status, statuses ...Status) bool {
	for _, status := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
