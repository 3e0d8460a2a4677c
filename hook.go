package servicegraph

import (
	"context"
	"time"
)

// Action starts or stops the process behind a service. The provided context
// identifies the service and the action; pass it to Complete, inline or from
// any goroutine, once the process is started (respectively stopped). Returning
// an error does not change the status of the service, it is logged only.
type Action = func(ctx context.Context) error

// StatusListener receives published status records. It runs on the processing
// context of the manager and must not call the manager synchronously. A
// returned error is logged and does not affect other listeners.
type StatusListener = func(records []StatusRecord) error

// AuditEntry is one line of the event log: the effect of a processed event on
// a service. From equals To when the event was ignored.
type AuditEntry struct {
	CascadeID string
	Seq       int
	Event     EventKind
	ServiceID string
	From      Status
	To        Status
	Time      time.Time
}

// AuditSink records the event log of a manager. Errors are logged and never
// abort a cascade.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
}
