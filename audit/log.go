package audit

import (
	"context"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"

	"go.tickamp.dev/servicegraph"
)

var _ servicegraph.AuditSink = (*LogSink)(nil)

// LogSink writes audit entries to a logger. It can be switched on and off
// while the manager runs; it starts enabled.
type LogSink struct {
	logger  servicegraph.Logger
	enabled atomic.Bool
}

// NewLogSink creates a LogSink writing to logger. A nil logger discards the
// entries.
func NewLogSink(logger servicegraph.Logger) *LogSink {
	s := &LogSink{logger: logger}
	s.enabled.Store(true)
	return s
}

// SetEnabled turns the event log on or off.
func (s *LogSink) SetEnabled(enabled bool) {
	s.enabled.Store(enabled)
}

// Enabled reports whether entries are currently logged.
func (s *LogSink) Enabled() bool {
	return s.enabled.Load()
}

func (s *LogSink) Record(ctx context.Context,
	entry servicegraph.AuditEntry) error {
	if s.logger == nil || !s.enabled.Load() {
		return nil
	}
	s.logger.Info("event", "cascade", entry.CascadeID, "seq", entry.Seq,
		"event", entry.Event.String(), "service", entry.ServiceID,
		"from", entry.From.String(), "to", entry.To.String())
	return nil
}

// Sinks fans entries out to several sinks. Every sink receives every entry
// even when a previous one failed.
type Sinks []servicegraph.AuditSink

func (s Sinks) Record(ctx context.Context,
	entry servicegraph.AuditEntry) error {
	var errs *multierror.Error
	for _, sink := range s {
		if err := sink.Record(ctx, entry); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
