package servicegraph

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// notificationBus delivers published records to the listeners in
// registration order. It is only used while holding the manager semaphore.
type notificationBus struct {
	listeners []StatusListener
	onError   func(err error)
}

func (b *notificationBus) register(listener StatusListener) {
	b.listeners = append(b.listeners, listener)
}

func (b *notificationBus) clear() {
	b.listeners = nil
}

func (b *notificationBus) publish(records []StatusRecord) {
	b.deliver(b.listeners, records)
}

// deliver calls every listener once with its own copy of the records. Failing
// listeners do not prevent delivery to the next ones; their errors are
// reported together.
func (b *notificationBus) deliver(listeners []StatusListener,
	records []StatusRecord) {
	var errs *multierror.Error
	for i, listener := range listeners {
		if err := callListener(listener, records); err != nil {
			errs = multierror.Append(errs,
				fmt.Errorf("listener %d: %w", i, err))
		}
	}
	if err := errs.ErrorOrNil(); err != nil && b.onError != nil {
		b.onError(err)
	}
}

func callListener(listener StatusListener, records []StatusRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	return listener(append([]StatusRecord(nil), records...))
}
