// Package notifications tells the outside world about motion segments, by
// mail or over MQTT.
package notifications

import (
	"context"
	"errors"

	"github.com/yeti47/cryospy/client/motion-client/events"
)

type Notifier interface {
	// Notify delivers message for an event of the given kind.
	Notify(ctx context.Context, kind events.Kind, message string) error
}

type nopNotifier struct{}

var NopNotifier Notifier = &nopNotifier{}

func (n *nopNotifier) Notify(context.Context, events.Kind, string) error {
	return nil
}

// MultiNotifier notifies every member and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, kind events.Kind, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, kind, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
