package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/temperature-monitor/internal/domain/alert"
	"github.com/oshokin/temperature-monitor/internal/logger"
)

// Notifier reports alert transitions. Delivery is best-effort: Send returns
// whether the message went out and never panics across the boundary.
type Notifier interface {
	Send(ctx context.Context, kind alert.Kind, temperature, threshold float64) bool
}

// Transport delivers a title/body pair to one channel.
type Transport interface {
	// Name identifies the transport in logs.
	Name() string
	// Deliver sends the message once.
	Deliver(ctx context.Context, title, body string) error
}

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 10 * time.Second

// errUnexpectedKind is returned when asked to send NoAlert or an unknown kind.
var errUnexpectedKind = errors.New("no message for alert kind")

// Message is a composed notification.
type Message struct {
	// Title is the short headline.
	Title string
	// Body is the full text.
	Body string
}

// Compose builds the message for a transition.
func Compose(kind alert.Kind, temperature, threshold float64) (Message, error) {
	switch kind {
	case alert.AlertHigh:
		return Message{
			Title: "Temperature Alert",
			Body: fmt.Sprintf("Temperature has exceeded threshold: %s°C (threshold: %s°C)",
				formatCelsius(temperature), formatCelsius(threshold)),
		}, nil
	case alert.AlertNormal:
		return Message{
			Title: "Temperature Normal",
			Body: fmt.Sprintf("Temperature has returned to normal: %s°C (threshold: %s°C)",
				formatCelsius(temperature), formatCelsius(threshold)),
		}, nil
	case alert.NoAlert:
		fallthrough
	default:
		return Message{}, fmt.Errorf("%w: %s", errUnexpectedKind, kind)
	}
}

// formatCelsius prints the shortest representation that round-trips.
func formatCelsius(v float64) string {
	return fmt.Sprintf("%v", v)
}

// Dispatcher fans a message out to every configured transport.
type Dispatcher struct {
	// transports are tried in order, each exactly once.
	transports []Transport
	// timeout bounds each delivery.
	timeout time.Duration
}

// Compile-time check that Dispatcher implements Notifier.
var _ Notifier = (*Dispatcher)(nil)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout overrides the per-transport delivery timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// NewDispatcher creates a dispatcher. Nil transports are ignored.
func NewDispatcher(transports []Transport, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transports: make([]Transport, 0, len(transports)),
		timeout:    DefaultTimeout,
	}

	for _, t := range transports {
		if t != nil {
			d.transports = append(d.transports, t)
		}
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Transports returns the names of the configured transports.
func (d *Dispatcher) Transports() []string {
	names := make([]string, 0, len(d.transports))
	for _, t := range d.transports {
		names = append(names, t.Name())
	}

	return names
}

// Send delivers the message for kind to every transport. It returns true
// only if at least one transport is configured and all of them succeeded.
func (d *Dispatcher) Send(ctx context.Context, kind alert.Kind, temperature, threshold float64) bool {
	msg, err := Compose(kind, temperature, threshold)
	if err != nil {
		logger.ErrorKV(ctx, "Notification not composed", "kind", kind, "error", err)

		return false
	}

	if len(d.transports) == 0 {
		logger.WarnKV(ctx, "No notification transports configured", "title", msg.Title)

		return false
	}

	delivered := true

	for _, t := range d.transports {
		if err = d.deliver(ctx, t, msg); err != nil {
			logger.ErrorKV(ctx, "Notification delivery failed", "transport", t.Name(), "title", msg.Title, "error", err)

			delivered = false

			continue
		}

		logger.InfoKV(ctx, "Notification sent", "transport", t.Name(), "title", msg.Title)
	}

	return delivered
}

// deliver runs one bounded attempt and converts a transport panic into an error.
func (d *Dispatcher) deliver(ctx context.Context, t Transport, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport panicked: %v", r) //nolint:err113 // Panic values are dynamic.
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	return t.Deliver(callCtx, msg.Title, msg.Body)
}
