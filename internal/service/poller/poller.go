package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/temperature-monitor/internal/domain/alert"
	"github.com/oshokin/temperature-monitor/internal/domain/reading"
	"github.com/oshokin/temperature-monitor/internal/logger"
	"github.com/oshokin/temperature-monitor/internal/notifier"
	"github.com/oshokin/temperature-monitor/internal/sensor"
)

// DefaultInterval is the poll cadence when none is configured.
const DefaultInterval = time.Minute

// Store is the write side of the reading repository.
type Store interface {
	Store(ctx context.Context, r reading.Reading) error
}

// Recorder receives tick instrumentation.
type Recorder interface {
	ObserveTick(status string, duration time.Duration)
	ObserveReading(value float64, capturedAt time.Time)
	ObserveAlert(kind alert.Kind, delivered bool)
	SetAlertActive(active bool)
}

// HealthReporter is told whether the last tick produced a stored reading.
type HealthReporter interface {
	SetServing(serving bool)
}

// Status is the outcome of a tick.
type Status int

const (
	// StatusSkipped means another tick was still running.
	StatusSkipped Status = iota
	// StatusSensorFailed means the sensor produced no value.
	StatusSensorFailed
	// StatusRejected means the value failed domain validation.
	StatusRejected
	// StatusStoreFailed means the repository could not persist the reading.
	StatusStoreFailed
	// StatusEvaluated means the reading was stored and fed to the engine.
	StatusEvaluated
)

// String returns the metric label of the status.
func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusSensorFailed:
		return "sensor_failed"
	case StatusRejected:
		return "rejected"
	case StatusStoreFailed:
		return "store_failed"
	case StatusEvaluated:
		return "evaluated"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result describes what a tick did.
type Result struct {
	// Status is the tick outcome.
	Status Status
	// Reading is the stored reading when Status is StatusEvaluated.
	Reading reading.Reading
	// Alert is the engine transition, NoAlert when none.
	Alert alert.Kind
	// Delivered reports the notifier result for a transition.
	Delivered bool
	// Err is the failure that ended the tick early.
	Err error
}

// Poller runs the read, store, evaluate and notify cycle.
type Poller struct {
	// sensor produces readings.
	sensor sensor.Sensor
	// store persists readings.
	store Store
	// engine is the alert state machine; only touched while mu is held.
	engine *alert.Engine
	// notifier reports transitions.
	notifier notifier.Notifier
	// now is the clock stamped onto readings and fed to the engine.
	now func() time.Time
	// recorder receives instrumentation; may be nil.
	recorder Recorder
	// health receives the serving status; may be nil.
	health HealthReporter

	// mu serializes ticks.
	mu sync.Mutex
	// sequence numbers ticks for log correlation.
	sequence uint64
}

// Option configures a Poller.
type Option func(*Poller)

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// WithRecorder attaches instrumentation.
func WithRecorder(recorder Recorder) Option {
	return func(p *Poller) {
		p.recorder = recorder
	}
}

// WithHealthReporter attaches a health status sink.
func WithHealthReporter(health HealthReporter) Option {
	return func(p *Poller) {
		p.health = health
	}
}

// New wires the collaborators into a Poller. The poller takes ownership of engine.
func New(s sensor.Sensor, store Store, engine *alert.Engine, n notifier.Notifier, opts ...Option) *Poller {
	p := &Poller{
		sensor:   s,
		store:    store,
		engine:   engine,
		notifier: n,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// AlertState returns the engine state. It waits for a running tick to finish.
func (p *Poller) AlertState() alert.State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.engine.State()
}

// Run ticks immediately and then once per interval until ctx is canceled.
func (p *Poller) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	ctx = logger.WithName(ctx, "poller")

	logger.InfoKV(ctx, "Polling temperature", "interval", interval.String())

	p.Tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, poller stopped")

			return nil
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs one cycle. If a cycle is already running it returns StatusSkipped
// without touching any collaborator. Every failure is contained to the tick.
func (p *Poller) Tick(ctx context.Context) Result {
	if !p.mu.TryLock() {
		logger.Warn(ctx, "Previous tick still running, skipping")
		p.observeTick(StatusSkipped, 0)

		return Result{Status: StatusSkipped}
	}
	defer p.mu.Unlock()

	p.sequence++
	ctx = logger.WithKV(ctx, "tick", p.sequence)

	started := time.Now()
	result := p.tick(ctx)
	p.observeTick(result.Status, time.Since(started))

	return result
}

// tick is the body of Tick; the caller holds mu.
func (p *Poller) tick(ctx context.Context) Result {
	value, err := p.read(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Sensor read failed", "error", err)
		p.setServing(false)

		return Result{Status: StatusSensorFailed, Err: err}
	}

	now := p.now()
	r := reading.New(value, now)

	if err = p.store.Store(ctx, r); err != nil {
		p.setServing(false)

		if errors.Is(err, reading.ErrOutOfRange) {
			logger.WarnKV(ctx, "Reading rejected", "temperature", value, "error", err)

			return Result{Status: StatusRejected, Err: err}
		}

		logger.ErrorKV(ctx, "Reading not stored", "temperature", value, "error", err)

		return Result{Status: StatusStoreFailed, Err: err}
	}

	p.setServing(true)

	if p.recorder != nil {
		p.recorder.ObserveReading(r.Value, r.CapturedAt)
	}

	kind := p.engine.Evaluate(value, now)

	if p.recorder != nil {
		p.recorder.SetAlertActive(p.engine.State().InAlert)
	}

	result := Result{
		Status:  StatusEvaluated,
		Reading: r,
		Alert:   kind,
	}

	if kind == alert.NoAlert {
		logger.DebugKV(ctx, "Reading stored", "temperature", value)

		return result
	}

	logger.InfoKV(ctx, "Alert state changed", "transition", kind, "temperature", value)

	result.Delivered = p.notify(ctx, kind, value)
	if !result.Delivered {
		logger.WarnKV(ctx, "Notification not delivered", "transition", kind)
	}

	if p.recorder != nil {
		p.recorder.ObserveAlert(kind, result.Delivered)
	}

	return result
}

// errSensorPanic wraps a panic raised inside a sensor driver.
var errSensorPanic = errors.New("sensor panicked")

// read calls the sensor, converting a panic into an error.
func (p *Poller) read(ctx context.Context) (value float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errSensorPanic, r)
		}
	}()

	return p.sensor.Read(ctx)
}

// notify calls the notifier, treating a panic as a failed delivery.
func (p *Poller) notify(ctx context.Context, kind alert.Kind, value float64) (delivered bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorKV(ctx, "Notifier panicked", "panic", r)

			delivered = false
		}
	}()

	return p.notifier.Send(ctx, kind, value, p.engine.Thresholds().High)
}

// setServing forwards the health status when a reporter is attached.
func (p *Poller) setServing(serving bool) {
	if p.health != nil {
		p.health.SetServing(serving)
	}
}

// observeTick forwards tick instrumentation when a recorder is attached.
func (p *Poller) observeTick(status Status, duration time.Duration) {
	if p.recorder != nil {
		p.recorder.ObserveTick(status.String(), duration)
	}
}
