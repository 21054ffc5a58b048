package alert

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Kind is the outcome of a single evaluation.
type Kind int

const (
	// NoAlert means nothing has to be reported.
	NoAlert Kind = iota
	// AlertHigh means the temperature crossed the high threshold.
	AlertHigh
	// AlertNormal means the temperature dropped below the hysteresis band.
	AlertNormal
)

// String returns the log-friendly name of the kind.
func (k Kind) String() string {
	switch k {
	case NoAlert:
		return "no_alert"
	case AlertHigh:
		return "alert_high"
	case AlertNormal:
		return "alert_normal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Thresholds configures the engine. It is immutable for the process lifetime.
type Thresholds struct {
	// High is the temperature at or above which an alert is raised.
	High float64
	// NormalMargin is the width of the hysteresis band below High.
	NormalMargin float64
	// Cooldown is the minimum time between two AlertHigh notifications.
	Cooldown time.Duration
}

var (
	// errInvalidHigh is returned when the high threshold is not a finite number.
	errInvalidHigh = errors.New("high threshold must be a finite number")
	// errInvalidMargin is returned for a negative or non-finite margin.
	errInvalidMargin = errors.New("normal margin must be a finite non-negative number")
	// errInvalidCooldown is returned for a negative cooldown.
	errInvalidCooldown = errors.New("cooldown must not be negative")
)

// NormalExit is the temperature at or below which an active alert clears.
func (t Thresholds) NormalExit() float64 {
	return t.High - t.NormalMargin
}

// Validate checks the thresholds for values the engine cannot work with.
func (t Thresholds) Validate() error {
	if math.IsNaN(t.High) || math.IsInf(t.High, 0) {
		return errInvalidHigh
	}

	if math.IsNaN(t.NormalMargin) || math.IsInf(t.NormalMargin, 0) || t.NormalMargin < 0 {
		return errInvalidMargin
	}

	if t.Cooldown < 0 {
		return errInvalidCooldown
	}

	return nil
}

// State is a snapshot of the engine's mutable fields.
type State struct {
	// InAlert is true between an AlertHigh and the matching AlertNormal.
	InAlert bool
	// LastNotifiedAt is the time of the last reported transition; zero when unset.
	LastNotifiedAt time.Time
}

// Engine is the hysteresis and cooldown state machine. It is not safe for
// concurrent use: a single poll loop owns it.
type Engine struct {
	// thresholds holds the configured limits.
	thresholds Thresholds
	// state is the current machine state.
	state State
	// rearm enables leaving the alert once the cooldown expires while still hot.
	rearm bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithRearmAfterCooldown makes an engine that is still in alert after the
// cooldown has elapsed report a fresh AlertHigh on the next hot reading,
// without first dropping below the hysteresis band.
func WithRearmAfterCooldown() Option {
	return func(e *Engine) {
		e.rearm = true
	}
}

// NewEngine returns an idle engine.
func NewEngine(thresholds Thresholds, opts ...Option) *Engine {
	e := &Engine{
		thresholds: thresholds,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Thresholds returns the configured limits.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// State returns a copy of the current state.
func (e *Engine) State() State {
	return e.state
}

// Evaluate feeds one temperature taken at now into the machine and returns
// the transition to report, if any.
func (e *Engine) Evaluate(temperature float64, now time.Time) Kind {
	switch {
	case temperature >= e.thresholds.High:
		if e.state.InAlert && e.rearm && e.cooldownElapsed(now) {
			e.state.InAlert = false
		}

		if e.state.InAlert || !e.cooldownElapsed(now) {
			return NoAlert
		}

		e.state = State{InAlert: true, LastNotifiedAt: now}

		return AlertHigh
	case temperature <= e.thresholds.NormalExit() && e.state.InAlert:
		// Recovery is reported once per entry and never waits for the cooldown.
		e.state = State{InAlert: false, LastNotifiedAt: now}

		return AlertNormal
	default:
		return NoAlert
	}
}

// cooldownElapsed reports whether a new AlertHigh may be sent at now.
func (e *Engine) cooldownElapsed(now time.Time) bool {
	if e.state.LastNotifiedAt.IsZero() {
		return true
	}

	return now.Sub(e.state.LastNotifiedAt) >= e.thresholds.Cooldown
}
