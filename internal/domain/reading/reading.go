package reading

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Temperature domain bounds in °C, inclusive. They are not configurable.
const (
	MinTemperature = -50.0
	MaxTemperature = 50.0
)

// ErrOutOfRange is returned for values that are not finite or fall outside
// [MinTemperature, MaxTemperature].
var ErrOutOfRange = errors.New("temperature out of range")

// Reading is a single temperature sample. It is never mutated after creation.
type Reading struct {
	// Value is the temperature in °C.
	Value float64
	// CapturedAt is the UTC instant the sample was taken.
	CapturedAt time.Time
}

// New builds a Reading with its timestamp normalized to UTC.
func New(value float64, capturedAt time.Time) Reading {
	return Reading{
		Value:      value,
		CapturedAt: capturedAt.UTC(),
	}
}

// Validate reports whether the reading may be persisted.
func (r Reading) Validate() error {
	return ValidateValue(r.Value)
}

// ValidateValue checks a raw temperature against the domain bounds.
func ValidateValue(value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %v is not a finite number", ErrOutOfRange, value)
	}

	if value < MinTemperature || value > MaxTemperature {
		return fmt.Errorf("%w: %.2f°C is outside [%.0f, %.0f]", ErrOutOfRange, value, MinTemperature, MaxTemperature)
	}

	return nil
}
