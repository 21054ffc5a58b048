package sensor

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sensor produces one temperature reading in °C per call.
type Sensor interface {
	Read(ctx context.Context) (float64, error)
}

// Source selects which probe of a dual-probe device is used.
type Source string

const (
	// SourceInternal is the probe inside the device housing.
	SourceInternal Source = "internal"
	// SourceExternal is the probe on the cable.
	SourceExternal Source = "external"
)

var (
	// ErrNoSensor means no device could be found.
	ErrNoSensor = errors.New("no temperature sensor found")
	// ErrReadFailed means the device was found but the read or decode failed.
	ErrReadFailed = errors.New("temperature read failed")
	// ErrNoChannel means the device does not expose the selected source.
	ErrNoChannel = errors.New("temperature channel not available")
	// ErrNoData means no sufficiently fresh value has been received yet.
	ErrNoData = errors.New("no fresh temperature data")

	// errUnknownSource is returned for source names other than internal/external.
	errUnknownSource = errors.New("unknown temperature source")
)

// ParseSource converts a configuration value into a Source.
func ParseSource(s string) (Source, error) {
	switch source := Source(strings.ToLower(strings.TrimSpace(s))); source {
	case SourceInternal, SourceExternal:
		return source, nil
	default:
		return "", fmt.Errorf("%w: %q", errUnknownSource, s)
	}
}

// channelKey is the field name a dual-probe device reports for the source.
func (s Source) channelKey() string {
	return string(s) + " temperature"
}
