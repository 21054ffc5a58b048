package readings

import (
	"context"
	"errors"
	"time"

	"github.com/oshokin/temperature-monitor/internal/domain/reading"
)

// Repository persists a retention-bounded series of readings.
type Repository interface {
	// Store validates and inserts r, then evicts everything older than the
	// retention window in the same atomic step.
	Store(ctx context.Context, r reading.Reading) error
	// FetchRange returns readings with start <= CapturedAt <= end, newest first.
	FetchRange(ctx context.Context, start, end time.Time) ([]reading.Reading, error)
	// Latest returns the newest reading or nil when the store is empty.
	Latest(ctx context.Context) (*reading.Reading, error)
	// Count returns the number of retained readings.
	Count(ctx context.Context) (int, error)
}

// DefaultRetention is how long readings are kept when nothing else is configured.
const DefaultRetention = 14 * 24 * time.Hour

// ErrInvalidRange is returned when a query starts after it ends.
var ErrInvalidRange = errors.New("start time must not be after end time")

// Option configures a repository.
type Option func(*options)

// options holds settings shared by the repository implementations.
type options struct {
	// retention is the sliding window readings are kept for.
	retention time.Duration
	// now is the clock used to compute the eviction cutoff.
	now func() time.Time
}

// WithRetention overrides the retention window.
func WithRetention(retention time.Duration) Option {
	return func(o *options) {
		if retention > 0 {
			o.retention = retention
		}
	}
}

// WithClock overrides the clock used for eviction.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// newOptions applies opts over the defaults.
func newOptions(opts []Option) options {
	o := options{
		retention: DefaultRetention,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// cutoff is the oldest CapturedAt that survives a write at the current time.
func (o options) cutoff() time.Time {
	return o.now().UTC().Add(-o.retention)
}
