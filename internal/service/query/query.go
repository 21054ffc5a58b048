package query

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/temperature-monitor/internal/domain/alert"
	"github.com/oshokin/temperature-monitor/internal/domain/reading"
	"github.com/oshokin/temperature-monitor/internal/repository/readings"
)

// Reader is the read side of the reading repository.
type Reader interface {
	FetchRange(ctx context.Context, start, end time.Time) ([]reading.Reading, error)
	Latest(ctx context.Context) (*reading.Reading, error)
}

// Classification holds the presentational flags of a reading.
type Classification struct {
	// IsAlert is true strictly above the high threshold.
	IsAlert bool
	// IsNormal is true strictly below the normal exit point.
	IsNormal bool
}

// Service answers read queries over stored readings.
type Service struct {
	reader     Reader
	thresholds alert.Thresholds
	retention  time.Duration
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for default bounds.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a query service. A non-positive retention uses readings.DefaultRetention.
func New(reader Reader, thresholds alert.Thresholds, retention time.Duration, opts ...Option) *Service {
	if retention <= 0 {
		retention = readings.DefaultRetention
	}

	s := &Service{
		reader:     reader,
		thresholds: thresholds,
		retention:  retention,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Latest returns the newest reading or nil when nothing is stored.
func (s *Service) Latest(ctx context.Context) (*reading.Reading, error) {
	r, err := s.reader.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch latest reading: %w", err)
	}

	return r, nil
}

// History returns readings between start and end, newest first.
// A nil end means now; a nil start means end minus the retention period.
func (s *Service) History(ctx context.Context, start, end *time.Time) ([]reading.Reading, error) {
	to := s.now().UTC()
	if end != nil {
		to = end.UTC()
	}

	from := to.Add(-s.retention)
	if start != nil {
		from = start.UTC()
	}

	if from.After(to) {
		return nil, readings.ErrInvalidRange
	}

	rows, err := s.reader.FetchRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch readings: %w", err)
	}

	return rows, nil
}

// Hourly returns the readings of the last hour, newest first.
func (s *Service) Hourly(ctx context.Context) ([]reading.Reading, error) {
	end := s.now().UTC()
	start := end.Add(-time.Hour)

	return s.History(ctx, &start, &end)
}

// Classify flags a value against the configured thresholds.
func (s *Service) Classify(value float64) Classification {
	return Classification{
		IsAlert:  value > s.thresholds.High,
		IsNormal: value < s.thresholds.NormalExit(),
	}
}

// Thresholds returns the configured thresholds.
func (s *Service) Thresholds() alert.Thresholds {
	return s.thresholds
}
