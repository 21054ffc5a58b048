package readings

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oshokin/temperature-monitor/internal/domain/reading"
)

// MemoryRepository keeps readings in a slice sorted by CapturedAt.
// A write replaces the slice under the write lock, so readers observe either
// the state before or after the insert and eviction, never a mix.
type MemoryRepository struct {
	// opts holds the retention window and clock.
	opts options
	// rows is sorted oldest first.
	rows []reading.Reading
	// mu protects rows.
	mu sync.RWMutex
}

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-process repository.
func NewMemoryRepository(opts ...Option) *MemoryRepository {
	return &MemoryRepository{
		opts: newOptions(opts),
	}
}

// Store inserts r and evicts readings older than the retention window.
func (m *MemoryRepository) Store(_ context.Context, r reading.Reading) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("validate reading: %w", err)
	}

	r = reading.New(r.Value, r.CapturedAt)

	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.opts.cutoff()

	next := make([]reading.Reading, 0, len(m.rows)+1)
	inserted := false

	for _, row := range m.rows {
		if !inserted && r.CapturedAt.Before(row.CapturedAt) {
			next = appendRetained(next, r, cutoff)
			inserted = true
		}

		next = appendRetained(next, row, cutoff)
	}

	if !inserted {
		next = appendRetained(next, r, cutoff)
	}

	m.rows = next

	return nil
}

// appendRetained appends r unless it is older than cutoff.
func appendRetained(rows []reading.Reading, r reading.Reading, cutoff time.Time) []reading.Reading {
	if r.CapturedAt.Before(cutoff) {
		return rows
	}

	return append(rows, r)
}

// FetchRange returns readings within [start, end], newest first.
func (m *MemoryRepository) FetchRange(_ context.Context, start, end time.Time) ([]reading.Reading, error) {
	if start.After(end) {
		return nil, ErrInvalidRange
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	// First index with CapturedAt > end.
	upper := sort.Search(len(m.rows), func(i int) bool {
		return m.rows[i].CapturedAt.After(end)
	})

	result := make([]reading.Reading, 0)

	for i := upper - 1; i >= 0 && !m.rows[i].CapturedAt.Before(start); i-- {
		result = append(result, m.rows[i])
	}

	return result, nil
}

// Latest returns the newest reading or nil.
func (m *MemoryRepository) Latest(context.Context) (*reading.Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.rows) == 0 {
		return nil, nil //nolint:nilnil // An empty store is not an error.
	}

	latest := m.rows[len(m.rows)-1]

	return &latest, nil
}

// Count returns the number of retained readings.
func (m *MemoryRepository) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.rows), nil
}
