package readings

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/temperature-monitor/internal/domain/reading"
)

// epoch is the fixed starting instant for synthetic clocks.
var epoch = time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)

// fakeClock is a settable clock shared between a test and a repository.
type fakeClock struct {
	// now is the instant returned by Now.
	now time.Time
	// mu protects now.
	mu sync.Mutex
}

// Now returns the current fake time.
func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// Set moves the fake clock to t.
func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = t
}

// repositoryFactory builds an empty repository bound to clock.
type repositoryFactory func(t *testing.T, clock *fakeClock, retention time.Duration) Repository

// runRepositoryContract exercises the behaviour every backend must share.
//
//nolint:thelper // Subtests carry their own helpers.
func runRepositoryContract(t *testing.T, newRepo repositoryFactory) {
	ctx := context.Background()

	t.Run("store then latest", func(t *testing.T) {
		clock := &fakeClock{now: epoch}
		repo := newRepo(t, clock, time.Hour)

		for i, v := range []float64{-50, -7.25, 0, 23.5, 50} {
			clock.Set(epoch.Add(time.Duration(i) * time.Second))
			require.NoError(t, repo.Store(ctx, reading.New(v, clock.Now())))

			latest, err := repo.Latest(ctx)
			require.NoError(t, err)
			require.NotNil(t, latest)
			require.InDelta(t, v, latest.Value, 1e-9)
		}
	})

	t.Run("empty store has no latest", func(t *testing.T) {
		repo := newRepo(t, &fakeClock{now: epoch}, time.Hour)

		latest, err := repo.Latest(ctx)
		require.NoError(t, err)
		require.Nil(t, latest)
	})

	t.Run("invalid values leave the store unchanged", func(t *testing.T) {
		clock := &fakeClock{now: epoch}
		repo := newRepo(t, clock, time.Hour)
		require.NoError(t, repo.Store(ctx, reading.New(21, epoch)))

		for _, v := range []float64{100, -50.5, math.NaN(), math.Inf(1)} {
			err := repo.Store(ctx, reading.New(v, epoch.Add(time.Second)))
			require.ErrorIs(t, err, reading.ErrOutOfRange)
		}

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, count)

		latest, err := repo.Latest(ctx)
		require.NoError(t, err)
		require.InDelta(t, 21.0, latest.Value, 1e-9)
	})

	t.Run("history window returns the middle reading", func(t *testing.T) {
		clock := &fakeClock{now: epoch}
		repo := newRepo(t, clock, 24*time.Hour)

		for _, ago := range []time.Duration{30, 20, 10} {
			require.NoError(t, repo.Store(ctx, reading.New(float64(ago), epoch.Add(-ago*time.Minute))))
		}

		got, err := repo.FetchRange(ctx, epoch.Add(-25*time.Minute), epoch.Add(-15*time.Minute))
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.InDelta(t, 20.0, got[0].Value, 1e-9)
		require.True(t, got[0].CapturedAt.Equal(epoch.Add(-20*time.Minute)))
	})

	t.Run("range is inclusive and newest first", func(t *testing.T) {
		clock := &fakeClock{now: epoch}
		repo := newRepo(t, clock, 24*time.Hour)

		for i := range 5 {
			require.NoError(t, repo.Store(ctx, reading.New(float64(i), epoch.Add(-time.Duration(i)*time.Minute))))
		}

		got, err := repo.FetchRange(ctx, epoch.Add(-3*time.Minute), epoch.Add(-time.Minute))
		require.NoError(t, err)
		require.Len(t, got, 3)
		require.InDelta(t, 1.0, got[0].Value, 1e-9)
		require.InDelta(t, 2.0, got[1].Value, 1e-9)
		require.InDelta(t, 3.0, got[2].Value, 1e-9)
	})

	t.Run("inverted range is rejected", func(t *testing.T) {
		repo := newRepo(t, &fakeClock{now: epoch}, time.Hour)

		_, err := repo.FetchRange(ctx, epoch, epoch.Add(-time.Second))
		require.ErrorIs(t, err, ErrInvalidRange)
	})

	t.Run("eviction keeps only the retention window", func(t *testing.T) {
		const retention = 10 * time.Minute

		clock := &fakeClock{now: epoch}
		repo := newRepo(t, clock, retention)
		rnd := rand.New(rand.NewSource(42)) //nolint:gosec // Deterministic test data.

		now := epoch
		for range 200 {
			// Clock advances irregularly; samples may lag behind it.
			now = now.Add(time.Duration(rnd.Intn(120)) * time.Second)
			clock.Set(now)

			capturedAt := now.Add(-time.Duration(rnd.Intn(15)) * time.Minute)
			require.NoError(t, repo.Store(ctx, reading.New(rnd.Float64()*100-50, capturedAt)))

			all, err := repo.FetchRange(ctx, time.Time{}, now.Add(time.Hour))
			require.NoError(t, err)

			cutoff := now.Add(-retention)
			for _, r := range all {
				require.False(t, r.CapturedAt.Before(cutoff), "reading %v older than cutoff %v", r.CapturedAt, cutoff)
			}
		}
	})
}
