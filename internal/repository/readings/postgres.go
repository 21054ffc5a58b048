package readings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oshokin/temperature-monitor/internal/domain/reading"
)

// schema creates the readings table and its time index.
const schema = `
CREATE TABLE IF NOT EXISTS temperature_readings (
	id           BIGSERIAL PRIMARY KEY,
	temperature  DOUBLE PRECISION NOT NULL,
	collected_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS temperature_readings_collected_at_idx
	ON temperature_readings (collected_at);
`

// PostgresRepository stores readings in PostgreSQL through a pgx pool.
type PostgresRepository struct {
	// pool is the shared connection pool.
	pool *pgxpool.Pool
	// opts holds the retention window and clock.
	opts options
}

// Compile-time check that PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository connects to dsn and makes sure the schema exists.
func NewPostgresRepository(ctx context.Context, dsn string, opts ...Option) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	repo := &PostgresRepository{
		pool: pool,
		opts: newOptions(opts),
	}

	if err = repo.Migrate(ctx); err != nil {
		pool.Close()

		return nil, err
	}

	return repo, nil
}

// Migrate creates the table and index when missing.
func (p *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	return nil
}

// Close releases the pool.
func (p *PostgresRepository) Close() {
	p.pool.Close()
}

// Store inserts r and evicts stale rows in one transaction.
func (p *PostgresRepository) Store(ctx context.Context, r reading.Reading) (err error) {
	if err = r.Validate(); err != nil {
		return fmt.Errorf("validate reading: %w", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if _, err = tx.Exec(ctx,
		`INSERT INTO temperature_readings (temperature, collected_at) VALUES ($1, $2)`,
		r.Value, r.CapturedAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}

	if _, err = tx.Exec(ctx,
		`DELETE FROM temperature_readings WHERE collected_at < $1`,
		p.opts.cutoff(),
	); err != nil {
		return fmt.Errorf("evict readings: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// FetchRange returns readings within [start, end], newest first.
func (p *PostgresRepository) FetchRange(ctx context.Context, start, end time.Time) ([]reading.Reading, error) {
	if start.After(end) {
		return nil, ErrInvalidRange
	}

	rows, err := p.pool.Query(ctx, `
		SELECT temperature, collected_at
		FROM temperature_readings
		WHERE collected_at BETWEEN $1 AND $2
		ORDER BY collected_at DESC, id DESC`,
		start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	result := make([]reading.Reading, 0)

	for rows.Next() {
		var (
			value      float64
			capturedAt time.Time
		)

		if err = rows.Scan(&value, &capturedAt); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}

		result = append(result, reading.New(value, capturedAt))
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readings: %w", err)
	}

	return result, nil
}

// Latest returns the newest reading or nil.
func (p *PostgresRepository) Latest(ctx context.Context) (*reading.Reading, error) {
	var (
		value      float64
		capturedAt time.Time
	)

	err := p.pool.QueryRow(ctx, `
		SELECT temperature, collected_at
		FROM temperature_readings
		ORDER BY collected_at DESC, id DESC
		LIMIT 1`,
	).Scan(&value, &capturedAt)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil //nolint:nilnil // An empty store is not an error.
	case err != nil:
		return nil, fmt.Errorf("query latest reading: %w", err)
	}

	latest := reading.New(value, capturedAt)

	return &latest, nil
}

// Count returns the number of retained readings.
func (p *PostgresRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM temperature_readings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}

	return count, nil
}
