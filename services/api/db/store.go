package db

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hydrogem/pool-dashboard/services/api/models"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps database access helpers.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the readings table and the insert notification trigger
// when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

const readingColumns = `id::text, created_at, ph, chlorine_ppm, temp_c, battery_pct`

const readingsSinceSQL = `
    SELECT ` + readingColumns + `
    FROM public.pool_readings
    WHERE created_at >= $1
    ORDER BY created_at ASC
`

const latestReadingSQL = `
    SELECT ` + readingColumns + `
    FROM public.pool_readings
    ORDER BY created_at DESC
    LIMIT 1
`

// ReadingsSince returns every reading created at or after since, oldest first.
func (s *Store) ReadingsSince(ctx context.Context, since time.Time) ([]models.Reading, error) {
	rows, err := s.pool.Query(ctx, readingsSinceSQL, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := make([]models.Reading, 0)
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// LatestReading returns the most recent reading, or nil when the table is empty.
func (s *Store) LatestReading(ctx context.Context) (*models.Reading, error) {
	r, err := scanReading(s.pool.QueryRow(ctx, latestReadingSQL))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanReading(row pgx.Row) (models.Reading, error) {
	var r models.Reading
	err := row.Scan(
		&r.ID,
		&r.CreatedAt,
		&r.PH,
		&r.ChlorinePPM,
		&r.TempC,
		&r.BatteryPct,
	)
	return r, err
}
