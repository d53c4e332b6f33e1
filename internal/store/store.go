// Package store persists run summaries in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Agrid-Dev/vdizone/internal/simulator"
)

var ErrNoDatabase = errors.New("store: database connection not available")

var _ simulator.Recorder = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS zone_runs (
	id              BIGSERIAL PRIMARY KEY,
	zone_id         TEXT             NOT NULL,
	case_name       TEXT             NOT NULL,
	started_at      TIMESTAMPTZ      NOT NULL,
	timesteps       INTEGER          NOT NULL,
	final_air       DOUBLE PRECISION NOT NULL,
	min_air         DOUBLE PRECISION NOT NULL,
	max_air         DOUBLE PRECISION NOT NULL,
	mean_power      DOUBLE PRECISION NOT NULL,
	unmet_steps     INTEGER          NOT NULL,
	passed          BOOLEAN          NOT NULL,
	elapsed_seconds DOUBLE PRECISION NOT NULL,
	UNIQUE (zone_id, case_name, started_at)
);
CREATE TABLE IF NOT EXISTS zone_run_deviations (
	run_id    BIGINT           NOT NULL REFERENCES zone_runs (id) ON DELETE CASCADE,
	day       INTEGER          NOT NULL,
	deviation DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, day)
);`

// Store records run summaries for one zone.
type Store struct {
	db     *sql.DB
	zoneID string
}

// Open connects to PostgreSQL and checks the connection.
func Open(ctx context.Context, dsn, zoneID string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(db, zoneID), nil
}

func New(db *sql.DB, zoneID string) *Store {
	return &Store{db: db, zoneID: zoneID}
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s.db == nil {
		return ErrNoDatabase
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Record upserts a run and replaces its per-day deviations.
func (s *Store) Record(ctx context.Context, sum simulator.Summary) error {
	if s.db == nil {
		return ErrNoDatabase
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO zone_runs (
			zone_id,
			case_name,
			started_at,
			timesteps,
			final_air,
			min_air,
			max_air,
			mean_power,
			unmet_steps,
			passed,
			elapsed_seconds
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (zone_id, case_name, started_at) DO UPDATE SET
			timesteps = EXCLUDED.timesteps,
			final_air = EXCLUDED.final_air,
			min_air = EXCLUDED.min_air,
			max_air = EXCLUDED.max_air,
			mean_power = EXCLUDED.mean_power,
			unmet_steps = EXCLUDED.unmet_steps,
			passed = EXCLUDED.passed,
			elapsed_seconds = EXCLUDED.elapsed_seconds
		RETURNING id`,
		s.zoneID,
		sum.Case,
		sum.StartedAt.UTC(),
		sum.Timesteps,
		sum.FinalAir,
		sum.MinAir,
		sum.MaxAir,
		sum.MeanPower,
		sum.Unmet,
		sum.Passed,
		sum.ElapsedSecs,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", sum.Case, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM zone_run_deviations WHERE run_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete deviations: %w", err)
	}

	if len(sum.Deviations) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO zone_run_deviations (run_id, day, deviation) VALUES ($1, $2, $3)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for day, dev := range sum.Deviations {
			if _, err := stmt.ExecContext(ctx, id, day, dev); err != nil {
				return fmt.Errorf("failed to insert deviation for day %d: %w", day, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Recent returns up to limit runs of this zone, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]simulator.Summary, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, case_name, started_at, timesteps, final_air, min_air, max_air,
		       mean_power, unmet_steps, passed, elapsed_seconds
		FROM zone_runs
		WHERE zone_id = $1
		ORDER BY started_at DESC
		LIMIT $2`, s.zoneID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var (
		out []simulator.Summary
		ids []int64
	)
	for rows.Next() {
		var (
			id      int64
			sum     simulator.Summary
			started time.Time
		)
		if err := rows.Scan(&id, &sum.Case, &started, &sum.Timesteps, &sum.FinalAir, &sum.MinAir,
			&sum.MaxAir, &sum.MeanPower, &sum.Unmet, &sum.Passed, &sum.ElapsedSecs); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		sum.StartedAt = started
		out = append(out, sum)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	for i, id := range ids {
		devs, err := s.deviations(ctx, id)
		if err != nil {
			return nil, err
		}
		out[i].Deviations = devs
	}
	return out, nil
}

func (s *Store) deviations(ctx context.Context, runID int64) (map[int]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT day, deviation FROM zone_run_deviations WHERE run_id = $1`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deviations: %w", err)
	}
	defer rows.Close()

	var devs map[int]float64
	for rows.Next() {
		var (
			day int
			dev float64
		)
		if err := rows.Scan(&day, &dev); err != nil {
			return nil, fmt.Errorf("failed to scan deviation: %w", err)
		}
		if devs == nil {
			devs = map[int]float64{}
		}
		devs[day] = dev
	}
	return devs, rows.Err()
}
