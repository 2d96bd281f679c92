// Package store persists per-recording processing results to PostgreSQL so
// batch runs can be audited and re-queried without reopening the output
// files.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/nistring/VitalRecoder-ANI/pkg/logger"
	"github.com/nistring/VitalRecoder-ANI/pkg/postgres"
	"github.com/nistring/VitalRecoder-ANI/pkg/resilience"
)

// Result is one recording's processing summary.
type Result struct {
	Recording       string
	Output          string
	DurationSeconds float64
	ANIMean         sql.NullFloat64
	FailedWindows   int
	SPIMean         sql.NullFloat64
	SPIMin          sql.NullFloat64
	Error           string
	ProcessedAt     time.Time
}

// ResultStore writes Results to the recording_results table.
type ResultStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *ResultStore {
	return &ResultStore{
		db:     db,
		logger: logger.WithComponent("result-store"),
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS recording_results (
	id               BIGSERIAL PRIMARY KEY,
	recording        TEXT NOT NULL,
	output           TEXT NOT NULL DEFAULT '',
	duration_seconds DOUBLE PRECISION NOT NULL,
	ani_mean         DOUBLE PRECISION,
	failed_windows   INTEGER NOT NULL DEFAULT 0,
	spi_mean         DOUBLE PRECISION,
	spi_min          DOUBLE PRECISION,
	error            TEXT NOT NULL DEFAULT '',
	processed_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_recording_results_recording
	ON recording_results (recording);
`

// Init creates the results table when it does not exist yet.
func (s *ResultStore) Init(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating results schema: %w", err)
	}
	return nil
}

// Insert writes one result row, retrying transient failures.
func (s *ResultStore) Insert(ctx context.Context, r Result) error {
	const query = `
		INSERT INTO recording_results
			(recording, output, duration_seconds, ani_mean, failed_windows,
			 spi_mean, spi_min, error, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	err := resilience.Retry(ctx, "insert-result", resilience.RetryConfig{}, func() error {
		_, execErr := s.db.DB.ExecContext(ctx, query,
			r.Recording, r.Output, r.DurationSeconds, r.ANIMean, r.FailedWindows,
			r.SPIMean, r.SPIMin, r.Error, r.ProcessedAt,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("inserting result for %s: %w", r.Recording, err)
	}
	s.logger.Debug("result stored", "recording", r.Recording)
	return nil
}
