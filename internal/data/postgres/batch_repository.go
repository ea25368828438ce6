package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pfm-ledger/internal/domain/batch"
	"github.com/pfm-ledger/internal/platform/persistence"
)

// BatchRepository implements the batch.Repository interface for PostgreSQL
type BatchRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewBatchRepository creates a new PostgreSQL import batch repository
func NewBatchRepository(logger *slog.Logger, db *persistence.PostgresDB) batch.Repository {
	return &BatchRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *BatchRepository) WithTx(tx pgx.Tx) batch.Repository {
	return &BatchRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const batchColumns = `id, source, status, record_count, created_count, updated_count, skipped_count, errored_count, started_at, completed_at, created_at`

// Create stores a new import batch row
func (r *BatchRepository) Create(ctx context.Context, b *batch.ImportBatch) error {
	query := `
		INSERT INTO import_batches (id, source, status, record_count, created_count, updated_count, skipped_count, errored_count, started_at, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.querier.Exec(ctx, query,
		b.ID,
		b.Source,
		b.Status,
		b.RecordCount,
		b.Summary.Created,
		b.Summary.Updated,
		b.Summary.Skipped,
		b.Summary.Errored,
		b.StartedAt,
		b.CompletedAt,
		b.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create import batch", "id", b.ID.String(), "error", err)
		return fmt.Errorf("failed to create import batch: %w", err)
	}

	return nil
}

// GetByID retrieves an import batch by its id
func (r *BatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*batch.ImportBatch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM import_batches
		WHERE id = $1
	`

	b, err := r.scanOne(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, batch.ErrBatchNotFound{ID: id}
		}
		r.logger.Error("Failed to get import batch", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get import batch: %w", err)
	}

	return b, nil
}

// Update persists the batch status, summary counters and timestamps
func (r *BatchRepository) Update(ctx context.Context, b *batch.ImportBatch) error {
	query := `
		UPDATE import_batches
		SET status = $1, created_count = $2, updated_count = $3, skipped_count = $4, errored_count = $5, started_at = $6, completed_at = $7
		WHERE id = $8
	`

	result, err := r.querier.Exec(ctx, query,
		b.Status,
		b.Summary.Created,
		b.Summary.Updated,
		b.Summary.Skipped,
		b.Summary.Errored,
		b.StartedAt,
		b.CompletedAt,
		b.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update import batch", "id", b.ID.String(), "error", err)
		return fmt.Errorf("failed to update import batch: %w", err)
	}

	if result.RowsAffected() == 0 {
		return batch.ErrBatchNotFound{ID: b.ID}
	}

	return nil
}

// List retrieves import batches, newest first
func (r *BatchRepository) List(ctx context.Context, limit, offset int) ([]*batch.ImportBatch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM import_batches
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.querier.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list import batches", "error", err)
		return nil, fmt.Errorf("failed to list import batches: %w", err)
	}
	defer rows.Close()

	var batches []*batch.ImportBatch
	for rows.Next() {
		b, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import batch: %w", err)
		}
		batches = append(batches, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over import batches: %w", err)
	}

	return batches, nil
}

func (r *BatchRepository) scanOne(row pgx.Row) (*batch.ImportBatch, error) {
	var b batch.ImportBatch
	err := row.Scan(
		&b.ID,
		&b.Source,
		&b.Status,
		&b.RecordCount,
		&b.Summary.Created,
		&b.Summary.Updated,
		&b.Summary.Skipped,
		&b.Summary.Errored,
		&b.StartedAt,
		&b.CompletedAt,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
