// Package postgres provides PostgreSQL implementations of the domain repositories.
// It handles all database operations while maintaining transaction safety and
// proper error handling for the import ledger.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pfm-ledger/internal/domain/shared"
	"github.com/pfm-ledger/internal/domain/transaction"
	"github.com/pfm-ledger/internal/platform/persistence"
)

// TransactionRepository implements the transaction.Repository interface for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewTransactionRepository creates a new PostgreSQL transaction repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) transaction.Repository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic operations
// across multiple repository calls.
func (r *TransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const transactionColumns = `id, source, external_ref, fingerprint, occurred_at, amount, currency, descriptor, status, category_id, shop_id, created_at, updated_at`

// Create stores a new transaction together with its line items. A violation of
// the (source, external_ref) unique index is surfaced as ErrDuplicateTransaction.
func (r *TransactionRepository) Create(ctx context.Context, txn *transaction.Transaction) error {
	query := `
		INSERT INTO transactions (id, source, external_ref, fingerprint, occurred_at, amount, currency, descriptor, status, category_id, shop_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.querier.Exec(ctx, query,
		txn.ID,
		txn.Source,
		txn.ExternalRef,
		txn.Fingerprint,
		txn.OccurredAt,
		txn.Amount,
		txn.Currency,
		txn.Descriptor,
		txn.Status,
		txn.CategoryID,
		txn.ShopID,
		txn.CreatedAt,
		txn.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) && txn.ExternalRef != nil {
			return transaction.ErrDuplicateTransaction{Source: txn.Source, ExternalRef: *txn.ExternalRef}
		}
		r.logger.Error("Failed to create transaction", "id", txn.ID.String(), "error", err)
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	for i := range txn.LineItems {
		li := &txn.LineItems[i]
		li.TransactionID = txn.ID
		if err := r.createLineItem(ctx, li); err != nil {
			return err
		}
	}

	return nil
}

func (r *TransactionRepository) createLineItem(ctx context.Context, li *transaction.LineItem) error {
	query := `
		INSERT INTO line_items (id, transaction_id, name, quantity, unit_price, total_price, category_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.querier.Exec(ctx, query,
		li.ID,
		li.TransactionID,
		li.Name,
		li.Quantity,
		li.UnitPrice,
		li.TotalPrice,
		li.CategoryID,
		li.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create line item", "transaction_id", li.TransactionID.String(), "error", err)
		return fmt.Errorf("failed to create line item: %w", err)
	}

	return nil
}

// GetByID retrieves a transaction and its line items
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = $1
	`

	txn, err := r.scanOne(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transaction.ErrTransactionNotFound{ID: id}
		}
		r.logger.Error("Failed to get transaction", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	items, err := r.lineItemsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	txn.LineItems = items

	return txn, nil
}

// GetBySourceRef retrieves a transaction by its exact natural key.
// Returns nil, nil when no transaction carries the given reference.
func (r *TransactionRepository) GetBySourceRef(ctx context.Context, source shared.SourceKind, externalRef string) (*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE source = $1 AND external_ref = $2
	`

	txn, err := r.scanOne(r.querier.QueryRow(ctx, query, source, externalRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get transaction by source ref", "source", string(source), "external_ref", externalRef, "error", err)
		return nil, fmt.Errorf("failed to get transaction by source ref: %w", err)
	}

	// Line items ride along so an update can re-reconcile them against the
	// incoming amount.
	items, err := r.lineItemsFor(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	txn.LineItems = items

	return txn, nil
}

// FindByFingerprint returns transactions sharing a fuzzy fingerprint, oldest
// first, so the earliest match can serve as a stable issue target.
func (r *TransactionRepository) FindByFingerprint(ctx context.Context, fingerprint string) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE fingerprint = $1
		ORDER BY created_at ASC
	`

	rows, err := r.querier.Query(ctx, query, fingerprint)
	if err != nil {
		r.logger.Error("Failed to find transactions by fingerprint", "fingerprint", fingerprint, "error", err)
		return nil, fmt.Errorf("failed to find transactions by fingerprint: %w", err)
	}
	defer rows.Close()

	return r.scanMany(rows)
}

// UpdateMutable persists the mutable fields (amount, descriptor, status)
func (r *TransactionRepository) UpdateMutable(ctx context.Context, txn *transaction.Transaction) error {
	query := `
		UPDATE transactions
		SET amount = $1, descriptor = $2, status = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := r.querier.Exec(ctx, query,
		txn.Amount,
		txn.Descriptor,
		txn.Status,
		txn.UpdatedAt,
		txn.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update transaction", "id", txn.ID.String(), "error", err)
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return transaction.ErrTransactionNotFound{ID: txn.ID}
	}

	return nil
}

// List retrieves transactions ordered by occurrence time, newest first
func (r *TransactionRepository) List(ctx context.Context, limit, offset int) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		ORDER BY occurred_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.querier.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list transactions", "error", err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	return r.scanMany(rows)
}

// Count returns the total number of transactions
func (r *TransactionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.querier.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count transactions", "error", err)
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// GetByTimeRange retrieves transactions that occurred within [start, end)
func (r *TransactionRepository) GetByTimeRange(ctx context.Context, start, end time.Time, limit, offset int) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE occurred_at >= $1 AND occurred_at < $2
		ORDER BY occurred_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.querier.Query(ctx, query, start, end, limit, offset)
	if err != nil {
		r.logger.Error("Failed to get transactions by time range", "error", err)
		return nil, fmt.Errorf("failed to get transactions by time range: %w", err)
	}
	defer rows.Close()

	return r.scanMany(rows)
}

func (r *TransactionRepository) lineItemsFor(ctx context.Context, transactionID uuid.UUID) ([]transaction.LineItem, error) {
	query := `
		SELECT id, transaction_id, name, quantity, unit_price, total_price, category_id, created_at
		FROM line_items
		WHERE transaction_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.querier.Query(ctx, query, transactionID)
	if err != nil {
		r.logger.Error("Failed to get line items", "transaction_id", transactionID.String(), "error", err)
		return nil, fmt.Errorf("failed to get line items: %w", err)
	}
	defer rows.Close()

	var items []transaction.LineItem
	for rows.Next() {
		var li transaction.LineItem
		err := rows.Scan(
			&li.ID,
			&li.TransactionID,
			&li.Name,
			&li.Quantity,
			&li.UnitPrice,
			&li.TotalPrice,
			&li.CategoryID,
			&li.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		items = append(items, li)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over line items: %w", err)
	}

	return items, nil
}

func (r *TransactionRepository) scanOne(row pgx.Row) (*transaction.Transaction, error) {
	var txn transaction.Transaction
	err := row.Scan(
		&txn.ID,
		&txn.Source,
		&txn.ExternalRef,
		&txn.Fingerprint,
		&txn.OccurredAt,
		&txn.Amount,
		&txn.Currency,
		&txn.Descriptor,
		&txn.Status,
		&txn.CategoryID,
		&txn.ShopID,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *TransactionRepository) scanMany(rows pgx.Rows) ([]*transaction.Transaction, error) {
	var txns []*transaction.Transaction
	for rows.Next() {
		txn, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over transactions: %w", err)
	}

	return txns, nil
}
