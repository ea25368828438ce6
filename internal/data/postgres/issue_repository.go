package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pfm-ledger/internal/domain/issue"
	"github.com/pfm-ledger/internal/platform/persistence"
)

// IssueRepository implements the issue.Repository interface for PostgreSQL
type IssueRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewIssueRepository creates a new PostgreSQL reconciliation issue repository
func NewIssueRepository(logger *slog.Logger, db *persistence.PostgresDB) issue.Repository {
	return &IssueRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *IssueRepository) WithTx(tx pgx.Tx) issue.Repository {
	return &IssueRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Upsert inserts the issue or, when an issue for the same
// (target_kind, target_id, issue_kind) already exists, refreshes its
// description and updated-at stamp instead of creating a second row. An
// anomaly re-detected after its issue was resolved reopens it, clearing the
// stale resolution.
func (r *IssueRepository) Upsert(ctx context.Context, iss *issue.Issue) error {
	query := `
		INSERT INTO reconciliation_issues (id, target_kind, target_id, issue_kind, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (target_kind, target_id, issue_kind)
		DO UPDATE SET description = EXCLUDED.description, status = EXCLUDED.status,
			resolution_notes = '', resolved_at = NULL, updated_at = EXCLUDED.updated_at
	`

	_, err := r.querier.Exec(ctx, query,
		iss.ID,
		iss.Target.Kind,
		iss.Target.ID,
		iss.Kind,
		iss.Description,
		iss.Status,
		iss.CreatedAt,
		iss.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert reconciliation issue",
			"target_kind", string(iss.Target.Kind),
			"target_id", iss.Target.ID.String(),
			"issue_kind", string(iss.Kind),
			"error", err,
		)
		return fmt.Errorf("failed to upsert reconciliation issue: %w", err)
	}

	return nil
}

const issueColumns = `id, target_kind, target_id, issue_kind, description, status, resolution_notes, resolved_at, created_at, updated_at`

// GetByID retrieves an issue by its id
func (r *IssueRepository) GetByID(ctx context.Context, id uuid.UUID) (*issue.Issue, error) {
	query := `
		SELECT ` + issueColumns + `
		FROM reconciliation_issues
		WHERE id = $1
	`

	iss, err := r.scanOne(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, issue.ErrIssueNotFound{ID: id}
		}
		r.logger.Error("Failed to get reconciliation issue", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get reconciliation issue: %w", err)
	}

	return iss, nil
}

// ListByStatus retrieves paginated issues in a given status, newest first
func (r *IssueRepository) ListByStatus(ctx context.Context, status issue.Status, limit, offset int) ([]*issue.Issue, error) {
	query := `
		SELECT ` + issueColumns + `
		FROM reconciliation_issues
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, status, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list reconciliation issues", "status", string(status), "error", err)
		return nil, fmt.Errorf("failed to list reconciliation issues: %w", err)
	}
	defer rows.Close()

	var issues []*issue.Issue
	for rows.Next() {
		iss, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation issue: %w", err)
		}
		issues = append(issues, iss)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over reconciliation issues: %w", err)
	}

	return issues, nil
}

// CountByStatus returns the number of issues in a given status
func (r *IssueRepository) CountByStatus(ctx context.Context, status issue.Status) (int64, error) {
	var count int64
	err := r.querier.QueryRow(ctx, `SELECT COUNT(*) FROM reconciliation_issues WHERE status = $1`, status).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count reconciliation issues", "status", string(status), "error", err)
		return 0, fmt.Errorf("failed to count reconciliation issues: %w", err)
	}
	return count, nil
}

// Resolve marks an open issue resolved with the reviewer's notes.
// Returns ErrIssueNotFound if no open issue has the given id.
func (r *IssueRepository) Resolve(ctx context.Context, id uuid.UUID, notes string) error {
	query := `
		UPDATE reconciliation_issues
		SET status = $1, resolution_notes = $2, resolved_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5
	`

	result, err := r.querier.Exec(ctx, query, issue.StatusResolved, notes, time.Now().UTC(), id, issue.StatusOpen)
	if err != nil {
		r.logger.Error("Failed to resolve reconciliation issue", "id", id.String(), "error", err)
		return fmt.Errorf("failed to resolve reconciliation issue: %w", err)
	}

	if result.RowsAffected() == 0 {
		return issue.ErrIssueNotFound{ID: id}
	}

	return nil
}

func (r *IssueRepository) scanOne(row pgx.Row) (*issue.Issue, error) {
	var (
		iss   issue.Issue
		notes *string
	)
	err := row.Scan(
		&iss.ID,
		&iss.Target.Kind,
		&iss.Target.ID,
		&iss.Kind,
		&iss.Description,
		&iss.Status,
		&notes,
		&iss.ResolvedAt,
		&iss.CreatedAt,
		&iss.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if notes != nil {
		iss.ResolutionNotes = *notes
	}
	return &iss, nil
}
