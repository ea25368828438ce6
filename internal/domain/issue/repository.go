package issue

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines issue persistence. Upsert is the only write path used by
// the import pipeline: reporting the same (target, kind) again refreshes the
// open issue's description and timestamp instead of creating a new row.
type Repository interface {
	Upsert(ctx context.Context, iss *Issue) error
	GetByID(ctx context.Context, id uuid.UUID) (*Issue, error)
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Issue, error)
	CountByStatus(ctx context.Context, status Status) (int64, error)
	Resolve(ctx context.Context, id uuid.UUID, notes string) error

	WithTx(tx pgx.Tx) Repository
}

// ErrIssueNotFound indicates a missing issue
type ErrIssueNotFound struct {
	ID uuid.UUID
}

func (e ErrIssueNotFound) Error() string {
	return "reconciliation issue not found: " + e.ID.String()
}

// Is implements the errors.Is interface for ErrIssueNotFound
func (e ErrIssueNotFound) Is(target error) bool {
	t, ok := target.(ErrIssueNotFound)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil {
		return true
	}
	return e.ID == t.ID
}
