package batch

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines import batch persistence operations
type Repository interface {
	Create(ctx context.Context, b *ImportBatch) error
	GetByID(ctx context.Context, id uuid.UUID) (*ImportBatch, error)
	Update(ctx context.Context, b *ImportBatch) error
	List(ctx context.Context, limit, offset int) ([]*ImportBatch, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrBatchNotFound indicates a missing import batch
type ErrBatchNotFound struct {
	ID uuid.UUID
}

func (e ErrBatchNotFound) Error() string {
	return "import batch not found: " + e.ID.String()
}

// Is implements the errors.Is interface for ErrBatchNotFound
func (e ErrBatchNotFound) Is(target error) bool {
	t, ok := target.(ErrBatchNotFound)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil {
		return true
	}
	return e.ID == t.ID
}
