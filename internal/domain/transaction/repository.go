package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pfm-ledger/internal/domain/shared"
)

// Repository defines transaction persistence operations. Create persists the
// transaction together with its line items in the same unit of work.
type Repository interface {
	Create(ctx context.Context, txn *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// GetBySourceRef looks up a transaction by its exact natural key.
	// Returns nil, nil when no transaction carries the given reference.
	GetBySourceRef(ctx context.Context, source shared.SourceKind, externalRef string) (*Transaction, error)

	// FindByFingerprint returns transactions sharing a fuzzy fingerprint,
	// oldest first, so the earliest match is a stable issue target.
	FindByFingerprint(ctx context.Context, fingerprint string) ([]*Transaction, error)

	// UpdateMutable persists the mutable fields (amount, descriptor, status)
	UpdateMutable(ctx context.Context, txn *Transaction) error

	List(ctx context.Context, limit, offset int) ([]*Transaction, error)
	Count(ctx context.Context) (int64, error)
	GetByTimeRange(ctx context.Context, start, end time.Time, limit, offset int) ([]*Transaction, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrTransactionNotFound indicates a missing transaction
type ErrTransactionNotFound struct {
	ID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	return "transaction not found: " + e.ID.String()
}

// Is implements the errors.Is interface for ErrTransactionNotFound
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil {
		return true
	}
	return e.ID == t.ID
}

// ErrDuplicateTransaction indicates a (source, external_ref) uniqueness violation
type ErrDuplicateTransaction struct {
	Source      shared.SourceKind
	ExternalRef string
}

func (e ErrDuplicateTransaction) Error() string {
	return "duplicate transaction: " + string(e.Source) + "/" + e.ExternalRef
}
