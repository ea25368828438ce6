// Package archive defines the raw-record archive: every record that enters the
// pipeline is kept in its original source-shaped form so a reviewer can trace
// any ledger row back to exactly what the producer delivered.
package archive

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pfm-ledger/internal/domain/shared"
)

// Record is one archived raw record
type Record struct {
	BatchID     uuid.UUID         `json:"batch_id" bson:"batch_id"`
	Source      shared.SourceKind `json:"source" bson:"source"`
	Position    int               `json:"position" bson:"position"`
	ContentHash string            `json:"content_hash" bson:"content_hash"`
	Fields      map[string]string `json:"fields" bson:"fields"`
	ArchivedAt  time.Time         `json:"archived_at" bson:"archived_at"`
}

// Repository manages archived raw records. Archiving is best-effort from the
// pipeline's point of view and never blocks an import.
type Repository interface {
	Archive(ctx context.Context, record *Record) error
	GetByBatch(ctx context.Context, batchID uuid.UUID, limit, offset int) ([]*Record, error)
	CountByBatch(ctx context.Context, batchID uuid.UUID) (int64, error)
	GetByContentHash(ctx context.Context, contentHash string) (*Record, error)
}

// ErrRecordNotFound indicates a missing archived record
type ErrRecordNotFound struct {
	ContentHash string
}

func (e ErrRecordNotFound) Error() string {
	return "archived record not found: " + e.ContentHash
}

// Is implements the errors.Is interface for ErrRecordNotFound
func (e ErrRecordNotFound) Is(target error) bool {
	t, ok := target.(ErrRecordNotFound)
	if !ok {
		return false
	}
	if t.ContentHash == "" {
		return true
	}
	return e.ContentHash == t.ContentHash
}
