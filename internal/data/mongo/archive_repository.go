// Package mongo provides the MongoDB implementation of the raw-record archive.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pfm-ledger/internal/domain/archive"
)

const (
	// ArchiveCollectionName is the name of the raw-record collection in MongoDB
	ArchiveCollectionName = "raw_records"
)

// ArchiveRepository implements the archive.Repository interface for MongoDB
type ArchiveRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewArchiveRepository creates a new MongoDB archive repository
func NewArchiveRepository(logger *slog.Logger, db *mongo.Database) archive.Repository {
	return &ArchiveRepository{
		db:     db,
		logger: logger,
	}
}

// Archive stores one raw record. Re-archiving the same content within the same
// batch replaces the previous document, so retried batches do not pile up
// duplicate archive rows.
func (r *ArchiveRepository) Archive(ctx context.Context, record *archive.Record) error {
	collection := r.db.Collection(ArchiveCollectionName)

	filter := bson.M{"batch_id": record.BatchID, "position": record.Position}
	opts := options.Replace().SetUpsert(true)

	_, err := collection.ReplaceOne(ctx, filter, record, opts)
	if err != nil {
		r.logger.Error("Failed to archive raw record",
			"batch_id", record.BatchID.String(),
			"position", record.Position,
			"error", err)
		return fmt.Errorf("failed to archive raw record: %w", err)
	}

	return nil
}

// GetByBatch retrieves paginated archived records for a batch in import order
func (r *ArchiveRepository) GetByBatch(ctx context.Context, batchID uuid.UUID, limit, offset int) ([]*archive.Record, error) {
	collection := r.db.Collection(ArchiveCollectionName)

	filter := bson.M{"batch_id": batchID}
	opts := options.Find().
		SetSort(bson.M{"position": 1}). // Preserve the original record order
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get archived records",
			"batch_id", batchID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get archived records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*archive.Record
	if err := cursor.All(ctx, &records); err != nil {
		r.logger.Error("Failed to decode archived records",
			"batch_id", batchID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode archived records: %w", err)
	}

	return records, nil
}

// CountByBatch counts the archived records belonging to a batch
func (r *ArchiveRepository) CountByBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	collection := r.db.Collection(ArchiveCollectionName)

	filter := bson.M{"batch_id": batchID}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to count archived records",
			"batch_id", batchID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count archived records: %w", err)
	}

	return count, nil
}

// GetByContentHash retrieves the most recently archived record with the given
// content hash. Returns ErrRecordNotFound if none exists.
func (r *ArchiveRepository) GetByContentHash(ctx context.Context, contentHash string) (*archive.Record, error) {
	collection := r.db.Collection(ArchiveCollectionName)

	filter := bson.M{"content_hash": contentHash}
	opts := options.FindOne().SetSort(bson.M{"archived_at": -1})

	var record archive.Record
	err := collection.FindOne(ctx, filter, opts).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, archive.ErrRecordNotFound{ContentHash: contentHash}
		}
		r.logger.Error("Failed to get archived record by content hash",
			"content_hash", contentHash,
			"error", err)
		return nil, fmt.Errorf("failed to get archived record by content hash: %w", err)
	}

	return &record, nil
}
