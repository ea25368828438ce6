package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pfm-ledger/internal/domain/archive"
	"github.com/pfm-ledger/internal/domain/batch"
	"github.com/pfm-ledger/internal/domain/shared"
	"github.com/pfm-ledger/internal/platform/messaging/producers"
)

// ImportServiceImpl implements the ImportService interface
type ImportServiceImpl struct {
	batchRepo   batch.Repository
	archiveRepo archive.Repository
	producer    producers.MessagePublisher
	logger      *slog.Logger
}

// NewImportService creates a new import service
func NewImportService(logger *slog.Logger, batchRepo batch.Repository, archiveRepo archive.Repository, producer producers.MessagePublisher) ImportService {
	return &ImportServiceImpl{
		batchRepo:   batchRepo,
		archiveRepo: archiveRepo,
		producer:    producer,
		logger:      logger,
	}
}

// SubmitImport persists the batch row first and publishes the job second, so a
// consumed message always finds its batch. If publishing fails the batch row
// stays QUEUED and the caller can retry with the same payload.
func (s *ImportServiceImpl) SubmitImport(ctx context.Context, req *shared.ImportJobRequest) (*batch.ImportBatch, error) {
	if !req.Source.Valid() {
		return nil, shared.ErrInvalidSourceKind
	}
	if len(req.Records) == 0 {
		return nil, shared.ErrEmptyBatch
	}

	req.BatchID = uuid.New()
	req.SubmittedAt = time.Now().UTC()

	b := batch.New(req.BatchID, req.Source, len(req.Records))
	if err := s.batchRepo.Create(ctx, b); err != nil {
		s.logger.Error("Failed to create import batch",
			"source", string(req.Source),
			"record_count", len(req.Records),
			"error", err,
		)
		return nil, err
	}

	if err := s.producer.Publish(ctx, req.BatchID.String(), req); err != nil {
		s.logger.Error("Failed to publish import job",
			"batch_id", req.BatchID,
			"source", string(req.Source),
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("Import job published",
		"batch_id", req.BatchID,
		"source", string(req.Source),
		"record_count", len(req.Records),
	)

	return b, nil
}

// GetBatch retrieves a batch by its ID
func (s *ImportServiceImpl) GetBatch(ctx context.Context, id uuid.UUID) (*batch.ImportBatch, error) {
	return s.batchRepo.GetByID(ctx, id)
}

// ListBatches retrieves a paginated list of batches, newest first
func (s *ImportServiceImpl) ListBatches(ctx context.Context, page, perPage int) ([]*batch.ImportBatch, error) {
	offset := (page - 1) * perPage
	return s.batchRepo.List(ctx, perPage, offset)
}

// GetBatchRecords retrieves the archived raw records of a batch
func (s *ImportServiceImpl) GetBatchRecords(ctx context.Context, batchID uuid.UUID, page, perPage int) ([]*archive.Record, int64, error) {
	offset := (page - 1) * perPage

	records, err := s.archiveRepo.GetByBatch(ctx, batchID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.archiveRepo.CountByBatch(ctx, batchID)
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}
