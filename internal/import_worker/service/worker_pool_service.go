package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/pfm-ledger/internal/domain/batch"
	"github.com/pfm-ledger/internal/domain/shared"
)

// WorkerPoolImportService implements the ImportService interface on top of a
// bounded worker pool. Each batch still runs sequentially inside one worker;
// the pool only bounds how many distinct batches run at once.
type WorkerPoolImportService struct {
	baseService ImportService
	pool        *ants.Pool
	logger      *slog.Logger
	// Use a mutex to protect access to the results map
	mu      sync.Mutex
	results map[string]chan batchResult
}

type batchResult struct {
	summary *batch.Summary
	err     error
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolImportService(
	baseService ImportService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolImportService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolImportService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
		results:     make(map[string]chan batchResult),
	}, nil
}

// RunBatch submits an import job to the worker pool and waits for the result.
func (s *WorkerPoolImportService) RunBatch(ctx context.Context, req *shared.ImportJobRequest) (*batch.Summary, error) {
	logger := s.logger
	if req.CorrelationID != "" {
		logger = s.logger.With("correlation_id", req.CorrelationID)
	}

	logger.Info("Submitting import batch to worker pool",
		"batch_id", req.BatchID.String(),
		"source", string(req.Source),
		"record_count", len(req.Records),
	)

	resultChan := make(chan batchResult, 1)

	batchID := req.BatchID.String()
	s.mu.Lock()
	s.results[batchID] = resultChan
	s.mu.Unlock()

	// Create a copy of the request to avoid data races
	reqCopy := *req

	err := s.pool.Submit(func() {
		summary, err := s.baseService.RunBatch(ctx, &reqCopy)

		resultChan <- batchResult{summary: summary, err: err}

		s.mu.Lock()
		delete(s.results, batchID)
		close(resultChan)
		s.mu.Unlock()
	})

	if err != nil {
		s.mu.Lock()
		delete(s.results, batchID)
		close(resultChan)
		s.mu.Unlock()

		logger.Error("Failed to submit import batch to worker pool",
			"batch_id", req.BatchID.String(),
			"error", err,
		)
		return nil, err
	}

	result := <-resultChan
	return result.summary, result.err
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolImportService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolImportService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolImportService) Capacity() int {
	return s.pool.Cap()
}
