package service

import (
	"context"

	"github.com/pfm-ledger/internal/domain/batch"
	"github.com/pfm-ledger/internal/domain/shared"
)

// ImportService runs one import job to completion and reports its summary
type ImportService interface {
	RunBatch(ctx context.Context, req *shared.ImportJobRequest) (*batch.Summary, error)
}
