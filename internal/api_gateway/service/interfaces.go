package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pfm-ledger/internal/domain/archive"
	"github.com/pfm-ledger/internal/domain/batch"
	"github.com/pfm-ledger/internal/domain/issue"
	"github.com/pfm-ledger/internal/domain/masterdata"
	"github.com/pfm-ledger/internal/domain/shared"
	"github.com/pfm-ledger/internal/domain/transaction"
)

// ImportService defines the interface for submitting and inspecting imports
type ImportService interface {
	// SubmitImport records a queued batch and publishes the job for the
	// import worker. Returns the created batch row.
	SubmitImport(ctx context.Context, req *shared.ImportJobRequest) (*batch.ImportBatch, error)

	// GetBatch retrieves a batch by its ID
	// Returns ErrBatchNotFound if the batch doesn't exist
	GetBatch(ctx context.Context, id uuid.UUID) (*batch.ImportBatch, error)

	// ListBatches retrieves a paginated list of batches, newest first
	ListBatches(ctx context.Context, page, perPage int) ([]*batch.ImportBatch, error)

	// GetBatchRecords retrieves the archived raw records of a batch
	// Returns records, total count, and any error
	GetBatchRecords(ctx context.Context, batchID uuid.UUID, page, perPage int) ([]*archive.Record, int64, error)
}

// TransactionService defines the interface for reading the transaction ledger
type TransactionService interface {
	// GetTransactionByID retrieves a transaction with its line items
	// Returns nil if the transaction is not found
	GetTransactionByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)

	// ListTransactions retrieves a paginated list of transactions, optionally
	// bounded to [from, to). Returns transactions, total count, and any error.
	ListTransactions(ctx context.Context, from, to *time.Time, page, perPage int) ([]*transaction.Transaction, int64, error)
}

// IssueService defines the interface for the reconciliation review queue
type IssueService interface {
	// ListIssues retrieves a paginated list of issues with the given status
	// Returns issues, total count for that status, and any error
	ListIssues(ctx context.Context, status issue.Status, page, perPage int) ([]*issue.Issue, int64, error)

	// GetIssueByID retrieves an issue by its ID
	// Returns ErrIssueNotFound if the issue doesn't exist
	GetIssueByID(ctx context.Context, id uuid.UUID) (*issue.Issue, error)

	// ResolveIssue marks an open issue resolved with reviewer notes
	// Returns ErrIssueNotFound if no open issue with that ID exists
	ResolveIssue(ctx context.Context, id uuid.UUID, notes string) error
}

// MasterDataService defines the interface for reading reference data
type MasterDataService interface {
	ListCategories(ctx context.Context) ([]*masterdata.Category, error)
}
