package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pfm-ledger/internal/domain/transaction"
)

// TransactionServiceImpl implements the TransactionService interface
type TransactionServiceImpl struct {
	transactionRepo transaction.Repository
	logger          *slog.Logger
}

// NewTransactionService creates a new transaction service
func NewTransactionService(logger *slog.Logger, transactionRepo transaction.Repository) TransactionService {
	return &TransactionServiceImpl{
		transactionRepo: transactionRepo,
		logger:          logger,
	}
}

// GetTransactionByID retrieves a transaction with its line items. Returns nil
// if not found.
func (s *TransactionServiceImpl) GetTransactionByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	txn, err := s.transactionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, transaction.ErrTransactionNotFound{}) {
			s.logger.Info("Transaction not found", "transaction_id", id.String())
			return nil, nil
		}
		s.logger.Error("Failed to get transaction by ID", "transaction_id", id.String(), "error", err)
		return nil, err
	}
	return txn, nil
}

// ListTransactions retrieves a paginated list of transactions, optionally
// bounded by an occurred-at time range.
func (s *TransactionServiceImpl) ListTransactions(ctx context.Context, from, to *time.Time, page, perPage int) ([]*transaction.Transaction, int64, error) {
	offset := (page - 1) * perPage

	if from != nil || to != nil {
		start := time.Time{}
		if from != nil {
			start = *from
		}
		end := time.Now().UTC()
		if to != nil {
			end = *to
		}

		transactions, err := s.transactionRepo.GetByTimeRange(ctx, start, end, perPage, offset)
		if err != nil {
			return nil, 0, err
		}
		// Range queries report the page size as total; counting a range is
		// not worth a second scan for a review surface.
		return transactions, int64(len(transactions)), nil
	}

	transactions, err := s.transactionRepo.List(ctx, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.transactionRepo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	return transactions, total, nil
}
