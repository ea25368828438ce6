package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pfm-ledger/internal/domain/shared"
	"github.com/pfm-ledger/internal/domain/transaction"
)

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, txn *transaction.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetBySourceRef(ctx context.Context, source shared.SourceKind, externalRef string) (*transaction.Transaction, error) {
	args := m.Called(ctx, source, externalRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByFingerprint(ctx context.Context, fingerprint string) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) UpdateMutable(ctx context.Context, txn *transaction.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) List(ctx context.Context, limit, offset int) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) GetByTimeRange(ctx context.Context, start, end time.Time, limit, offset int) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, start, end, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	args := m.Called(tx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(transaction.Repository)
}

func storedTransaction(id uuid.UUID) *transaction.Transaction {
	now := time.Now().UTC()
	return &transaction.Transaction{
		ID:         id,
		Source:     shared.SourceBank,
		OccurredAt: now,
		Amount:     decimal.RequireFromString("12.50"),
		Currency:   "EUR",
		Descriptor: "REWE SAGT DANKE",
		Status:     shared.TransactionStatusVerified,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestTransactionService_GetTransactionByID(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		svc := NewTransactionService(testLogger(), repo)

		txnID := uuid.New()
		expected := storedTransaction(txnID)
		repo.On("GetByID", ctx, txnID).Return(expected, nil)

		txn, err := svc.GetTransactionByID(ctx, txnID)

		require.NoError(t, err)
		assert.Equal(t, expected, txn)
		repo.AssertExpectations(t)
	})

	t.Run("NotFoundReturnsNil", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		svc := NewTransactionService(testLogger(), repo)

		txnID := uuid.New()
		repo.On("GetByID", ctx, txnID).Return(nil, transaction.ErrTransactionNotFound{ID: txnID})

		txn, err := svc.GetTransactionByID(ctx, txnID)

		assert.NoError(t, err)
		assert.Nil(t, txn)
		repo.AssertExpectations(t)
	})

	t.Run("RepositoryError", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		svc := NewTransactionService(testLogger(), repo)

		txnID := uuid.New()
		expectedErr := errors.New("connection refused")
		repo.On("GetByID", ctx, txnID).Return(nil, expectedErr)

		txn, err := svc.GetTransactionByID(ctx, txnID)

		assert.Nil(t, txn)
		assert.ErrorIs(t, err, expectedErr)
		repo.AssertExpectations(t)
	})
}

func TestTransactionService_ListTransactions(t *testing.T) {
	ctx := context.Background()

	t.Run("WithoutRangeUsesListAndCount", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		svc := NewTransactionService(testLogger(), repo)

		transactions := []*transaction.Transaction{storedTransaction(uuid.New())}
		repo.On("List", ctx, 10, 20).Return(transactions, nil)
		repo.On("Count", ctx).Return(int64(121), nil)

		result, total, err := svc.ListTransactions(ctx, nil, nil, 3, 10)

		require.NoError(t, err)
		assert.Equal(t, transactions, result)
		assert.Equal(t, int64(121), total)
		repo.AssertNotCalled(t, "GetByTimeRange", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		repo.AssertExpectations(t)
	})

	t.Run("WithRangeUsesTimeRangeQuery", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		svc := NewTransactionService(testLogger(), repo)

		from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		transactions := []*transaction.Transaction{storedTransaction(uuid.New()), storedTransaction(uuid.New())}
		repo.On("GetByTimeRange", ctx, from, to, 10, 0).Return(transactions, nil)

		result, total, err := svc.ListTransactions(ctx, &from, &to, 1, 10)

		require.NoError(t, err)
		assert.Equal(t, transactions, result)
		assert.Equal(t, int64(2), total)
		repo.AssertNotCalled(t, "Count", mock.Anything)
		repo.AssertExpectations(t)
	})

	t.Run("OpenEndedFromDefaultsEndToNow", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		svc := NewTransactionService(testLogger(), repo)

		from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		repo.On("GetByTimeRange", ctx, from, mock.MatchedBy(func(end time.Time) bool {
			return time.Since(end) < time.Minute
		}), 10, 0).Return([]*transaction.Transaction{}, nil)

		_, _, err := svc.ListTransactions(ctx, &from, nil, 1, 10)

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("CountError", func(t *testing.T) {
		repo := new(MockTransactionRepository)
		svc := NewTransactionService(testLogger(), repo)

		expectedErr := errors.New("connection refused")
		repo.On("List", ctx, 10, 0).Return([]*transaction.Transaction{}, nil)
		repo.On("Count", ctx).Return(int64(0), expectedErr)

		result, total, err := svc.ListTransactions(ctx, nil, nil, 1, 10)

		assert.Nil(t, result)
		assert.Zero(t, total)
		assert.ErrorIs(t, err, expectedErr)
		repo.AssertExpectations(t)
	})
}

var _ transaction.Repository = (*MockTransactionRepository)(nil)
