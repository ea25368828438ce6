package importer

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pfm-ledger/internal/domain/issue"
	"github.com/pfm-ledger/internal/domain/shared"
	"github.com/pfm-ledger/internal/domain/transaction"
)

// MockTransactionRepo for testing
type MockTransactionRepo struct {
	mock.Mock
}

func (m *MockTransactionRepo) Create(ctx context.Context, txn *transaction.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepo) GetBySourceRef(ctx context.Context, source shared.SourceKind, externalRef string) (*transaction.Transaction, error) {
	args := m.Called(ctx, source, externalRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepo) FindByFingerprint(ctx context.Context, fingerprint string) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepo) UpdateMutable(ctx context.Context, txn *transaction.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepo) List(ctx context.Context, limit, offset int) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepo) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepo) GetByTimeRange(ctx context.Context, start, end time.Time, limit, offset int) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, start, end, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepo) WithTx(tx pgx.Tx) transaction.Repository {
	return m
}

func newTestWriter(txns *MockTransactionRepo, master *MockMasterDataRepo, issues *MockIssueRepo) *LedgerWriter {
	logger := slog.Default()
	return NewLedgerWriter(txns, master, NewIssueReporter(issues, logger), logger)
}

func refCandidate(ref string) *transaction.Transaction {
	now := time.Now().UTC()
	return &transaction.Transaction{
		ID:          uuid.New(),
		Source:      shared.SourceAmazon,
		ExternalRef: &ref,
		Fingerprint: "AMAZON|2026-03-14|59.99|echo dot",
		OccurredAt:  time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("59.99"),
		Currency:    "USD",
		Descriptor:  "Echo Dot",
		Status:      shared.TransactionStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestLedgerWriter_Apply_CreateNew(t *testing.T) {
	ctx := context.Background()
	txns := &MockTransactionRepo{}
	issues := &MockIssueRepo{}
	writer := newTestWriter(txns, &MockMasterDataRepo{}, issues)

	candidate := refCandidate("ORD-1")

	txns.On("GetBySourceRef", ctx, shared.SourceAmazon, "ORD-1").Return(nil, nil).Once()
	txns.On("Create", ctx, candidate).Return(nil).Once()

	outcome, err := writer.Apply(ctx, candidate)
	require.NoError(t, err)
	assert.Equal(t, shared.OutcomeCreated, outcome)

	txns.AssertExpectations(t)
	// An exact ref is authoritative; the fuzzy-duplicate signal is reserved
	// for refless records.
	txns.AssertNotCalled(t, "FindByFingerprint")
	issues.AssertNotCalled(t, "Upsert")
}

func TestLedgerWriter_Apply_SkipIdentical(t *testing.T) {
	ctx := context.Background()
	txns := &MockTransactionRepo{}
	issues := &MockIssueRepo{}
	writer := newTestWriter(txns, &MockMasterDataRepo{}, issues)

	candidate := refCandidate("ORD-1")
	stored := *candidate
	stored.ID = uuid.New()

	txns.On("GetBySourceRef", ctx, shared.SourceAmazon, "ORD-1").Return(&stored, nil).Once()

	outcome, err := writer.Apply(ctx, candidate)
	require.NoError(t, err)
	assert.Equal(t, shared.OutcomeSkipped, outcome)

	txns.AssertNotCalled(t, "Create")
	txns.AssertNotCalled(t, "UpdateMutable")
}

func TestLedgerWriter_Apply_SkipCosmeticDifference(t *testing.T) {
	ctx := context.Background()
	txns := &MockTransactionRepo{}
	issues := &MockIssueRepo{}
	writer := newTestWriter(txns, &MockMasterDataRepo{}, issues)

	candidate := refCandidate("ORD-1")
	stored := *candidate
	stored.ID = uuid.New()
	stored.Descriptor = "  echo   DOT "

	txns.On("GetBySourceRef", ctx, shared.SourceAmazon, "ORD-1").Return(&stored, nil).Once()

	outcome, err := writer.Apply(ctx, candidate)
	require.NoError(t, err)
	assert.Equal(t, shared.OutcomeSkipped, outcome)

	txns.AssertNotCalled(t, "UpdateMutable")
}

func TestLedgerWriter_Apply_UpdateMaterialDifference(t *testing.T) {
	ctx := context.Background()
	txns := &MockTransactionRepo{}
	issues := &MockIssueRepo{}
	writer := newTestWriter(txns, &MockMasterDataRepo{}, issues)

	candidate := refCandidate("ORD-1")
	stored := *candidate
	stored.ID = uuid.New()
	stored.Amount = decimal.RequireFromString("49.99")
	storedUpdatedAt := stored.UpdatedAt

	txns.On("GetBySourceRef", ctx, shared.SourceAmazon, "ORD-1").Return(&stored, nil).Once()
	txns.On("UpdateMutable", ctx, &stored).Return(nil).Once()

	outcome, err := writer.Apply(ctx, candidate)
	require.NoError(t, err)
	assert.Equal(t, shared.OutcomeUpdated, outcome)

	assert.True(t, stored.Amount.Equal(candidate.Amount))
	assert.True(t, stored.UpdatedAt.After(storedUpdatedAt) || stored.UpdatedAt.Equal(storedUpdatedAt))

	txns.AssertExpectations(t)
	txns.AssertNotCalled(t, "Create")
}

func TestLedgerWriter_Apply_StatusChangeIsMaterial(t *testing.T) {
	ctx := context.Background()
	txns := &MockTransactionRepo{}
	issues := &MockIssueRepo{}
	writer := newTestWriter(txns, &MockMasterDataRepo{}, issues)

	candidate := refCandidate("ORD-1")
	candidate.Status = shared.TransactionStatusVerified
	stored := *candidate
	stored.ID = uuid.New()
	stored.Status = shared.TransactionStatusPending

	txns.On("GetBySourceRef", ctx, shared.SourceAmazon, "ORD-1").Return(&stored, nil).Once()
	txns.On("UpdateMutable", ctx, &stored).Return(nil).Once()

	outcome, err := writer.Apply(ctx, candidate)
	require.NoError(t, err)
	assert.Equal(t, shared.OutcomeUpdated, outcome)
	assert.Equal(t, shared.TransactionStatusVerified, stored.Status)
}

func TestLedgerWriter_Apply_FingerprintCollisionStillCreates(t *testing.T) {
	ctx := context.Background()
	txns := &MockTransactionRepo{}
	issues := &MockIssueRepo{}
	writer := newTestWriter(txns, &MockMasterDataRepo{}, issues)

	candidate := refCandidate("ORD-2")
	candidate.ExternalRef = nil

	earliest := refCandidate("ORD-0")
	earliest.ID = uuid.New()
	later := refCandidate("ORD-1")
	later.ID = uuid.New()

	txns.On("FindByFingerprint", ctx, candidate.Fingerprint).
		Return([]*transaction.Transaction{earliest, later}, nil).Once()
	txns.On("Create", ctx, candidate).Return(nil).Once()

	var filed *issue.Issue
	issues.On("Upsert", ctx, mock.Anything).
		Run(func(args mock.Arguments) { filed = args.Get(1).(*issue.Issue) }).
		Return(nil).Once()

	outcome, err := writer.Apply(ctx, candidate)
	require.NoError(t, err)
	assert.Equal(t, shared.OutcomeCreated, outcome, "fuzzy matches never suppress the insert")

	require.NotNil(t, filed)
	assert.Equal(t, issue.KindDuplicateSuspected, filed.Kind)
	assert.Equal(t, earliest.ID, filed.Target.ID, "issue targets the earliest match")

	txns.AssertExpectations(t)
	issues.AssertExpectations(t)
}

func TestLedgerWriter_Apply_AmountMismatchFilesIssue(t *testing.T) {
	ctx := context.Background()
	txns := &MockTransactionRepo{}
	issues := &MockIssueRepo{}
	writer := newTestWriter(txns, &MockMasterDataRepo{}, issues)

	candidate := refCandidate("ORD-1")
	candidate.Amount = decimal.RequireFromString("100.00")
	candidate.LineItems = []transaction.LineItem{
		{ID: uuid.New(), TransactionID: candidate.ID, Name: "Item", Quantity: decimal.NewFromInt(1),
			UnitPrice: decimal.RequireFromString("90.00"), TotalPrice: decimal.RequireFromString("90.00")},
	}

	txns.On("GetBySourceRef", ctx, shared.SourceAmazon, "ORD-1").Return(nil, nil).Once()
	txns.On("Create", ctx, candidate).Return(nil).Once()
	issues.On("Upsert", ctx, mock.Anything).Return(nil).Once()

	outcome, err := writer.Apply(ctx, candidate)
	require.NoError(t, err)
	assert.Equal(t, shared.OutcomeCreated, outcome)

	issues.AssertExpectations(t)
}

func TestLedgerWriter_Apply_WithinTolerance(t *testing.T) {
	ctx := context.Background()
	txns := &MockTransactionRepo{}
	issues := &MockIssueRepo{}
	writer := newTestWriter(txns, &MockMasterDataRepo{}, issues)

	// Two line items allow up to 0.02 drift
	candidate := refCandidate("ORD-1")
	candidate.Amount = decimal.RequireFromString("10.00")
	candidate.LineItems = []transaction.LineItem{
		{ID: uuid.New(), Name: "A", Quantity: decimal.NewFromInt(1), TotalPrice: decimal.RequireFromString("4.99")},
		{ID: uuid.New(), Name: "B", Quantity: decimal.NewFromInt(1), TotalPrice: decimal.RequireFromString("5.03")},
	}

	txns.On("GetBySourceRef", ctx, shared.SourceAmazon, "ORD-1").Return(nil, nil).Once()
	txns.On("Create", ctx, candidate).Return(nil).Once()

	outcome, err := writer.Apply(ctx, candidate)
	require.NoError(t, err)
	assert.Equal(t, shared.OutcomeCreated, outcome)

	issues.AssertNotCalled(t, "Upsert")
}

func TestLedgerWriter_Apply_StoreErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("lookup failure", func(t *testing.T) {
		txns := &MockTransactionRepo{}
		writer := newTestWriter(txns, &MockMasterDataRepo{}, &MockIssueRepo{})

		candidate := refCandidate("ORD-1")
		txns.On("GetBySourceRef", ctx, shared.SourceAmazon, "ORD-1").
			Return(nil, errors.New("connection reset")).Once()

		outcome, err := writer.Apply(ctx, candidate)
		assert.Error(t, err)
		assert.Equal(t, shared.OutcomeErrored, outcome)
	})

	t.Run("create failure", func(t *testing.T) {
		txns := &MockTransactionRepo{}
		writer := newTestWriter(txns, &MockMasterDataRepo{}, &MockIssueRepo{})

		candidate := refCandidate("ORD-1")
		candidate.ExternalRef = nil
		txns.On("FindByFingerprint", ctx, candidate.Fingerprint).Return([]*transaction.Transaction{}, nil).Once()
		txns.On("Create", ctx, candidate).Return(errors.New("constraint violation")).Once()

		outcome, err := writer.Apply(ctx, candidate)
		assert.Error(t, err)
		assert.Equal(t, shared.OutcomeErrored, outcome)
	})
}

func TestLedgerWriter_Apply_UpdateRechecksStoredLineItems(t *testing.T) {
	ctx := context.Background()
	txns := &MockTransactionRepo{}
	issues := &MockIssueRepo{}
	writer := newTestWriter(txns, &MockMasterDataRepo{}, issues)

	// The stored row's line items sum to 10.00; the incoming amount tears
	// the reconciliation open.
	candidate := refCandidate("ORD-1")
	candidate.Amount = decimal.RequireFromString("99.99")
	stored := *candidate
	stored.ID = uuid.New()
	stored.Amount = decimal.RequireFromString("10.00")
	stored.LineItems = []transaction.LineItem{
		{ID: uuid.New(), TransactionID: stored.ID, Name: "A", Quantity: decimal.NewFromInt(1),
			UnitPrice: decimal.RequireFromString("4.00"), TotalPrice: decimal.RequireFromString("4.00")},
		{ID: uuid.New(), TransactionID: stored.ID, Name: "B", Quantity: decimal.NewFromInt(1),
			UnitPrice: decimal.RequireFromString("6.00"), TotalPrice: decimal.RequireFromString("6.00")},
	}

	txns.On("GetBySourceRef", ctx, shared.SourceAmazon, "ORD-1").Return(&stored, nil).Once()
	txns.On("UpdateMutable", ctx, &stored).Return(nil).Once()

	var filed *issue.Issue
	issues.On("Upsert", ctx, mock.Anything).
		Run(func(args mock.Arguments) { filed = args.Get(1).(*issue.Issue) }).
		Return(nil).Once()

	outcome, err := writer.Apply(ctx, candidate)
	require.NoError(t, err)
	assert.Equal(t, shared.OutcomeUpdated, outcome)

	require.NotNil(t, filed)
	assert.Equal(t, issue.KindAmountMismatch, filed.Kind)
	assert.Equal(t, stored.ID, filed.Target.ID)
	assert.Contains(t, filed.Description, "89.99")

	txns.AssertExpectations(t)
	issues.AssertExpectations(t)
}

func TestLedgerWriter_Apply_ReporterFailureDoesNotFailImport(t *testing.T) {
	ctx := context.Background()
	txns := &MockTransactionRepo{}
	issues := &MockIssueRepo{}
	writer := newTestWriter(txns, &MockMasterDataRepo{}, issues)

	candidate := refCandidate("ORD-2")
	candidate.ExternalRef = nil

	earliest := refCandidate("ORD-0")
	earliest.ID = uuid.New()

	txns.On("FindByFingerprint", ctx, candidate.Fingerprint).
		Return([]*transaction.Transaction{earliest}, nil).Once()
	txns.On("Create", ctx, candidate).Return(nil).Once()
	issues.On("Upsert", ctx, mock.Anything).Return(errors.New("connection reset")).Once()

	outcome, err := writer.Apply(ctx, candidate)
	require.NoError(t, err, "a dropped issue never fails the record")
	assert.Equal(t, shared.OutcomeCreated, outcome)

	txns.AssertExpectations(t)
	issues.AssertExpectations(t)
}

func TestLedgerWriter_Apply_ShopVisits(t *testing.T) {
	ctx := context.Background()

	t.Run("created record counts a visit", func(t *testing.T) {
		txns := &MockTransactionRepo{}
		master := &MockMasterDataRepo{}
		writer := newTestWriter(txns, master, &MockIssueRepo{})

		shopID := uuid.New()
		candidate := refCandidate("ORD-1")
		candidate.ShopID = &shopID

		txns.On("GetBySourceRef", ctx, shared.SourceAmazon, "ORD-1").Return(nil, nil).Once()
		txns.On("Create", ctx, candidate).Return(nil).Once()
		master.On("RecordShopVisit", ctx, shopID, candidate.OccurredAt).Return(nil).Once()

		outcome, err := writer.Apply(ctx, candidate)
		require.NoError(t, err)
		assert.Equal(t, shared.OutcomeCreated, outcome)

		master.AssertExpectations(t)
	})

	t.Run("skipped re-import does not inflate the counter", func(t *testing.T) {
		txns := &MockTransactionRepo{}
		master := &MockMasterDataRepo{}
		writer := newTestWriter(txns, master, &MockIssueRepo{})

		shopID := uuid.New()
		candidate := refCandidate("ORD-1")
		candidate.ShopID = &shopID
		stored := *candidate
		stored.ID = uuid.New()

		txns.On("GetBySourceRef", ctx, shared.SourceAmazon, "ORD-1").Return(&stored, nil).Once()

		outcome, err := writer.Apply(ctx, candidate)
		require.NoError(t, err)
		assert.Equal(t, shared.OutcomeSkipped, outcome)

		master.AssertNotCalled(t, "RecordShopVisit")
	})

	t.Run("visit write failure errors the record", func(t *testing.T) {
		txns := &MockTransactionRepo{}
		master := &MockMasterDataRepo{}
		writer := newTestWriter(txns, master, &MockIssueRepo{})

		shopID := uuid.New()
		candidate := refCandidate("ORD-1")
		candidate.ShopID = &shopID

		txns.On("GetBySourceRef", ctx, shared.SourceAmazon, "ORD-1").Return(nil, nil).Once()
		txns.On("Create", ctx, candidate).Return(nil).Once()
		master.On("RecordShopVisit", ctx, shopID, candidate.OccurredAt).
			Return(errors.New("connection reset")).Once()

		outcome, err := writer.Apply(ctx, candidate)
		assert.Error(t, err)
		assert.Equal(t, shared.OutcomeErrored, outcome)
	})
}
