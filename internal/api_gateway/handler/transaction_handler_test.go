package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pfm-ledger/internal/api_gateway/service"
	"github.com/pfm-ledger/internal/domain/shared"
	"github.com/pfm-ledger/internal/domain/transaction"
)

type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) GetTransactionByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionService) ListTransactions(ctx context.Context, from, to *time.Time, page, perPage int) ([]*transaction.Transaction, int64, error) {
	args := m.Called(ctx, from, to, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*transaction.Transaction), args.Get(1).(int64), args.Error(2)
}

func sampleTransaction(id uuid.UUID) *transaction.Transaction {
	ref := "ORD-2026-001"
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	categoryID := uuid.New()
	return &transaction.Transaction{
		ID:          id,
		Source:      shared.SourceAmazon,
		ExternalRef: &ref,
		Fingerprint: "AMAZON|2026-03-14|42.50|usb-c cable",
		OccurredAt:  now,
		Amount:      decimal.RequireFromString("42.50"),
		Currency:    "EUR",
		Descriptor:  "USB-C Cable 2m",
		Status:      shared.TransactionStatusVerified,
		CategoryID:  &categoryID,
		LineItems: []transaction.LineItem{
			{
				ID:            uuid.New(),
				TransactionID: id,
				Name:          "USB-C Cable 2m",
				Quantity:      decimal.NewFromInt(1),
				UnitPrice:     decimal.RequireFromString("42.50"),
				TotalPrice:    decimal.RequireFromString("42.50"),
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestTransactionHandler_GetByID(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockTransactionService)
		handler := NewTransactionHandler(logger, mockService)

		txnID := uuid.New()
		txn := sampleTransaction(txnID)
		mockService.On("GetTransactionByID", mock.Anything, txnID).Return(txn, nil)

		router := setupTestRouter()
		router.GET("/transactions/:id", handler.GetByID)

		req, _ := http.NewRequest(http.MethodGet, "/transactions/"+txnID.String(), nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var topLevelResponse Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &topLevelResponse))
		require.NotNil(t, topLevelResponse.Data)

		var responseBody TransactionResponse
		dataBytes, _ := json.Marshal(topLevelResponse.Data)
		require.NoError(t, json.Unmarshal(dataBytes, &responseBody))

		assert.Equal(t, txnID.String(), responseBody.ID)
		assert.Equal(t, "42.5", responseBody.Amount)
		assert.Equal(t, "ORD-2026-001", responseBody.ExternalRef)
		assert.Equal(t, txn.CategoryID.String(), responseBody.CategoryID)
		require.Len(t, responseBody.LineItems, 1)
		assert.Equal(t, "USB-C Cable 2m", responseBody.LineItems[0].Name)

		mockService.AssertExpectations(t)
	})

	t.Run("InvalidUUID", func(t *testing.T) {
		mockService := new(MockTransactionService)
		handler := NewTransactionHandler(logger, mockService)

		router := setupTestRouter()
		router.GET("/transactions/:id", handler.GetByID)

		req, _ := http.NewRequest(http.MethodGet, "/transactions/not-a-uuid", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("TransactionNotFound", func(t *testing.T) {
		mockService := new(MockTransactionService)
		handler := NewTransactionHandler(logger, mockService)

		txnID := uuid.New()
		mockService.On("GetTransactionByID", mock.Anything, txnID).Return(nil, nil)

		router := setupTestRouter()
		router.GET("/transactions/:id", handler.GetByID)

		req, _ := http.NewRequest(http.MethodGet, "/transactions/"+txnID.String(), nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("ServiceError", func(t *testing.T) {
		mockService := new(MockTransactionService)
		handler := NewTransactionHandler(logger, mockService)

		txnID := uuid.New()
		mockService.On("GetTransactionByID", mock.Anything, txnID).Return(nil, errors.New("database connection lost"))

		router := setupTestRouter()
		router.GET("/transactions/:id", handler.GetByID)

		req, _ := http.NewRequest(http.MethodGet, "/transactions/"+txnID.String(), nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestTransactionHandler_List(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockTransactionService)
		handler := NewTransactionHandler(logger, mockService)

		transactions := []*transaction.Transaction{sampleTransaction(uuid.New()), sampleTransaction(uuid.New())}
		mockService.On("ListTransactions", mock.Anything, (*time.Time)(nil), (*time.Time)(nil), 1, 10).
			Return(transactions, int64(2), nil)

		router := setupTestRouter()
		router.GET("/transactions", handler.List)

		req, _ := http.NewRequest(http.MethodGet, "/transactions", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var topLevelResponse Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &topLevelResponse))
		require.NotNil(t, topLevelResponse.Meta)
		assert.Equal(t, 2, topLevelResponse.Meta.TotalItems)

		mockService.AssertExpectations(t)
	})

	t.Run("TimeRangeForwarded", func(t *testing.T) {
		mockService := new(MockTransactionService)
		handler := NewTransactionHandler(logger, mockService)

		from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		mockService.On("ListTransactions", mock.Anything, &from, &to, 2, 20).
			Return([]*transaction.Transaction{}, int64(0), nil)

		router := setupTestRouter()
		router.GET("/transactions", handler.List)

		url := "/transactions?from=2026-03-01T00:00:00Z&to=2026-04-01T00:00:00Z&page=2&per_page=20"
		req, _ := http.NewRequest(http.MethodGet, url, nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidFromTimestamp", func(t *testing.T) {
		mockService := new(MockTransactionService)
		handler := NewTransactionHandler(logger, mockService)

		router := setupTestRouter()
		router.GET("/transactions", handler.List)

		req, _ := http.NewRequest(http.MethodGet, "/transactions?from=03%2F01%2F2026", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("ServiceError", func(t *testing.T) {
		mockService := new(MockTransactionService)
		handler := NewTransactionHandler(logger, mockService)

		mockService.On("ListTransactions", mock.Anything, (*time.Time)(nil), (*time.Time)(nil), 1, 10).
			Return(nil, int64(0), errors.New("database connection lost"))

		router := setupTestRouter()
		router.GET("/transactions", handler.List)

		req, _ := http.NewRequest(http.MethodGet, "/transactions", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		mockService.AssertExpectations(t)
	})
}

var _ service.TransactionService = (*MockTransactionService)(nil)
