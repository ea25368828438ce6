package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pfm-ledger/internal/api_gateway/service"
	"github.com/pfm-ledger/internal/domain/transaction"
)

// TransactionHandler handles HTTP requests for transaction ledger reads
type TransactionHandler struct {
	transactionService service.TransactionService
	logger             *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, transactionService service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

// transactionListParams are the query parameters of the list endpoint. The
// optional from/to bounds are RFC 3339 timestamps on occurred-at.
type transactionListParams struct {
	PaginationParams
	From string `form:"from" binding:"omitempty"`
	To   string `form:"to" binding:"omitempty"`
}

// GetByID retrieves transaction details by its ID, returns 404 if not found
func (h *TransactionHandler) GetByID(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid transaction ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	txn, err := h.transactionService.GetTransactionByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get transaction", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	if txn == nil {
		RespondNotFound(c, "Transaction not found")
		return
	}

	RespondOK(c, mapTransactionToResponse(txn))
}

// List retrieves paginated transactions, optionally bounded by time range
func (h *TransactionHandler) List(c *gin.Context) {
	var params transactionListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		RespondBadRequest(c, "Invalid query parameters")
		return
	}

	var from, to *time.Time
	if params.From != "" {
		t, err := time.Parse(time.RFC3339, params.From)
		if err != nil {
			RespondBadRequest(c, "Invalid 'from' timestamp, expected RFC 3339")
			return
		}
		from = &t
	}
	if params.To != "" {
		t, err := time.Parse(time.RFC3339, params.To)
		if err != nil {
			RespondBadRequest(c, "Invalid 'to' timestamp, expected RFC 3339")
			return
		}
		to = &t
	}

	transactions, total, err := h.transactionService.ListTransactions(
		c.Request.Context(),
		from, to,
		params.Page,
		params.PerPage,
	)
	if err != nil {
		h.logger.Error("Failed to list transactions", "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]TransactionResponse, 0, len(transactions))
	for _, txn := range transactions {
		responses = append(responses, mapTransactionToResponse(txn))
	}

	RespondWithPaginatedData(c, http.StatusOK, responses, params.Page, params.PerPage, int(total))
}

// mapTransactionToResponse maps a transaction to its response DTO
func mapTransactionToResponse(txn *transaction.Transaction) TransactionResponse {
	response := TransactionResponse{
		ID:         txn.ID.String(),
		Source:     string(txn.Source),
		OccurredAt: txn.OccurredAt.Format(time.RFC3339),
		Amount:     txn.Amount.String(),
		Currency:   txn.Currency,
		Descriptor: txn.Descriptor,
		Status:     string(txn.Status),
		CreatedAt:  txn.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  txn.UpdatedAt.Format(time.RFC3339),
	}

	if txn.ExternalRef != nil {
		response.ExternalRef = *txn.ExternalRef
	}
	if txn.CategoryID != nil {
		response.CategoryID = txn.CategoryID.String()
	}
	if txn.ShopID != nil {
		response.ShopID = txn.ShopID.String()
	}

	for _, li := range txn.LineItems {
		item := LineItemResponse{
			ID:         li.ID.String(),
			Name:       li.Name,
			Quantity:   li.Quantity.String(),
			UnitPrice:  li.UnitPrice.String(),
			TotalPrice: li.TotalPrice.String(),
		}
		if li.CategoryID != nil {
			item.CategoryID = li.CategoryID.String()
		}
		response.LineItems = append(response.LineItems, item)
	}

	return response
}
