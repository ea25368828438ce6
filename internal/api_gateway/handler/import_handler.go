package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pfm-ledger/internal/api_gateway/middleware"
	"github.com/pfm-ledger/internal/api_gateway/service"
	"github.com/pfm-ledger/internal/domain/archive"
	"github.com/pfm-ledger/internal/domain/batch"
	"github.com/pfm-ledger/internal/domain/shared"
)

// ImportHandler handles HTTP requests for import batch operations
type ImportHandler struct {
	importService service.ImportService
	logger        *slog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(logger *slog.Logger, importService service.ImportService) *ImportHandler {
	return &ImportHandler{
		importService: importService,
		logger:        logger,
	}
}

// Submit accepts a batch of raw records and queues it for the import worker
func (h *ImportHandler) Submit(c *gin.Context) {
	var req SubmitImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	job := &shared.ImportJobRequest{
		Source:          shared.SourceKind(req.Source),
		DefaultCurrency: req.DefaultCurrency,
		CorrelationID:   middleware.GetCorrelationID(c),
	}
	for i, rec := range req.Records {
		job.Records = append(job.Records, shared.RawRecord{Position: i, Fields: rec.Fields})
		if len(rec.LineItems) > 0 {
			if job.LineItems == nil {
				job.LineItems = make(map[int][]shared.LineFields)
			}
			for _, li := range rec.LineItems {
				job.LineItems[i] = append(job.LineItems[i], shared.LineFields{
					Name:       li.Name,
					Quantity:   li.Quantity,
					UnitPrice:  li.UnitPrice,
					TotalPrice: li.TotalPrice,
				})
			}
		}
	}

	b, err := h.importService.SubmitImport(c.Request.Context(), job)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidSourceKind) || errors.Is(err, shared.ErrEmptyBatch) {
			RespondBadRequest(c, err.Error())
			return
		}
		h.logger.Error("Failed to submit import", "source", req.Source, "error", err)
		RespondInternalError(c)
		return
	}

	RespondAccepted(c, mapBatchToResponse(b))
}

// GetByID retrieves batch status and summary, returns 404 if not found
func (h *ImportHandler) GetByID(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid batch ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid batch ID")
		return
	}

	b, err := h.importService.GetBatch(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, batch.ErrBatchNotFound{}) {
			RespondNotFound(c, "Import batch not found")
			return
		}
		h.logger.Error("Failed to get batch", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapBatchToResponse(b))
}

// List retrieves a paginated list of import batches
func (h *ImportHandler) List(c *gin.Context) {
	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Error("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	batches, err := h.importService.ListBatches(c.Request.Context(), pagination.Page, pagination.PerPage)
	if err != nil {
		h.logger.Error("Failed to list batches", "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]ImportBatchResponse, 0, len(batches))
	for _, b := range batches {
		responses = append(responses, mapBatchToResponse(b))
	}

	RespondOK(c, responses)
}

// GetRecords retrieves the archived raw records of a batch
func (h *ImportHandler) GetRecords(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid batch ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid batch ID")
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Error("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	records, total, err := h.importService.GetBatchRecords(c.Request.Context(), id, pagination.Page, pagination.PerPage)
	if err != nil {
		h.logger.Error("Failed to get batch records", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]ArchivedRecordResponse, 0, len(records))
	for _, rec := range records {
		responses = append(responses, mapArchivedRecordToResponse(rec))
	}

	RespondWithPaginatedData(c, http.StatusOK, responses, pagination.Page, pagination.PerPage, int(total))
}

// mapBatchToResponse maps an import batch to its response DTO
func mapBatchToResponse(b *batch.ImportBatch) ImportBatchResponse {
	response := ImportBatchResponse{
		ID:          b.ID.String(),
		Source:      string(b.Source),
		Status:      string(b.Status),
		RecordCount: b.RecordCount,
		Summary: BatchSummaryResponse{
			Created: b.Summary.Created,
			Updated: b.Summary.Updated,
			Skipped: b.Summary.Skipped,
			Errored: b.Summary.Errored,
		},
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
	}

	if b.StartedAt != nil {
		response.StartedAt = b.StartedAt.Format(time.RFC3339)
	}
	if b.CompletedAt != nil {
		response.CompletedAt = b.CompletedAt.Format(time.RFC3339)
	}

	return response
}

// mapArchivedRecordToResponse maps an archived record to its response DTO
func mapArchivedRecordToResponse(rec *archive.Record) ArchivedRecordResponse {
	return ArchivedRecordResponse{
		BatchID:     rec.BatchID.String(),
		Source:      string(rec.Source),
		Position:    rec.Position,
		ContentHash: rec.ContentHash,
		Fields:      rec.Fields,
		ArchivedAt:  rec.ArchivedAt.Format(time.RFC3339),
	}
}
