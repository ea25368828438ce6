package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pfm-ledger/internal/api_gateway/service"
	"github.com/pfm-ledger/internal/domain/issue"
	"github.com/pfm-ledger/internal/domain/masterdata"
)

// IssueHandler handles HTTP requests for the reconciliation review queue
type IssueHandler struct {
	issueService      service.IssueService
	masterDataService service.MasterDataService
	logger            *slog.Logger
}

// NewIssueHandler creates a new issue handler
func NewIssueHandler(logger *slog.Logger, issueService service.IssueService, masterDataService service.MasterDataService) *IssueHandler {
	return &IssueHandler{
		issueService:      issueService,
		masterDataService: masterDataService,
		logger:            logger,
	}
}

// List retrieves paginated issues filtered by status, defaulting to open ones
func (h *IssueHandler) List(c *gin.Context) {
	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Error("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	status := issue.StatusOpen
	switch strings.ToUpper(c.DefaultQuery("status", string(issue.StatusOpen))) {
	case string(issue.StatusOpen):
		status = issue.StatusOpen
	case string(issue.StatusResolved):
		status = issue.StatusResolved
	default:
		RespondBadRequest(c, "Invalid status, expected OPEN or RESOLVED")
		return
	}

	issues, total, err := h.issueService.ListIssues(c.Request.Context(), status, pagination.Page, pagination.PerPage)
	if err != nil {
		h.logger.Error("Failed to list issues", "status", string(status), "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]IssueResponse, 0, len(issues))
	for _, iss := range issues {
		responses = append(responses, mapIssueToResponse(iss))
	}

	RespondWithPaginatedData(c, http.StatusOK, responses, pagination.Page, pagination.PerPage, int(total))
}

// GetByID retrieves issue details by its ID, returns 404 if not found
func (h *IssueHandler) GetByID(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid issue ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid issue ID")
		return
	}

	iss, err := h.issueService.GetIssueByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, issue.ErrIssueNotFound{}) {
			RespondNotFound(c, "Issue not found")
			return
		}
		h.logger.Error("Failed to get issue", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapIssueToResponse(iss))
}

// Resolve marks an open issue resolved with reviewer notes. Resolving an
// already-resolved issue is a conflict.
func (h *IssueHandler) Resolve(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid issue ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid issue ID")
		return
	}

	var req ResolveIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	if err := h.issueService.ResolveIssue(c.Request.Context(), id, req.Notes); err != nil {
		if errors.Is(err, issue.ErrIssueNotFound{}) {
			// The row may exist but already be resolved
			if iss, getErr := h.issueService.GetIssueByID(c.Request.Context(), id); getErr == nil && iss.Status == issue.StatusResolved {
				RespondConflict(c, "Issue is already resolved")
				return
			}
			RespondNotFound(c, "Issue not found")
			return
		}
		h.logger.Error("Failed to resolve issue", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondNoContent(c)
}

// ListCategories retrieves the category reference data
func (h *IssueHandler) ListCategories(c *gin.Context) {
	categories, err := h.masterDataService.ListCategories(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list categories", "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]CategoryResponse, 0, len(categories))
	for _, category := range categories {
		responses = append(responses, mapCategoryToResponse(category))
	}

	RespondOK(c, responses)
}

// mapIssueToResponse maps an issue to its response DTO
func mapIssueToResponse(iss *issue.Issue) IssueResponse {
	response := IssueResponse{
		ID:              iss.ID.String(),
		TargetKind:      string(iss.Target.Kind),
		TargetID:        iss.Target.ID.String(),
		Kind:            string(iss.Kind),
		Description:     iss.Description,
		Status:          string(iss.Status),
		ResolutionNotes: iss.ResolutionNotes,
		CreatedAt:       iss.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       iss.UpdatedAt.Format(time.RFC3339),
	}

	if iss.ResolvedAt != nil {
		response.ResolvedAt = iss.ResolvedAt.Format(time.RFC3339)
	}

	return response
}

// mapCategoryToResponse maps a category to its response DTO
func mapCategoryToResponse(category *masterdata.Category) CategoryResponse {
	response := CategoryResponse{
		ID:   category.ID.String(),
		Name: category.Name,
		Type: category.Type,
	}
	if category.ParentID != nil {
		response.ParentID = category.ParentID.String()
	}
	return response
}
