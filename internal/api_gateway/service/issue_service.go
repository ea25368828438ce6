package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pfm-ledger/internal/domain/issue"
	"github.com/pfm-ledger/internal/domain/masterdata"
)

// IssueServiceImpl implements the IssueService interface
type IssueServiceImpl struct {
	issueRepo issue.Repository
	logger    *slog.Logger
}

// NewIssueService creates a new issue service
func NewIssueService(logger *slog.Logger, issueRepo issue.Repository) IssueService {
	return &IssueServiceImpl{
		issueRepo: issueRepo,
		logger:    logger,
	}
}

// ListIssues retrieves a paginated list of issues with the given status
func (s *IssueServiceImpl) ListIssues(ctx context.Context, status issue.Status, page, perPage int) ([]*issue.Issue, int64, error) {
	offset := (page - 1) * perPage

	issues, err := s.issueRepo.ListByStatus(ctx, status, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.issueRepo.CountByStatus(ctx, status)
	if err != nil {
		return nil, 0, err
	}

	return issues, total, nil
}

// GetIssueByID retrieves an issue by its ID
func (s *IssueServiceImpl) GetIssueByID(ctx context.Context, id uuid.UUID) (*issue.Issue, error) {
	return s.issueRepo.GetByID(ctx, id)
}

// ResolveIssue marks an open issue resolved with reviewer notes
func (s *IssueServiceImpl) ResolveIssue(ctx context.Context, id uuid.UUID, notes string) error {
	if err := s.issueRepo.Resolve(ctx, id, notes); err != nil {
		s.logger.Error("Failed to resolve issue", "issue_id", id.String(), "error", err)
		return err
	}

	s.logger.Info("Issue resolved", "issue_id", id.String())
	return nil
}

// MasterDataServiceImpl implements the MasterDataService interface
type MasterDataServiceImpl struct {
	masterDataRepo masterdata.Repository
	logger         *slog.Logger
}

// NewMasterDataService creates a new master data service
func NewMasterDataService(logger *slog.Logger, masterDataRepo masterdata.Repository) MasterDataService {
	return &MasterDataServiceImpl{
		masterDataRepo: masterDataRepo,
		logger:         logger,
	}
}

// ListCategories retrieves all categories
func (s *MasterDataServiceImpl) ListCategories(ctx context.Context) ([]*masterdata.Category, error) {
	return s.masterDataRepo.ListCategories(ctx)
}
