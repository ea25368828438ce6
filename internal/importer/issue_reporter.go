package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/pfm-ledger/internal/domain/issue"
	"github.com/pfm-ledger/internal/domain/shared"
)

// IssueReporter files reconciliation anomalies through the issue repository's
// upsert path. Re-reporting the same anomaly for the same target refreshes the
// existing issue rather than creating a second row. Filing is best effort: a
// failed write is logged and never fails the import.
type IssueReporter struct {
	repo   issue.Repository
	tx     pgx.Tx
	logger *slog.Logger
}

// NewIssueReporter creates an issue reporter
func NewIssueReporter(repo issue.Repository, logger *slog.Logger) *IssueReporter {
	return &IssueReporter{repo: repo, logger: logger}
}

// BindTx returns a reporter that files each issue under its own savepoint on
// tx. A failed issue write then rolls back alone instead of poisoning the
// surrounding transaction.
func (r *IssueReporter) BindTx(tx pgx.Tx) *IssueReporter {
	return &IssueReporter{repo: r.repo, tx: tx, logger: r.logger}
}

// ReportDuplicateSuspected files a near-duplicate warning against the earliest
// stored transaction sharing the fingerprint.
func (r *IssueReporter) ReportDuplicateSuspected(ctx context.Context, target uuid.UUID, fingerprint string, newID uuid.UUID) {
	iss := newIssue(issue.TransactionTarget(target), issue.KindDuplicateSuspected,
		fmt.Sprintf("transaction %s matches fingerprint %q of an earlier transaction", newID, fingerprint))
	r.upsert(ctx, iss)
}

// ReportAmountMismatch files a line-item reconciliation discrepancy against a
// stored transaction.
func (r *IssueReporter) ReportAmountMismatch(ctx context.Context, target uuid.UUID, diff decimal.Decimal) {
	iss := newIssue(issue.TransactionTarget(target), issue.KindAmountMismatch,
		fmt.Sprintf("line item totals differ from transaction amount by %s", diff.StringFixed(2)))
	r.upsert(ctx, iss)
}

// ReportMalformedRecord files a missing-field issue for a record that never
// reached the store. The target id is derived from the record content, so the
// same bad record re-imported maps onto the same issue.
func (r *IssueReporter) ReportMalformedRecord(ctx context.Context, source shared.SourceKind, contentHash string, recErr shared.MalformedRecordError) {
	iss := newIssue(issue.ImportRecordTarget(string(source), contentHash), issue.KindMissingField,
		fmt.Sprintf("record at position %d: field %q: %s", recErr.Position, recErr.Field, recErr.Reason))
	r.upsert(ctx, iss)
}

func (r *IssueReporter) upsert(ctx context.Context, iss *issue.Issue) {
	repo := r.repo
	var sp pgx.Tx
	if r.tx != nil {
		var err error
		sp, err = r.tx.Begin(ctx)
		if err != nil {
			r.warnDropped(iss, err)
			return
		}
		repo = r.repo.WithTx(sp)
	}

	if err := repo.Upsert(ctx, iss); err != nil {
		r.warnDropped(iss, err)
		if sp != nil {
			_ = sp.Rollback(ctx)
		}
		return
	}

	if sp != nil {
		if err := sp.Commit(ctx); err != nil {
			r.warnDropped(iss, err)
			return
		}
	}

	r.logger.Info("Filed reconciliation issue",
		"issue_kind", iss.Kind,
		"target_kind", iss.Target.Kind,
		"target_id", iss.Target.ID,
	)
}

func (r *IssueReporter) warnDropped(iss *issue.Issue, err error) {
	r.logger.Warn("Dropped reconciliation issue",
		"issue_kind", iss.Kind,
		"target_kind", iss.Target.Kind,
		"target_id", iss.Target.ID,
		"error", err,
	)
}

func newIssue(target issue.Target, kind issue.Kind, description string) *issue.Issue {
	now := time.Now().UTC()
	return &issue.Issue{
		ID:          uuid.New(),
		Target:      target,
		Kind:        kind,
		Description: description,
		Status:      issue.StatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
