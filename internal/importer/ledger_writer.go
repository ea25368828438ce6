package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pfm-ledger/internal/domain/masterdata"
	"github.com/pfm-ledger/internal/domain/shared"
	"github.com/pfm-ledger/internal/domain/transaction"
)

// LedgerWriter owns every transaction write. Given a fully resolved candidate
// it decides create, update or skip against the exact natural key, inserts
// new rows, and routes near-duplicate and reconciliation anomalies to the
// issue reporter.
type LedgerWriter struct {
	transactions transaction.Repository
	masterData   masterdata.Repository
	issues       *IssueReporter
	logger       *slog.Logger
}

// NewLedgerWriter creates a ledger writer
func NewLedgerWriter(transactions transaction.Repository, masterData masterdata.Repository, issues *IssueReporter, logger *slog.Logger) *LedgerWriter {
	return &LedgerWriter{transactions: transactions, masterData: masterData, issues: issues, logger: logger}
}

// Apply writes one resolved candidate transaction and returns the outcome.
//
// A candidate carrying an external ref is matched against the store by
// (source, ref): a material difference updates the stored row, anything else
// is a skip. Candidates without a ref are always inserted; a fingerprint
// collision with stored transactions additionally files a duplicate-suspected
// issue against the earliest match, never suppresses the insert. The fuzzy
// signal applies only to refless candidates; an exact ref is authoritative.
func (w *LedgerWriter) Apply(ctx context.Context, txn *transaction.Transaction) (shared.RecordOutcome, error) {
	if txn.ExternalRef != nil {
		existing, err := w.transactions.GetBySourceRef(ctx, txn.Source, *txn.ExternalRef)
		if err != nil {
			return shared.OutcomeErrored, fmt.Errorf("failed to look up natural key: %w", err)
		}
		if existing != nil {
			return w.applyToExisting(ctx, existing, txn)
		}
	}

	return w.create(ctx, txn)
}

func (w *LedgerWriter) applyToExisting(ctx context.Context, existing, incoming *transaction.Transaction) (shared.RecordOutcome, error) {
	if !existing.MateriallyDiffers(incoming.Amount, incoming.Descriptor, incoming.Status) {
		w.logger.Debug("Skipping transaction with no material change",
			"transaction_id", existing.ID,
			"source", existing.Source,
		)
		return shared.OutcomeSkipped, nil
	}

	existing.ApplyUpdate(incoming.Amount, incoming.Descriptor, incoming.Status)
	if err := w.transactions.UpdateMutable(ctx, existing); err != nil {
		return shared.OutcomeErrored, fmt.Errorf("failed to update transaction %s: %w", existing.ID, err)
	}

	w.logger.Info("Updated transaction",
		"transaction_id", existing.ID,
		"source", existing.Source,
	)

	// The stored line items are unchanged by an update, so re-check them
	// against the new amount.
	if diff, ok := existing.ReconcileLineItems(); !ok {
		w.issues.ReportAmountMismatch(ctx, existing.ID, diff)
	}

	return shared.OutcomeUpdated, nil
}

func (w *LedgerWriter) create(ctx context.Context, txn *transaction.Transaction) (shared.RecordOutcome, error) {
	var suspects []*transaction.Transaction
	if txn.ExternalRef == nil {
		var err error
		suspects, err = w.transactions.FindByFingerprint(ctx, txn.Fingerprint)
		if err != nil {
			return shared.OutcomeErrored, fmt.Errorf("failed to check fingerprint: %w", err)
		}
	}

	if err := w.transactions.Create(ctx, txn); err != nil {
		return shared.OutcomeErrored, fmt.Errorf("failed to create transaction: %w", err)
	}

	// Shop visit statistics count only records that actually land, so the
	// visit is written here and rolls back with the record.
	if txn.ShopID != nil {
		if err := w.masterData.RecordShopVisit(ctx, *txn.ShopID, txn.OccurredAt); err != nil {
			return shared.OutcomeErrored, fmt.Errorf("failed to record shop visit: %w", err)
		}
	}

	w.logger.Info("Created transaction",
		"transaction_id", txn.ID,
		"source", txn.Source,
		"line_items", len(txn.LineItems),
	)

	if len(suspects) > 0 {
		w.issues.ReportDuplicateSuspected(ctx, suspects[0].ID, txn.Fingerprint, txn.ID)
	}

	if diff, ok := txn.ReconcileLineItems(); !ok {
		w.issues.ReportAmountMismatch(ctx, txn.ID, diff)
	}

	return shared.OutcomeCreated, nil
}
