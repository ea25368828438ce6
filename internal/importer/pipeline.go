package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pfm-ledger/internal/domain/archive"
	"github.com/pfm-ledger/internal/domain/batch"
	"github.com/pfm-ledger/internal/domain/issue"
	"github.com/pfm-ledger/internal/domain/masterdata"
	"github.com/pfm-ledger/internal/domain/shared"
	"github.com/pfm-ledger/internal/domain/transaction"
)

// TxBeginner starts database transactions. Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Pipeline runs one import batch end to end: archive, normalize, resolve,
// write, report. Records are processed strictly in order inside a single
// database transaction; each record runs under its own savepoint so one bad
// record rolls back alone while the batch continues.
type Pipeline struct {
	db            TxBeginner
	transactions  transaction.Repository
	masterData    masterdata.Repository
	issues        issue.Repository
	batches       batch.Repository
	archives      archive.Repository
	rules         *RuleTable
	fingerprinter *Fingerprinter
	currency      string
	logger        *slog.Logger
}

// NewPipeline creates an import pipeline. Repositories must be bound to the
// same pool as db; defaultCurrency applies when a job does not carry one.
func NewPipeline(
	db TxBeginner,
	transactions transaction.Repository,
	masterData masterdata.Repository,
	issues issue.Repository,
	batches batch.Repository,
	archives archive.Repository,
	rules *RuleTable,
	fingerprinter *Fingerprinter,
	defaultCurrency string,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		db:            db,
		transactions:  transactions,
		masterData:    masterData,
		issues:        issues,
		batches:       batches,
		archives:      archives,
		rules:         rules,
		fingerprinter: fingerprinter,
		currency:      defaultCurrency,
		logger:        logger,
	}
}

// RunBatch executes one import job and returns the final summary. The batch
// row moves QUEUED -> RUNNING -> COMPLETED or FAILED. A returned error means
// the batch could not run at all and the message should be retried; once
// processing starts, failures finalize the batch instead of propagating.
func (p *Pipeline) RunBatch(ctx context.Context, req *shared.ImportJobRequest) (*batch.Summary, error) {
	logger := p.logger
	if req.CorrelationID != "" {
		logger = logger.With("correlation_id", req.CorrelationID)
	}
	logger = logger.With("batch_id", req.BatchID.String(), "source", string(req.Source))

	if !req.Source.Valid() {
		return nil, shared.ErrInvalidSourceKind
	}
	if len(req.Records) == 0 {
		return nil, shared.ErrEmptyBatch
	}

	b, err := p.batches.GetByID(ctx, req.BatchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch %s: %w", req.BatchID, err)
	}

	b.MarkRunning()
	if err := p.batches.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to mark batch running: %w", err)
	}

	logger.Info("Import batch started", "record_count", len(req.Records))

	p.archiveRecords(ctx, req, logger)

	summary, runErr := p.processRecords(ctx, req, logger)

	if runErr != nil {
		b.MarkFailed(summary)
		logger.Error("Import batch failed",
			"error", runErr,
			"created", summary.Created,
			"updated", summary.Updated,
			"skipped", summary.Skipped,
			"errored", summary.Errored,
		)
	} else {
		b.MarkCompleted(summary)
		logger.Info("Import batch completed",
			"created", summary.Created,
			"updated", summary.Updated,
			"skipped", summary.Skipped,
			"errored", summary.Errored,
		)
	}

	// Finalize with cancellation stripped, so a batch cancelled mid-run is
	// still marked failed with its partial statistics.
	if err := p.batches.Update(context.WithoutCancel(ctx), b); err != nil {
		return nil, fmt.Errorf("failed to finalize batch %s: %w", req.BatchID, err)
	}

	return &summary, nil
}

// archiveRecords copies the raw records into the archive store. Best effort:
// an unavailable archive is logged and never blocks the import.
func (p *Pipeline) archiveRecords(ctx context.Context, req *shared.ImportJobRequest, logger *slog.Logger) {
	now := time.Now().UTC()
	for _, raw := range req.Records {
		rec := &archive.Record{
			BatchID:     req.BatchID,
			Source:      req.Source,
			Position:    raw.Position,
			ContentHash: HashRawRecord(req.Source, raw),
			Fields:      raw.Fields,
			ArchivedAt:  now,
		}
		if err := p.archives.Archive(ctx, rec); err != nil {
			logger.Warn("Failed to archive raw record", "position", raw.Position, "error", err)
		}
	}
}

// processRecords runs the batch body inside one database transaction. On a
// batch-level failure (storage loss, cancellation) it commits whatever the
// earlier savepoints staged, so already-processed records survive and the
// summary reflects them; only when that commit itself fails is everything
// rolled back and the summary zeroed.
func (p *Pipeline) processRecords(ctx context.Context, req *shared.ImportJobRequest, logger *slog.Logger) (batch.Summary, error) {
	var summary batch.Summary

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return summary, shared.StorageUnavailableError{Op: "begin batch transaction", Err: err}
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	currency := req.DefaultCurrency
	if currency == "" {
		currency = p.currency
	}
	normalizer := NewNormalizer(currency)
	resolver := NewMasterDataResolver(p.masterData.WithTx(tx), p.rules, logger)
	reporter := NewIssueReporter(p.issues, logger).BindTx(tx)

	var fatal error
	for _, raw := range req.Records {
		if err := ctx.Err(); err != nil {
			fatal = fmt.Errorf("batch cancelled at position %d: %w", raw.Position, err)
			break
		}

		outcome, err := p.processRecord(ctx, tx, normalizer, resolver, reporter, req.Source, raw, req.LineItems[raw.Position], logger)
		if err != nil {
			fatal = err
			break
		}
		summary.Add(outcome)
	}

	// Commit with the caller's cancellation stripped; records staged under
	// earlier savepoints stay committed when the batch was cancelled mid-run.
	if err := tx.Commit(context.WithoutCancel(ctx)); err != nil {
		if fatal == nil {
			fatal = shared.StorageUnavailableError{Op: "commit batch transaction", Err: err}
		}
		return batch.Summary{}, fatal
	}

	return summary, fatal
}

// processRecord normalizes and writes a single record. A malformed record is
// counted as errored and reported without touching the transaction store; a
// resolvable record runs its write under a savepoint so a write failure rolls
// back just this record. A non-nil error aborts the batch.
func (p *Pipeline) processRecord(
	ctx context.Context,
	tx pgx.Tx,
	normalizer *Normalizer,
	resolver *MasterDataResolver,
	reporter *IssueReporter,
	source shared.SourceKind,
	raw shared.RawRecord,
	lines []shared.LineFields,
	logger *slog.Logger,
) (shared.RecordOutcome, error) {
	rec, err := normalizer.Normalize(raw, lines, source)
	if err != nil {
		var malformed shared.MalformedRecordError
		if !errors.As(err, &malformed) {
			return shared.OutcomeErrored, fmt.Errorf("failed to normalize record at position %d: %w", raw.Position, err)
		}
		logger.Warn("Record failed normalization",
			"position", malformed.Position,
			"field", malformed.Field,
			"reason", malformed.Reason,
		)
		reporter.ReportMalformedRecord(ctx, source, HashRawRecord(source, raw), malformed)
		return shared.OutcomeErrored, nil
	}

	// Master data resolves in the batch transaction, outside the record
	// savepoint, so rows created here stay visible to later records even if
	// this record's write rolls back.
	candidate, err := p.buildCandidate(ctx, resolver, rec)
	if err != nil {
		var resolution shared.MasterDataResolutionError
		if errors.As(err, &resolution) {
			logger.Warn("Record failed master-data resolution",
				"position", raw.Position,
				"kind", resolution.Kind,
				"name", resolution.Name,
				"error", resolution.Err,
			)
			return shared.OutcomeErrored, nil
		}
		return shared.OutcomeErrored, err
	}

	sp, err := tx.Begin(ctx)
	if err != nil {
		return shared.OutcomeErrored, shared.StorageUnavailableError{Op: "begin record savepoint", Err: err}
	}

	writer := NewLedgerWriter(p.transactions.WithTx(sp), p.masterData.WithTx(sp), reporter.BindTx(sp), logger)
	outcome, err := writer.Apply(ctx, candidate)
	if err != nil {
		logger.Warn("Record write failed, rolling back record",
			"position", raw.Position,
			"error", err,
		)
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return shared.OutcomeErrored, shared.StorageUnavailableError{Op: "rollback record savepoint", Err: rbErr}
		}
		return shared.OutcomeErrored, nil
	}

	if err := sp.Commit(ctx); err != nil {
		return shared.OutcomeErrored, shared.StorageUnavailableError{Op: "commit record savepoint", Err: err}
	}

	return outcome, nil
}

// buildCandidate turns a normalized record into a store-ready transaction:
// master data resolved, line items classified, fingerprint attached. Lookups
// that fail are retried once before the record is given up on.
func (p *Pipeline) buildCandidate(ctx context.Context, resolver *MasterDataResolver, rec *NormalizedRecord) (*transaction.Transaction, error) {
	now := time.Now().UTC()
	txn := &transaction.Transaction{
		ID:          uuid.New(),
		Source:      rec.Source,
		ExternalRef: rec.ExternalRef,
		Fingerprint: p.fingerprinter.Fingerprint(rec),
		OccurredAt:  rec.OccurredAt,
		Amount:      rec.Amount,
		Currency:    rec.Currency,
		Descriptor:  rec.Descriptor,
		Status:      rec.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	category, err := retryOnce(func() (*masterdata.Category, error) {
		return resolver.ResolveCategory(ctx, rec.CategoryName)
	})
	if err != nil {
		return nil, err
	}
	if category != nil {
		txn.CategoryID = &category.ID
	}

	shop, err := retryOnce(func() (*masterdata.Shop, error) {
		return resolver.ResolveShop(ctx, rec.ShopName)
	})
	if err != nil {
		return nil, err
	}
	if shop != nil {
		txn.ShopID = &shop.ID
	}

	for _, li := range rec.LineItems {
		item := transaction.LineItem{
			ID:            uuid.New(),
			TransactionID: txn.ID,
			Name:          li.Name,
			Quantity:      li.Quantity,
			UnitPrice:     li.UnitPrice,
			TotalPrice:    li.TotalPrice,
			CreatedAt:     now,
		}
		itemCategory, err := retryOnce(func() (*masterdata.Category, error) {
			return resolver.ClassifyLineItem(ctx, li.Name)
		})
		if err != nil {
			return nil, err
		}
		if itemCategory != nil {
			item.CategoryID = &itemCategory.ID
		}
		txn.LineItems = append(txn.LineItems, item)
	}

	return txn, nil
}

func retryOnce[T any](fn func() (*T, error)) (*T, error) {
	v, err := fn()
	if err == nil {
		return v, nil
	}
	return fn()
}
