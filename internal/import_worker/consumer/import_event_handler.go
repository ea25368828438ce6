package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pfm-ledger/internal/domain/batch"
	"github.com/pfm-ledger/internal/domain/shared"
	"github.com/pfm-ledger/internal/import_worker/service"
	"github.com/pfm-ledger/internal/platform/messaging/producers"
)

// ImportEventHandler handles incoming import job messages from Kafka
type ImportEventHandler struct {
	importService service.ImportService
	producer      producers.DeadLetterPublisher
	logger        *slog.Logger
}

// NewImportEventHandler creates a new handler
func NewImportEventHandler(
	logger *slog.Logger,
	importService service.ImportService,
	producer producers.DeadLetterPublisher,
) *ImportEventHandler {
	return &ImportEventHandler{
		importService: importService,
		producer:      producer,
		logger:        logger,
	}
}

// HandleMessage processes Kafka messages. Unprocessable messages go to the
// DLQ and are committed; transient failures return an error so Kafka
// redelivers.
func (h *ImportEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var req shared.ImportJobRequest
	if err := json.Unmarshal(value, &req); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal import job from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)
		return h.sendToDLQ(ctx, key, value, fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error()), err)
	}

	logger := h.logger
	if req.CorrelationID != "" {
		logger = h.logger.With("correlation_id", req.CorrelationID)
	}

	logger.Info("Received import job",
		"batch_id", req.BatchID.String(),
		"source", string(req.Source),
		"record_count", len(req.Records),
	)

	summary, err := h.importService.RunBatch(ctx, &req)
	if err != nil {
		logger.Error("Failed to run import batch",
			"batch_id", req.BatchID.String(),
			"error", err,
		)

		// Jobs that can never succeed are dead-lettered instead of retried
		if errors.Is(err, shared.ErrInvalidSourceKind) || errors.Is(err, shared.ErrEmptyBatch) || errors.Is(err, batch.ErrBatchNotFound{}) {
			return h.sendToDLQ(ctx, key, value, fmt.Sprintf("unprocessable import job: %s", err.Error()), err)
		}

		return fmt.Errorf("running import batch %s failed: %w", req.BatchID.String(), err)
	}

	logger.Info("Import batch finished",
		"batch_id", req.BatchID.String(),
		"created", summary.Created,
		"updated", summary.Updated,
		"skipped", summary.Skipped,
		"errored", summary.Errored,
	)
	return nil // Success, commit offset
}

// sendToDLQ publishes an unprocessable message to the DLQ. The message is
// committed on success; if the DLQ is unavailable the original error comes
// back so Kafka retries.
func (h *ImportEventHandler) sendToDLQ(ctx context.Context, key []byte, value []byte, reason string, cause error) error {
	if h.producer == nil {
		return fmt.Errorf("unprocessable import job and no DLQ configured: %w", cause)
	}

	if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, reason); dlqErr != nil {
		h.logger.Error("Failed to publish message to DLQ",
			"dlq_error", dlqErr,
			"original_error", cause,
			"message_key", string(key),
		)
		return fmt.Errorf("failed to dead-letter import job: %w", cause)
	}

	h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", reason)
	return nil
}
