package processor

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/voxtour/ticket-gateway/internal/model"
	"github.com/voxtour/ticket-gateway/internal/queue"
	"github.com/voxtour/ticket-gateway/internal/services"
	"github.com/voxtour/ticket-gateway/pkg/logger"
)

// RetryJob is the queue payload: one failed message to re-drive.
type RetryJob struct {
	MessageID int64  `json:"message_id"`
	Channel   string `json:"channel,omitempty"`
}

// Retrier is the part of the retry service the processor needs.
type Retrier interface {
	Retry(ctx context.Context, messageID int64) (*model.RetryResult, error)
}

// TicketRetryProcessor consumes retry jobs and re-drives failed messages
// through their original channel. The idempotency guard stops two consumers
// from double-sending the same message.
type TicketRetryProcessor struct {
	retries     Retrier
	idempotency *IdempotencyService
}

func NewTicketRetryProcessor(retries Retrier, idempotency *IdempotencyService) *TicketRetryProcessor {
	return &TicketRetryProcessor{
		retries:     retries,
		idempotency: idempotency,
	}
}

func (p *TicketRetryProcessor) GetType() string {
	return "ticket_retry"
}

// Process handles one retry job. Returning nil acks the job; returning an
// error leaves it on the stream for another attempt.
func (p *TicketRetryProcessor) Process(ctx context.Context, job *queue.Job) error {
	var rj RetryJob
	if err := json.Unmarshal(job.Payload, &rj); err != nil {
		logger.Error("Failed to unmarshal retry job", "error", err)
		return err // poisoned payload, the queue moves it to the DLQ
	}
	if rj.MessageID == 0 {
		logger.Error("Retry job without message id", "job_id", job.ID)
		return nil
	}

	key := strconv.FormatInt(rj.MessageID, 10)

	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, key)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyProcessed):
			logger.Info("Message already retried, skipping", "message_id", key)
			return nil
		case errors.Is(err, ErrMaxRetriesExceeded):
			logger.Error("Retry job exceeded queue-level attempts", "message_id", key)
			return nil
		case errors.Is(err, ErrLockAcquireFailed):
			return errors.New("lock held by another consumer")
		default:
			return err
		}
	}
	defer func() {
		if procCtx.lockAcquired {
			p.idempotency.ReleaseLock(ctx, procCtx)
		}
	}()

	logger.Info("Processing retry job",
		"message_id", key, "queue_attempts", job.Attempts, "is_retry", procCtx.IsRetry)

	result, err := p.retries.Retry(ctx, rj.MessageID)
	switch {
	case errors.Is(err, services.ErrNotFailed), errors.Is(err, services.ErrRetryExhausted):
		// Nothing left to do for this message; ack so the job never
		// comes back.
		logger.Info("Retry job no longer applicable", "message_id", key, "reason", err)
		_ = p.idempotency.MarkSuccess(ctx, procCtx)
		return nil
	case err != nil:
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("Failed to mark retry failure", "message_id", key, "error", markErr)
		}
		return err
	}

	if !result.Success {
		// The vendor call failed again. The message keeps its own retry
		// budget; the job comes back until that budget is spent.
		err := errors.New(result.Error)
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("Failed to mark retry failure", "message_id", key, "error", markErr)
		}
		return err
	}

	logger.Info("Retry job succeeded",
		"message_id", key, "new_message_id", result.NewMessage.ID)
	if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
		logger.Error("Failed to mark retry success", "message_id", key, "error", markErr)
	}
	return nil
}
