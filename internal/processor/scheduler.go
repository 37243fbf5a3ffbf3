package processor

import (
	"context"
	"time"

	"github.com/voxtour/ticket-gateway/internal/model"
	"github.com/voxtour/ticket-gateway/pkg/logger"
)

const defaultSweepInterval = time.Minute

// FailedMessageLister finds failed messages that still have retry budget.
type FailedMessageLister interface {
	ListFailedRetryable(ctx context.Context, limit int, channel *model.Channel) ([]*model.Message, error)
}

// JobEnqueuer is the producing side of the retry queue.
type JobEnqueuer interface {
	EnqueueJSON(ctx context.Context, payload interface{}, metadata map[string]string) (string, error)
}

// RetryScheduler periodically sweeps the database for retryable failures
// and turns each into a queue job. Re-enqueueing a message that is already
// in flight is harmless, the idempotency guard drops the duplicate.
type RetryScheduler struct {
	messages FailedMessageLister
	jobs     JobEnqueuer
	limit    int
	interval time.Duration
}

func NewRetryScheduler(messages FailedMessageLister, jobs JobEnqueuer, limit int) *RetryScheduler {
	if limit <= 0 {
		limit = 50
	}
	return &RetryScheduler{
		messages: messages,
		jobs:     jobs,
		limit:    limit,
		interval: defaultSweepInterval,
	}
}

func (s *RetryScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Info("Retry scheduler started", "interval", s.interval.String(), "limit", s.limit)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Retry scheduler stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *RetryScheduler) sweep(ctx context.Context) {
	eligible, err := s.messages.ListFailedRetryable(ctx, s.limit, nil)
	if err != nil {
		logger.Error("Retry sweep failed to list messages", "error", err)
		return
	}
	if len(eligible) == 0 {
		return
	}

	enqueued := 0
	for _, msg := range eligible {
		_, err := s.jobs.EnqueueJSON(ctx, RetryJob{
			MessageID: msg.ID,
			Channel:   string(msg.Channel),
		}, map[string]string{"channel": string(msg.Channel)})
		if err != nil {
			logger.Error("Failed to enqueue retry job", "message_id", msg.ID, "error", err)
			continue
		}
		enqueued++
	}

	logger.Info("Retry sweep finished", "eligible", len(eligible), "enqueued", enqueued)
}
