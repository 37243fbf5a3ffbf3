package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voxtour/ticket-gateway/internal/model"
	"github.com/voxtour/ticket-gateway/pkg/logger"
)

var (
	// ErrNotFailed means the message is not in a retryable state because it
	// never failed (or already succeeded).
	ErrNotFailed = errors.New("message is not in failed state")
	// ErrRetryExhausted means the message hit the retry cap. Distinct from
	// ErrNotFailed so operators can tell policy from pointlessness.
	ErrRetryExhausted = errors.New("message retry attempts exhausted")
)

// RetryService re-drives failed messages through the original channel's
// sender. The audit trail is append-only: the failed original is annotated,
// never rewritten into a success.
type RetryService struct {
	messages    MessageRepository
	bookings    BookingRepository
	attachments AttachmentRepository
	senders     map[model.Channel]ChannelSender

	// BatchDelay spaces out attempts within a batch run so a retry sweep
	// does not hammer the vendor API.
	BatchDelay time.Duration
}

func NewRetryService(messages MessageRepository, bookings BookingRepository, attachments AttachmentRepository, senders []ChannelSender) *RetryService {
	byChannel := make(map[model.Channel]ChannelSender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	return &RetryService{
		messages:    messages,
		bookings:    bookings,
		attachments: attachments,
		senders:     byChannel,
		BatchDelay:  200 * time.Millisecond,
	}
}

// Retry re-attempts one failed message on its original channel. The channel
// is fixed per message; retry never re-plans.
func (s *RetryService) Retry(ctx context.Context, messageID int64) (*model.RetryResult, error) {
	original, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if original.Status != model.MessageStatusFailed {
		return nil, ErrNotFailed
	}
	if original.RetryCount >= model.MaxRetryAttempts {
		return nil, ErrRetryExhausted
	}

	sender, ok := s.senders[original.Channel]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownChannel, original.Channel)
	}

	booking, err := s.bookings.GetByID(ctx, original.BookingID)
	if err != nil {
		return nil, err
	}

	attachments, err := s.reloadAttachments(ctx, original)
	if err != nil {
		return nil, err
	}

	in := SendInput{
		Booking:     booking,
		Subject:     original.Subject,
		Body:        original.Content,
		Attachments: attachments,
	}

	newMsg, sendErr := sender.Resend(ctx, in)
	if sendErr != nil {
		if err := s.messages.RecordRetryFailure(ctx, original.ID, sendErr.Error()); err != nil {
			logger.Error("Failed to record retry failure", "message_id", original.ID, "error", err)
		}
		updated, _ := s.messages.GetByID(ctx, original.ID)
		if updated != nil {
			original = updated
		}
		logger.Warn("Retry failed", "message_id", original.ID, "retry_count", original.RetryCount, "error", sendErr)
		return &model.RetryResult{Success: false, Original: original, Error: sendErr.Error()}, nil
	}

	note := fmt.Sprintf("resent as message #%d", newMsg.ID)
	if err := s.messages.SetNote(ctx, original.ID, note); err != nil {
		logger.Error("Failed to annotate original message", "message_id", original.ID, "error", err)
	}
	if updated, err := s.messages.GetByID(ctx, original.ID); err == nil {
		original = updated
	}

	logger.Info("Retry succeeded", "original_id", original.ID, "new_id", newMsg.ID, "channel", string(original.Channel))
	return &model.RetryResult{Success: true, Original: original, NewMessage: newMsg}, nil
}

// reloadAttachments prefers the attachments linked to the message, falling
// back to the booking's full set when the original attempt failed before
// linkage happened.
func (s *RetryService) reloadAttachments(ctx context.Context, msg *model.Message) ([]*model.Attachment, error) {
	ids, err := s.messages.AttachmentIDs(ctx, msg.ID)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		return s.attachments.ListByIDsForBooking(ctx, msg.BookingID, ids)
	}
	return s.attachments.ListByBooking(ctx, msg.BookingID)
}

// RetryBatch sweeps eligible failed messages, optionally filtered by
// channel, spacing attempts by BatchDelay.
func (s *RetryService) RetryBatch(ctx context.Context, limit int, channel *model.Channel) (*model.BatchRetryResult, error) {
	eligible, err := s.messages.ListFailedRetryable(ctx, limit, channel)
	if err != nil {
		return nil, err
	}

	result := &model.BatchRetryResult{}
	for i, msg := range eligible {
		if i > 0 && s.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(s.BatchDelay):
			}
		}

		result.Attempted++
		r, err := s.Retry(ctx, msg.ID)
		if err != nil || !r.Success {
			result.Failed++
			continue
		}
		result.Succeeded++
	}

	logger.Info("Batch retry finished",
		"attempted", result.Attempted, "succeeded", result.Succeeded, "failed", result.Failed)
	return result, nil
}
