package repository

import (
	"context"
	"errors"
	"time"

	"github.com/voxtour/ticket-gateway/internal/model"
	"github.com/voxtour/ticket-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a message does not exist.
	ErrNotFound = errors.New("message not found")
	// ErrInvalidTransition is returned for a status update that would move
	// backwards through the lifecycle.
	ErrInvalidTransition = errors.New("invalid message status transition")
)

type MessageRepository struct {
	*pg.DB
}

func NewMessageRepository(db *pg.DB) *MessageRepository {
	return &MessageRepository{
		db,
	}
}

func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	entity := toMessageEntity(msg)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toMessageModel(entity), nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*model.Message, error) {
	var entity MessageEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toMessageModel(&entity), nil
}

func (r *MessageRepository) GetByExternalID(ctx context.Context, externalID string) (*model.Message, error) {
	var entity MessageEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "external_id = ?", externalID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toMessageModel(&entity), nil
}

// UpdateStatus moves a message forward through its lifecycle, stamping the
// matching timestamp column. Backward transitions are rejected.
func (r *MessageRepository) UpdateStatus(ctx context.Context, id int64, next model.MessageStatus, errorMessage string) (*model.Message, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	updates := map[string]interface{}{"status": string(next)}
	switch next {
	case model.MessageStatusSent:
		updates["sent_at"] = now
		updates["error_message"] = ""
	case model.MessageStatusDelivered:
		updates["delivered_at"] = now
	case model.MessageStatusRead:
		updates["read_at"] = now
	case model.MessageStatusFailed:
		updates["failed_at"] = now
		updates["error_message"] = errorMessage
	}

	if err := r.Write(ctx).WithContext(ctx).Model(&MessageEntity{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// SetExternalID records the vendor's message id for callback correlation.
func (r *MessageRepository) SetExternalID(ctx context.Context, id int64, externalID string) error {
	return r.Write(ctx).WithContext(ctx).Model(&MessageEntity{}).
		Where("id = ?", id).
		Update("external_id", externalID).Error
}

// LinkAttachments associates attachments with a message. Called after the
// message row exists and before the vendor call.
func (r *MessageRepository) LinkAttachments(ctx context.Context, messageID int64, attachmentIDs []int64) error {
	for _, aid := range attachmentIDs {
		link := &MessageAttachmentEntity{MessageID: messageID, AttachmentID: aid}
		if err := r.Write(ctx).WithContext(ctx).Create(link).Error; err != nil {
			return err
		}
	}
	return nil
}

// AttachmentIDs returns the ids linked to a message, in link order.
func (r *MessageRepository) AttachmentIDs(ctx context.Context, messageID int64) ([]int64, error) {
	var links []*MessageAttachmentEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("attachment_id ASC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(links))
	for i, l := range links {
		ids[i] = l.AttachmentID
	}
	return ids, nil
}

// RecordRetryFailure bumps retry_count and overwrites the error text on the
// original failed message. No new message row is created on a failed retry.
func (r *MessageRepository) RecordRetryFailure(ctx context.Context, id int64, errorMessage string) error {
	res := r.Write(ctx).WithContext(ctx).Model(&MessageEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"retry_count":   gorm.Expr("retry_count + 1"),
			"error_message": errorMessage,
			"failed_at":     time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetNote annotates a message without touching its status. Used to point a
// failed original at the message that successfully replaced it.
func (r *MessageRepository) SetNote(ctx context.Context, id int64, note string) error {
	return r.Write(ctx).WithContext(ctx).Model(&MessageEntity{}).
		Where("id = ?", id).
		Update("note", note).Error
}

// ListFailedRetryable returns failed messages still under the retry cap,
// oldest first, optionally filtered by channel.
func (r *MessageRepository) ListFailedRetryable(ctx context.Context, limit int, channel *model.Channel) ([]*model.Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q := r.Read(ctx).WithContext(ctx).
		Where("status = ? AND retry_count < ?", string(model.MessageStatusFailed), model.MaxRetryAttempts)
	if channel != nil {
		q = q.Where("channel = ?", string(*channel))
	}

	var entities []*MessageEntity
	if err := q.Order("created_at ASC").Limit(limit).Find(&entities).Error; err != nil {
		return nil, err
	}
	return toMessageModels(entities), nil
}

func (r *MessageRepository) List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&MessageEntity{})

	if f.BookingID != nil {
		q = q.Where("booking_id = ?", *f.BookingID)
	}
	if f.Channel != nil {
		q = q.Where("channel = ?", string(*f.Channel))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.Recipient != nil && *f.Recipient != "" {
		q = q.Where("recipient = ?", *f.Recipient)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*MessageEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toMessageModels(entities), total, nil
}
