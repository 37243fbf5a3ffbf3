package repository

import (
	"context"

	"github.com/voxtour/ticket-gateway/internal/model"
	"github.com/voxtour/ticket-gateway/pkg/pg"
)

type AttachmentRepository struct {
	*pg.DB
}

func NewAttachmentRepository(db *pg.DB) *AttachmentRepository {
	return &AttachmentRepository{
		db,
	}
}

func (r *AttachmentRepository) Create(ctx context.Context, a *model.Attachment) (*model.Attachment, error) {
	entity := toAttachmentEntity(a)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toAttachmentModel(entity), nil
}

// ListByIDsForBooking resolves attachment ids strictly scoped to one
// booking. Ids belonging to another booking simply do not come back; the
// caller compares counts to detect the ownership violation.
func (r *AttachmentRepository) ListByIDsForBooking(ctx context.Context, bookingID int64, ids []int64) ([]*model.Attachment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var entities []*AttachmentEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("booking_id = ? AND id IN ?", bookingID, ids).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toAttachmentModels(entities), nil
}

func (r *AttachmentRepository) ListByBooking(ctx context.Context, bookingID int64) ([]*model.Attachment, error) {
	var entities []*AttachmentEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toAttachmentModels(entities), nil
}
