package repository

import (
	"time"

	"github.com/voxtour/ticket-gateway/internal/model"
)

type AttachmentEntity struct {
	ID          int64     `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	BookingID   int64     `db:"booking_id"   gorm:"column:booking_id;not null;index"`
	FileName    string    `db:"file_name"    gorm:"column:file_name;not null"`
	StoragePath string    `db:"storage_path" gorm:"column:storage_path;not null"`
	ContentType string    `db:"content_type" gorm:"column:content_type;not null;default:application/pdf"`
	Size        int64     `db:"size"         gorm:"column:size;not null;default:0"`
	CreatedAt   time.Time `db:"created_at"   gorm:"column:created_at;autoCreateTime"`
}

func (AttachmentEntity) TableName() string { return "attachments" }

func toAttachmentEntity(a *model.Attachment) *AttachmentEntity {
	if a == nil {
		return nil
	}
	return &AttachmentEntity{
		ID:          a.ID,
		BookingID:   a.BookingID,
		FileName:    a.FileName,
		StoragePath: a.StoragePath,
		ContentType: a.ContentType,
		Size:        a.Size,
		CreatedAt:   a.CreatedAt,
	}
}

func toAttachmentModel(e *AttachmentEntity) *model.Attachment {
	if e == nil {
		return nil
	}
	return &model.Attachment{
		ID:          e.ID,
		BookingID:   e.BookingID,
		FileName:    e.FileName,
		StoragePath: e.StoragePath,
		ContentType: e.ContentType,
		Size:        e.Size,
		CreatedAt:   e.CreatedAt,
	}
}

func toAttachmentModels(entities []*AttachmentEntity) []*model.Attachment {
	if entities == nil {
		return nil
	}
	models := make([]*model.Attachment, len(entities))
	for i, e := range entities {
		models[i] = toAttachmentModel(e)
	}
	return models
}
