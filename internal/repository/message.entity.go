package repository

import (
	"time"

	"github.com/voxtour/ticket-gateway/internal/model"
)

type MessageEntity struct {
	ID           int64      `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	BookingID    int64      `db:"booking_id"    gorm:"column:booking_id;not null;index"`
	Channel      string     `db:"channel"       gorm:"column:channel;not null;index"`
	Direction    string     `db:"direction"     gorm:"column:direction;not null;default:outbound"`
	Recipient    string     `db:"recipient"     gorm:"column:recipient;not null"`
	Subject      string     `db:"subject"       gorm:"column:subject"`
	Content      string     `db:"content"       gorm:"column:content;not null"`
	ExternalID   string     `db:"external_id"   gorm:"column:external_id;index"`
	Status       string     `db:"status"        gorm:"column:status;not null;index"`
	ErrorMessage string     `db:"error_message" gorm:"column:error_message"`
	Note         string     `db:"note"          gorm:"column:note"`
	RetryCount   int        `db:"retry_count"   gorm:"column:retry_count;not null;default:0"`
	SentAt       *time.Time `db:"sent_at"       gorm:"column:sent_at"`
	DeliveredAt  *time.Time `db:"delivered_at"  gorm:"column:delivered_at"`
	ReadAt       *time.Time `db:"read_at"       gorm:"column:read_at"`
	FailedAt     *time.Time `db:"failed_at"     gorm:"column:failed_at"`
	CreatedAt    time.Time  `db:"created_at"    gorm:"column:created_at;autoCreateTime"`
}

func (MessageEntity) TableName() string { return "messages" }

// MessageAttachmentEntity links a message to the attachments that rode on
// it. Links are created after the message row exists and before the vendor
// call.
type MessageAttachmentEntity struct {
	MessageID    int64 `db:"message_id"    gorm:"column:message_id;primaryKey"`
	AttachmentID int64 `db:"attachment_id" gorm:"column:attachment_id;primaryKey"`
}

func (MessageAttachmentEntity) TableName() string { return "message_attachments" }

func toMessageEntity(m *model.Message) *MessageEntity {
	if m == nil {
		return nil
	}
	return &MessageEntity{
		ID:           m.ID,
		BookingID:    m.BookingID,
		Channel:      string(m.Channel),
		Direction:    string(m.Direction),
		Recipient:    m.Recipient,
		Subject:      m.Subject,
		Content:      m.Content,
		ExternalID:   m.ExternalID,
		Status:       string(m.Status),
		ErrorMessage: m.ErrorMessage,
		Note:         m.Note,
		RetryCount:   m.RetryCount,
		SentAt:       m.SentAt,
		DeliveredAt:  m.DeliveredAt,
		ReadAt:       m.ReadAt,
		FailedAt:     m.FailedAt,
		CreatedAt:    m.CreatedAt,
	}
}

func toMessageModel(e *MessageEntity) *model.Message {
	if e == nil {
		return nil
	}
	return &model.Message{
		ID:           e.ID,
		BookingID:    e.BookingID,
		Channel:      model.Channel(e.Channel),
		Direction:    model.Direction(e.Direction),
		Recipient:    e.Recipient,
		Subject:      e.Subject,
		Content:      e.Content,
		ExternalID:   e.ExternalID,
		Status:       model.MessageStatus(e.Status),
		ErrorMessage: e.ErrorMessage,
		Note:         e.Note,
		RetryCount:   e.RetryCount,
		SentAt:       e.SentAt,
		DeliveredAt:  e.DeliveredAt,
		ReadAt:       e.ReadAt,
		FailedAt:     e.FailedAt,
		CreatedAt:    e.CreatedAt,
	}
}

func toMessageModels(entities []*MessageEntity) []*model.Message {
	if entities == nil {
		return nil
	}
	models := make([]*model.Message, len(entities))
	for i, e := range entities {
		models[i] = toMessageModel(e)
	}
	return models
}
