package model

import (
	"errors"
	"time"
)

// Channel is the delivery channel a message travels on.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
	ChannelEmail    Channel = "email"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelWhatsApp, ChannelSMS, ChannelEmail:
		return true
	}
	return false
}

// Direction of a message relative to the gateway.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// MessageStatus is the lifecycle state of a message. Transitions move
// forward through pending -> queued -> sent -> delivered -> read; failed is
// reachable from any non-terminal state and is the only retryable state.
type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusQueued    MessageStatus = "queued"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// MaxRetryAttempts caps how many times a failed message may be retried.
const MaxRetryAttempts = 3

var statusRank = map[MessageStatus]int{
	MessageStatusPending:   0,
	MessageStatusQueued:    1,
	MessageStatusSent:      2,
	MessageStatusDelivered: 3,
	MessageStatusRead:      4,
}

// CanTransitionTo reports whether moving from s to next keeps the
// append-only forward ordering. failed is allowed from any non-terminal
// state; read is terminal.
func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	if s == MessageStatusFailed || s == MessageStatusRead {
		return false
	}
	if next == MessageStatusFailed {
		return true
	}
	cur, ok := statusRank[s]
	if !ok {
		return false
	}
	nxt, ok := statusRank[next]
	if !ok {
		return false
	}
	return nxt > cur
}

type Message struct {
	ID           int64         `json:"id"            db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	BookingID    int64         `json:"booking_id"    db:"booking_id"    gorm:"column:booking_id;not null;index"`
	Booking      *Booking      `json:"-"                                 gorm:"foreignKey:BookingID;references:ID;constraint:OnDelete:CASCADE"`
	Channel      Channel       `json:"channel"       db:"channel"       gorm:"column:channel;not null;index"`
	Direction    Direction     `json:"direction"     db:"direction"     gorm:"column:direction;not null;default:outbound"`
	Recipient    string        `json:"recipient"     db:"recipient"     gorm:"column:recipient;not null"`
	Subject      string        `json:"subject,omitempty" db:"subject"   gorm:"column:subject"`
	Content      string        `json:"content"       db:"content"       gorm:"column:content;not null"`
	ExternalID   string        `json:"external_id,omitempty" db:"external_id" gorm:"column:external_id;index"`
	Status       MessageStatus `json:"status"        db:"status"        gorm:"column:status;not null;index"`
	ErrorMessage string        `json:"error_message,omitempty" db:"error_message" gorm:"column:error_message"`
	Note         string        `json:"note,omitempty" db:"note"         gorm:"column:note"`
	RetryCount   int           `json:"retry_count"   db:"retry_count"   gorm:"column:retry_count;not null;default:0"`
	SentAt       *time.Time    `json:"sent_at,omitempty"      db:"sent_at"      gorm:"column:sent_at"`
	DeliveredAt  *time.Time    `json:"delivered_at,omitempty" db:"delivered_at" gorm:"column:delivered_at"`
	ReadAt       *time.Time    `json:"read_at,omitempty"      db:"read_at"      gorm:"column:read_at"`
	FailedAt     *time.Time    `json:"failed_at,omitempty"    db:"failed_at"    gorm:"column:failed_at"`
	CreatedAt    time.Time     `json:"created_at"    db:"created_at"    gorm:"column:created_at;autoCreateTime"`

	Attachments []*Attachment `json:"attachments,omitempty" gorm:"many2many:message_attachments"`
}

func (Message) TableName() string { return "messages" }

// Retryable reports whether the retry coordinator may pick this message up.
func (m *Message) Retryable() bool {
	return m.Status == MessageStatusFailed && m.RetryCount < MaxRetryAttempts
}

// MessageFilter controls List queries.
type MessageFilter struct {
	BookingID *int64
	Channel   *Channel
	Statuses  []MessageStatus
	Recipient *string
	From      *time.Time
	To        *time.Time
	Limit     int // default 50
	Offset    int
	Desc      bool // order by created_at
}

var ErrUnknownChannel = errors.New("unknown channel")
