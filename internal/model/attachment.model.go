package model

import "time"

// Attachment is a PDF ticket document owned by exactly one booking.
// Ownership is security relevant: a dispatch request referencing an
// attachment of another booking is rejected outright.
type Attachment struct {
	ID          int64     `json:"id"           db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	BookingID   int64     `json:"booking_id"   db:"booking_id"   gorm:"column:booking_id;not null;index"`
	Booking     *Booking  `json:"-"                               gorm:"foreignKey:BookingID;references:ID;constraint:OnDelete:CASCADE"`
	FileName    string    `json:"file_name"    db:"file_name"    gorm:"column:file_name;not null"`
	StoragePath string    `json:"storage_path" db:"storage_path" gorm:"column:storage_path;not null"`
	ContentType string    `json:"content_type" db:"content_type" gorm:"column:content_type;not null;default:application/pdf"`
	Size        int64     `json:"size"         db:"size"         gorm:"column:size;not null;default:0"`
	CreatedAt   time.Time `json:"created_at"   db:"created_at"   gorm:"column:created_at;autoCreateTime"`
}

func (Attachment) TableName() string { return "attachments" }
