package model

import "time"

// Booking is a customer reservation imported from the upstream platform.
// This subsystem only ever mutates TicketsSentAt and AudioGuideSentAt;
// everything else is owned by the import/webhook sync.
type Booking struct {
	ID              int64      `json:"id"               db:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	ReferenceNumber string     `json:"reference_number" db:"reference_number" gorm:"column:reference_number;index"`
	CustomerName    string     `json:"customer_name"    db:"customer_name"    gorm:"column:customer_name;not null"`
	CustomerPhone   string     `json:"customer_phone,omitempty" db:"customer_phone" gorm:"column:customer_phone"`
	CustomerEmail   string     `json:"customer_email,omitempty" db:"customer_email" gorm:"column:customer_email"`
	Language        string     `json:"language"         db:"language"         gorm:"column:language;not null;default:en"`
	HasAudioGuide   bool       `json:"has_audio_guide"  db:"has_audio_guide"  gorm:"column:has_audio_guide;not null;default:false"`
	VoxDynamicLink  string     `json:"vox_dynamic_link,omitempty" db:"vox_dynamic_link" gorm:"column:vox_dynamic_link"`
	TourDate        time.Time  `json:"tour_date"        db:"tour_date"        gorm:"column:tour_date"`
	Pax             int        `json:"pax"              db:"pax"              gorm:"column:pax;not null;default:1"`
	TicketsSentAt   *time.Time `json:"tickets_sent_at,omitempty"     db:"tickets_sent_at"     gorm:"column:tickets_sent_at"`
	AudioGuideSentAt *time.Time `json:"audio_guide_sent_at,omitempty" db:"audio_guide_sent_at" gorm:"column:audio_guide_sent_at"`
	CreatedAt       time.Time  `json:"created_at"       db:"created_at"       gorm:"column:created_at;autoCreateTime"`
}

func (Booking) TableName() string { return "bookings" }

func (b *Booking) HasPhone() bool { return b.CustomerPhone != "" }
func (b *Booking) HasEmail() bool { return b.CustomerEmail != "" }
