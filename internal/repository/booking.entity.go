package repository

import (
	"time"

	"github.com/voxtour/ticket-gateway/internal/model"
)

type BookingEntity struct {
	ID               int64      `db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	ReferenceNumber  string     `db:"reference_number"  gorm:"column:reference_number;index"`
	CustomerName     string     `db:"customer_name"     gorm:"column:customer_name;not null"`
	CustomerPhone    string     `db:"customer_phone"    gorm:"column:customer_phone"`
	CustomerEmail    string     `db:"customer_email"    gorm:"column:customer_email"`
	Language         string     `db:"language"          gorm:"column:language;not null;default:en"`
	HasAudioGuide    bool       `db:"has_audio_guide"   gorm:"column:has_audio_guide;not null;default:false"`
	VoxDynamicLink   string     `db:"vox_dynamic_link"  gorm:"column:vox_dynamic_link"`
	TourDate         time.Time  `db:"tour_date"         gorm:"column:tour_date"`
	Pax              int        `db:"pax"               gorm:"column:pax;not null;default:1"`
	TicketsSentAt    *time.Time `db:"tickets_sent_at"   gorm:"column:tickets_sent_at"`
	AudioGuideSentAt *time.Time `db:"audio_guide_sent_at" gorm:"column:audio_guide_sent_at"`
	CreatedAt        time.Time  `db:"created_at"        gorm:"column:created_at;autoCreateTime"`
}

func (BookingEntity) TableName() string { return "bookings" }

func toBookingEntity(b *model.Booking) *BookingEntity {
	if b == nil {
		return nil
	}
	return &BookingEntity{
		ID:               b.ID,
		ReferenceNumber:  b.ReferenceNumber,
		CustomerName:     b.CustomerName,
		CustomerPhone:    b.CustomerPhone,
		CustomerEmail:    b.CustomerEmail,
		Language:         b.Language,
		HasAudioGuide:    b.HasAudioGuide,
		VoxDynamicLink:   b.VoxDynamicLink,
		TourDate:         b.TourDate,
		Pax:              b.Pax,
		TicketsSentAt:    b.TicketsSentAt,
		AudioGuideSentAt: b.AudioGuideSentAt,
		CreatedAt:        b.CreatedAt,
	}
}

func toBookingModel(e *BookingEntity) *model.Booking {
	if e == nil {
		return nil
	}
	return &model.Booking{
		ID:               e.ID,
		ReferenceNumber:  e.ReferenceNumber,
		CustomerName:     e.CustomerName,
		CustomerPhone:    e.CustomerPhone,
		CustomerEmail:    e.CustomerEmail,
		Language:         e.Language,
		HasAudioGuide:    e.HasAudioGuide,
		VoxDynamicLink:   e.VoxDynamicLink,
		TourDate:         e.TourDate,
		Pax:              e.Pax,
		TicketsSentAt:    e.TicketsSentAt,
		AudioGuideSentAt: e.AudioGuideSentAt,
		CreatedAt:        e.CreatedAt,
	}
}
