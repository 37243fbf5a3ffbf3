package fixtures

import (
	"time"

	"github.com/voxtour/ticket-gateway/internal/model"
)

func NewTestBooking(id int64, phone, email string) *model.Booking {
	return &model.Booking{
		ID:              id,
		ReferenceNumber: "VT-2026-0001",
		CustomerName:    "Ana Martins",
		CustomerPhone:   phone,
		CustomerEmail:   email,
		Language:        "en",
		TourDate:        time.Date(2026, 9, 12, 10, 0, 0, 0, time.UTC),
		Pax:             2,
		CreatedAt:       time.Now(),
	}
}

func NewTestBookingWithAudioGuide(id int64, phone, email string) *model.Booking {
	b := NewTestBooking(id, phone, email)
	b.HasAudioGuide = true
	b.VoxDynamicLink = "https://vox.example/g/abc123"
	return b
}

func NewTestAttachment(id, bookingID int64) *model.Attachment {
	return &model.Attachment{
		ID:          id,
		BookingID:   bookingID,
		FileName:    "tickets.pdf",
		StoragePath: "bookings/tickets.pdf",
		ContentType: "application/pdf",
		Size:        4096,
		CreatedAt:   time.Now(),
	}
}

func NewTestMessage(id, bookingID int64, channel model.Channel, status model.MessageStatus) *model.Message {
	return &model.Message{
		ID:        id,
		BookingID: bookingID,
		Channel:   channel,
		Direction: model.DirectionOutbound,
		Recipient: "+15550001111",
		Content:   "Your tickets are attached.",
		Status:    status,
		CreatedAt: time.Now(),
	}
}

func NewTestDispatchRequest(bookingID int64, attachmentIDs ...int64) model.DispatchRequest {
	return model.DispatchRequest{
		BookingID:     bookingID,
		AttachmentIDs: attachmentIDs,
	}
}

var (
	ValidPhoneNumbers = []string{
		"+15550001111",
		"+447911123456",
		"+33612345678",
		"+351912345678",
	}

	InvalidPhoneNumbers = []string{
		"",
		"123",
		"not-a-number",
		"+",
	}
)
