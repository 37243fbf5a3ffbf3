package model

import (
	"errors"
	"strings"
)

// DispatchRequest is the input for sending a booking's tickets.
// Either Language (template resolution) or CustomMessage is used; a custom
// message bypasses templates entirely.
type DispatchRequest struct {
	BookingID     int64
	Language      string
	AttachmentIDs []int64
	CustomMessage *CustomMessage
	ForceChannel  Channel // optional operator override, empty means auto
}

// Validate checks the request shape only. The empty-attachments rule is a
// booking precondition checked by the dispatcher after the booking loads,
// so booking-level errors always win over request-level ones.
func (r DispatchRequest) Validate() error {
	if r.BookingID == 0 {
		return errors.New("booking_id is required")
	}
	if r.CustomMessage != nil {
		if err := r.CustomMessage.Validate(); err != nil {
			return err
		}
	}
	if r.ForceChannel != "" && !r.ForceChannel.Valid() {
		return ErrUnknownChannel
	}
	return nil
}

// CustomMessage replaces template-resolved content for operator sends.
type CustomMessage struct {
	Subject string
	Content string
}

func (c CustomMessage) Validate() error {
	if strings.TrimSpace(c.Subject) == "" {
		return errors.New("custom message subject cannot be empty")
	}
	if strings.TrimSpace(c.Content) == "" {
		return errors.New("custom message content cannot be empty")
	}
	return nil
}

// ChannelStatus is one channel's individual outcome within a dispatch call.
type ChannelStatus struct {
	Success   bool          `json:"success"`
	Status    MessageStatus `json:"status"`
	Recipient string        `json:"recipient"`
	Error     string        `json:"error,omitempty"`
}

// DispatchResult aggregates per-channel outcomes of one dispatch call.
// Success means at least one ticket-carrying channel got through; a partial
// failure is still listed in Errors so it is never silently dropped.
type DispatchResult struct {
	Success       bool                      `json:"success"`
	ChannelUsed   string                    `json:"channel_used"`
	Channels      []Channel                 `json:"channels"`
	ChannelStatus map[Channel]ChannelStatus `json:"channel_status"`
	Messages      []*Message                `json:"messages"`
	Errors        []string                  `json:"errors,omitempty"`
}

// RetryResult is the outcome of retrying one failed message.
type RetryResult struct {
	Success    bool     `json:"success"`
	Original   *Message `json:"original"`
	NewMessage *Message `json:"new_message,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// BatchRetryResult aggregates a batch retry run.
type BatchRetryResult struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Precondition errors surfaced to the caller before any sender is invoked.
var (
	ErrNoAttachments        = errors.New("at least one attachment is required")
	ErrMissingReference     = errors.New("booking has no reference number")
	ErrMissingAudioLink     = errors.New("audio guide booking has no audio guide link")
	ErrAttachmentOwnership  = errors.New("attachment does not belong to booking")
	ErrNoContactInformation = errors.New("booking has no contact information")
	ErrSMSCannotCarryTicket = errors.New("sms cannot carry a pdf ticket and no email is available")
)
