package plan

import (
	"github.com/voxtour/ticket-gateway/internal/model"
)

// Role says what a channel is for within a plan. Only ticket carriers count
// toward overall dispatch success; a notification-only failure is logged and
// surfaced but never flips the aggregate result.
type Role string

const (
	RoleTicketCarrier Role = "ticket_carrier"
	RoleNotification  Role = "notification"
)

// Step is one channel attempt in a plan, in order.
type Step struct {
	Channel model.Channel
	Role    Role
}

// Plan is the ephemeral outcome of the capability decision table. It is
// recomputed on every dispatch and every preview call, never persisted.
type Plan struct {
	Steps        []Step
	DualDelivery bool
	PDFSupported bool
	Description  string
}

// Channels returns the channels in attempt order.
func (p Plan) Channels() []model.Channel {
	out := make([]model.Channel, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Channel
	}
	return out
}

// Capabilities are the three booleans the decision table is total over.
type Capabilities struct {
	HasPhone    bool
	HasWhatsApp bool
	HasEmail    bool
}

// Select maps contact capabilities to exactly one of six plans. The table:
//
//	phone  whatsapp  email  -> plan
//	T      T         T         dual whatsapp+email, both carry the pdf
//	T      T         F         whatsapp only
//	T      F         T         email carries the pdf, sms notifies
//	F      -         T         email only
//	T      F         F         error: sms alone cannot carry a pdf
//	F      -         F         error: no contact information
func Select(c Capabilities) (Plan, error) {
	switch {
	case c.HasPhone && c.HasWhatsApp && c.HasEmail:
		return Plan{
			Steps: []Step{
				{Channel: model.ChannelWhatsApp, Role: RoleTicketCarrier},
				{Channel: model.ChannelEmail, Role: RoleTicketCarrier},
			},
			DualDelivery: true,
			PDFSupported: true,
			Description:  "dual delivery: WhatsApp and Email, ticket on both",
		}, nil
	case c.HasPhone && c.HasWhatsApp:
		return Plan{
			Steps:        []Step{{Channel: model.ChannelWhatsApp, Role: RoleTicketCarrier}},
			PDFSupported: true,
			Description:  "WhatsApp only, ticket attached",
		}, nil
	case c.HasPhone && c.HasEmail:
		return Plan{
			Steps: []Step{
				{Channel: model.ChannelEmail, Role: RoleTicketCarrier},
				{Channel: model.ChannelSMS, Role: RoleNotification},
			},
			PDFSupported: true,
			Description:  "Email carries the ticket, SMS notification",
		}, nil
	case c.HasEmail:
		return Plan{
			Steps:        []Step{{Channel: model.ChannelEmail, Role: RoleTicketCarrier}},
			PDFSupported: true,
			Description:  "Email only, ticket attached",
		}, nil
	case c.HasPhone:
		return Plan{}, model.ErrSMSCannotCarryTicket
	default:
		return Plan{}, model.ErrNoContactInformation
	}
}

// SelectForced builds a single-channel plan for an operator-forced send.
// Forcing never fabricates contact info: the required field must exist.
func SelectForced(c Capabilities, ch model.Channel) (Plan, error) {
	switch ch {
	case model.ChannelWhatsApp:
		if !c.HasPhone {
			return Plan{}, model.ErrNoContactInformation
		}
		return Plan{
			Steps:        []Step{{Channel: model.ChannelWhatsApp, Role: RoleTicketCarrier}},
			PDFSupported: true,
			Description:  "forced WhatsApp",
		}, nil
	case model.ChannelEmail:
		if !c.HasEmail {
			return Plan{}, model.ErrNoContactInformation
		}
		return Plan{
			Steps:        []Step{{Channel: model.ChannelEmail, Role: RoleTicketCarrier}},
			PDFSupported: true,
			Description:  "forced Email",
		}, nil
	case model.ChannelSMS:
		if !c.HasPhone {
			return Plan{}, model.ErrNoContactInformation
		}
		// A forced SMS is a notification send, it can never carry the pdf.
		return Plan{
			Steps:        []Step{{Channel: model.ChannelSMS, Role: RoleNotification}},
			PDFSupported: false,
			Description:  "forced SMS, notification text only",
		}, nil
	default:
		return Plan{}, model.ErrUnknownChannel
	}
}
