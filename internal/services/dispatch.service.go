package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/voxtour/ticket-gateway/internal/model"
	"github.com/voxtour/ticket-gateway/internal/plan"
	"github.com/voxtour/ticket-gateway/internal/templates"
	"github.com/voxtour/ticket-gateway/pkg/logger"
)

var (
	// ErrDispatchInProgress means another dispatch for the same booking
	// currently holds the per-booking lock.
	ErrDispatchInProgress = errors.New("a dispatch for this booking is already in progress")
)

type BookingRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	StampSent(ctx context.Context, id int64, at time.Time, audioGuide bool) error
}

type AttachmentRepository interface {
	ListByIDsForBooking(ctx context.Context, bookingID int64, ids []int64) ([]*model.Attachment, error)
	ListByBooking(ctx context.Context, bookingID int64) ([]*model.Attachment, error)
}

// CapabilityProber answers whether a phone can receive WhatsApp messages.
type CapabilityProber interface {
	Probe(ctx context.Context, phone string) bool
}

// DispatchLocker guards against concurrent duplicate dispatch for one
// booking. Release is always safe to call.
type DispatchLocker interface {
	Acquire(ctx context.Context, bookingID int64) (release func(), ok bool, err error)
}

// DispatchService orchestrates one ticket send: preconditions, capability
// probe, plan selection, sequential per-channel sends with independent
// failure capture, and booking timestamp stamping.
type DispatchService struct {
	bookings    BookingRepository
	attachments AttachmentRepository
	senders     map[model.Channel]ChannelSender
	prober      CapabilityProber
	resolver    *templates.Resolver
	smsText     templates.NotificationTextProvider
	locker      DispatchLocker

	// StampAudioGuide controls whether a successful dispatch for an
	// audio-guide booking also stamps audio_guide_sent_at, regardless of
	// which channel carried the content. Mirrors upstream behavior; kept as
	// a named policy so the coupling stays visible.
	StampAudioGuide bool
}

func NewDispatchService(
	bookings BookingRepository,
	attachments AttachmentRepository,
	senders []ChannelSender,
	prober CapabilityProber,
	resolver *templates.Resolver,
	smsText templates.NotificationTextProvider,
	locker DispatchLocker,
) *DispatchService {
	byChannel := make(map[model.Channel]ChannelSender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	return &DispatchService{
		bookings:        bookings,
		attachments:     attachments,
		senders:         byChannel,
		prober:          prober,
		resolver:        resolver,
		smsText:         smsText,
		locker:          locker,
		StampAudioGuide: true,
	}
}

// channelOutcome is one channel's result inside a dispatch run.
type channelOutcome struct {
	step    plan.Step
	message *model.Message
	err     error
}

// SendTicket runs the full dispatch flow. Precondition violations return an
// error with no Message created and no vendor call made; per-channel send
// failures are captured into the result instead of propagating.
func (s *DispatchService) SendTicket(ctx context.Context, req model.DispatchRequest) (*model.DispatchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	booking, err := s.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.ReferenceNumber == "" {
		return nil, model.ErrMissingReference
	}
	if booking.HasAudioGuide && booking.VoxDynamicLink == "" {
		return nil, model.ErrMissingAudioLink
	}
	if len(req.AttachmentIDs) == 0 {
		return nil, model.ErrNoAttachments
	}

	// Ownership check, second line of defense after request validation.
	attachments, err := s.attachments.ListByIDsForBooking(ctx, booking.ID, req.AttachmentIDs)
	if err != nil {
		return nil, err
	}
	if len(attachments) != len(req.AttachmentIDs) {
		logger.Error("Attachment ownership violation rejected",
			"booking_id", booking.ID, "requested", len(req.AttachmentIDs), "owned", len(attachments))
		return nil, model.ErrAttachmentOwnership
	}

	if s.locker != nil {
		release, ok, lerr := s.locker.Acquire(ctx, booking.ID)
		if lerr != nil {
			return nil, lerr
		}
		if !ok {
			return nil, ErrDispatchInProgress
		}
		defer release()
	}

	caps := plan.Capabilities{
		HasPhone: booking.HasPhone(),
		HasEmail: booking.HasEmail(),
	}
	if caps.HasPhone {
		caps.HasWhatsApp = s.prober.Probe(ctx, booking.CustomerPhone)
	}

	var p plan.Plan
	if req.ForceChannel != "" {
		p, err = plan.SelectForced(caps, req.ForceChannel)
	} else {
		p, err = plan.Select(caps)
	}
	if err != nil {
		return nil, err
	}

	outcomes := make([]channelOutcome, 0, len(p.Steps))
	for _, step := range p.Steps {
		outcomes = append(outcomes, s.attemptStep(ctx, booking, step, attachments, req.CustomMessage))
	}

	result := foldOutcomes(p, outcomes)

	if result.Success {
		now := time.Now()
		audio := s.StampAudioGuide && booking.HasAudioGuide
		if err := s.bookings.StampSent(ctx, booking.ID, now, audio); err != nil {
			logger.Error("Failed to stamp booking sent timestamps", "booking_id", booking.ID, "error", err)
		}
	}

	logger.Info("Dispatch finished",
		"booking_id", booking.ID, "success", result.Success,
		"channels", len(result.Channels), "errors", len(result.Errors))

	return result, nil
}

// attemptStep renders content for one channel and invokes its sender. A
// sender failure is returned in the outcome, never propagated, so sibling
// channels still get their attempt.
func (s *DispatchService) attemptStep(ctx context.Context, booking *model.Booking, step plan.Step, attachments []*model.Attachment, custom *model.CustomMessage) channelOutcome {
	sender, ok := s.senders[step.Channel]
	if !ok {
		return channelOutcome{step: step, err: fmt.Errorf("%w: %s", model.ErrUnknownChannel, step.Channel)}
	}

	subject, body, err := s.renderContent(booking, step, custom)
	if err != nil {
		return channelOutcome{step: step, err: err}
	}

	in := SendInput{Booking: booking, Subject: subject, Body: body}
	if step.Role == plan.RoleTicketCarrier {
		in.Attachments = attachments
	}

	msg, err := sender.Send(ctx, in)
	return channelOutcome{step: step, message: msg, err: err}
}

func (s *DispatchService) renderContent(booking *model.Booking, step plan.Step, custom *model.CustomMessage) (string, string, error) {
	// Notification-only SMS uses the configured short text, not a ticket
	// template; the ticket itself travels on the carrier channel.
	if step.Role == plan.RoleNotification {
		return "", s.smsText.NotificationText(booking.Language), nil
	}

	if custom != nil {
		return custom.Subject, custom.Content, nil
	}

	variant := templates.VariantStandard
	if booking.HasAudioGuide {
		variant = templates.VariantAudioGuide
	}
	tmpl, err := s.resolver.Resolve(step.Channel, booking.Language, variant)
	if err != nil {
		return "", "", err
	}
	subject, body := tmpl.Render(map[string]string{
		"customer_name":    booking.CustomerName,
		"reference_number": booking.ReferenceNumber,
		"tour_date":        booking.TourDate.Format("2006-01-02 15:04"),
		"pax":              strconv.Itoa(booking.Pax),
		"audio_guide_link": booking.VoxDynamicLink,
	})
	return subject, body, nil
}

// foldOutcomes aggregates per-channel results. Success means at least one
// ticket-carrying channel got through; notification-only failures are
// surfaced in Errors but never decide the aggregate.
func foldOutcomes(p plan.Plan, outcomes []channelOutcome) *model.DispatchResult {
	result := &model.DispatchResult{
		ChannelUsed:   p.Description,
		ChannelStatus: make(map[model.Channel]model.ChannelStatus, len(outcomes)),
	}

	for _, o := range outcomes {
		result.Channels = append(result.Channels, o.step.Channel)

		status := model.ChannelStatus{}
		if o.message != nil {
			status.Status = o.message.Status
			status.Recipient = o.message.Recipient
			result.Messages = append(result.Messages, o.message)
		}
		if o.err != nil {
			status.Error = o.err.Error()
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", o.step.Channel, o.err.Error()))
			if o.step.Role == plan.RoleNotification {
				logger.Warn("Notification channel failed, non-critical",
					"channel", string(o.step.Channel), "error", o.err)
			}
		} else {
			status.Success = true
			if o.step.Role == plan.RoleTicketCarrier {
				result.Success = true
			}
		}
		result.ChannelStatus[o.step.Channel] = status
	}

	return result
}

// DetectChannel computes the delivery plan preview for a booking without
// sending anything. The plan is recomputed on every call, never stored.
func (s *DispatchService) DetectChannel(ctx context.Context, bookingID int64) (plan.Plan, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return plan.Plan{}, err
	}
	caps := plan.Capabilities{
		HasPhone: booking.HasPhone(),
		HasEmail: booking.HasEmail(),
	}
	if caps.HasPhone {
		caps.HasWhatsApp = s.prober.Probe(ctx, booking.CustomerPhone)
	}
	return plan.Select(caps)
}
