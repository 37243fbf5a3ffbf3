package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voxtour/ticket-gateway/internal/capability"
	gateway "github.com/voxtour/ticket-gateway/internal/gateways"
	"github.com/voxtour/ticket-gateway/internal/model"
	"github.com/voxtour/ticket-gateway/pkg/logger"
	"github.com/voxtour/ticket-gateway/pkg/prom"
)

const attachmentURLTTL = 60 * time.Minute

var (
	ErrNoRecipient = errors.New("booking has no recipient for this channel")
)

// MessageRepository is the persistence contract the senders and
// coordinators need.
type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) (*model.Message, error)
	GetByID(ctx context.Context, id int64) (*model.Message, error)
	GetByExternalID(ctx context.Context, externalID string) (*model.Message, error)
	UpdateStatus(ctx context.Context, id int64, next model.MessageStatus, errorMessage string) (*model.Message, error)
	SetExternalID(ctx context.Context, id int64, externalID string) error
	LinkAttachments(ctx context.Context, messageID int64, attachmentIDs []int64) error
	AttachmentIDs(ctx context.Context, messageID int64) ([]int64, error)
	RecordRetryFailure(ctx context.Context, id int64, errorMessage string) error
	SetNote(ctx context.Context, id int64, note string) error
	ListFailedRetryable(ctx context.Context, limit int, channel *model.Channel) ([]*model.Message, error)
	List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error)
}

// AttachmentStore serves ticket documents. Vendors fetch media over
// short-lived URLs so storage credentials never leave this service.
type AttachmentStore interface {
	Exists(ctx context.Context, a *model.Attachment) (bool, error)
	GetBytes(ctx context.Context, a *model.Attachment) ([]byte, error)
	GetTemporaryURL(ctx context.Context, a *model.Attachment, ttl time.Duration) (string, error)
}

// MessagingGateway is the WhatsApp/SMS vendor contract.
type MessagingGateway interface {
	Send(ctx context.Context, req *gateway.SendMessageRequest) (*gateway.SendMessageResponse, error)
}

// EmailGateway is the email vendor contract.
type EmailGateway interface {
	Send(ctx context.Context, req *gateway.SendEmailRequest) (*gateway.SendEmailResponse, error)
}

// SendInput is one rendered channel attempt.
type SendInput struct {
	Booking     *model.Booking
	Subject     string
	Body        string
	Attachments []*model.Attachment
}

// ChannelSender performs one delivery attempt on one channel.
//
// Send is the dispatch path: it creates the Message record up front and
// walks it through pending -> queued -> sent/failed, so a failed vendor call
// still leaves an auditable failed row.
//
// Resend is the retry path: the vendor call happens first and a new Message
// row is only created when it succeeds, because a failed retry is recorded
// on the original message instead.
type ChannelSender interface {
	Channel() model.Channel
	Send(ctx context.Context, in SendInput) (*model.Message, error)
	Resend(ctx context.Context, in SendInput) (*model.Message, error)
}

// media is one hosted attachment handed to a vendor: a short-lived URL
// plus the name the recipient should see.
type media struct {
	URL      string
	FileName string
}

// transport is the channel-specific part of a sender.
type transport interface {
	channel() model.Channel
	recipient(b *model.Booking) (string, error)
	carriesAttachments() bool
	call(ctx context.Context, recipient, subject, body string, attachments []media) (externalID string, err error)
}

type sender struct {
	t        transport
	messages MessageRepository
	store    AttachmentStore
}

func newSender(t transport, messages MessageRepository, store AttachmentStore) *sender {
	return &sender{t: t, messages: messages, store: store}
}

func (s *sender) Channel() model.Channel { return s.t.channel() }

func (s *sender) Send(ctx context.Context, in SendInput) (*model.Message, error) {
	recipient, err := s.t.recipient(in.Booking)
	if err != nil {
		return nil, err
	}

	msg, err := s.messages.Create(ctx, &model.Message{
		BookingID: in.Booking.ID,
		Channel:   s.t.channel(),
		Direction: model.DirectionOutbound,
		Recipient: recipient,
		Subject:   in.Subject,
		Content:   in.Body,
		Status:    model.MessageStatusPending,
	})
	if err != nil {
		return nil, err
	}

	if s.t.carriesAttachments() && len(in.Attachments) > 0 {
		ids := make([]int64, len(in.Attachments))
		for i, a := range in.Attachments {
			ids[i] = a.ID
		}
		if err := s.messages.LinkAttachments(ctx, msg.ID, ids); err != nil {
			return nil, err
		}
	}

	if msg, err = s.messages.UpdateStatus(ctx, msg.ID, model.MessageStatusQueued, ""); err != nil {
		return nil, err
	}

	externalID, sendErr := s.attempt(ctx, recipient, in)
	if sendErr != nil {
		category := gateway.ClassifyError(sendErr.Error())
		prom.IncDeliverySend(string(s.t.channel()), "failed")
		prom.IncDeliverySendError(string(s.t.channel()), string(category))
		failed, uerr := s.messages.UpdateStatus(ctx, msg.ID, model.MessageStatusFailed,
			fmt.Sprintf("[%s] %s", category, sendErr.Error()))
		if uerr != nil {
			logger.Error("Failed to record send failure", "message_id", msg.ID, "error", uerr)
			return msg, sendErr
		}
		logger.Warn("Channel send failed",
			"channel", string(s.t.channel()), "message_id", msg.ID,
			"category", string(category), "error", sendErr)
		return failed, sendErr
	}

	if err := s.messages.SetExternalID(ctx, msg.ID, externalID); err != nil {
		return msg, err
	}
	sent, err := s.messages.UpdateStatus(ctx, msg.ID, model.MessageStatusSent, "")
	if err != nil {
		return msg, err
	}
	prom.IncDeliverySend(string(s.t.channel()), "sent")
	logger.Info("Channel send accepted",
		"channel", string(s.t.channel()), "message_id", sent.ID, "external_id", externalID)
	return sent, nil
}

func (s *sender) Resend(ctx context.Context, in SendInput) (*model.Message, error) {
	recipient, err := s.t.recipient(in.Booking)
	if err != nil {
		return nil, err
	}

	externalID, sendErr := s.attempt(ctx, recipient, in)
	if sendErr != nil {
		return nil, sendErr
	}

	now := time.Now()
	msg, err := s.messages.Create(ctx, &model.Message{
		BookingID:  in.Booking.ID,
		Channel:    s.t.channel(),
		Direction:  model.DirectionOutbound,
		Recipient:  recipient,
		Subject:    in.Subject,
		Content:    in.Body,
		ExternalID: externalID,
		Status:     model.MessageStatusSent,
		SentAt:     &now,
	})
	if err != nil {
		return nil, err
	}
	if len(in.Attachments) > 0 && s.t.carriesAttachments() {
		ids := make([]int64, len(in.Attachments))
		for i, a := range in.Attachments {
			ids[i] = a.ID
		}
		if err := s.messages.LinkAttachments(ctx, msg.ID, ids); err != nil {
			return msg, err
		}
	}
	return msg, nil
}

func (s *sender) attempt(ctx context.Context, recipient string, in SendInput) (string, error) {
	var attachments []media
	if s.t.carriesAttachments() {
		for _, a := range in.Attachments {
			u, err := s.store.GetTemporaryURL(ctx, a, attachmentURLTTL)
			if err != nil {
				return "", fmt.Errorf("temporary url for attachment %d: %w", a.ID, err)
			}
			attachments = append(attachments, media{URL: u, FileName: a.FileName})
		}
	}
	return s.t.call(ctx, recipient, in.Subject, in.Body, attachments)
}

/* ------------------------------ transports -------------------------------- */

type whatsappTransport struct {
	gw MessagingGateway
}

func (t *whatsappTransport) channel() model.Channel     { return model.ChannelWhatsApp }
func (t *whatsappTransport) carriesAttachments() bool   { return true }
func (t *whatsappTransport) recipient(b *model.Booking) (string, error) {
	p := capability.NormalizePhone(b.CustomerPhone)
	if p == "" {
		return "", ErrNoRecipient
	}
	return p, nil
}

func (t *whatsappTransport) call(ctx context.Context, recipient, _, body string, attachments []media) (string, error) {
	urls := make([]string, len(attachments))
	for i, a := range attachments {
		urls[i] = a.URL
	}
	resp, err := t.gw.Send(ctx, &gateway.SendMessageRequest{
		To:        recipient,
		Body:      body,
		MediaURLs: urls,
		WhatsApp:  true,
	})
	if err != nil {
		return "", err
	}
	return resp.SID, nil
}

type smsTransport struct {
	gw MessagingGateway
}

func (t *smsTransport) channel() model.Channel   { return model.ChannelSMS }
func (t *smsTransport) carriesAttachments() bool { return false }
func (t *smsTransport) recipient(b *model.Booking) (string, error) {
	p := capability.NormalizePhone(b.CustomerPhone)
	if p == "" {
		return "", ErrNoRecipient
	}
	return p, nil
}

func (t *smsTransport) call(ctx context.Context, recipient, _, body string, _ []media) (string, error) {
	resp, err := t.gw.Send(ctx, &gateway.SendMessageRequest{
		To:   recipient,
		Body: body,
	})
	if err != nil {
		return "", err
	}
	return resp.SID, nil
}

type emailTransport struct {
	gw EmailGateway
}

func (t *emailTransport) channel() model.Channel   { return model.ChannelEmail }
func (t *emailTransport) carriesAttachments() bool { return true }
func (t *emailTransport) recipient(b *model.Booking) (string, error) {
	if b.CustomerEmail == "" {
		return "", ErrNoRecipient
	}
	return b.CustomerEmail, nil
}

func (t *emailTransport) call(ctx context.Context, recipient, subject, body string, attachments []media) (string, error) {
	req := &gateway.SendEmailRequest{
		To:       recipient,
		Subject:  subject,
		HTMLBody: body,
	}
	for _, a := range attachments {
		req.Attachments = append(req.Attachments, gateway.EmailAttachment{URL: a.URL, FileName: a.FileName})
	}
	resp, err := t.gw.Send(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.MessageID, nil
}

// NewWhatsAppSender, NewSMSSender and NewEmailSender build the three
// channel senders over their vendor gateways.
func NewWhatsAppSender(gw MessagingGateway, messages MessageRepository, store AttachmentStore) ChannelSender {
	return newSender(&whatsappTransport{gw: gw}, messages, store)
}

func NewSMSSender(gw MessagingGateway, messages MessageRepository, store AttachmentStore) ChannelSender {
	return newSender(&smsTransport{gw: gw}, messages, store)
}

func NewEmailSender(gw EmailGateway, messages MessageRepository, store AttachmentStore) ChannelSender {
	return newSender(&emailTransport{gw: gw}, messages, store)
}
