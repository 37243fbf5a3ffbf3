package e2e

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gateway "github.com/voxtour/ticket-gateway/internal/gateways"
	"github.com/voxtour/ticket-gateway/internal/model"
	"github.com/voxtour/ticket-gateway/internal/processor"
	"github.com/voxtour/ticket-gateway/internal/queue"
	"github.com/voxtour/ticket-gateway/internal/repository"
	"github.com/voxtour/ticket-gateway/internal/services"
	"github.com/voxtour/ticket-gateway/internal/storage"
	"github.com/voxtour/ticket-gateway/internal/templates"
	"github.com/voxtour/ticket-gateway/pkg/pg"
	"github.com/voxtour/ticket-gateway/pkg/redis"
	"github.com/voxtour/ticket-gateway/test/helpers"
)

const (
	testAuthToken   = "test-auth-token"
	testCallbackURL = "https://gateway.example/api/v1/callbacks/status"
)

// fakeMessagingGateway stands in for the WhatsApp/SMS vendor. Failures are
// toggled at runtime so a test can break the vendor and heal it again.
type fakeMessagingGateway struct {
	mu    sync.Mutex
	fail  bool
	calls []*gateway.SendMessageRequest
}

func (g *fakeMessagingGateway) Send(ctx context.Context, req *gateway.SendMessageRequest) (*gateway.SendMessageResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if g.fail {
		return nil, fmt.Errorf("%w: unreachable destination handset", gateway.ErrVendorRejected)
	}
	return &gateway.SendMessageResponse{
		SID:    fmt.Sprintf("SM%04d", len(g.calls)),
		Status: "queued",
	}, nil
}

func (g *fakeMessagingGateway) setFail(fail bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail = fail
}

func (g *fakeMessagingGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type fakeEmailGateway struct {
	mu    sync.Mutex
	fail  bool
	calls []*gateway.SendEmailRequest
}

func (g *fakeEmailGateway) Send(ctx context.Context, req *gateway.SendEmailRequest) (*gateway.SendEmailResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if g.fail {
		return nil, fmt.Errorf("%w: mailbox unavailable", gateway.ErrVendorRejected)
	}
	return &gateway.SendEmailResponse{
		MessageID: fmt.Sprintf("EM%04d", len(g.calls)),
		Status:    "accepted",
	}, nil
}

// fakeProber answers the WhatsApp capability question without a vendor call.
type fakeProber struct{ whatsapp bool }

func (p *fakeProber) Probe(ctx context.Context, phone string) bool { return p.whatsapp }

type testEnv struct {
	DB             *pg.DB
	Redis          *miniredis.Miniredis
	RedisAdapter   redis.RedisAdapter
	BookingRepo    *repository.BookingRepository
	AttachmentRepo *repository.AttachmentRepository
	MessageRepo    *repository.MessageRepository
	Messaging      *fakeMessagingGateway
	Email          *fakeEmailGateway
	Prober         *fakeProber
	Dispatch       *services.DispatchService
	Retry          *services.RetryService
	Callback       *services.CallbackService
}

func setupEnv(t *testing.T) *testEnv {
	db := helpers.SetupTestDB(t)
	mr, adapter := helpers.SetupTestRedis(t)
	t.Cleanup(mr.Close)

	bookingRepo := repository.NewBookingRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	messaging := &fakeMessagingGateway{}
	email := &fakeEmailGateway{}
	prober := &fakeProber{whatsapp: true}

	store := storage.NewLocalStore(t.TempDir(), "https://files.example", "file-secret")

	senders := []services.ChannelSender{
		services.NewWhatsAppSender(messaging, messageRepo, store),
		services.NewSMSSender(messaging, messageRepo, store),
		services.NewEmailSender(email, messageRepo, store),
	}

	resolver := templates.NewResolver()
	templates.RegisterDefaults(resolver)
	smsText := templates.DefaultNotificationText()

	locker := services.NewRedisDispatchLocker(adapter)

	dispatch := services.NewDispatchService(bookingRepo, attachmentRepo, senders, prober, resolver, smsText, locker)
	retry := services.NewRetryService(messageRepo, bookingRepo, attachmentRepo, senders)
	retry.BatchDelay = 0
	callback := services.NewCallbackService(messageRepo, testAuthToken)

	return &testEnv{
		DB:             db,
		Redis:          mr,
		RedisAdapter:   adapter,
		BookingRepo:    bookingRepo,
		AttachmentRepo: attachmentRepo,
		MessageRepo:    messageRepo,
		Messaging:      messaging,
		Email:          email,
		Prober:         prober,
		Dispatch:       dispatch,
		Retry:          retry,
		Callback:       callback,
	}
}

func (env *testEnv) createBookingWithTicket(t *testing.T, phone, email string) (*repository.BookingEntity, *repository.AttachmentEntity) {
	booking := helpers.CreateTestBooking(t, env.DB, helpers.RandomReference(), phone, email)
	attachment := helpers.CreateTestAttachment(t, env.DB, booking.ID, "ticket.pdf")
	return booking, attachment
}

func (env *testEnv) messagesFor(t *testing.T, bookingID int64) []*model.Message {
	msgs, _, err := env.MessageRepo.List(context.Background(), model.MessageFilter{
		BookingID: &bookingID,
		Limit:     50,
	})
	require.NoError(t, err)
	return msgs
}

func TestE2E_DualDeliveryDispatch(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	booking, attachment := env.createBookingWithTicket(t, "+15550001111", "ana@example.com")

	result, err := env.Dispatch.SendTicket(ctx, model.DispatchRequest{
		BookingID:     booking.ID,
		AttachmentIDs: []int64{attachment.ID},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.ElementsMatch(t, []model.Channel{model.ChannelWhatsApp, model.ChannelEmail}, result.Channels)

	msgs := env.messagesFor(t, booking.ID)
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.Equal(t, model.MessageStatusSent, m.Status)
		assert.NotEmpty(t, m.ExternalID)
		assert.NotNil(t, m.SentAt)

		ids, err := env.MessageRepo.AttachmentIDs(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{attachment.ID}, ids)
	}

	// The WhatsApp media URL must be a signed link into our own storage.
	require.Equal(t, 1, env.Messaging.callCount())
	waCall := env.Messaging.calls[0]
	require.Len(t, waCall.MediaURLs, 1)
	assert.Contains(t, waCall.MediaURLs[0], "https://files.example/files/")
	assert.Contains(t, waCall.MediaURLs[0], "sig=")

	stamped, err := env.BookingRepo.GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.NotNil(t, stamped.TicketsSentAt)
	assert.Nil(t, stamped.AudioGuideSentAt)
}

func TestE2E_EmailCarrierWithSMSNotification(t *testing.T) {
	env := setupEnv(t)
	env.Prober.whatsapp = false
	ctx := context.Background()

	booking, attachment := env.createBookingWithTicket(t, "+15550002222", "ben@example.com")

	result, err := env.Dispatch.SendTicket(ctx, model.DispatchRequest{
		BookingID:     booking.ID,
		AttachmentIDs: []int64{attachment.ID},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	var smsMsg, emailMsg *model.Message
	for _, m := range env.messagesFor(t, booking.ID) {
		switch m.Channel {
		case model.ChannelSMS:
			smsMsg = m
		case model.ChannelEmail:
			emailMsg = m
		}
	}
	require.NotNil(t, smsMsg)
	require.NotNil(t, emailMsg)

	// The ticket rides on email; the SMS is only a pointer to the inbox.
	assert.Contains(t, smsMsg.Content, "sent to your email")
	smsAttachments, err := env.MessageRepo.AttachmentIDs(ctx, smsMsg.ID)
	require.NoError(t, err)
	assert.Empty(t, smsAttachments)

	emailAttachments, err := env.MessageRepo.AttachmentIDs(ctx, emailMsg.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{attachment.ID}, emailAttachments)

	require.Len(t, env.Email.calls, 1)
	require.Len(t, env.Email.calls[0].Attachments, 1)
	assert.Equal(t, "ticket.pdf", env.Email.calls[0].Attachments[0].FileName)
}

func TestE2E_FailedDispatchThenRetry(t *testing.T) {
	env := setupEnv(t)
	env.Messaging.setFail(true)
	ctx := context.Background()

	// Phone only, WhatsApp capable: single-channel plan, so the vendor
	// outage fails the whole dispatch.
	booking, attachment := env.createBookingWithTicket(t, "+15550003333", "")

	result, err := env.Dispatch.SendTicket(ctx, model.DispatchRequest{
		BookingID:     booking.ID,
		AttachmentIDs: []int64{attachment.ID},
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)

	msgs := env.messagesFor(t, booking.ID)
	require.Len(t, msgs, 1)
	failed := msgs[0]
	assert.Equal(t, model.MessageStatusFailed, failed.Status)
	assert.NotNil(t, failed.FailedAt)
	assert.Contains(t, failed.ErrorMessage, "unreachable destination")

	env.Messaging.setFail(false)

	retryResult, err := env.Retry.Retry(ctx, failed.ID)
	require.NoError(t, err)
	assert.True(t, retryResult.Success)
	require.NotNil(t, retryResult.NewMessage)
	assert.Equal(t, model.MessageStatusSent, retryResult.NewMessage.Status)
	assert.Equal(t, failed.Content, retryResult.NewMessage.Content)

	// The original stays failed and points forward to its replacement.
	original, err := env.MessageRepo.GetByID(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusFailed, original.Status)
	assert.Contains(t, original.Note, fmt.Sprintf("resent as message #%d", retryResult.NewMessage.ID))
}

func TestE2E_StatusCallbackMarksDelivered(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	booking, attachment := env.createBookingWithTicket(t, "+15550004444", "")

	_, err := env.Dispatch.SendTicket(ctx, model.DispatchRequest{
		BookingID:     booking.ID,
		AttachmentIDs: []int64{attachment.ID},
	})
	require.NoError(t, err)

	msgs := env.messagesFor(t, booking.ID)
	require.Len(t, msgs, 1)
	sent := msgs[0]
	require.Equal(t, model.MessageStatusSent, sent.Status)

	params := map[string]string{
		"MessageSid":    sent.ExternalID,
		"MessageStatus": "delivered",
	}
	updated, err := env.Callback.Apply(ctx, services.StatusCallback{
		ExternalID: sent.ExternalID,
		Status:     "delivered",
		Params:     params,
		Signature:  gateway.ComputeCallbackSignature(testAuthToken, testCallbackURL, params),
		URL:        testCallbackURL,
	})
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusDelivered, updated.Status)
	assert.NotNil(t, updated.DeliveredAt)

	// A tampered signature never reaches the database.
	_, err = env.Callback.Apply(ctx, services.StatusCallback{
		ExternalID: sent.ExternalID,
		Status:     "failed",
		Params:     params,
		Signature:  "forged",
		URL:        testCallbackURL,
	})
	assert.ErrorIs(t, err, services.ErrInvalidSignature)
}

func TestE2E_DispatchLockBlocksConcurrentSend(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	booking, attachment := env.createBookingWithTicket(t, "+15550005555", "")

	locker := services.NewRedisDispatchLocker(env.RedisAdapter)
	release, ok, err := locker.Acquire(ctx, booking.ID)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	_, err = env.Dispatch.SendTicket(ctx, model.DispatchRequest{
		BookingID:     booking.ID,
		AttachmentIDs: []int64{attachment.ID},
	})
	assert.ErrorIs(t, err, services.ErrDispatchInProgress)
	assert.Empty(t, env.messagesFor(t, booking.ID))
}

func TestE2E_RetryJobPipeline(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	env.Messaging.setFail(true)
	booking, attachment := env.createBookingWithTicket(t, "+15550006666", "")

	_, err := env.Dispatch.SendTicket(ctx, model.DispatchRequest{
		BookingID:     booking.ID,
		AttachmentIDs: []int64{attachment.ID},
	})
	require.NoError(t, err)

	msgs := env.messagesFor(t, booking.ID)
	require.Len(t, msgs, 1)
	failed := msgs[0]
	require.Equal(t, model.MessageStatusFailed, failed.Status)

	env.Messaging.setFail(false)

	q, err := queue.NewJobQueue(env.RedisAdapter, queue.Config{
		Name:              "test:ticket_retry",
		ConsumerGroup:     "retriers",
		ConsumerName:      "retrier-0",
		PollInterval:      50 * time.Millisecond,
		VisibilityTimeout: 5 * time.Second,
		EnableDLQ:         true,
	})
	require.NoError(t, err)
	defer q.Stop(time.Second)

	idempotency := processor.NewIdempotencyService(env.RedisAdapter, processor.DefaultIdempotencyConfig())
	retryProcessor := processor.NewTicketRetryProcessor(env.Retry, idempotency)

	_, err = q.EnqueueJSON(ctx, processor.RetryJob{
		MessageID: failed.ID,
		Channel:   string(failed.Channel),
	}, map[string]string{"channel": string(failed.Channel)})
	require.NoError(t, err)

	require.NoError(t, q.Consume(retryProcessor.Process))

	helpers.AssertEventually(t, 3*time.Second, func() bool {
		for _, m := range env.messagesFor(t, booking.ID) {
			if m.ID != failed.ID && m.Status == model.MessageStatusSent {
				return true
			}
		}
		return false
	}, "retry job should produce a new sent message")

	original, err := env.MessageRepo.GetByID(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusFailed, original.Status)
	assert.True(t, strings.HasPrefix(original.Note, "resent as message #"))
}
