package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	gateway "github.com/voxtour/ticket-gateway/internal/gateways"
	"github.com/voxtour/ticket-gateway/internal/model"
)

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *MockBookingRepository) StampSent(ctx context.Context, id int64, at time.Time, audioGuide bool) error {
	args := m.Called(ctx, id, at, audioGuide)
	return args.Error(0)
}

type MockAttachmentRepository struct {
	mock.Mock
}

func (m *MockAttachmentRepository) ListByIDsForBooking(ctx context.Context, bookingID int64, ids []int64) ([]*model.Attachment, error) {
	args := m.Called(ctx, bookingID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Attachment), args.Error(1)
}

func (m *MockAttachmentRepository) ListByBooking(ctx context.Context, bookingID int64) ([]*model.Attachment, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Attachment), args.Error(1)
}

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageRepository) GetByID(ctx context.Context, id int64) (*model.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageRepository) GetByExternalID(ctx context.Context, externalID string) (*model.Message, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageRepository) UpdateStatus(ctx context.Context, id int64, next model.MessageStatus, errorMessage string) (*model.Message, error) {
	args := m.Called(ctx, id, next, errorMessage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageRepository) SetExternalID(ctx context.Context, id int64, externalID string) error {
	args := m.Called(ctx, id, externalID)
	return args.Error(0)
}

func (m *MockMessageRepository) LinkAttachments(ctx context.Context, messageID int64, attachmentIDs []int64) error {
	args := m.Called(ctx, messageID, attachmentIDs)
	return args.Error(0)
}

func (m *MockMessageRepository) AttachmentIDs(ctx context.Context, messageID int64) ([]int64, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockMessageRepository) RecordRetryFailure(ctx context.Context, id int64, errorMessage string) error {
	args := m.Called(ctx, id, errorMessage)
	return args.Error(0)
}

func (m *MockMessageRepository) SetNote(ctx context.Context, id int64, note string) error {
	args := m.Called(ctx, id, note)
	return args.Error(0)
}

func (m *MockMessageRepository) ListFailedRetryable(ctx context.Context, limit int, channel *model.Channel) ([]*model.Message, error) {
	args := m.Called(ctx, limit, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Message), args.Error(1)
}

func (m *MockMessageRepository) List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Message), args.Get(1).(int64), args.Error(2)
}

type MockChannelSender struct {
	mock.Mock
	channel model.Channel
}

func (m *MockChannelSender) Channel() model.Channel { return m.channel }

func (m *MockChannelSender) Send(ctx context.Context, in SendInput) (*model.Message, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockChannelSender) Resend(ctx context.Context, in SendInput) (*model.Message, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

type MockProber struct {
	mock.Mock
}

func (m *MockProber) Probe(ctx context.Context, phone string) bool {
	args := m.Called(ctx, phone)
	return args.Bool(0)
}

type MockMessagingGateway struct {
	mock.Mock
}

func (m *MockMessagingGateway) Send(ctx context.Context, req *gateway.SendMessageRequest) (*gateway.SendMessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.SendMessageResponse), args.Error(1)
}

type MockEmailGateway struct {
	mock.Mock
}

func (m *MockEmailGateway) Send(ctx context.Context, req *gateway.SendEmailRequest) (*gateway.SendEmailResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.SendEmailResponse), args.Error(1)
}

type MockAttachmentStore struct {
	mock.Mock
}

func (m *MockAttachmentStore) Exists(ctx context.Context, a *model.Attachment) (bool, error) {
	args := m.Called(ctx, a)
	return args.Bool(0), args.Error(1)
}

func (m *MockAttachmentStore) GetBytes(ctx context.Context, a *model.Attachment) ([]byte, error) {
	args := m.Called(ctx, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockAttachmentStore) GetTemporaryURL(ctx context.Context, a *model.Attachment, ttl time.Duration) (string, error) {
	args := m.Called(ctx, a, ttl)
	return args.String(0), args.Error(1)
}

// stubLocker avoids the awkwardness of mocking a func() return value.
type stubLocker struct {
	held     bool
	err      error
	released bool
}

func (l *stubLocker) Acquire(ctx context.Context, bookingID int64) (func(), bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	return func() { l.released = true }, true, nil
}
