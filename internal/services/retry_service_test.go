package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/voxtour/ticket-gateway/internal/model"
)

type retryFixture struct {
	messages    *MockMessageRepository
	bookings    *MockBookingRepository
	attachments *MockAttachmentRepository
	whatsapp    *MockChannelSender
	email       *MockChannelSender
	svc         *RetryService
}

func newRetryFixture() *retryFixture {
	f := &retryFixture{
		messages:    &MockMessageRepository{},
		bookings:    &MockBookingRepository{},
		attachments: &MockAttachmentRepository{},
		whatsapp:    &MockChannelSender{channel: model.ChannelWhatsApp},
		email:       &MockChannelSender{channel: model.ChannelEmail},
	}
	f.svc = NewRetryService(f.messages, f.bookings, f.attachments, []ChannelSender{f.whatsapp, f.email})
	f.svc.BatchDelay = 0
	return f
}

func failedOriginal(id int64, retryCount int) *model.Message {
	return &model.Message{
		ID:         id,
		BookingID:  10,
		Channel:    model.ChannelWhatsApp,
		Recipient:  "+15550001111",
		Content:    "Hi Ana, your tickets are attached.",
		Status:     model.MessageStatusFailed,
		RetryCount: retryCount,
	}
}

func TestRetry_SuccessCreatesNewMessageAndAnnotatesOriginal(t *testing.T) {
	f := newRetryFixture()
	original := failedOriginal(5, 0)
	booking := testBooking("+15550001111", "")
	newMsg := sentMessage(6, model.ChannelWhatsApp)

	f.messages.On("GetByID", mock.Anything, int64(5)).Return(original, nil)
	f.bookings.On("GetByID", mock.Anything, int64(10)).Return(booking, nil)
	f.messages.On("AttachmentIDs", mock.Anything, int64(5)).Return([]int64{1}, nil)
	f.attachments.On("ListByIDsForBooking", mock.Anything, int64(10), []int64{1}).
		Return(testAttachments(10, 1), nil)
	f.whatsapp.On("Resend", mock.Anything, mock.MatchedBy(func(in SendInput) bool {
		// Retry resends the original content on the original channel.
		return in.Body == original.Content && len(in.Attachments) == 1
	})).Return(newMsg, nil)
	f.messages.On("SetNote", mock.Anything, int64(5), "resent as message #6").Return(nil)

	result, err := f.svc.Retry(context.Background(), 5)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(6), result.NewMessage.ID)
	// The failed original stays failed; history is append-only.
	assert.Equal(t, model.MessageStatusFailed, result.Original.Status)
	f.messages.AssertCalled(t, "SetNote", mock.Anything, int64(5), "resent as message #6")
}

func TestRetry_FailureIncrementsCountWithoutNewMessage(t *testing.T) {
	f := newRetryFixture()
	original := failedOriginal(5, 1)
	bumped := failedOriginal(5, 2)
	booking := testBooking("+15550001111", "")

	f.messages.On("GetByID", mock.Anything, int64(5)).Return(original, nil).Once()
	f.bookings.On("GetByID", mock.Anything, int64(10)).Return(booking, nil)
	f.messages.On("AttachmentIDs", mock.Anything, int64(5)).Return([]int64{}, nil)
	f.attachments.On("ListByBooking", mock.Anything, int64(10)).Return(testAttachments(10, 1), nil)
	f.whatsapp.On("Resend", mock.Anything, mock.Anything).Return(nil, errors.New("still unreachable"))
	f.messages.On("RecordRetryFailure", mock.Anything, int64(5), "still unreachable").Return(nil)
	f.messages.On("GetByID", mock.Anything, int64(5)).Return(bumped, nil)

	result, err := f.svc.Retry(context.Background(), 5)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Nil(t, result.NewMessage)
	assert.Equal(t, 2, result.Original.RetryCount)
	f.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.messages.AssertNotCalled(t, "SetNote", mock.Anything, mock.Anything, mock.Anything)
}

func TestRetry_Preconditions(t *testing.T) {
	t.Run("sent message is not retryable", func(t *testing.T) {
		f := newRetryFixture()
		f.messages.On("GetByID", mock.Anything, int64(5)).Return(sentMessage(5, model.ChannelWhatsApp), nil)

		_, err := f.svc.Retry(context.Background(), 5)
		assert.ErrorIs(t, err, ErrNotFailed)
		f.whatsapp.AssertNotCalled(t, "Resend", mock.Anything, mock.Anything)
	})

	t.Run("retry cap reached", func(t *testing.T) {
		f := newRetryFixture()
		f.messages.On("GetByID", mock.Anything, int64(5)).
			Return(failedOriginal(5, model.MaxRetryAttempts), nil)

		_, err := f.svc.Retry(context.Background(), 5)
		assert.ErrorIs(t, err, ErrRetryExhausted)
		f.whatsapp.AssertNotCalled(t, "Resend", mock.Anything, mock.Anything)
	})

	t.Run("the two refusal reasons stay distinct", func(t *testing.T) {
		assert.NotErrorIs(t, ErrRetryExhausted, ErrNotFailed)
	})
}

func TestRetry_FallsBackToBookingAttachments(t *testing.T) {
	// If the original attempt failed before attachment linkage, the retry
	// reloads the booking's full set.
	f := newRetryFixture()
	original := failedOriginal(5, 0)
	booking := testBooking("+15550001111", "")

	f.messages.On("GetByID", mock.Anything, int64(5)).Return(original, nil)
	f.bookings.On("GetByID", mock.Anything, int64(10)).Return(booking, nil)
	f.messages.On("AttachmentIDs", mock.Anything, int64(5)).Return([]int64{}, nil)
	f.attachments.On("ListByBooking", mock.Anything, int64(10)).Return(testAttachments(10, 1, 2), nil)
	f.whatsapp.On("Resend", mock.Anything, mock.MatchedBy(func(in SendInput) bool {
		return len(in.Attachments) == 2
	})).Return(sentMessage(6, model.ChannelWhatsApp), nil)
	f.messages.On("SetNote", mock.Anything, int64(5), mock.Anything).Return(nil)

	result, err := f.svc.Retry(context.Background(), 5)

	require.NoError(t, err)
	assert.True(t, result.Success)
	f.attachments.AssertCalled(t, "ListByBooking", mock.Anything, int64(10))
}

func TestRetryBatch(t *testing.T) {
	f := newRetryFixture()
	booking := testBooking("+15550001111", "")
	first := failedOriginal(5, 0)
	second := failedOriginal(7, 1)

	f.messages.On("ListFailedRetryable", mock.Anything, 10, (*model.Channel)(nil)).
		Return([]*model.Message{first, second}, nil)
	f.messages.On("GetByID", mock.Anything, int64(5)).Return(first, nil)
	f.messages.On("GetByID", mock.Anything, int64(7)).Return(second, nil)
	f.bookings.On("GetByID", mock.Anything, int64(10)).Return(booking, nil)
	f.messages.On("AttachmentIDs", mock.Anything, mock.Anything).Return([]int64{}, nil)
	f.attachments.On("ListByBooking", mock.Anything, int64(10)).Return(testAttachments(10, 1), nil)

	// First succeeds, second keeps failing.
	f.whatsapp.On("Resend", mock.Anything, mock.MatchedBy(func(in SendInput) bool { return true })).
		Return(sentMessage(6, model.ChannelWhatsApp), nil).Once()
	f.whatsapp.On("Resend", mock.Anything, mock.Anything).Return(nil, errors.New("unreachable"))
	f.messages.On("SetNote", mock.Anything, int64(5), mock.Anything).Return(nil)
	f.messages.On("RecordRetryFailure", mock.Anything, int64(7), "unreachable").Return(nil)

	result, err := f.svc.RetryBatch(context.Background(), 10, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempted)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
}
