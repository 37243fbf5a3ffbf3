package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/voxtour/ticket-gateway/internal/model"
	"github.com/voxtour/ticket-gateway/internal/services"
)

type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Message), args.Get(1).(int64), args.Error(2)
}

type MockRetryService struct {
	mock.Mock
}

func (m *MockRetryService) Retry(ctx context.Context, messageID int64) (*model.RetryResult, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RetryResult), args.Error(1)
}

func (m *MockRetryService) RetryBatch(ctx context.Context, limit int, channel *model.Channel) (*model.BatchRetryResult, error) {
	args := m.Called(ctx, limit, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BatchRetryResult), args.Error(1)
}

func TestMessageHandler_ListMessages(t *testing.T) {
	t.Run("filters parsed from query", func(t *testing.T) {
		messages := new(MockMessageService)
		handler := NewMessageHandler(messages, new(MockRetryService))

		messages.On("List", mock.Anything, mock.MatchedBy(func(f model.MessageFilter) bool {
			return f.BookingID != nil && *f.BookingID == 10 &&
				f.Channel != nil && *f.Channel == model.ChannelWhatsApp &&
				len(f.Statuses) == 2 && f.Limit == 20 && f.Desc
		})).Return([]*model.Message{{ID: 1}}, int64(1), nil)

		ctx := setupTestContext("GET", "/messages?booking_id=10&channel=whatsapp&status=sent,failed&limit=20&order=desc", nil)
		handler.ListMessages(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		var resp listResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
		assert.Equal(t, int64(1), resp.Total)
		assert.Len(t, resp.Items, 1)
	})

	t.Run("unknown channel rejected", func(t *testing.T) {
		messages := new(MockMessageService)
		handler := NewMessageHandler(messages, new(MockRetryService))

		ctx := setupTestContext("GET", "/messages?channel=pigeon", nil)
		handler.ListMessages(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		messages.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	})
}

func TestMessageHandler_RetryMessage(t *testing.T) {
	t.Run("successful retry", func(t *testing.T) {
		retries := new(MockRetryService)
		handler := NewMessageHandler(new(MockMessageService), retries)

		retries.On("Retry", mock.Anything, int64(5)).Return(&model.RetryResult{
			Success:    true,
			NewMessage: &model.Message{ID: 6, Status: model.MessageStatusSent},
		}, nil)

		ctx := setupTestContext("POST", "/messages/5/retry", nil)
		ctx.SetUserValue("id", "5")
		handler.RetryMessage(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		var result model.RetryResult
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &result))
		assert.True(t, result.Success)
		assert.Equal(t, int64(6), result.NewMessage.ID)
	})

	t.Run("retry exhausted maps to 409", func(t *testing.T) {
		retries := new(MockRetryService)
		handler := NewMessageHandler(new(MockMessageService), retries)

		retries.On("Retry", mock.Anything, int64(5)).Return(nil, services.ErrRetryExhausted)

		ctx := setupTestContext("POST", "/messages/5/retry", nil)
		ctx.SetUserValue("id", "5")
		handler.RetryMessage(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
	})

	t.Run("not failed maps to 409", func(t *testing.T) {
		retries := new(MockRetryService)
		handler := NewMessageHandler(new(MockMessageService), retries)

		retries.On("Retry", mock.Anything, int64(5)).Return(nil, services.ErrNotFailed)

		ctx := setupTestContext("POST", "/messages/5/retry", nil)
		ctx.SetUserValue("id", "5")
		handler.RetryMessage(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
	})
}

func TestMessageHandler_RetryFailed(t *testing.T) {
	t.Run("defaults applied on empty body", func(t *testing.T) {
		retries := new(MockRetryService)
		handler := NewMessageHandler(new(MockMessageService), retries)

		retries.On("RetryBatch", mock.Anything, 50, (*model.Channel)(nil)).
			Return(&model.BatchRetryResult{Attempted: 3, Succeeded: 2, Failed: 1}, nil)

		ctx := setupTestContext("POST", "/messages/retry-failed", nil)
		handler.RetryFailed(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		var result model.BatchRetryResult
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &result))
		assert.Equal(t, 3, result.Attempted)
	})

	t.Run("channel filter", func(t *testing.T) {
		retries := new(MockRetryService)
		handler := NewMessageHandler(new(MockMessageService), retries)

		retries.On("RetryBatch", mock.Anything, 10, mock.MatchedBy(func(ch *model.Channel) bool {
			return ch != nil && *ch == model.ChannelEmail
		})).Return(&model.BatchRetryResult{}, nil)

		ctx := setupTestContext("POST", "/messages/retry-failed", []byte(`{"limit":10,"channel":"email"}`))
		handler.RetryFailed(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
	})
}
