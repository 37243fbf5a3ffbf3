package handlers

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/voxtour/ticket-gateway/internal/model"
	"github.com/voxtour/ticket-gateway/internal/repository"
	"github.com/voxtour/ticket-gateway/internal/services"
)

type MockCallbackService struct {
	mock.Mock
}

func (m *MockCallbackService) Apply(ctx context.Context, cb services.StatusCallback) (*model.Message, error) {
	args := m.Called(ctx, cb)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func callbackForm(params map[string]string) []byte {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	return []byte(form.Encode())
}

func TestCallbackHandler_Status(t *testing.T) {
	const cbURL = "https://tickets.example.com/api/v1/callbacks/status"

	t.Run("applied callback returns 204", func(t *testing.T) {
		svc := new(MockCallbackService)
		handler := NewCallbackHandler(svc, cbURL)

		svc.On("Apply", mock.Anything, mock.MatchedBy(func(cb services.StatusCallback) bool {
			return cb.ExternalID == "SM123" && cb.Status == "delivered" &&
				cb.URL == cbURL && cb.Signature == "sig-value"
		})).Return(&model.Message{ID: 1, Status: model.MessageStatusDelivered}, nil)

		ctx := setupTestContext("POST", "/callbacks/status", callbackForm(map[string]string{
			"MessageSid":    "SM123",
			"MessageStatus": "delivered",
		}))
		ctx.Request.Header.SetContentType("application/x-www-form-urlencoded")
		ctx.Request.Header.Set("X-Twilio-Signature", "sig-value")
		handler.Status(ctx)

		assert.Equal(t, 204, ctx.Response.StatusCode())
	})

	t.Run("bad signature returns 403", func(t *testing.T) {
		svc := new(MockCallbackService)
		handler := NewCallbackHandler(svc, cbURL)

		svc.On("Apply", mock.Anything, mock.Anything).Return(nil, services.ErrInvalidSignature)

		ctx := setupTestContext("POST", "/callbacks/status", callbackForm(map[string]string{
			"MessageSid":    "SM123",
			"MessageStatus": "delivered",
		}))
		ctx.Request.Header.SetContentType("application/x-www-form-urlencoded")
		handler.Status(ctx)

		assert.Equal(t, 403, ctx.Response.StatusCode())
	})

	t.Run("unknown sid still acknowledged", func(t *testing.T) {
		svc := new(MockCallbackService)
		handler := NewCallbackHandler(svc, cbURL)

		svc.On("Apply", mock.Anything, mock.Anything).Return(nil, repository.ErrNotFound)

		ctx := setupTestContext("POST", "/callbacks/status", callbackForm(map[string]string{
			"MessageSid":    "SM404",
			"MessageStatus": "delivered",
		}))
		ctx.Request.Header.SetContentType("application/x-www-form-urlencoded")
		handler.Status(ctx)

		assert.Equal(t, 204, ctx.Response.StatusCode())
	})

	t.Run("missing sid rejected", func(t *testing.T) {
		svc := new(MockCallbackService)
		handler := NewCallbackHandler(svc, cbURL)

		ctx := setupTestContext("POST", "/callbacks/status", callbackForm(map[string]string{
			"MessageStatus": "delivered",
		}))
		ctx.Request.Header.SetContentType("application/x-www-form-urlencoded")
		handler.Status(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything)
	})
}
