package handlers

import (
	"context"
	"errors"

	"github.com/fasthttp/router"
	"github.com/voxtour/ticket-gateway/internal/model"
	"github.com/voxtour/ticket-gateway/internal/repository"
	"github.com/voxtour/ticket-gateway/internal/services"
	xhttp "github.com/voxtour/ticket-gateway/pkg/http"
)

type CallbackService interface {
	Apply(ctx context.Context, cb services.StatusCallback) (*model.Message, error)
}

// CallbackHandler receives the messaging vendor's form-encoded status
// webhooks. callbackURL must match the URL the vendor signs against.
type CallbackHandler struct {
	svc         CallbackService
	callbackURL string
}

func RegisterCallbackRoutes(e *router.Group, h *CallbackHandler) {
	e.POST("/callbacks/status", h.Status)
}

func NewCallbackHandler(svc CallbackService, callbackURL string) *CallbackHandler {
	return &CallbackHandler{svc: svc, callbackURL: callbackURL}
}

func (h *CallbackHandler) Status(ctx *xhttp.RequestCtx) {
	params := make(map[string]string)
	ctx.PostArgs().VisitAll(func(k, v []byte) {
		params[string(k)] = string(v)
	})

	cb := services.StatusCallback{
		ExternalID: params["MessageSid"],
		Status:     params["MessageStatus"],
		ErrorCode:  params["ErrorCode"],
		Params:     params,
		Signature:  string(ctx.Request.Header.Peek("X-Twilio-Signature")),
		URL:        h.callbackURL,
	}
	if cb.ExternalID == "" {
		writeError(ctx, 400, "MessageSid is required")
		return
	}

	_, err := h.svc.Apply(ctx, cb)
	switch {
	case errors.Is(err, services.ErrInvalidSignature):
		writeError(ctx, 403, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		// Unknown SID: acknowledge anyway so the vendor stops retrying a
		// callback we can never apply.
		ctx.Response.SetStatusCode(204)
	case err != nil:
		writeError(ctx, 400, err.Error())
	default:
		ctx.Response.SetStatusCode(204)
	}
}
