package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/voxtour/ticket-gateway/internal/model"
	"github.com/voxtour/ticket-gateway/internal/plan"
	xhttp "github.com/voxtour/ticket-gateway/pkg/http"
)

type DispatchService interface {
	SendTicket(ctx context.Context, req model.DispatchRequest) (*model.DispatchResult, error)
	DetectChannel(ctx context.Context, bookingID int64) (plan.Plan, error)
}

type DispatchHandler struct {
	svc DispatchService
}

func RegisterDispatchRoutes(e *router.Group, h *DispatchHandler) {
	e.POST("/bookings/{id}/ticket", h.SendTicket)
	e.GET("/bookings/{id}/channel", h.DetectChannel)
}

func NewDispatchHandler(svc DispatchService) *DispatchHandler {
	return &DispatchHandler{svc: svc}
}

type sendTicketRequest struct {
	AttachmentIDs []int64 `json:"attachment_ids"`
	Language      string  `json:"language"`
	ForceChannel  string  `json:"force_channel"`
	CustomMessage *struct {
		Subject string `json:"subject"`
		Content string `json:"content"`
	} `json:"custom_message"`
}

type channelPreviewResponse struct {
	Channels     []model.Channel `json:"channels"`
	DualDelivery bool            `json:"dual_delivery"`
	PDFSupported bool            `json:"pdf_supported"`
	Description  string          `json:"description"`
}

func (h *DispatchHandler) SendTicket(ctx *xhttp.RequestCtx) {
	bookingID, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid booking id")
		return
	}

	var req sendTicketRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	dr := model.DispatchRequest{
		BookingID:     bookingID,
		Language:      req.Language,
		AttachmentIDs: req.AttachmentIDs,
		ForceChannel:  model.Channel(req.ForceChannel),
	}
	if req.CustomMessage != nil {
		dr.CustomMessage = &model.CustomMessage{
			Subject: req.CustomMessage.Subject,
			Content: req.CustomMessage.Content,
		}
	}

	result, err := h.svc.SendTicket(ctx, dr)
	if err != nil {
		writeError(ctx, statusForError(err), err.Error())
		return
	}

	// Partial and total channel failures are in the body; the request
	// itself succeeded.
	writeJSON(ctx, 200, result)
}

func (h *DispatchHandler) DetectChannel(ctx *xhttp.RequestCtx) {
	bookingID, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid booking id")
		return
	}

	p, err := h.svc.DetectChannel(ctx, bookingID)
	if err != nil {
		writeError(ctx, statusForError(err), err.Error())
		return
	}

	writeJSON(ctx, 200, channelPreviewResponse{
		Channels:     p.Channels(),
		DualDelivery: p.DualDelivery,
		PDFSupported: p.PDFSupported,
		Description:  p.Description,
	})
}
