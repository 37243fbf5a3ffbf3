package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/voxtour/ticket-gateway/internal/model"
	"github.com/voxtour/ticket-gateway/internal/repository"
	"github.com/voxtour/ticket-gateway/internal/services"
	xhttp "github.com/voxtour/ticket-gateway/pkg/http"
)

type MessageService interface {
	List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error)
}

type RetryService interface {
	Retry(ctx context.Context, messageID int64) (*model.RetryResult, error)
	RetryBatch(ctx context.Context, limit int, channel *model.Channel) (*model.BatchRetryResult, error)
}

type MessageHandler struct {
	messages MessageService
	retries  RetryService
}

func RegisterMessageRoutes(e *router.Group, h *MessageHandler) {
	e.GET("/messages", h.ListMessages)
	e.POST("/messages/{id}/retry", h.RetryMessage)
	e.POST("/messages/retry-failed", h.RetryFailed)
}

func NewMessageHandler(messages MessageService, retries RetryService) *MessageHandler {
	return &MessageHandler{
		messages: messages,
		retries:  retries,
	}
}

type listResponse struct {
	Items []*model.Message `json:"items"`
	Total int64            `json:"total"`
}

type retryBatchRequest struct {
	Limit   int    `json:"limit"`
	Channel string `json:"channel"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *MessageHandler) ListMessages(ctx *xhttp.RequestCtx) {
	var f model.MessageFilter

	if v := query(ctx, "booking_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.BookingID = &id
		}
	}
	if v := query(ctx, "channel"); v != "" {
		ch := model.Channel(v)
		if !ch.Valid() {
			writeError(ctx, 400, "unknown channel: "+v)
			return
		}
		f.Channel = &ch
	}
	if v := query(ctx, "recipient"); v != "" {
		f.Recipient = &v
	}
	if v := query(ctx, "status"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Statuses = append(f.Statuses, model.MessageStatus(parts[i]))
			}
		}
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.messages.List(ctx, f)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, listResponse{Items: items, Total: total})
}

func (h *MessageHandler) RetryMessage(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid message id")
		return
	}

	result, err := h.retries.Retry(ctx, id)
	if err != nil {
		writeError(ctx, statusForError(err), err.Error())
		return
	}
	writeJSON(ctx, 200, result)
}

func (h *MessageHandler) RetryFailed(ctx *xhttp.RequestCtx) {
	req := retryBatchRequest{Limit: 50}
	if body := ctx.PostBody(); len(body) > 0 {
		if err := readJSON(ctx, &req); err != nil {
			writeError(ctx, 400, "invalid JSON: "+err.Error())
			return
		}
	}

	var channel *model.Channel
	if req.Channel != "" {
		ch := model.Channel(req.Channel)
		if !ch.Valid() {
			writeError(ctx, 400, "unknown channel: "+req.Channel)
			return
		}
		channel = &ch
	}

	result, err := h.retries.RetryBatch(ctx, req.Limit, channel)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, result)
}

/* -------------------------------- Helpers ----------------------------------- */

func statusForError(err error) int {
	switch {
	case errors.Is(err, repository.ErrBookingNotFound),
		errors.Is(err, repository.ErrNotFound):
		return 404
	case errors.Is(err, services.ErrDispatchInProgress),
		errors.Is(err, services.ErrNotFailed),
		errors.Is(err, services.ErrRetryExhausted):
		return 409
	case errors.Is(err, model.ErrAttachmentOwnership):
		return 403
	default:
		return 400
	}
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, _ := ctx.UserValue(name).(string)
	return strconv.ParseInt(v, 10, 64)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
