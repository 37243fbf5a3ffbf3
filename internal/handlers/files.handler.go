package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/fasthttp/router"
	"github.com/voxtour/ticket-gateway/internal/model"
	"github.com/voxtour/ticket-gateway/internal/storage"
	xhttp "github.com/voxtour/ticket-gateway/pkg/http"
)

type FileStore interface {
	VerifyToken(storagePath, expires, sig string) error
	GetBytes(ctx context.Context, a *model.Attachment) ([]byte, error)
}

// FilesHandler serves attachment downloads over the signed URLs handed to
// vendors. Every request must carry a valid, unexpired token.
type FilesHandler struct {
	store FileStore
}

func RegisterFileRoutes(e *router.Group, h *FilesHandler) {
	e.GET("/files/{path:*}", h.Download)
}

func NewFilesHandler(store FileStore) *FilesHandler {
	return &FilesHandler{store: store}
}

func (h *FilesHandler) Download(ctx *xhttp.RequestCtx) {
	path, _ := ctx.UserValue("path").(string)
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		writeError(ctx, 400, "missing file path")
		return
	}

	expires := query(ctx, "expires")
	sig := query(ctx, "sig")
	if err := h.store.VerifyToken(path, expires, sig); err != nil {
		switch {
		case errors.Is(err, storage.ErrTokenExpired):
			writeError(ctx, 410, err.Error())
		default:
			writeError(ctx, 403, "invalid download token")
		}
		return
	}

	b, err := h.store.GetBytes(ctx, &model.Attachment{StoragePath: path})
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			writeError(ctx, 404, err.Error())
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}

	ctx.Response.Header.Set("Content-Type", contentTypeFor(path))
	ctx.Response.SetStatusCode(200)
	ctx.Response.SetBodyRaw(b)
}

func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
