package assets

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-portal/backend/internal/clients"
	"github.com/aura-portal/backend/internal/middleware"
	"github.com/aura-portal/backend/pkg/response"
)

// Handler serves /clients/:id/brand-assets.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a brand asset handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrInvalidCategory), errors.Is(err, ErrFileType):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, response.Body{Success: false, Error: err.Error()})
	default:
		h.logger.Error(op, zap.Error(err))
		response.Internal(c, "failed to "+op)
	}
}

func assetID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("assetId"))
	if err != nil {
		response.BadRequest(c, "invalid asset id")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /clients/:id/brand-assets?category=.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), clients.FromContext(c).ID, c.Query("category"))
	if err != nil {
		h.fail(c, err, "list brand assets")
		return
	}
	response.OK(c, list)
}

// Upload handles multipart POST /clients/:id/brand-assets (fields: file, name, category).
func (h *Handler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "unreadable file")
		return
	}
	defer f.Close()

	a, err := h.svc.Upload(c.Request.Context(), middleware.Session(c), clients.FromContext(c).ID, Upload{
		Name:        c.PostForm("name"),
		Category:    c.PostForm("category"),
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		h.fail(c, err, "upload brand asset")
		return
	}
	response.Created(c, a)
}

// DownloadURL handles GET /clients/:id/brand-assets/:assetId/download-url.
func (h *Handler) DownloadURL(c *gin.Context) {
	id, ok := assetID(c)
	if !ok {
		return
	}
	url, err := h.svc.DownloadURL(c.Request.Context(), clients.FromContext(c).ID, id)
	if err != nil {
		h.fail(c, err, "sign brand asset download")
		return
	}
	response.OK(c, gin.H{"download_url": url})
}

// Delete handles DELETE /clients/:id/brand-assets/:assetId.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := assetID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), clients.FromContext(c).ID, id); err != nil {
		h.fail(c, err, "delete brand asset")
		return
	}
	response.NoContent(c)
}
