package deliverables

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-portal/backend/internal/clients"
	"github.com/aura-portal/backend/internal/middleware"
	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/internal/permissions"
	"github.com/aura-portal/backend/internal/validation"
	"github.com/aura-portal/backend/pkg/response"
	"github.com/aura-portal/backend/pkg/storage"
)

// Handler serves deliverable post endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a deliverables handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// CreateRequest is the body for POST /clients/:id/posts.
type CreateRequest struct {
	Title           string `json:"title" binding:"required,max=255"`
	Description     string `json:"description"`
	DeliverableType string `json:"deliverable_type" binding:"max=64"`
	Priority        string `json:"priority" binding:"omitempty,priority"`
	DueDate         string `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
}

// TransitionRequest is the body for POST /posts/:id/transition.
type TransitionRequest struct {
	Status      string `json:"status" binding:"required,post_status"`
	LockVersion int    `json:"lock_version" binding:"gte=0"`
}

// ApproveRequest is the body for POST /posts/:id/approve.
type ApproveRequest struct {
	Note        string `json:"note"`
	LockVersion int    `json:"lock_version" binding:"gte=0"`
}

// RevisionRequest is the body for POST /posts/:id/revision.
type RevisionRequest struct {
	Feedback    string `json:"feedback"`
	LockVersion int    `json:"lock_version" binding:"gte=0"`
}

// ReactionRequest is the body for POST /posts/:id/reactions.
type ReactionRequest struct {
	ReactionType string `json:"reaction_type" binding:"required"`
}

// CommentRequest is the body for POST /posts/:id/comments.
type CommentRequest struct {
	Content           string `json:"content"`
	IsRevisionRequest bool   `json:"is_revision_request"`
}

func (h *Handler) fail(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrConflict), errors.Is(err, ErrVersionMismatch):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrTerminalState), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrPackageExhausted):
		response.Unprocessable(c, err.Error())
	case errors.Is(err, ErrFeedbackRequired), errors.Is(err, ErrInvalidReaction),
		errors.Is(err, ErrEmptyComment), errors.Is(err, ErrInvalidStatus):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error(op, zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "failed to "+op)
	}
}

func postID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid post id")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /clients/:id/posts?status=&priority=.
func (h *Handler) List(c *gin.Context) {
	client := clients.FromContext(c)
	var f ListFilter
	if s := c.Query("status"); s != "" {
		st, ok := models.ParsePostStatus(s)
		if !ok {
			response.BadRequest(c, ErrInvalidStatus.Error())
			return
		}
		f.Status = st
	}
	if s := c.Query("priority"); s != "" {
		p, ok := models.ParsePriority(s)
		if !ok {
			response.BadRequest(c, "unknown priority")
			return
		}
		f.Priority = p
	}
	list, err := h.svc.List(c.Request.Context(), middleware.Session(c), client.ID, f)
	if err != nil {
		h.fail(c, err, "list posts")
		return
	}
	response.OK(c, list)
}

// Create handles POST /clients/:id/posts.
func (h *Handler) Create(c *gin.Context) {
	client := clients.FromContext(c)
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	params := CreatePostParams{
		ClientID:        client.ID,
		Title:           req.Title,
		Description:     req.Description,
		DeliverableType: req.DeliverableType,
		Priority:        models.Priority(req.Priority),
	}
	if req.DueDate != "" {
		due, _ := time.Parse("2006-01-02", req.DueDate)
		params.DueDate = &due
	}
	post, err := h.svc.Create(c.Request.Context(), middleware.Session(c), params)
	if err != nil {
		h.fail(c, err, "create post")
		return
	}
	response.Created(c, post)
}

// Get handles GET /posts/:id and returns the full detail card.
func (h *Handler) Get(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	detail, err := h.svc.Detail(c.Request.Context(), middleware.Session(c), id)
	if err != nil {
		h.fail(c, err, "load post")
		return
	}
	response.OK(c, detail)
}

// Transition handles POST /posts/:id/transition (agency only).
func (h *Handler) Transition(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	post, err := h.svc.Transition(c.Request.Context(), middleware.Session(c), id, models.PostStatus(req.Status), req.LockVersion)
	if err != nil {
		h.fail(c, err, "change status")
		return
	}
	response.OK(c, post)
}

// Approve handles POST /posts/:id/approve.
func (h *Handler) Approve(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	// the body is optional
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, validation.Message(err))
		return
	}
	post, err := h.svc.Approve(c.Request.Context(), middleware.Session(c), id, req.Note, req.LockVersion)
	if err != nil {
		h.fail(c, err, "approve post")
		return
	}
	response.OK(c, post)
}

// RequestRevision handles POST /posts/:id/revision.
func (h *Handler) RequestRevision(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	var req RevisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	res, err := h.svc.RequestRevision(c.Request.Context(), middleware.Session(c), id, req.Feedback, req.LockVersion)
	if err != nil {
		h.fail(c, err, "request revision")
		return
	}
	response.OK(c, res)
}

// React handles POST /posts/:id/reactions.
func (h *Handler) React(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	var req ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	res, err := h.svc.React(c.Request.Context(), middleware.Session(c), id, req.ReactionType)
	if err != nil {
		h.fail(c, err, "react")
		return
	}
	response.OK(c, res)
}

// AddComment handles POST /posts/:id/comments.
func (h *Handler) AddComment(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	if req.IsRevisionRequest && !middleware.HasPermission(c, permissions.ApproveDeliverables) {
		response.Forbidden(c, "missing permission "+string(permissions.ApproveDeliverables))
		return
	}
	comment, err := h.svc.AddComment(c.Request.Context(), middleware.Session(c), id, req.Content, req.IsRevisionRequest)
	if err != nil {
		h.fail(c, err, "add comment")
		return
	}
	response.Created(c, comment)
}

// UploadVersion handles POST /posts/:id/versions (multipart "file", optional "version_number").
func (h *Handler) UploadVersion(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	if fh.Size > storage.MaxDeliverableFileSize {
		c.JSON(http.StatusRequestEntityTooLarge, response.Body{Success: false, Error: "file too large"})
		return
	}
	if !storage.AllowedFile(fh.Filename) {
		response.BadRequest(c, "file type not allowed")
		return
	}
	versionNumber := 0
	if v := c.PostForm("version_number"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			response.BadRequest(c, "invalid version_number")
			return
		}
		versionNumber = n
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "unreadable file")
		return
	}
	defer f.Close()

	version, err := h.svc.UploadFile(c.Request.Context(), middleware.Session(c), id, FileUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	}, versionNumber)
	if err != nil {
		h.fail(c, err, "upload file")
		return
	}
	response.Created(c, version)
}

// DownloadURL handles GET /posts/:id/versions/:version/download-url.
func (h *Handler) DownloadURL(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	n, err := strconv.Atoi(c.Param("version"))
	if err != nil || n < 1 {
		response.BadRequest(c, "invalid version")
		return
	}
	url, err := h.svc.DownloadURL(c.Request.Context(), middleware.Session(c), id, n)
	if err != nil {
		h.fail(c, err, "sign download")
		return
	}
	response.OK(c, gin.H{"url": url})
}
