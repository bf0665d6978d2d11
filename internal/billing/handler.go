// Package billing keeps each client's prepaid wallet, its ledger and invoices.
package billing

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-portal/backend/internal/clients"
	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/internal/realtime"
	"github.com/aura-portal/backend/internal/validation"
	"github.com/aura-portal/backend/pkg/csvexport"
	"github.com/aura-portal/backend/pkg/response"
)

// ChangePublisher announces row changes on the realtime feed.
type ChangePublisher interface {
	Publish(ctx context.Context, table string, clientID, rowID uuid.UUID)
}

// Store persists wallets, ledger entries and invoices.
type Store interface {
	Wallet(ctx context.Context, clientID uuid.UUID) (*models.Wallet, error)
	Credit(ctx context.Context, e Entry) (*models.WalletTransaction, error)
	Debit(ctx context.Context, e Entry) (*models.WalletTransaction, error)
	Transactions(ctx context.Context, clientID uuid.UUID) ([]models.WalletTransaction, error)
	Invoices(ctx context.Context, clientID uuid.UUID) ([]models.Invoice, error)
	CreateInvoice(ctx context.Context, clientID uuid.UUID, description string, amountCents int64, dueAt *time.Time) (*models.Invoice, error)
	PayInvoice(ctx context.Context, clientID, invoiceID uuid.UUID) (*models.Invoice, *models.WalletTransaction, error)
}

// Handler serves wallet, ledger and invoice endpoints.
type Handler struct {
	repo   Store
	feed   ChangePublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates a billing handler.
func NewHandler(repo Store, feed ChangePublisher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, feed: feed, logger: logger, now: time.Now}
}

// EntryRequest is the body for wallet credit and debit.
type EntryRequest struct {
	AmountCents int64  `json:"amount_cents" binding:"required,gt=0"`
	Description string `json:"description" binding:"required,max=500"`
	Reference   string `json:"reference" binding:"max=255"`
}

// InvoiceRequest is the body for POST /clients/:id/invoices.
type InvoiceRequest struct {
	Description string `json:"description" binding:"required,max=500"`
	AmountCents int64  `json:"amount_cents" binding:"required,gt=0"`
	DueAt       string `json:"due_at" binding:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) fail(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, ErrWalletNotFound), errors.Is(err, ErrInvoiceNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrInvoiceNotPending):
		response.Unprocessable(c, err.Error())
	case errors.Is(err, ErrInvalidAmount):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error(op, zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "failed to "+op)
	}
}

// Wallet handles GET /clients/:id/wallet.
func (h *Handler) Wallet(c *gin.Context) {
	w, err := h.repo.Wallet(c.Request.Context(), clients.FromContext(c).ID)
	if err != nil {
		h.fail(c, err, "load wallet")
		return
	}
	response.OK(c, w)
}

func (h *Handler) entry(c *gin.Context, apply func(context.Context, Entry) (any, error), op string) {
	client := clients.FromContext(c)
	var req EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	txn, err := apply(c.Request.Context(), Entry{
		ClientID: client.ID, AmountCents: req.AmountCents, Description: req.Description, Reference: req.Reference,
	})
	if err != nil {
		h.fail(c, err, op)
		return
	}
	h.feed.Publish(c.Request.Context(), realtime.TableWallet, client.ID, uuid.Nil)
	response.Created(c, txn)
}

// Credit handles POST /clients/:id/wallet/credit (agency only).
func (h *Handler) Credit(c *gin.Context) {
	h.entry(c, func(ctx context.Context, e Entry) (any, error) { return h.repo.Credit(ctx, e) }, "credit wallet")
}

// Debit handles POST /clients/:id/wallet/debit (agency only).
func (h *Handler) Debit(c *gin.Context) {
	h.entry(c, func(ctx context.Context, e Entry) (any, error) { return h.repo.Debit(ctx, e) }, "debit wallet")
}

// Transactions handles GET /clients/:id/transactions.
func (h *Handler) Transactions(c *gin.Context) {
	list, err := h.repo.Transactions(c.Request.Context(), clients.FromContext(c).ID)
	if err != nil {
		h.fail(c, err, "load transactions")
		return
	}
	response.OK(c, list)
}

// ExportTransactions handles GET /clients/:id/transactions/export.
func (h *Handler) ExportTransactions(c *gin.Context) {
	list, err := h.repo.Transactions(c.Request.Context(), clients.FromContext(c).ID)
	if err != nil {
		h.fail(c, err, "load transactions")
		return
	}
	data, err := PaymentHistoryCSV(list)
	if err != nil {
		h.fail(c, err, "export transactions")
		return
	}
	response.Attachment(c, csvexport.Filename(PaymentHistoryPrefix, h.now()), csvexport.ContentType, data)
}

// Invoices handles GET /clients/:id/invoices.
func (h *Handler) Invoices(c *gin.Context) {
	list, err := h.repo.Invoices(c.Request.Context(), clients.FromContext(c).ID)
	if err != nil {
		h.fail(c, err, "load invoices")
		return
	}
	response.OK(c, list)
}

// CreateInvoice handles POST /clients/:id/invoices (agency only).
func (h *Handler) CreateInvoice(c *gin.Context) {
	client := clients.FromContext(c)
	var req InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	var due *time.Time
	if req.DueAt != "" {
		t, _ := time.Parse(time.DateOnly, req.DueAt)
		due = &t
	}
	inv, err := h.repo.CreateInvoice(c.Request.Context(), client.ID, req.Description, req.AmountCents, due)
	if err != nil {
		h.fail(c, err, "create invoice")
		return
	}
	response.Created(c, inv)
}

// PayInvoice handles POST /clients/:id/invoices/:invoiceId/pay.
func (h *Handler) PayInvoice(c *gin.Context) {
	client := clients.FromContext(c)
	invoiceID, err := uuid.Parse(c.Param("invoiceId"))
	if err != nil {
		response.BadRequest(c, "invalid invoice id")
		return
	}
	inv, txn, err := h.repo.PayInvoice(c.Request.Context(), client.ID, invoiceID)
	if err != nil {
		h.fail(c, err, "pay invoice")
		return
	}
	h.feed.Publish(c.Request.Context(), realtime.TableWallet, client.ID, txn.ID)
	response.OK(c, gin.H{"invoice": inv, "transaction": txn})
}
