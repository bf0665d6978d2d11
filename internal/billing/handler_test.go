package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-portal/backend/internal/clients"
	"github.com/aura-portal/backend/internal/models"
)

type memStore struct {
	mu       sync.Mutex
	balance  int64
	txns     []models.WalletTransaction
	invoices map[uuid.UUID]*models.Invoice
}

func newMemStore(balance int64) *memStore {
	return &memStore{balance: balance, invoices: map[uuid.UUID]*models.Invoice{}}
}

func (m *memStore) Wallet(_ context.Context, clientID uuid.UUID) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &models.Wallet{ClientID: clientID, BalanceCents: m.balance, Currency: "USD"}, nil
}

func (m *memStore) record(e Entry, kind string) *models.WalletTransaction {
	t := models.WalletTransaction{ID: uuid.New(), ClientID: e.ClientID, Type: kind, AmountCents: e.AmountCents,
		Description: e.Description, Reference: e.Reference, BalanceAfterCents: m.balance}
	m.txns = append(m.txns, t)
	return &t
}

func (m *memStore) Credit(_ context.Context, e Entry) (*models.WalletTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance += e.AmountCents
	return m.record(e, models.TransactionCredit), nil
}

func (m *memStore) debit(e Entry) (*models.WalletTransaction, error) {
	if e.AmountCents > m.balance {
		return nil, ErrInsufficientFunds
	}
	m.balance -= e.AmountCents
	return m.record(e, models.TransactionDebit), nil
}

func (m *memStore) Debit(_ context.Context, e Entry) (*models.WalletTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debit(e)
}

func (m *memStore) Transactions(_ context.Context, _ uuid.UUID) ([]models.WalletTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.WalletTransaction(nil), m.txns...), nil
}

func (m *memStore) Invoices(_ context.Context, _ uuid.UUID) ([]models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []models.Invoice{}
	for _, inv := range m.invoices {
		list = append(list, *inv)
	}
	return list, nil
}

func (m *memStore) CreateInvoice(_ context.Context, clientID uuid.UUID, description string, amountCents int64, dueAt *time.Time) (*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv := &models.Invoice{ID: uuid.New(), ClientID: clientID, Description: description, AmountCents: amountCents,
		Status: models.InvoicePending, DueAt: dueAt,
		Number: InvoiceNumber(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), len(m.invoices)+1)}
	m.invoices[inv.ID] = inv
	cp := *inv
	return &cp, nil
}

func (m *memStore) PayInvoice(_ context.Context, _, invoiceID uuid.UUID) (*models.Invoice, *models.WalletTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[invoiceID]
	if !ok {
		return nil, nil, ErrInvoiceNotFound
	}
	if inv.Status != models.InvoicePending {
		return nil, nil, ErrInvoiceNotPending
	}
	txn, err := m.debit(Entry{ClientID: inv.ClientID, AmountCents: inv.AmountCents, Reference: inv.Number})
	if err != nil {
		return nil, nil, err
	}
	inv.Status = models.InvoicePaid
	cp := *inv
	return &cp, txn, nil
}

type recordingFeed struct{ tables []string }

func (f *recordingFeed) Publish(_ context.Context, table string, _, _ uuid.UUID) {
	f.tables = append(f.tables, table)
}

type billingFixture struct {
	router *gin.Engine
	store  *memStore
	feed   *recordingFeed
	client *models.Client
}

func newBillingFixture(balance int64) *billingFixture {
	gin.SetMode(gin.TestMode)
	f := &billingFixture{
		store:  newMemStore(balance),
		feed:   &recordingFeed{},
		client: &models.Client{ID: uuid.New(), Name: "Acme"},
	}
	h := NewHandler(f.store, f.feed, nil)
	r := gin.New()
	g := r.Group("/clients/:id", func(c *gin.Context) { c.Set(clients.ContextClient, f.client) })
	g.GET("/wallet", h.Wallet)
	g.POST("/wallet/credit", h.Credit)
	g.POST("/wallet/debit", h.Debit)
	g.POST("/invoices", h.CreateInvoice)
	g.POST("/invoices/:invoiceId/pay", h.PayInvoice)
	f.router = r
	return f
}

func (f *billingFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/clients/"+f.client.ID.String()+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	var body struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NoError(t, json.Unmarshal(body.Data, v))
}

func TestEntriesRejectNonPositiveAmounts(t *testing.T) {
	f := newBillingFixture(1000)
	for _, body := range []string{
		`{"amount_cents":0,"description":"top up"}`,
		`{"amount_cents":-500,"description":"top up"}`,
	} {
		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/wallet/credit", body).Code, body)
		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/wallet/debit", body).Code, body)
	}
	assert.Empty(t, f.store.txns)
	assert.Empty(t, f.feed.tables)
}

func TestDebitNeverOverdraws(t *testing.T) {
	f := newBillingFixture(1000)

	w := f.do(t, http.MethodPost, "/wallet/debit", `{"amount_cents":1500,"description":"rush fee"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, int64(1000), f.store.balance)
	assert.Empty(t, f.feed.tables)

	w = f.do(t, http.MethodPost, "/wallet/debit", `{"amount_cents":1000,"description":"rush fee"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var txn models.WalletTransaction
	decodeData(t, w, &txn)
	assert.Equal(t, int64(0), txn.BalanceAfterCents)
	assert.Equal(t, models.TransactionDebit, txn.Type)
	assert.Len(t, f.feed.tables, 1)
}

func TestPayInvoiceOnlyOnce(t *testing.T) {
	f := newBillingFixture(5000)

	w := f.do(t, http.MethodPost, "/invoices", `{"description":"March retainer","amount_cents":3000,"due_at":"2026-03-31"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var inv models.Invoice
	decodeData(t, w, &inv)
	assert.Equal(t, "INV-202603-0001", inv.Number)
	require.NotNil(t, inv.DueAt)

	w = f.do(t, http.MethodPost, "/invoices/"+inv.ID.String()+"/pay", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2000), f.store.balance)

	w = f.do(t, http.MethodPost, "/invoices/"+inv.ID.String()+"/pay", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, int64(2000), f.store.balance)
}

func TestPayInvoiceErrors(t *testing.T) {
	f := newBillingFixture(100)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/invoices/not-a-uuid/pay", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/invoices/"+uuid.NewString()+"/pay", "").Code)

	w := f.do(t, http.MethodPost, "/invoices", `{"description":"Shoot","amount_cents":900}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var inv models.Invoice
	decodeData(t, w, &inv)
	w = f.do(t, http.MethodPost, "/invoices/"+inv.ID.String()+"/pay", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, models.InvoicePending, f.store.invoices[inv.ID].Status)
}

func TestCreateInvoiceValidation(t *testing.T) {
	f := newBillingFixture(0)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/invoices", `{"description":"x","amount_cents":0}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/invoices", `{"description":"x","amount_cents":10,"due_at":"31/03/2026"}`).Code)
}

func TestInvoiceNumber(t *testing.T) {
	at := time.Date(2026, 11, 30, 23, 0, 0, 0, time.FixedZone("UTC-5", -5*3600))
	assert.Equal(t, "INV-202612-0001", InvoiceNumber(at, 1), "numbered in UTC")
	assert.Equal(t, "INV-202601-0042", InvoiceNumber(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), 42))
}
