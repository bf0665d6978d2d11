package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/pkg/database"
)

var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvoiceNotFound   = errors.New("invoice not found")
	ErrInvoiceNotPending = errors.New("invoice is not pending")
)

// Repository handles wallets, ledger entries and invoices.
type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewRepository creates a billing repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, now: time.Now}
}

var _ Store = (*Repository)(nil)

// InvoiceNumber formats the seq-th invoice of the month containing at as INV-YYYYMM-NNNN.
func InvoiceNumber(at time.Time, seq int) string {
	return fmt.Sprintf("%s%04d", invoicePrefix(at), seq)
}

func invoicePrefix(at time.Time) string {
	return "INV-" + at.UTC().Format("200601") + "-"
}

// Wallet returns the client's balance.
func (r *Repository) Wallet(ctx context.Context, clientID uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	err := r.pool.QueryRow(ctx, `SELECT client_id, balance_cents, currency, updated_at FROM client_wallets WHERE client_id = $1`,
		clientID).Scan(&w.ClientID, &w.BalanceCents, &w.Currency, &w.UpdatedAt)
	if database.IsNoRows(err) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Entry describes a wallet movement.
type Entry struct {
	ClientID    uuid.UUID
	AmountCents int64
	Description string
	Reference   string
}

// Credit adds to the balance and records the ledger entry.
func (r *Repository) Credit(ctx context.Context, e Entry) (*models.WalletTransaction, error) {
	if e.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	var tx *models.WalletTransaction
	err := database.InTx(ctx, r.pool, func(dbtx pgx.Tx) error {
		var err error
		tx, err = r.apply(ctx, dbtx, e, models.TransactionCredit,
			`UPDATE client_wallets SET balance_cents = balance_cents + $2, updated_at = NOW()
			 WHERE client_id = $1 RETURNING balance_cents`)
		return err
	})
	return tx, err
}

// Debit subtracts from the balance. The conditional update never lets the balance go negative.
func (r *Repository) Debit(ctx context.Context, e Entry) (*models.WalletTransaction, error) {
	if e.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	var tx *models.WalletTransaction
	err := database.InTx(ctx, r.pool, func(dbtx pgx.Tx) error {
		var err error
		tx, err = r.debitTx(ctx, dbtx, e)
		return err
	})
	return tx, err
}

func (r *Repository) debitTx(ctx context.Context, dbtx pgx.Tx, e Entry) (*models.WalletTransaction, error) {
	return r.apply(ctx, dbtx, e, models.TransactionDebit,
		`UPDATE client_wallets SET balance_cents = balance_cents - $2, updated_at = NOW()
		 WHERE client_id = $1 AND balance_cents >= $2 RETURNING balance_cents`)
}

func (r *Repository) apply(ctx context.Context, dbtx pgx.Tx, e Entry, kind, update string) (*models.WalletTransaction, error) {
	var balance int64
	err := dbtx.QueryRow(ctx, update, e.ClientID, e.AmountCents).Scan(&balance)
	if database.IsNoRows(err) {
		var exists bool
		if err := dbtx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM client_wallets WHERE client_id = $1)`, e.ClientID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrWalletNotFound
		}
		return nil, ErrInsufficientFunds
	}
	if err != nil {
		return nil, fmt.Errorf("update wallet: %w", err)
	}
	t := &models.WalletTransaction{
		ClientID:          e.ClientID,
		Type:              kind,
		Description:       e.Description,
		AmountCents:       e.AmountCents,
		BalanceAfterCents: balance,
		Reference:         e.Reference,
	}
	const q = `INSERT INTO wallet_transactions (client_id, type, description, amount_cents, balance_after_cents, reference)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	if err := dbtx.QueryRow(ctx, q, t.ClientID, t.Type, t.Description, t.AmountCents, t.BalanceAfterCents, t.Reference).
		Scan(&t.ID, &t.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	return t, nil
}

// Transactions returns the ledger newest first.
func (r *Repository) Transactions(ctx context.Context, clientID uuid.UUID) ([]models.WalletTransaction, error) {
	const q = `SELECT id, client_id, type, description, amount_cents, balance_after_cents, reference, created_at
		FROM wallet_transactions WHERE client_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.WalletTransaction{}
	for rows.Next() {
		var t models.WalletTransaction
		if err := rows.Scan(&t.ID, &t.ClientID, &t.Type, &t.Description, &t.AmountCents, &t.BalanceAfterCents,
			&t.Reference, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

const invoiceColumns = `id, client_id, number, description, amount_cents, status, issued_at, due_at, paid_at`

func scanInvoice(row pgx.Row) (*models.Invoice, error) {
	var inv models.Invoice
	if err := row.Scan(&inv.ID, &inv.ClientID, &inv.Number, &inv.Description, &inv.AmountCents, &inv.Status,
		&inv.IssuedAt, &inv.DueAt, &inv.PaidAt); err != nil {
		if database.IsNoRows(err) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// Invoices returns the client's invoices newest first.
func (r *Repository) Invoices(ctx context.Context, clientID uuid.UUID) ([]models.Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE client_id = $1 ORDER BY issued_at DESC`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *inv)
	}
	return list, rows.Err()
}

// CreateInvoice issues a pending invoice numbered INV-YYYYMM-NNNN within the month.
func (r *Repository) CreateInvoice(ctx context.Context, clientID uuid.UUID, description string, amountCents int64, dueAt *time.Time) (*models.Invoice, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	var inv *models.Invoice
	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		issued := r.now()
		prefix := invoicePrefix(issued)
		// serialize numbering inside the month
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, prefix); err != nil {
			return err
		}
		var seq int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) + 1 FROM invoices WHERE number LIKE $1 || '%'`, prefix).Scan(&seq); err != nil {
			return err
		}
		const q = `INSERT INTO invoices (client_id, number, description, amount_cents, due_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING ` + invoiceColumns
		var err error
		inv, err = scanInvoice(tx.QueryRow(ctx, q, clientID, InvoiceNumber(issued, seq), description, amountCents, dueAt))
		return err
	})
	return inv, err
}

// PayInvoice debits the wallet and marks the invoice paid in one transaction.
func (r *Repository) PayInvoice(ctx context.Context, clientID, invoiceID uuid.UUID) (*models.Invoice, *models.WalletTransaction, error) {
	var (
		inv *models.Invoice
		txn *models.WalletTransaction
	)
	err := database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		inv, err = scanInvoice(tx.QueryRow(ctx,
			`SELECT `+invoiceColumns+` FROM invoices WHERE client_id = $1 AND id = $2 FOR UPDATE`, clientID, invoiceID))
		if err != nil {
			return err
		}
		if inv.Status != models.InvoicePending {
			return ErrInvoiceNotPending
		}
		txn, err = r.debitTx(ctx, tx, Entry{
			ClientID:    clientID,
			AmountCents: inv.AmountCents,
			Description: "Invoice " + inv.Number,
			Reference:   inv.Number,
		})
		if err != nil {
			return err
		}
		inv, err = scanInvoice(tx.QueryRow(ctx,
			`UPDATE invoices SET status = 'paid', paid_at = NOW() WHERE id = $1 RETURNING `+invoiceColumns, invoiceID))
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return inv, txn, nil
}
