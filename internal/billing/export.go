package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/pkg/csvexport"
)

// PaymentHistoryHeader is the first row of the payment history export.
var PaymentHistoryHeader = []string{"Date", "Type", "Description", "Amount", "Balance After"}

// PaymentHistoryPrefix names the export file.
const PaymentHistoryPrefix = "payment_history"

// FormatCents renders cents as a decimal amount, e.g. 1250 -> "12.50".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func typeLabel(kind string) string {
	if kind == "" {
		return ""
	}
	return strings.ToUpper(kind[:1]) + kind[1:]
}

// PaymentHistoryRecords builds the CSV rows for a ledger.
func PaymentHistoryRecords(txns []models.WalletTransaction) [][]string {
	records := make([][]string, 0, len(txns)+1)
	records = append(records, PaymentHistoryHeader)
	for _, t := range txns {
		records = append(records, []string{
			t.CreatedAt.UTC().Format(time.DateOnly),
			typeLabel(t.Type),
			t.Description,
			FormatCents(t.AmountCents),
			FormatCents(t.BalanceAfterCents),
		})
	}
	return records
}

// PaymentHistoryCSV renders the export with its BOM.
func PaymentHistoryCSV(txns []models.WalletTransaction) ([]byte, error) {
	return csvexport.Bytes(PaymentHistoryRecords(txns))
}
