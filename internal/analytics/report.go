package analytics

import (
	"strconv"

	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/pkg/csvexport"
)

// Metric names, in report order.
const (
	MetricTotal            = "Total Deliverables"
	MetricApproved         = "Approved"
	MetricDelivered        = "Delivered"
	MetricPendingReview    = "Pending Review"
	MetricInRevision       = "In Revision"
	MetricRevisionRequests = "Revision Requests"
	MetricApprovalRate     = "Approval Rate (%)"
	MetricPackageUsage     = "Package Usage (%)"
)

// ReportPrefix names the export file.
const ReportPrefix = "analytics_report"

// percent returns part/whole*100 with one decimal, "0.0" when whole is zero.
func percent(part, whole int) string {
	if whole <= 0 {
		return "0.0"
	}
	return strconv.FormatFloat(float64(part)*100/float64(whole), 'f', 1, 64)
}

// Build turns raw counts into the report. Delivered posts count as approved for the rate.
func Build(c *Counts) models.ClientAnalytics {
	itoa := strconv.Itoa
	monthly := c.Monthly
	if monthly == nil {
		monthly = []models.MonthRow{}
	}
	return models.ClientAnalytics{
		Metrics: []models.Metric{
			{Name: MetricTotal, Value: itoa(c.Total)},
			{Name: MetricApproved, Value: itoa(c.Approved)},
			{Name: MetricDelivered, Value: itoa(c.Delivered)},
			{Name: MetricPendingReview, Value: itoa(c.PendingReview)},
			{Name: MetricInRevision, Value: itoa(c.InRevision)},
			{Name: MetricRevisionRequests, Value: itoa(c.RevisionRequests)},
			{Name: MetricApprovalRate, Value: percent(c.Approved+c.Delivered, c.Total)},
			{Name: MetricPackageUsage, Value: percent(c.Used, c.Allocated)},
		},
		Monthly: monthly,
	}
}

// Records lays the report out as Metric,Value rows, a blank line, then the monthly table.
func Records(a models.ClientAnalytics) [][]string {
	records := make([][]string, 0, len(a.Metrics)+len(a.Monthly)+3)
	records = append(records, []string{"Metric", "Value"})
	for _, m := range a.Metrics {
		records = append(records, []string{m.Name, m.Value})
	}
	records = append(records, []string{""})
	records = append(records, []string{"Month", "Deliverables", "Approved"})
	for _, m := range a.Monthly {
		records = append(records, []string{m.Month, strconv.Itoa(m.Deliverables), strconv.Itoa(m.Approved)})
	}
	return records
}

// CSV renders the report with its BOM.
func CSV(a models.ClientAnalytics) ([]byte, error) {
	return csvexport.Bytes(Records(a))
}
