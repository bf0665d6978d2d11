package models

// Metric is one named value in a client analytics report.
type Metric struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// MonthRow is deliverable throughput for one calendar month (YYYY-MM).
type MonthRow struct {
	Month        string `json:"month"`
	Deliverables int    `json:"deliverables"`
	Approved     int    `json:"approved"`
}

// ClientAnalytics is the report shown on the analytics tab and exported as CSV.
type ClientAnalytics struct {
	Metrics []Metric   `json:"metrics"`
	Monthly []MonthRow `json:"monthly"`
}
