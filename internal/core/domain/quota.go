package domain

import "time"

const (
	PlanFree = "free"
	PlanPro  = "pro"
)

const (
	OperationExpenseExtract   = "expense_extract"
	OperationCallSheetExtract = "callsheet_extract"
)

type QuotaStatus struct {
	Allowed   bool      `json:"allowed"`
	Plan      string    `json:"plan"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"resetAt"`
}

// MonthStart returns the first instant of t's calendar month in UTC.
func MonthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}
