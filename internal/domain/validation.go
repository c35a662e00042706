package domain

import "time"

// CheckType names one consistency check.
type CheckType string

const (
	CheckPnLConsistency      CheckType = "PNL_CONSISTENCY"
	CheckBalanceConsistency  CheckType = "BALANCE_CONSISTENCY"
	CheckFeeConsistency      CheckType = "FEE_CONSISTENCY"
	CheckDrawdownConsistency CheckType = "DRAWDOWN_CONSISTENCY"
	CheckDataIntegrity       CheckType = "DATA_INTEGRITY"
)

// CheckStatus is the outcome of a single check entry.
type CheckStatus string

const (
	CheckPass    CheckStatus = "PASS"
	CheckWarning CheckStatus = "WARNING"
	CheckFail    CheckStatus = "FAIL"
)

// OverallStatus aggregates every check entry of a report.
type OverallStatus string

const (
	StatusValid   OverallStatus = "VALID"
	StatusWarning OverallStatus = "WARNING"
	StatusError   OverallStatus = "ERROR"
)

// ValidationCheck is one entry of a ValidationReport.
type ValidationCheck struct {
	Type          CheckType   `json:"type"`
	Status        CheckStatus `json:"status"`
	Description   string      `json:"description"`
	Details       string      `json:"details,omitempty"`
	TradeID       string      `json:"tradeId,omitempty"`
	ExpectedValue *float64    `json:"expectedValue,omitempty"`
	ActualValue   *float64    `json:"actualValue,omitempty"`
	Tolerance     *float64    `json:"tolerance,omitempty"`
}

// ValidationSummary counts check entries by status.
type ValidationSummary struct {
	TotalChecks   int `json:"totalChecks"`
	PassedChecks  int `json:"passedChecks"`
	WarningChecks int `json:"warningChecks"`
	FailedChecks  int `json:"failedChecks"`
}

// ValidationReport is the read-only result of a consistency run.
type ValidationReport struct {
	UserID        string            `json:"userId"`
	Timestamp     time.Time         `json:"timestamp"`
	OverallStatus OverallStatus     `json:"overallStatus"`
	Checks        []ValidationCheck `json:"checks"`
	Summary       ValidationSummary `json:"summary"`
}

// Finalize recomputes the summary and overall status from the check entries.
func (r *ValidationReport) Finalize() {
	r.Summary = ValidationSummary{TotalChecks: len(r.Checks)}
	for _, c := range r.Checks {
		switch c.Status {
		case CheckPass:
			r.Summary.PassedChecks++
		case CheckWarning:
			r.Summary.WarningChecks++
		default:
			r.Summary.FailedChecks++
		}
	}
	switch {
	case r.Summary.FailedChecks > 0:
		r.OverallStatus = StatusError
	case r.Summary.WarningChecks > 0:
		r.OverallStatus = StatusWarning
	default:
		r.OverallStatus = StatusValid
	}
}
