package models

import "time"

// Outcome tags recorded for each run.
const (
	OutcomeSlotsFound        = "slots_found"
	OutcomeNoSlots           = "no_slots"
	OutcomeCaptcha           = "captcha"
	OutcomeEmailVerification = "email_verification"
	OutcomeIPBlocked         = "ip_blocked"
	OutcomeFormReset         = "form_reset"
	OutcomeError             = "error"
)

// RunRecord is one completed check, written once after retries are
// exhausted and immutable afterwards.
type RunRecord struct {
	ID        int64     `json:"id"`
	Embassy   string    `json:"embassy"`
	Location  string    `json:"location"`
	Service   string    `json:"service,omitempty"`
	RunAt     time.Time `json:"run_at"`
	Outcome   string    `json:"outcome"`
	IPAddress string    `json:"ip_address,omitempty"`
	Country   string    `json:"country,omitempty"`
	Notes     string    `json:"notes,omitempty"`
}

// SlotRecord marks a run where open appointment slots were observed.
type SlotRecord struct {
	ID         int64     `json:"id"`
	Embassy    string    `json:"embassy"`
	Location   string    `json:"location"`
	Service    string    `json:"service,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
	Notes      string    `json:"notes,omitempty"`
}

// BlockedIP is an exit address the booking site has refused.
type BlockedIP struct {
	ID        int64     `json:"id"`
	IPAddress string    `json:"ip_address"`
	Country   string    `json:"country,omitempty"`
	Embassy   string    `json:"embassy,omitempty"`
	BlockedAt time.Time `json:"blocked_at"`
	Notes     string    `json:"notes,omitempty"`
}

// OutcomeCount is one row of the outcome summary.
type OutcomeCount struct {
	Location string `json:"location"`
	Outcome  string `json:"outcome"`
	Count    int64  `json:"count"`
}

// RunsResponse is the API payload listing recent runs.
type RunsResponse struct {
	Runs  []RunRecord `json:"runs"`
	Total int         `json:"total"`
}

// BlockedIPsResponse is the API payload listing recently blocked IPs.
type BlockedIPsResponse struct {
	Blocked []BlockedIP `json:"blocked"`
	Total   int         `json:"total"`
}

// SummaryResponse aggregates outcome counts over a window.
type SummaryResponse struct {
	Since    time.Time      `json:"since"`
	Outcomes []OutcomeCount `json:"outcomes"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ErrorResponse is the API error envelope.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}
