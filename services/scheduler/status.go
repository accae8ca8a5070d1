package scheduler

import (
	"time"

	"github.com/customeros/violationstack/dto"
)

type TenantResult string

const (
	TenantSucceeded TenantResult = "succeeded"
	TenantFailed    TenantResult = "failed"
	// TenantBusy means the previous session for the tenant was still running.
	TenantBusy TenantResult = "busy"
)

type TenantStatus struct {
	TenantID   string                  `json:"tenantId"`
	Result     TenantResult            `json:"result"`
	StartedAt  time.Time               `json:"startedAt"`
	Duration   time.Duration           `json:"duration"`
	Fetched    int                     `json:"fetched"`
	Created    int                     `json:"created"`
	Outcomes   map[dto.OutcomeKind]int `json:"outcomes,omitempty"`
	Error      string                  `json:"error,omitempty"`
	LastOkAt   *time.Time              `json:"lastOkAt,omitempty"`
	FailStreak int                     `json:"failStreak"`
}

type CycleReport struct {
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Tenants    int            `json:"tenants"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Busy       int            `json:"busy"`
	Messages   int            `json:"messages"`
	Results    []TenantStatus `json:"results"`
	Error      string         `json:"error,omitempty"`
}

type Status struct {
	Running   bool           `json:"running"`
	Cycles    int64          `json:"cycles"`
	LastCycle *CycleReport   `json:"lastCycle,omitempty"`
	Tenants   []TenantStatus `json:"tenants"`
}
