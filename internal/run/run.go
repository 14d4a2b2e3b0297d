// Package run keeps a ledger of harvest cycles.
package run

import "time"

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Trigger names what started a harvest cycle.
type Trigger string

const (
	TriggerStartup  Trigger = "startup"
	TriggerSchedule Trigger = "schedule"
	TriggerAPI      Trigger = "api"
)

type Run struct {
	ID               int64      `json:"id"`
	Trigger          Trigger    `json:"trigger"`
	Status           Status     `json:"status"`
	MaxRows          int        `json:"maxRows"`
	SymbolsTotal     int        `json:"symbolsTotal"`
	SymbolsHarvested int        `json:"symbolsHarvested"`
	Error            string     `json:"error,omitempty"`
	StartedAt        time.Time  `json:"startedAt"`
	FinishedAt       *time.Time `json:"finishedAt,omitempty"`
}
