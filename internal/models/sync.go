package models

import "time"

// SymbolState is the lifecycle of one symbol inside a sync run.
type SymbolState string

const (
	StatePending    SymbolState = "PENDING"
	StateFetching   SymbolState = "FETCHING"
	StateProcessing SymbolState = "PROCESSING"
	StateDone       SymbolState = "DONE"
	StateFailed     SymbolState = "FAILED"
	StateSkipped    SymbolState = "SKIPPED"
)

// ProcessResult is the outcome of processing one symbol and range.
type ProcessResult struct {
	Symbol        string    `json:"symbol"`
	Frequency     Frequency `json:"frequency"`
	Success       bool      `json:"success"`
	Error         string    `json:"error,omitempty"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	RowsFetched   int       `json:"rows_fetched"`
	RowsWritten   int       `json:"rows_written"`
	RowsInvalid   int       `json:"rows_invalid"`
	RowsUnchanged int       `json:"rows_unchanged"`
	LastDataDate  time.Time `json:"last_data_date,omitempty"`
}

// SymbolOutcome is one symbol's entry in a SyncResult.
type SymbolOutcome struct {
	Symbol      string      `json:"symbol"`
	State       SymbolState `json:"state"`
	RowsWritten int         `json:"rows_written"`
	RowsInvalid int         `json:"rows_invalid"`
	Error       string      `json:"error,omitempty"`
	ErrorKind   string      `json:"error_kind,omitempty"`
}

// SyncResult summarises one coordinator invocation. It is returned, never stored.
type SyncResult struct {
	RunID        string                   `json:"run_id"`
	TargetDate   time.Time                `json:"target_date"`
	TotalSymbols int                      `json:"total_symbols"`
	SuccessCount int                      `json:"success_count"`
	FailedCount  int                      `json:"failed_count"`
	SkippedCount int                      `json:"skipped_count"`
	Symbols      map[string]SymbolOutcome `json:"symbols"`
	Errors       map[string]string        `json:"errors"`
	StartedAt    time.Time                `json:"started_at"`
	FinishedAt   time.Time                `json:"finished_at"`
}

// AllFailed reports whether every symbol in a non-empty run failed.
func (r *SyncResult) AllFailed() bool {
	return r.TotalSymbols > 0 && r.FailedCount == r.TotalSymbols
}

// Sync status values stored per (symbol, frequency).
const (
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
	SyncStatusSkipped   = "skipped"
)

// SyncStatus is the persisted bookkeeping row for one (symbol, frequency).
type SyncStatus struct {
	Symbol       string    `json:"symbol"`
	Frequency    Frequency `json:"frequency"`
	LastSyncDate time.Time `json:"last_sync_date"`
	LastDataDate time.Time `json:"last_data_date"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message"`
	TotalRecords int       `json:"total_records"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Gap severity labels.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Gap is a run of consecutive missing trading days.
type Gap struct {
	Symbol       string    `json:"symbol"`
	Frequency    Frequency `json:"frequency"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	TradingDays  int       `json:"trading_days"`
	CalendarDays int       `json:"calendar_days"`
	Severity     string    `json:"severity"`
}

// GapSeverity grades a gap by its calendar length.
func GapSeverity(calendarDays int) string {
	switch {
	case calendarDays <= 1:
		return SeverityLow
	case calendarDays <= 3:
		return SeverityMedium
	case calendarDays <= 7:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}
