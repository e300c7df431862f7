package sync

import "github.com/google/uuid"

// SyncContext holds the configuration and run metadata shared by all
// pipeline components. It is immutable after construction; each invocation
// of the agent gets its own context so no state is shared across runs.
type SyncContext struct {
	Settings       AppSettings
	RecordRequests bool

	// CorrelationKey ties all diagnostic log lines of one run together.
	CorrelationKey string
}

// NewSyncContext creates a context for one sync run with a fresh
// correlation key.
func NewSyncContext(settings AppSettings, recordRequests bool) *SyncContext {
	return &SyncContext{
		Settings:       settings,
		RecordRequests: recordRequests,
		CorrelationKey: uuid.NewString(),
	}
}
