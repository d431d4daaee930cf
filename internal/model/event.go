package model

import (
	"database/sql"
	"time"
)

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryAuth      = "auth"
	EventCategoryBudget    = "budget"
	EventCategoryLedger    = "ledger"
	EventCategoryUser      = "user"
	EventCategoryConfig    = "config"
	EventCategorySystem    = "system"
	EventCategoryNotify    = "notify"
	EventCategoryScheduler = "scheduler"
)

// Event represents an audit log entry.
type Event struct {
	ID        int64
	Level     string
	Category  string
	Message   string
	UserID    sql.NullInt64
	IPAddress string
	Metadata  string // JSON string
	CreatedAt time.Time
}
