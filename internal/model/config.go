package model

import "time"

// Well-known config keys.
const (
	ConfigKeySiteName      = "site_name"
	ConfigKeyCurrency      = "currency"
	ConfigKeyMonthStartDay = "month_start_day"
)

// Config is a single key/value settings entry.
type Config struct {
	ID        int64
	Key       string
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
