package model

import (
	"database/sql"
	"time"
)

// Invite is a single-use registration token issued by an admin.
type Invite struct {
	ID        int64
	Token     string
	Email     string
	Role      string
	CreatedBy int64
	ExpiresAt time.Time
	UsedAt    sql.NullTime
	CreatedAt time.Time
}

// Usable reports whether the invite can still be redeemed at the given time.
func (i *Invite) Usable(now time.Time) bool {
	return !i.UsedAt.Valid && now.Before(i.ExpiresAt)
}
