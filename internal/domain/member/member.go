package member

import (
	"database/sql"
	"time"
)

// Member represents one human (or bot) account inside a configured group.
// The registry is fed from join events and admin commands; the platform does
// not expose a full roster API to bots, so this table IS the roster.
type Member struct {
	ID          int64
	GroupID     int64 // platform chat identifier of the group
	TelegramID  int64
	DisplayName string
	Username    sql.NullString
	IsBot       bool
	IsActive    bool
	LastSeenAt  sql.NullTime
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OnlineSince reports whether the member showed activity at or after the
// given instant.
func (m *Member) OnlineSince(t time.Time) bool {
	return m.LastSeenAt.Valid && !m.LastSeenAt.Time.Before(t)
}

// Filter selects which slice of a group's membership is eligible for a
// dispatch cycle. Bots and deactivated members are excluded regardless of
// the filter.
type Filter string

const (
	FilterAll     Filter = "all"
	FilterOnline  Filter = "online"
	FilterOptedIn Filter = "opted_in"
)

// ParseFilter validates a filter name from configuration.
func ParseFilter(s string) (Filter, bool) {
	switch Filter(s) {
	case FilterAll, FilterOnline, FilterOptedIn:
		return Filter(s), true
	}
	return "", false
}
