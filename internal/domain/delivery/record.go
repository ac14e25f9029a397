package delivery

import (
	"database/sql"
	"time"
)

// Preference is a recipient-controlled setting for opt-in message kinds.
type Preference string

const (
	PreferenceUnset    Preference = "UNSET"
	PreferenceOptedIn  Preference = "OPTED_IN"
	PreferenceOptedOut Preference = "OPTED_OUT"
)

// Record is the durable per-recipient delivery state. Exactly one row exists
// per recipient; NotifiedOn holds the calendar day (YYYY-MM-DD) of the last
// daily send, or NULL when the recipient is eligible again.
type Record struct {
	RecipientID int64
	Preference  Preference
	NotifiedOn  sql.NullString
	UpdatedAt   time.Time
}

// Day formats a point in time as the cadence-window key. The window is one
// calendar day in the process's local time zone.
func Day(t time.Time) string {
	return t.Format("2006-01-02")
}
