package delivery

import "context"

// Store persists per-recipient delivery state. A single process owns all
// writes, but implementations must still use an atomic upsert per key so that
// an accidental concurrent caller cannot double-claim a cadence window.
type Store interface {
	GetPreference(ctx context.Context, recipientID int64) (Preference, error)
	// SetPreference is an idempotent last-write-wins upsert.
	SetPreference(ctx context.Context, recipientID int64, p Preference) error
	// ClearPreference resets the preference to unset (the explicit "untag"
	// action). The record itself is kept.
	ClearPreference(ctx context.Context, recipientID int64) error

	HasBeenNotified(ctx context.Context, recipientID int64, day string) (bool, error)
	// TryMarkNotified atomically claims the cadence window for a recipient.
	// It returns true exactly once per (recipient, day); a second call for
	// the same day returns false without error.
	TryMarkNotified(ctx context.Context, recipientID int64, day string) (bool, error)
	// ClearNotified releases a claim, used when the send behind a claim
	// failed so the recipient is retried on the next cycle.
	ClearNotified(ctx context.Context, recipientID int64) error
	// ResetDailyFlags clears every notified-today flag. Invoked once per
	// cadence boundary by the scheduler; returns the number of rows cleared.
	ResetDailyFlags(ctx context.Context) (int64, error)
}
