package member

import (
	"context"
	"database/sql"
	"time"
)

// Query describes one page of an eligibility listing. AfterID is the keyset
// cursor: only rows with a larger internal ID are returned, ordered by ID.
type Query struct {
	GroupID     int64
	Filter      Filter
	OnlineSince time.Time // used when Filter == FilterOnline
	AfterID     int64
	Limit       int
}

// Repository defines the operations for persisting and retrieving Member
// entities.
type Repository interface {
	// Upsert inserts the member or reactivates/refreshes an existing row
	// keyed by (group, telegram id). The member's ID is populated.
	Upsert(ctx context.Context, m *Member) error
	GetByTelegramID(ctx context.Context, groupID, telegramID int64) (*Member, error)
	Update(ctx context.Context, m *Member) error
	// ListEligible returns one page of eligible members. Bots and inactive
	// members never appear in the result.
	ListEligible(ctx context.Context, q Query) ([]*Member, error)
	// ListByGroup returns every registered member of a group, active or not.
	ListByGroup(ctx context.Context, groupID int64) ([]*Member, error)
	// TouchLastSeen records activity for a member and returns the previous
	// last-seen value so callers can detect an offline-to-online transition.
	TouchLastSeen(ctx context.Context, groupID, telegramID int64, seenAt time.Time) (sql.NullTime, error)
}
