package database

import (
	"context"
	"database/sql"
	"fmt"

	"community_broadcast_bot/internal/domain/delivery"
)

// SQLDeliveryStore persists per-recipient delivery state. Every method is a
// single autocommitted statement: a write that returns success is durable
// before the dispatcher moves on to the next recipient.
type SQLDeliveryStore struct {
	db *sql.DB
}

func NewSQLDeliveryStore(db *sql.DB) *SQLDeliveryStore {
	return &SQLDeliveryStore{db: db}
}

func (s *SQLDeliveryStore) GetPreference(ctx context.Context, recipientID int64) (delivery.Preference, error) {
	query := `SELECT preference FROM delivery_states WHERE recipient_id = $1`
	var p string
	err := s.db.QueryRowContext(ctx, query, recipientID).Scan(&p)
	if err != nil {
		if err == sql.ErrNoRows {
			return delivery.PreferenceUnset, nil
		}
		return delivery.PreferenceUnset, fmt.Errorf("error getting preference: %w", err)
	}
	return delivery.Preference(p), nil
}

func (s *SQLDeliveryStore) SetPreference(ctx context.Context, recipientID int64, p delivery.Preference) error {
	query := `INSERT INTO delivery_states (recipient_id, preference)
              VALUES ($1, $2)
              ON CONFLICT (recipient_id) DO UPDATE
              SET preference = excluded.preference, updated_at = CURRENT_TIMESTAMP`
	if _, err := s.db.ExecContext(ctx, query, recipientID, string(p)); err != nil {
		return fmt.Errorf("error setting preference: %w", err)
	}
	return nil
}

func (s *SQLDeliveryStore) ClearPreference(ctx context.Context, recipientID int64) error {
	query := `UPDATE delivery_states SET preference = $1, updated_at = CURRENT_TIMESTAMP
              WHERE recipient_id = $2`
	if _, err := s.db.ExecContext(ctx, query, string(delivery.PreferenceUnset), recipientID); err != nil {
		return fmt.Errorf("error clearing preference: %w", err)
	}
	return nil
}

func (s *SQLDeliveryStore) HasBeenNotified(ctx context.Context, recipientID int64, day string) (bool, error) {
	query := `SELECT notified_on FROM delivery_states WHERE recipient_id = $1`
	var notifiedOn sql.NullString
	err := s.db.QueryRowContext(ctx, query, recipientID).Scan(&notifiedOn)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("error reading notified flag: %w", err)
	}
	return notifiedOn.Valid && notifiedOn.String == day, nil
}

// TryMarkNotified claims the cadence window with a conditional upsert: the
// update fires only when the stored day differs from the one being claimed,
// so exactly one caller per (recipient, day) sees a row affected. Comparing
// dates instead of a boolean keeps the claim correct across restarts even if
// a reset job missed its boundary.
func (s *SQLDeliveryStore) TryMarkNotified(ctx context.Context, recipientID int64, day string) (bool, error) {
	query := `INSERT INTO delivery_states (recipient_id, notified_on)
              VALUES ($1, $2)
              ON CONFLICT (recipient_id) DO UPDATE
              SET notified_on = excluded.notified_on, updated_at = CURRENT_TIMESTAMP
              WHERE delivery_states.notified_on IS NULL
                 OR delivery_states.notified_on <> excluded.notified_on`
	res, err := s.db.ExecContext(ctx, query, recipientID, day)
	if err != nil {
		return false, fmt.Errorf("error claiming notified flag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading claim result: %w", err)
	}
	return affected == 1, nil
}

func (s *SQLDeliveryStore) ClearNotified(ctx context.Context, recipientID int64) error {
	query := `UPDATE delivery_states SET notified_on = NULL, updated_at = CURRENT_TIMESTAMP
              WHERE recipient_id = $1`
	if _, err := s.db.ExecContext(ctx, query, recipientID); err != nil {
		return fmt.Errorf("error releasing notified flag: %w", err)
	}
	return nil
}

func (s *SQLDeliveryStore) ResetDailyFlags(ctx context.Context) (int64, error) {
	query := `UPDATE delivery_states SET notified_on = NULL, updated_at = CURRENT_TIMESTAMP
              WHERE notified_on IS NOT NULL`
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("error resetting daily flags: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading reset result: %w", err)
	}
	return affected, nil
}
