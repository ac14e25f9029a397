package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"community_broadcast_bot/internal/domain/member"
)

// Custom errors
var ErrMemberNotFound = fmt.Errorf("member not found")

// SQLMemberRepository is the member registry backed by database/sql. The SQL
// is kept portable across the postgres and sqlite drivers: placeholders are
// $1..$n in order of occurrence, timestamps use CURRENT_TIMESTAMP.
type SQLMemberRepository struct {
	db *sql.DB
}

func NewSQLMemberRepository(db *sql.DB) *SQLMemberRepository {
	return &SQLMemberRepository{db: db}
}

const memberColumns = `id, group_id, telegram_id, display_name, username, is_bot, is_active, last_seen_at, created_at, updated_at`

func (r *SQLMemberRepository) Upsert(ctx context.Context, m *member.Member) error {
	query := `INSERT INTO members (group_id, telegram_id, display_name, username, is_bot, is_active)
              VALUES ($1, $2, $3, $4, $5, TRUE)
              ON CONFLICT (group_id, telegram_id) DO UPDATE
              SET display_name = excluded.display_name,
                  username = excluded.username,
                  is_bot = excluded.is_bot,
                  is_active = TRUE,
                  updated_at = CURRENT_TIMESTAMP
              RETURNING id`
	err := r.db.QueryRowContext(ctx, query, m.GroupID, m.TelegramID, m.DisplayName, m.Username, m.IsBot).
		Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("error upserting member: %w", err)
	}
	m.IsActive = true
	return nil
}

func (r *SQLMemberRepository) GetByTelegramID(ctx context.Context, groupID, telegramID int64) (*member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE group_id = $1 AND telegram_id = $2`
	m := &member.Member{}
	err := r.db.QueryRowContext(ctx, query, groupID, telegramID).Scan(
		&m.ID, &m.GroupID, &m.TelegramID, &m.DisplayName, &m.Username,
		&m.IsBot, &m.IsActive, &m.LastSeenAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("error getting member by Telegram ID: %w", err)
	}
	return m, nil
}

func (r *SQLMemberRepository) Update(ctx context.Context, m *member.Member) error {
	query := `UPDATE members
              SET display_name = $1, username = $2, is_active = $3, updated_at = CURRENT_TIMESTAMP
              WHERE id = $4`
	res, err := r.db.ExecContext(ctx, query, m.DisplayName, m.Username, m.IsActive, m.ID)
	if err != nil {
		return fmt.Errorf("error updating member: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *SQLMemberRepository) ListEligible(ctx context.Context, q member.Query) ([]*member.Member, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + memberColumns + ` FROM members
               WHERE group_id = $1 AND id > $2 AND is_bot = FALSE AND is_active = TRUE`)
	args := []any{q.GroupID, q.AfterID}

	switch q.Filter {
	case member.FilterOnline:
		sb.WriteString(fmt.Sprintf(" AND last_seen_at IS NOT NULL AND last_seen_at >= $%d", len(args)+1))
		args = append(args, q.OnlineSince)
	case member.FilterOptedIn:
		sb.WriteString(fmt.Sprintf(` AND EXISTS (
                   SELECT 1 FROM delivery_states ds
                   WHERE ds.recipient_id = members.telegram_id AND ds.preference = $%d)`, len(args)+1))
		args = append(args, "OPTED_IN")
	}

	sb.WriteString(fmt.Sprintf(" ORDER BY id LIMIT $%d", len(args)+1))
	args = append(args, q.Limit)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("error listing eligible members: %w", err)
	}
	defer rows.Close()
	return scanMembers(rows)
}

func (r *SQLMemberRepository) ListByGroup(ctx context.Context, groupID int64) ([]*member.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE group_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("error listing members by group: %w", err)
	}
	defer rows.Close()
	return scanMembers(rows)
}

// TouchLastSeen records activity and returns the previous last-seen value.
// Single-writer process, so the read-then-write pair needs no transaction.
func (r *SQLMemberRepository) TouchLastSeen(ctx context.Context, groupID, telegramID int64, seenAt time.Time) (sql.NullTime, error) {
	var prev sql.NullTime
	selectQ := `SELECT last_seen_at FROM members WHERE group_id = $1 AND telegram_id = $2`
	err := r.db.QueryRowContext(ctx, selectQ, groupID, telegramID).Scan(&prev)
	if err != nil {
		if err == sql.ErrNoRows {
			return prev, ErrMemberNotFound
		}
		return prev, fmt.Errorf("error reading last seen: %w", err)
	}

	updateQ := `UPDATE members SET last_seen_at = $1, updated_at = CURRENT_TIMESTAMP
               WHERE group_id = $2 AND telegram_id = $3`
	if _, err := r.db.ExecContext(ctx, updateQ, seenAt, groupID, telegramID); err != nil {
		return prev, fmt.Errorf("error updating last seen: %w", err)
	}
	return prev, nil
}

func scanMembers(rows *sql.Rows) ([]*member.Member, error) {
	members := make([]*member.Member, 0)
	for rows.Next() {
		m := &member.Member{}
		if err := rows.Scan(
			&m.ID, &m.GroupID, &m.TelegramID, &m.DisplayName, &m.Username,
			&m.IsBot, &m.IsActive, &m.LastSeenAt, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning member row: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member rows: %w", err)
	}
	return members, nil
}
