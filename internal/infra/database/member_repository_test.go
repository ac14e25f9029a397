package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"community_broadcast_bot/internal/domain/delivery"
	"community_broadcast_bot/internal/domain/member"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRepo(t *testing.T) (*SQLMemberRepository, *sql.DB) {
	t.Helper()
	db, err := Open("sqlite", filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLMemberRepository(db), db
}

func seedMember(t *testing.T, repo *SQLMemberRepository, groupID, telegramID int64, name string) *member.Member {
	t.Helper()
	m := &member.Member{
		GroupID:     groupID,
		TelegramID:  telegramID,
		DisplayName: name,
	}
	require.NoError(t, repo.Upsert(context.Background(), m))
	require.NotZero(t, m.ID)
	return m
}

func TestUpsert_InsertAndReactivate(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	m := seedMember(t, repo, -1, 1001, "alice")
	firstID := m.ID

	m.IsActive = false
	require.NoError(t, repo.Update(ctx, m))
	got, err := repo.GetByTelegramID(ctx, -1, 1001)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	rejoined := &member.Member{GroupID: -1, TelegramID: 1001, DisplayName: "alice cooper"}
	require.NoError(t, repo.Upsert(ctx, rejoined))
	assert.Equal(t, firstID, rejoined.ID, "upsert keys on (group, telegram id)")
	assert.True(t, rejoined.IsActive)

	got, err = repo.GetByTelegramID(ctx, -1, 1001)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Equal(t, "alice cooper", got.DisplayName)
}

func TestGetByTelegramID_NotFound(t *testing.T) {
	repo, _ := openTestRepo(t)

	_, err := repo.GetByTelegramID(context.Background(), -1, 9999)

	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestUpdate_NotFound(t *testing.T) {
	repo, _ := openTestRepo(t)
	ghost := &member.Member{ID: 12345, DisplayName: "nobody"}

	err := repo.Update(context.Background(), ghost)

	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestListEligible_ExcludesBotsAndInactive(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	seedMember(t, repo, -1, 1001, "alice")
	bot := &member.Member{GroupID: -1, TelegramID: 1002, DisplayName: "beep", IsBot: true}
	require.NoError(t, repo.Upsert(ctx, bot))
	inactive := seedMember(t, repo, -1, 1003, "gone")
	inactive.IsActive = false
	require.NoError(t, repo.Update(ctx, inactive))
	seedMember(t, repo, -2, 2001, "other group")

	got, err := repo.ListEligible(ctx, member.Query{GroupID: -1, Filter: member.FilterAll, Limit: 100})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1001), got[0].TelegramID)
}

func TestListEligible_KeysetPagination(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		seedMember(t, repo, -1, int64(1000+i), fmt.Sprintf("user%d", i))
	}

	var all []*member.Member
	q := member.Query{GroupID: -1, Filter: member.FilterAll, Limit: 2}
	for {
		page, err := repo.ListEligible(ctx, q)
		require.NoError(t, err)
		all = append(all, page...)
		if len(page) < q.Limit {
			break
		}
		q.AfterID = page[len(page)-1].ID
	}

	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i].ID, all[i-1].ID, "pages are ordered by internal ID")
	}
}

func TestListEligible_OnlineFilter(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	seedMember(t, repo, -1, 1001, "fresh")
	seedMember(t, repo, -1, 1002, "stale")
	seedMember(t, repo, -1, 1003, "never seen")

	now := time.Now().UTC().Truncate(time.Second)
	_, err := repo.TouchLastSeen(ctx, -1, 1001, now)
	require.NoError(t, err)
	_, err = repo.TouchLastSeen(ctx, -1, 1002, now.Add(-time.Hour))
	require.NoError(t, err)

	got, err := repo.ListEligible(ctx, member.Query{
		GroupID:     -1,
		Filter:      member.FilterOnline,
		OnlineSince: now.Add(-10 * time.Minute),
		Limit:       100,
	})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1001), got[0].TelegramID)
}

func TestListEligible_OptedInFilter(t *testing.T) {
	repo, db := openTestRepo(t)
	store := NewSQLDeliveryStore(db)
	ctx := context.Background()

	seedMember(t, repo, -1, 1001, "in")
	seedMember(t, repo, -1, 1002, "out")
	seedMember(t, repo, -1, 1003, "undecided")
	require.NoError(t, store.SetPreference(ctx, 1001, delivery.PreferenceOptedIn))
	require.NoError(t, store.SetPreference(ctx, 1002, delivery.PreferenceOptedOut))

	got, err := repo.ListEligible(ctx, member.Query{GroupID: -1, Filter: member.FilterOptedIn, Limit: 100})

	require.NoError(t, err)
	require.Len(t, got, 1, "unset is not opted in")
	assert.Equal(t, int64(1001), got[0].TelegramID)
}

func TestTouchLastSeen(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	seedMember(t, repo, -1, 1001, "alice")

	first := time.Now().UTC().Truncate(time.Second)
	prev, err := repo.TouchLastSeen(ctx, -1, 1001, first)
	require.NoError(t, err)
	assert.False(t, prev.Valid, "no previous activity on first touch")

	prev, err = repo.TouchLastSeen(ctx, -1, 1001, first.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, prev.Valid)
	assert.WithinDuration(t, first, prev.Time, time.Second)

	got, err := repo.GetByTelegramID(ctx, -1, 1001)
	require.NoError(t, err)
	require.True(t, got.LastSeenAt.Valid)
	assert.WithinDuration(t, first.Add(time.Minute), got.LastSeenAt.Time, time.Second)
}

func TestTouchLastSeen_UnknownMember(t *testing.T) {
	repo, _ := openTestRepo(t)

	_, err := repo.TouchLastSeen(context.Background(), -1, 9999, time.Now())

	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestListByGroup_IncludesInactiveAndBots(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	seedMember(t, repo, -1, 1001, "alice")
	bot := &member.Member{GroupID: -1, TelegramID: 1002, DisplayName: "beep", IsBot: true}
	require.NoError(t, repo.Upsert(ctx, bot))
	inactive := seedMember(t, repo, -1, 1003, "gone")
	inactive.IsActive = false
	require.NoError(t, repo.Update(ctx, inactive))

	got, err := repo.ListByGroup(ctx, -1)

	require.NoError(t, err)
	assert.Len(t, got, 3)
}
