package app

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"community_broadcast_bot/internal/domain/member"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMemberRepo struct {
	members []*member.Member
	listErr error
	queries []member.Query
}

func (r *fakeMemberRepo) Upsert(context.Context, *member.Member) error { return nil }
func (r *fakeMemberRepo) GetByTelegramID(context.Context, int64, int64) (*member.Member, error) {
	return nil, nil
}
func (r *fakeMemberRepo) Update(context.Context, *member.Member) error { return nil }
func (r *fakeMemberRepo) ListByGroup(context.Context, int64) ([]*member.Member, error) {
	return nil, nil
}
func (r *fakeMemberRepo) TouchLastSeen(context.Context, int64, int64, time.Time) (sql.NullTime, error) {
	return sql.NullTime{}, nil
}

func (r *fakeMemberRepo) ListEligible(_ context.Context, q member.Query) ([]*member.Member, error) {
	r.queries = append(r.queries, q)
	if r.listErr != nil {
		return nil, r.listErr
	}
	var page []*member.Member
	for _, m := range r.members {
		if m.ID <= q.AfterID {
			continue
		}
		page = append(page, m)
		if len(page) == q.Limit {
			break
		}
	}
	return page, nil
}

func quietEntry() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func TestDirectoryListEligible_PagesUntilShortPage(t *testing.T) {
	repo := &fakeMemberRepo{}
	for i := 1; i <= 450; i++ {
		repo.members = append(repo.members, &member.Member{ID: int64(i), GroupID: testGroup})
	}
	svc := NewDirectoryService(repo, 200, 10*time.Minute, quietEntry())

	got, err := svc.ListEligible(context.Background(), testGroup, member.FilterAll)

	require.NoError(t, err)
	assert.Len(t, got, 450)
	require.Len(t, repo.queries, 3)
	assert.Equal(t, int64(0), repo.queries[0].AfterID)
	assert.Equal(t, int64(200), repo.queries[1].AfterID)
	assert.Equal(t, int64(400), repo.queries[2].AfterID)
}

func TestDirectoryListEligible_OnlineFilterSetsWindow(t *testing.T) {
	repo := &fakeMemberRepo{}
	svc := NewDirectoryService(repo, 200, 10*time.Minute, quietEntry())
	fixed := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	_, err := svc.ListEligible(context.Background(), testGroup, member.FilterOnline)

	require.NoError(t, err)
	require.Len(t, repo.queries, 1)
	assert.Equal(t, fixed.Add(-10*time.Minute), repo.queries[0].OnlineSince)
}

func TestDirectoryListEligible_WrapsRepositoryError(t *testing.T) {
	repo := &fakeMemberRepo{listErr: fmt.Errorf("connection reset")}
	svc := NewDirectoryService(repo, 200, 10*time.Minute, quietEntry())

	_, err := svc.ListEligible(context.Background(), testGroup, member.FilterAll)

	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("group %d", testGroup))
	assert.Contains(t, err.Error(), "connection reset")
}
