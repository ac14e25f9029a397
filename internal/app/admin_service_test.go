package app

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"community_broadcast_bot/internal/domain/member"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminID int64 = 777000

type registryFake struct {
	nextID  int64
	byID    map[int64]*member.Member
	updates int
}

func newRegistryFake() *registryFake {
	return &registryFake{byID: make(map[int64]*member.Member)}
}

func (r *registryFake) Upsert(_ context.Context, m *member.Member) error {
	for _, existing := range r.byID {
		if existing.GroupID == m.GroupID && existing.TelegramID == m.TelegramID {
			existing.DisplayName = m.DisplayName
			existing.Username = m.Username
			existing.IsActive = true
			*m = *existing
			return nil
		}
	}
	r.nextID++
	m.ID = r.nextID
	m.IsActive = true
	cp := *m
	r.byID[m.ID] = &cp
	return nil
}

func (r *registryFake) GetByTelegramID(_ context.Context, groupID, telegramID int64) (*member.Member, error) {
	for _, m := range r.byID {
		if m.GroupID == groupID && m.TelegramID == telegramID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, errNotFound
}

func (r *registryFake) Update(_ context.Context, m *member.Member) error {
	stored, ok := r.byID[m.ID]
	if !ok {
		return errNotFound
	}
	r.updates++
	*stored = *m
	return nil
}

func (r *registryFake) ListEligible(context.Context, member.Query) ([]*member.Member, error) {
	return nil, nil
}

func (r *registryFake) ListByGroup(_ context.Context, groupID int64) ([]*member.Member, error) {
	var out []*member.Member
	for _, m := range r.byID {
		if m.GroupID == groupID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *registryFake) TouchLastSeen(context.Context, int64, int64, time.Time) (sql.NullTime, error) {
	return sql.NullTime{}, nil
}

var errNotFound = assert.AnError

func TestRegisterMember(t *testing.T) {
	repo := newRegistryFake()
	svc := NewAdminService(repo, adminID)

	m, err := svc.RegisterMember(context.Background(), adminID, testGroup, 1001, "alice", "alice_w")

	require.NoError(t, err)
	assert.NotZero(t, m.ID)
	assert.True(t, m.IsActive)
	assert.Equal(t, "alice_w", m.Username.String)
	assert.True(t, m.Username.Valid)
}

func TestRegisterMember_Idempotent(t *testing.T) {
	repo := newRegistryFake()
	svc := NewAdminService(repo, adminID)
	ctx := context.Background()

	first, err := svc.RegisterMember(ctx, adminID, testGroup, 1001, "alice", "")
	require.NoError(t, err)

	second, err := svc.RegisterMember(ctx, adminID, testGroup, 1001, "alice cooper", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "alice cooper", second.DisplayName)
}

func TestRegisterMember_Unauthorized(t *testing.T) {
	svc := NewAdminService(newRegistryFake(), adminID)

	_, err := svc.RegisterMember(context.Background(), adminID+1, testGroup, 1001, "mallory", "")

	assert.ErrorIs(t, err, ErrAdminNotAuthorized)
}

func TestDeactivateMember(t *testing.T) {
	repo := newRegistryFake()
	svc := NewAdminService(repo, adminID)
	ctx := context.Background()

	_, err := svc.RegisterMember(ctx, adminID, testGroup, 1001, "alice", "")
	require.NoError(t, err)

	m, err := svc.DeactivateMember(ctx, adminID, testGroup, 1001)
	require.NoError(t, err)
	assert.False(t, m.IsActive)

	_, err = svc.DeactivateMember(ctx, adminID, testGroup, 1001)
	assert.ErrorIs(t, err, ErrMemberAlreadyInactive)
	assert.Equal(t, 1, repo.updates, "already-inactive members are not rewritten")
}

func TestDeactivateMember_UnknownMember(t *testing.T) {
	svc := NewAdminService(newRegistryFake(), adminID)

	_, err := svc.DeactivateMember(context.Background(), adminID, testGroup, 9999)

	assert.Error(t, err)
}

func TestListMembers_Unauthorized(t *testing.T) {
	svc := NewAdminService(newRegistryFake(), adminID)

	_, err := svc.ListMembers(context.Background(), adminID+1, testGroup)

	assert.ErrorIs(t, err, ErrAdminNotAuthorized)
}
