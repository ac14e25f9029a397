package app

import (
	"context"
	"database/sql"
	"fmt"

	"community_broadcast_bot/internal/domain/member"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
var ErrMemberAlreadyInactive = fmt.Errorf("member is already inactive")

// AdminService manages the member registry by operator command. The platform
// exposes no roster API to bots, so besides join events this is the only way
// rows enter or leave the registry.
type AdminService struct {
	members         member.Repository
	adminTelegramID int64
}

func NewAdminService(mr member.Repository, adminID int64) *AdminService {
	return &AdminService{
		members:         mr,
		adminTelegramID: adminID,
	}
}

// RegisterMember adds a member to a group's registry, or reactivates and
// refreshes an existing row. Idempotent.
func (s *AdminService) RegisterMember(ctx context.Context, performingAdminID, groupID, telegramID int64, displayName, username string) (*member.Member, error) {
	if performingAdminID != s.adminTelegramID {
		return nil, ErrAdminNotAuthorized
	}

	m := &member.Member{
		GroupID:     groupID,
		TelegramID:  telegramID,
		DisplayName: displayName,
	}
	if username != "" {
		m.Username = sql.NullString{String: username, Valid: true}
	}

	if err := s.members.Upsert(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to register member in repository: %w", err)
	}
	return m, nil
}

// DeactivateMember removes a member from all future dispatch cycles without
// deleting their row.
func (s *AdminService) DeactivateMember(ctx context.Context, performingAdminID, groupID, telegramID int64) (*member.Member, error) {
	if performingAdminID != s.adminTelegramID {
		return nil, ErrAdminNotAuthorized
	}

	target, err := s.members.GetByTelegramID(ctx, groupID, telegramID)
	if err != nil {
		return nil, err
	}

	if !target.IsActive {
		return target, ErrMemberAlreadyInactive
	}

	target.IsActive = false
	if err := s.members.Update(ctx, target); err != nil {
		return nil, fmt.Errorf("failed to deactivate member in repository: %w", err)
	}
	return target, nil
}

// ListMembers returns every registered member of a group, active or not.
func (s *AdminService) ListMembers(ctx context.Context, performingAdminID, groupID int64) ([]*member.Member, error) {
	if performingAdminID != s.adminTelegramID {
		return nil, ErrAdminNotAuthorized
	}
	return s.members.ListByGroup(ctx, groupID)
}
