package app

import (
	"context"
	"fmt"
	"time"

	"community_broadcast_bot/internal/domain/member"

	"github.com/sirupsen/logrus"
)

const defaultPageSize = 200

// DirectoryService resolves the eligible recipients of a group from the
// member registry. Group populations can exceed any single fetch, so it
// pages with a keyset cursor until a short page signals the end.
type DirectoryService struct {
	repo         member.Repository
	pageSize     int
	onlineWindow time.Duration
	logger       *logrus.Entry

	now func() time.Time
}

func NewDirectoryService(repo member.Repository, pageSize int, onlineWindow time.Duration, logger *logrus.Entry) *DirectoryService {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &DirectoryService{
		repo:         repo,
		pageSize:     pageSize,
		onlineWindow: onlineWindow,
		logger:       logger,
		now:          time.Now,
	}
}

// ListEligible returns the group's current eligible recipients under the
// given filter, in registry iteration order. Automated accounts are excluded
// unconditionally by the underlying query.
func (s *DirectoryService) ListEligible(ctx context.Context, groupID int64, f member.Filter) ([]*member.Member, error) {
	q := member.Query{
		GroupID: groupID,
		Filter:  f,
		Limit:   s.pageSize,
	}
	if f == member.FilterOnline {
		q.OnlineSince = s.now().Add(-s.onlineWindow)
	}

	var all []*member.Member
	for {
		page, err := s.repo.ListEligible(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("fetching roster page for group %d: %w", groupID, err)
		}
		all = append(all, page...)
		if len(page) < q.Limit {
			break
		}
		q.AfterID = page[len(page)-1].ID
	}

	s.logger.WithFields(logrus.Fields{
		"group_id": groupID,
		"filter":   f,
		"count":    len(all),
	}).Debug("Resolved eligible recipients")
	return all, nil
}
