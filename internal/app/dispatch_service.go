package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"community_broadcast_bot/internal/domain/content"
	"community_broadcast_bot/internal/domain/delivery"
	"community_broadcast_bot/internal/domain/member"
	"community_broadcast_bot/internal/domain/messaging"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RecipientDirectory resolves the current eligible audience of a group. Each
// call re-reads live state; results are never cached across cycles.
type RecipientDirectory interface {
	ListEligible(ctx context.Context, groupID int64, f member.Filter) ([]*member.Member, error)
}

// ThrottlePolicy paces one dispatch cycle. Zero values disable the
// corresponding rule.
type ThrottlePolicy struct {
	ShortEvery int           // randomized pause after every Nth processed recipient
	ShortMin   time.Duration // lower bound of the randomized pause
	ShortMax   time.Duration // upper bound of the randomized pause
	LongEvery  int           // fixed pause after every Nth processed recipient
	LongDelay  time.Duration
	HardCap    int // stop the cycle entirely after this many processed recipients
}

// Report is the outcome of one dispatch cycle over one group.
type Report struct {
	GroupID int64
	Kind    content.Kind
	Sent    int
	Skipped int
	Failed  int
	Err     error
}

// DispatchConfig carries the dispatch policy out of the configuration layer.
type DispatchConfig struct {
	Groups      []int64
	Filter      member.Filter
	Throttle    ThrottlePolicy
	SendTimeout time.Duration
}

// DispatchService is the batch delivery engine. Every send in the system,
// scheduled or event-driven, funnels through it so eligibility and throttle
// rules are enforced in one place. A mutex serializes whole invocations; the
// store's atomic per-recipient claim is the second safety net.
type DispatchService struct {
	directory RecipientDirectory
	store     delivery.Store
	resolver  content.Resolver
	client    messaging.Client
	cfg       DispatchConfig
	logger    *logrus.Entry

	mu sync.Mutex

	// Seams for deterministic tests.
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	randInt func(n int) int
}

func NewDispatchService(
	dir RecipientDirectory,
	store delivery.Store,
	resolver content.Resolver,
	client messaging.Client,
	cfg DispatchConfig,
	logger *logrus.Entry,
) *DispatchService {
	return &DispatchService{
		directory: dir,
		store:     store,
		resolver:  resolver,
		client:    client,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		sleep:     sleepCtx,
		randInt:   rand.Intn,
	}
}

// DispatchAll runs one cycle of the given kind over every configured group,
// sequentially. A group whose roster fetch or content resolution fails is
// reported and skipped; the remaining groups still run.
func (s *DispatchService) DispatchAll(ctx context.Context, kind content.Kind) []Report {
	reports := make([]Report, 0, len(s.cfg.Groups))
	for _, groupID := range s.cfg.Groups {
		if ctx.Err() != nil {
			break
		}
		recipients, err := s.directory.ListEligible(ctx, groupID, s.cfg.Filter)
		if err != nil {
			s.logger.WithError(err).WithField("group_id", groupID).
				Warn("Roster fetch failed; skipping group for this cycle")
			reports = append(reports, Report{GroupID: groupID, Kind: kind, Err: err})
			continue
		}
		report, _ := s.Dispatch(ctx, groupID, kind, recipients)
		reports = append(reports, *report)
	}
	return reports
}

// Dispatch sends one notification of the given kind to each eligible
// recipient, applying the throttle policy between sends. Per-recipient
// failures never abort the batch.
func (s *DispatchService) Dispatch(ctx context.Context, groupID int64, kind content.Kind, recipients []*member.Member) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatchLocked(ctx, groupID, kind, recipients)
}

func (s *DispatchService) dispatchLocked(ctx context.Context, groupID int64, kind content.Kind, recipients []*member.Member) (*Report, error) {
	report := &Report{GroupID: groupID, Kind: kind}
	log := s.logger.WithFields(logrus.Fields{"group_id": groupID, "kind": kind})

	bundle, err := s.resolver.Resolve(groupID, kind)
	if err != nil {
		if errors.Is(err, content.ErrContentNotFound) {
			log.WithError(err).Warn("No content configured; group skipped")
		} else {
			log.WithError(err).Error("Content resolution failed; group skipped")
		}
		report.Err = err
		return report, err
	}

	start := s.now()
	day := delivery.Day(start)
	processed := 0

	for _, m := range recipients {
		if ctx.Err() != nil {
			report.Err = ctx.Err()
			return report, ctx.Err()
		}

		switch s.sendOne(ctx, m, kind, day, bundle, nil) {
		case outcomeSent:
			report.Sent++
		case outcomeSkipped:
			report.Skipped++
			continue // skips cost no platform quota and no delay
		case outcomeFailed:
			report.Failed++
		}
		processed++

		if s.cfg.Throttle.ShortEvery > 0 && processed%s.cfg.Throttle.ShortEvery == 0 {
			if err := s.sleep(ctx, s.shortDelay()); err != nil {
				report.Err = err
				return report, err
			}
		}
		if s.cfg.Throttle.LongEvery > 0 && processed%s.cfg.Throttle.LongEvery == 0 {
			if err := s.sleep(ctx, s.cfg.Throttle.LongDelay); err != nil {
				report.Err = err
				return report, err
			}
		}
		if s.cfg.Throttle.HardCap > 0 && processed >= s.cfg.Throttle.HardCap {
			log.WithField("hard_cap", s.cfg.Throttle.HardCap).
				Warn("Per-cycle hard cap reached; remaining recipients wait for the next cycle")
			break
		}
	}

	log.WithFields(logrus.Fields{
		"sent":    report.Sent,
		"skipped": report.Skipped,
		"failed":  report.Failed,
		"took":    s.now().Sub(start).String(),
	}).Info("Dispatch cycle finished")
	return report, nil
}

// NotifyOne is the single-recipient path used by event-driven triggers
// (member joined, presence transition). It runs the same eligibility checks
// as a batch cycle.
func (s *DispatchService) NotifyOne(ctx context.Context, m *member.Member, kind content.Kind, markup *telebot.ReplyMarkup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bundle, err := s.resolver.Resolve(m.GroupID, kind)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"group_id": m.GroupID, "kind": kind}).
			Warn("Content resolution failed for single-recipient notification")
		return err
	}

	switch s.sendOne(ctx, m, kind, delivery.Day(s.now()), bundle, markup) {
	case outcomeFailed:
		return fmt.Errorf("notification to recipient %d failed", m.TelegramID)
	default:
		return nil
	}
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (s *DispatchService) sendOne(ctx context.Context, m *member.Member, kind content.Kind, day string, bundle *content.Bundle, markup *telebot.ReplyMarkup) outcome {
	log := s.logger.WithFields(logrus.Fields{
		"group_id":     m.GroupID,
		"recipient_id": m.TelegramID,
		"kind":         kind,
	})

	if m.IsBot {
		log.Debug("Skipped automated account")
		return outcomeSkipped
	}

	if kind.RespectsOptOut() {
		pref, err := s.store.GetPreference(ctx, m.TelegramID)
		if err != nil {
			log.WithError(err).Error("Preference lookup failed")
			return outcomeFailed
		}
		if pref == delivery.PreferenceOptedOut {
			log.Debug("Skipped opted-out recipient")
			return outcomeSkipped
		}
	}

	claimed := false
	if kind.DailyLimited() {
		var err error
		claimed, err = s.store.TryMarkNotified(ctx, m.TelegramID, day)
		if err != nil {
			log.WithError(err).Error("State store write failed; recipient skipped this cycle")
			return outcomeFailed
		}
		if !claimed {
			log.Debug("Already notified within the current cadence window")
			return outcomeSkipped
		}
	}

	sendCtx := ctx
	if s.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, s.cfg.SendTimeout)
		defer cancel()
	}

	err := s.client.Send(sendCtx, m.TelegramID, messaging.Message{
		Text:           composeText(kind, m, bundle),
		AttachmentPath: bundle.AttachmentPath,
		Markup:         markup,
	})
	if err == nil {
		log.Info("Notification sent")
		return outcomeSent
	}

	// The claim was taken before the send; release it so the recipient is
	// retried on the next cycle instead of silently missing today.
	if claimed {
		if clearErr := s.store.ClearNotified(ctx, m.TelegramID); clearErr != nil {
			log.WithError(clearErr).Error("Failed to release claim after send failure; recipient may be skipped until the next reset")
		}
	}

	switch {
	case errors.Is(err, messaging.ErrPermissionDenied), errors.Is(err, messaging.ErrUnreachable):
		log.WithError(err).Warn("Recipient cannot be reached; no retry")
	case errors.Is(err, messaging.ErrRateLimited):
		log.WithError(err).Error("Platform rate limit hit during send")
	default:
		log.WithError(err).Error("Send failed")
	}
	return outcomeFailed
}

// composeText personalizes the daily broadcast the way the greeting template
// expects; welcome text is sent verbatim.
func composeText(kind content.Kind, m *member.Member, bundle *content.Bundle) string {
	if kind == content.KindDaily && m.DisplayName != "" {
		return fmt.Sprintf("Hello %s,\n%s", m.DisplayName, bundle.Text)
	}
	return bundle.Text
}

func (s *DispatchService) shortDelay() time.Duration {
	min, max := s.cfg.Throttle.ShortMin, s.cfg.Throttle.ShortMax
	if max <= min {
		return min
	}
	return min + time.Duration(s.randInt(int(max-min)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tmr.C:
		return nil
	}
}
