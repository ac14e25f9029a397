package scheduler

import (
	"context"
	"time"

	"community_broadcast_bot/internal/app"
	"community_broadcast_bot/internal/domain/content"
	"community_broadcast_bot/internal/domain/delivery"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Per-cycle budget: the throttle policy alone can hold a full cycle for tens
// of minutes (40s every 100 recipients), so the job context is generous.
const dispatchCycleTimeout = 45 * time.Minute

// BroadcastScheduler drives the recurring work: the daily broadcast cycle
// and the cadence-boundary reset of the notified-today flags. Every trigger
// funnels through the DispatchService, which owns eligibility and throttling.
type BroadcastScheduler struct {
	cronEngine      *cron.Cron
	dispatchService *app.DispatchService
	store           delivery.Store
	logger          *logrus.Entry

	specDailyBroadcast string
	specDailyReset     string
	startupCatchUp     bool
}

func NewBroadcastScheduler(
	dispatchService *app.DispatchService,
	store delivery.Store,
	logger *logrus.Entry,
	specDailyBroadcast string, // e.g. "0 13 * * *" (13:00 daily)
	specDailyReset string, // e.g. "0 0 * * *" (midnight)
	startupCatchUp bool,
) *BroadcastScheduler {
	return &BroadcastScheduler{
		cronEngine:         cron.New(cron.WithLocation(time.Local)), // cadence windows follow server local time
		dispatchService:    dispatchService,
		store:              store,
		logger:             logger,
		specDailyBroadcast: specDailyBroadcast,
		specDailyReset:     specDailyReset,
		startupCatchUp:     startupCatchUp,
	}
}

func (s *BroadcastScheduler) Start() {
	s.logger.Info("Starting broadcast scheduler...")

	_, err := s.cronEngine.AddFunc(s.specDailyBroadcast, func() {
		s.logger.Info("Cron job triggered for daily broadcast.")
		s.runBroadcastCycle()
	})
	if err != nil {
		s.logger.Fatalf("FATAL: Could not add daily broadcast cron job: %v", err)
	}

	_, err = s.cronEngine.AddFunc(s.specDailyReset, func() {
		s.logger.Info("Cron job triggered for cadence-boundary reset.")
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		cleared, err := s.store.ResetDailyFlags(ctx)
		if err != nil {
			s.logger.WithError(err).Error("Daily flag reset failed")
			return
		}
		s.logger.WithField("cleared", cleared).Info("Daily notified flags reset")
	})
	if err != nil {
		s.logger.Fatalf("FATAL: Could not add daily reset cron job: %v", err)
	}

	s.cronEngine.Start()
	s.logger.Info("Broadcast scheduler started with jobs.")

	if s.startupCatchUp {
		// The claim check makes a catch-up pass safe: anyone already
		// notified today is skipped, so a restart never double-sends.
		s.logger.Info("Startup catch-up enabled; running an immediate broadcast pass.")
		go s.runBroadcastCycle()
	}
}

func (s *BroadcastScheduler) runBroadcastCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchCycleTimeout)
	defer cancel()

	reports := s.dispatchService.DispatchAll(ctx, content.KindDaily)
	for _, r := range reports {
		entry := s.logger.WithFields(logrus.Fields{
			"group_id": r.GroupID,
			"sent":     r.Sent,
			"skipped":  r.Skipped,
			"failed":   r.Failed,
		})
		if r.Err != nil {
			entry.WithError(r.Err).Warn("Broadcast cycle finished for group with error")
		} else {
			entry.Info("Broadcast cycle finished for group")
		}
	}
}

func (s *BroadcastScheduler) Stop() {
	s.logger.Info("Stopping broadcast scheduler...")
	ctx := s.cronEngine.Stop() // waits for running jobs
	<-ctx.Done()
	s.logger.Info("Broadcast scheduler gracefully stopped.")
}
