package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"community_broadcast_bot/internal/app"
	"community_broadcast_bot/internal/infra/config"
	icontent "community_broadcast_bot/internal/infra/content"
	idb "community_broadcast_bot/internal/infra/database"
	"community_broadcast_bot/internal/infra/logger"
	"community_broadcast_bot/internal/infra/scheduler"
	"community_broadcast_bot/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatalf("FATAL: Could not load application configuration: %v", err)
	}

	logger.Init(cfg)
	log := logger.Get()
	log.WithField("environment", cfg.Environment).Info("Community broadcast bot starting...")
	log.Infof("Configuration loaded. Groups: %v, Filter: %s, Store: %s", cfg.Groups(), cfg.BroadcastFilter, cfg.StoreDriver)

	// Initialize Database Connection
	db, err := idb.Open(cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		log.Fatalf("FATAL: Could not open delivery state store: %v", err)
	}
	defer db.Close()
	log.Info("Database connection established successfully.")

	// Initialize Repositories
	memberRepo := idb.NewSQLMemberRepository(db)
	deliveryStore := idb.NewSQLDeliveryStore(db)
	log.Info("Member registry and delivery state store initialized.")

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := log.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID).WithField("chat_id", c.Chat().ID)
			}
			entry.Error("Unhandled bot error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		log.Fatalf("FATAL: Could not create Telegram bot: %v", err)
	}

	// Initialize Services
	sendClient := telegram.NewTelebotAdapter(bot, cfg.SendRatePerSec)
	resolver := icontent.NewFileResolver(cfg.GroupAssets)
	directoryService := app.NewDirectoryService(
		memberRepo,
		cfg.DirectoryPageSize,
		cfg.OnlineWindow,
		log.WithField("component", "directory"),
	)
	dispatchService := app.NewDispatchService(
		directoryService,
		deliveryStore,
		resolver,
		sendClient,
		app.DispatchConfig{
			Groups: cfg.Groups(),
			Filter: cfg.BroadcastFilter,
			Throttle: app.ThrottlePolicy{
				ShortEvery: cfg.Throttle.ShortEvery,
				ShortMin:   cfg.Throttle.ShortMin,
				ShortMax:   cfg.Throttle.ShortMax,
				LongEvery:  cfg.Throttle.LongEvery,
				LongDelay:  cfg.Throttle.LongDelay,
				HardCap:    cfg.Throttle.HardCap,
			},
			SendTimeout: cfg.SendTimeout,
		},
		log.WithField("component", "dispatch"),
	)
	adminService := app.NewAdminService(memberRepo, cfg.AdminTelegramID)
	log.Info("Application services initialized.")

	// Initialize Scheduler
	broadcastScheduler := scheduler.NewBroadcastScheduler(
		dispatchService,
		deliveryStore,
		log.WithField("component", "scheduler"),
		cfg.CronSpecDailyBroadcast,
		cfg.CronSpecDailyReset,
		cfg.StartupCatchUp,
	)

	// Register Handlers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	telegram.RegisterMemberEventHandlers(ctx, bot, dispatchService, memberRepo, deliveryStore, cfg, log.WithField("component", "events"))
	telegram.RegisterBotCommands(ctx, bot, cfg, deliveryStore, log.WithField("component", "commands"))
	telegram.RegisterAdminHandlers(ctx, bot, adminService, cfg.AdminTelegramID, log.WithField("component", "admin"))
	log.Info("Handlers registered.")

	broadcastScheduler.Start()
	log.Info("Application setup complete. Bot and scheduler are starting...")

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down application...")
	cancel()
	broadcastScheduler.Stop()
	bot.Stop()
	log.Info("Application shut down gracefully.")
}
