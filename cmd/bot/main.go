package main

import (
	"context"
	"io"
	"os/signal"
	"syscall"
	"time"

	"explain_yourself_bot/internal/app"
	"explain_yourself_bot/internal/domain/moderation"
	"explain_yourself_bot/internal/domain/post"
	"explain_yourself_bot/internal/infra/config"
	idb "explain_yourself_bot/internal/infra/database"
	"explain_yourself_bot/internal/infra/logger"
	"explain_yourself_bot/internal/infra/memstore"
	"explain_yourself_bot/internal/infra/modapi"
	"explain_yourself_bot/internal/infra/redisstore"
	"explain_yourself_bot/internal/infra/retry"
	"explain_yourself_bot/internal/infra/scheduler"
	"explain_yourself_bot/internal/infra/telegram"
	"explain_yourself_bot/internal/infra/webhook"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Log.WithField("component", "main")
	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"subreddit":   cfg.Subreddit,
		"store":       cfg.StoreDriver,
	}).Info("Explain yourself bot starting...")

	if cfg.SentryDSN != "" {
		flush, err := logger.InitSentry(cfg.SentryDSN, cfg.Environment)
		if err != nil {
			mainLogger.WithError(err).Warn("Sentry disabled")
		} else {
			defer flush()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not open store")
	}
	defer closer.Close()
	repo := post.NewRepository(store)
	mainLogger.Info("Store initialized")

	// Moderation calls run against the in-process API until a platform
	// client is configured.
	api := modapi.NewRateLimited(
		modapi.NewMemory(
			moderation.User{ID: cfg.BotUserID, Name: cfg.BotUsername},
			modapi.WithAutoCreatePosts(),
			modapi.WithLogger(logger.Log.WithField("component", "modapi")),
		),
		cfg.APIRatePerSecond,
	)

	var policies config.PolicySource = config.StaticPolicy(config.DefaultPolicy())
	if cfg.PolicyFile != "" {
		policies = config.NewFilePolicySource(cfg.PolicyFile)
	}
	if _, err := policies.Snapshot(); err != nil {
		mainLogger.WithError(err).Fatal("Could not load policy")
	}

	opts := []app.Option{
		app.WithLogger(logger.Log),
		app.WithRetry(retry.Policy{Retries: cfg.RetryAttempts, Unit: cfg.RetryUnit}),
	}

	var bot *telebot.Bot
	if cfg.TelegramToken != "" {
		botLogger := logger.Log.WithField("component", "telebot")
		bot, err = telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) {
				logCtx := botLogger.WithError(err)
				if c != nil && c.Sender() != nil && c.Chat() != nil {
					logCtx = logCtx.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
				}
				logCtx.Error("Telegram handler failed")
			},
		})
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}
		if cfg.ModChatID != 0 {
			alerts := telegram.NewModAlerter(telegram.NewTelebotAdapter(bot), cfg.ModChatID, logger.Log.WithField("component", "alerts"))
			opts = append(opts, app.WithAlerter(alerts))
		}
	}

	svc := app.NewService(repo, api, policies, cfg.Subreddit, opts...)

	sched := scheduler.NewJobScheduler(logger.Log.WithField("component", "scheduler"), cfg.CheckCron)
	sched.Register(app.JobCommentWatcher, svc.CheckComments)
	sched.Register(app.JobPostWatcher, svc.CheckPosts)
	sched.Register(app.JobResponseWatcher, svc.CheckResponses)
	sched.Register(app.JobWatcher, func(ctx context.Context) error {
		return svc.EnsureJobs(ctx, sched)
	})
	sched.Start()
	if err := svc.OnInstall(ctx, sched); err != nil {
		mainLogger.WithError(err).Fatal("Could not schedule watcher jobs")
	}

	if bot != nil {
		adminService := app.NewAdminService(svc, sched, cfg.AdminTelegramID)
		handlerLogger := logger.Log.WithField("component", "telegram")
		telegram.RegisterBotCommands(bot, cfg.AdminTelegramID, cfg.Subreddit, handlerLogger)
		telegram.RegisterAdminHandlers(ctx, bot, adminService, cfg.AdminTelegramID, handlerLogger)
		go bot.Start()
		mainLogger.Info("Telegram bot started")
	}

	server := webhook.NewServer(cfg.HTTPAddr, svc, logger.Log.WithField("component", "http"), webhook.WithSecret(cfg.WebhookSecret))
	if err := server.Start(ctx); err != nil {
		mainLogger.WithError(err).Fatal("Could not start webhook server")
	}

	mainLogger.Info("Application setup complete")
	<-ctx.Done()

	mainLogger.Info("Shutting down application...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		mainLogger.WithError(err).Warn("Webhook server did not shut down cleanly")
	}
	if bot != nil {
		bot.Stop()
	}
	sched.Stop()
	mainLogger.Info("Application shut down gracefully")
}

func openStore(ctx context.Context, cfg *config.AppConfig) (post.Store, io.Closer, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := idb.Open(ctx, cfg.DatabaseURL, idb.DefaultPool())
		if err != nil {
			return nil, nil, err
		}
		store := idb.NewPostgresStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db, nil
	case config.StoreMemory:
		return memstore.New(), nopCloser{}, nil
	default:
		rdb, err := redisstore.NewClient(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		return redisstore.NewStore(rdb), rdb, nil
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
