package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/cup-bracket-bot/internal/challonge"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/config"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/db"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/scheduler"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/service"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/session"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/store"
	"github.com/AdamBeresnev/cup-bracket-bot/internal/telegram"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("bot stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database connection", "error", err)
		}
	}()

	if err := db.RunMigrations(database, cfg.MigrationsPath); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database ready", "driver", cfg.DatabaseDriver)

	backend, closeBackend, err := session.OpenBackend(ctx, session.BackendConfig{
		Kind:          cfg.SessionStore,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
	}, database)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer closeBackend()

	if cfg.ChallongeAPIKey == "" {
		logger.Warn("CHALLONGE_API_KEY is not set, bracket commands will fail")
	}
	remote := challonge.NewClient(cfg.ChallongeAPIKey, challonge.WithBaseURL(cfg.ChallongeBaseURL))

	tournamentStore := store.NewTournamentStore(database)
	sessions := session.NewStore(backend, cfg.SessionTTL)
	tournaments := service.NewTournamentService(tournamentStore)
	bracketSync := service.NewBracketSync(tournamentStore, remote, logger, cfg.ChallongePrivate)
	swaps := service.NewSwapEditor(tournamentStore, sessions, remote, logger)

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("connect to telegram: %w", err)
	}
	logger.Info("authorized on telegram", "username", api.Self.UserName)

	adminIDs := make([]int64, 0, len(cfg.AdminIDs))
	for id := range cfg.AdminIDs {
		adminIDs = append(adminIDs, id)
	}
	bot := telegram.New(api, tournaments, bracketSync, swaps, telegram.Config{
		IsAdmin:  cfg.IsAdmin,
		AdminIDs: adminIDs,
	}, logger)

	poller, err := scheduler.New(scheduler.Config{CronSpec: cfg.StatusPollCron}, tournamentStore, bracketSync, bot, logger)
	if err != nil {
		return fmt.Errorf("status poller: %w", err)
	}
	poller.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		poller.Stop(stopCtx)
	}()

	var webhook http.Handler
	if cfg.WebhookURL != "" {
		if err := setWebhook(api, cfg.WebhookURL, cfg.WebhookSecret); err != nil {
			return err
		}
		webhook = bot.WebhookHandler()
		logger.Info("receiving updates by webhook", "url", cfg.WebhookURL)
	} else {
		if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			return fmt.Errorf("delete webhook: %w", err)
		}
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates := api.GetUpdatesChan(u)
		defer api.StopReceivingUpdates()
		go func() {
			if err := bot.Run(ctx, updates); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("update loop stopped", "error", err)
			}
		}()
		logger.Info("receiving updates by long polling")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      newRouter(tournaments, webhook, cfg.WebhookSecret),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", "address", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return server.Close()
	}
	logger.Info("server shutdown complete")
	return nil
}

// setWebhook registers url with Telegram. The library's WebhookConfig has no
// secret_token field, so the call is made with raw params.
func setWebhook(api *tgbotapi.BotAPI, url, secret string) error {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	if _, err := api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}
