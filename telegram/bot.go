package telegram

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"TgFM/cache"
	"TgFM/config"
	"TgFM/core/resolver"
	"TgFM/core/session"
	"TgFM/logger"
	"TgFM/server"
	"TgFM/storage"
)

// Start boots the bot: configuration, logging, storage, resolver, the
// optional metadata cache and status server, then the long-poll update
// loop. Blocks until SIGINT/SIGTERM, then shuts down gracefully.
func Start() error {
	cfg := config.Load()
	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    50,
		MaxBackups: 3,
		MaxAge:     14,
		Compress:   true,
	})
	defer logger.Sync()

	if cfg.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	if err := os.MkdirAll(cfg.DownloadDir, 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	// The cache is optional; a dead Redis just means slower lookups.
	if cfg.RedisEnabled {
		if err := cache.ConnectRedis(cfg); err != nil {
			logger.Warn("Redis unavailable, metadata caching disabled", logger.ErrorField(err))
		}
		defer cache.CloseRedis()
	}

	store, err := storage.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.Watch(ctx); err != nil {
		logger.Warn("Storage watcher disabled", logger.ErrorField(err))
	}

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	logger.Info("Authorized bot", logger.String("username", bot.Self.UserName))

	res := resolver.New(cfg)
	hub := session.NewHub()
	presenter := NewPresenter(bot)
	sessions := session.NewStore(session.Deps{
		Resolver:  res,
		Presenter: presenter,
		Recorder:  store,
		Hub:       hub,
		Cfg:       cfg,
	})
	dispatcher := NewDispatcher(bot, presenter, sessions, res, store, cfg)

	var status *server.StatusServer
	if cfg.StatusAddr != "" {
		status = server.NewStatusServer(cfg.StatusAddr, sessions, store, hub)
		go func() {
			if err := status.Run(); err != nil {
				logger.Error("Status server stopped", logger.ErrorField(err))
			}
		}()
	}

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := bot.GetUpdatesChan(updateCfg)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Bot started, polling for updates")
	for {
		select {
		case update := <-updates:
			go dispatcher.HandleUpdate(ctx, update)
		case sig := <-stop:
			logger.Info("Shutting down", logger.String("signal", sig.String()))
			bot.StopReceivingUpdates()
			cancel()
			if status != nil {
				status.Shutdown()
			}
			return nil
		}
	}
}
