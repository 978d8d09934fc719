package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"docbot/internal/bot"
	"docbot/internal/catalog"
	"docbot/internal/http/handlers"
	httpapi "docbot/internal/http/httpapi"
	"docbot/internal/infra"
	"docbot/internal/metrics"
	"docbot/internal/middleware"
	"docbot/internal/providers/veriftools"
	"docbot/internal/session"
	"docbot/internal/storage"
	"docbot/internal/telegram"
	"docbot/internal/workpool"
)

const sweepInterval = time.Minute

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		logger := infra.NewLogger(os.Getenv("APP_ENV"))
		logger.Fatal().Err(err).Msg("bot: configuration invalid")
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		logger.Fatal().Err(err).Str("file", cfg.CatalogFile).Msg("bot: catalog invalid")
	}
	profile, err := cat.Profile(cfg.ActiveProfile)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot: profile unknown")
	}

	client, err := veriftools.NewClient(veriftools.Options{
		Profile:        profile,
		Login:          cfg.VerifLogin,
		Password:       cfg.VerifPassword,
		HTTPClient:     &http.Client{},
		Logger:         &logger,
		RequestTimeout: cfg.RequestTimeout,
		MaxImageBytes:  cfg.MaxImageBytes,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("bot: failed to configure generation client")
	}

	var diagnostics bot.Diagnostics
	if cfg.DiagnosticsDir != "" {
		dir := cfg.DiagnosticsDir
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		store, err := storage.NewFileStore(dir)
		if err != nil {
			logger.Fatal().Err(err).Msg("bot: failed to configure diagnostics storage")
		}
		diagnostics = store
	}

	m := metrics.New()
	sessions := session.NewStore(cfg.SessionTTL)
	pool := workpool.New(cfg.WorkerPoolSize)

	tg, err := telegram.New(telegram.Options{
		Token:         cfg.BotToken,
		PollTimeout:   cfg.TelegramPollDelay,
		MaxPhotoBytes: cfg.MaxImageBytes,
		Logger:        &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("bot: telegram unavailable")
	}

	dispatcher, err := bot.NewDispatcher(bot.Options{
		Templates:    cat.Templates,
		Generator:    client,
		Sessions:     sessions,
		Replier:      tg,
		Photos:       tg,
		Pool:         pool,
		Metrics:      m,
		Diagnostics:  diagnostics,
		PollInterval: cfg.PollInterval,
		PollTimeout:  cfg.PollTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("bot: dispatcher misconfigured")
	}

	userLimiter := middleware.NewKeyedLimiter(cfg.RateLimitPerMin, 0)
	tg.SetHandler(bot.Chain(dispatcher.Handle,
		bot.Recover(),
		bot.Logging(logger),
		bot.RateLimit(userLimiter, tg),
	))

	app := handlers.NewApp(profile.Name, cat.Templates, sessions)
	opsLimiter := middleware.NewKeyedLimiter(600, 0)
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, m.Handler(), logger, opsLimiter))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tg.Run(gctx)
	})
	g.Go(func() error {
		if !server.Enabled() {
			return nil
		}
		logger.Info().Str("addr", server.Addr()).Msg("bot: ops server listening")
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				n := sessions.Sweep()
				m.SessionsSwept(n)
				userLimiter.Prune(cfg.SessionTTL)
				opsLimiter.Prune(cfg.SessionTTL)
				if n > 0 {
					logger.Debug().Int("expired", n).Msg("bot: sessions swept")
				}
			}
		}
	})

	logger.Info().
		Str("profile", profile.Name).
		Int("templates", len(cat.Templates)).
		Int("workers", pool.Size()).
		Msg("bot: started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("bot: stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("bot: stopped")
}
