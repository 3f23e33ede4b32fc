package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"photocal/config"
	"photocal/internal/apiclient"
	"photocal/internal/bot"
	"photocal/internal/diary"
	"photocal/internal/gateway"
	"photocal/internal/gpt"
	"photocal/internal/imaging"
	"photocal/internal/server"
	"photocal/internal/storage"
	"photocal/internal/storage/memory"
	"photocal/internal/storage/postgres"
	"photocal/internal/storage/redis"
	"photocal/internal/storage/sqlite"
	"photocal/internal/webapp"
	"photocal/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := logger.New(cfg.Log.Level)
	if cfg.Log.Development {
		l = logger.NewDevelopment()
	}
	defer l.Sync()

	l.Info("Starting photocal...")

	if err := cfg.Validate(); err != nil {
		l.Fatalw("Invalid configuration", "error", err)
	}
	if cfg.OpenRouter.APIKey == "" {
		l.Warn("OpenRouter API key is not configured; analysis requests will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, cfg, l)
	if err != nil {
		l.Fatalw("Failed to open storage", "driver", cfg.Storage.Driver, "error", err)
	}
	defer backend.Close()

	var archiver diary.Archiver
	if cfg.Archive.Bucket != "" {
		s3Archiver, err := diary.NewS3ArchiverFromEnv(ctx, cfg.Archive.Region, cfg.Archive.Bucket, cfg.Archive.Prefix)
		if err != nil {
			l.Fatalw("Failed to configure S3 archive", "bucket", cfg.Archive.Bucket, "error", err)
		}
		archiver = s3Archiver
		l.Infow("Ended days are archived to S3", "bucket", cfg.Archive.Bucket)
	}

	repo := diary.New(storage.NewAdapter(backend, l.Named("storage")), archiver, l)

	compressor := imaging.NewCompressor(imaging.Options{
		MaxWidth:  cfg.Image.MaxWidth,
		MaxHeight: cfg.Image.MaxHeight,
		Quality:   cfg.Image.Quality,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gptClient := gpt.NewClient(gpt.Config{
		APIKey:  cfg.OpenRouter.APIKey,
		BaseURL: cfg.OpenRouter.BaseURL,
		Model:   cfg.OpenRouter.Model,
		Referer: cfg.OpenRouter.Referer,
		Title:   cfg.OpenRouter.Title,
	})
	gw := gateway.New(gptClient, l, reg)

	jwtManager := webapp.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	api := webapp.New(repo, jwtManager, compressor, webapp.Options{
		BotToken:       cfg.Telegram.Token,
		InitDataMaxAge: cfg.Auth.InitDataMaxAge,
		MaxPhotoKB:     cfg.Image.MaxSizeKB,
	}, l)

	httpServer := server.NewServer(cfg.Server.Port, server.Handlers{
		Gateway:  gw.Routes(),
		WebApp:   api.Routes(),
		Gatherer: reg,
	}, l)

	// Matches the HTTP server's write timeout.
	client := apiclient.New(cfg.GatewayURL(), apiclient.WithHTTPClient(&http.Client{Timeout: 90 * time.Second}))

	telegramBot, err := bot.NewTelegramBot(cfg.Telegram.Token, bot.Options{
		Diary:      repo,
		Analyzer:   apiclient.NewAnalyzer(client),
		Summarizer: client,
		Compressor: compressor,
		WebAppURL:  cfg.Telegram.WebAppURL,
		MaxPhotoKB: cfg.Image.MaxSizeKB,
	}, l)
	if err != nil {
		l.Fatalw("Failed to create Telegram bot", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		l.Info("Starting Telegram bot...")
		if err := telegramBot.Start(gctx); err != nil {
			return fmt.Errorf("telegram bot: %w", err)
		}
		l.Info("Telegram bot started successfully")
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		l.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		// Stop HTTP server first
		if err := httpServer.Stop(shutdownCtx); err != nil {
			l.Errorw("Error during HTTP server shutdown", "error", err)
		}
		if err := telegramBot.Stop(shutdownCtx); err != nil {
			l.Errorw("Error during bot shutdown", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		l.Errorw("Stopped with error", "error", err)
		return
	}
	l.Info("Stopped successfully")
}

func openBackend(ctx context.Context, cfg *config.Config, l *logger.Logger) (storage.Backend, error) {
	switch cfg.Storage.Driver {
	case "memory":
		l.Warn("Using in-memory storage; data is lost on restart")
		return memory.New(), nil
	case "sqlite":
		return sqlite.New(cfg.Storage.Path)
	case "redis":
		return redis.New(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	case "postgres":
		pgCfg := postgres.Config{
			Host:         cfg.DB.Host,
			Port:         cfg.DB.Port,
			User:         cfg.DB.User,
			Password:     cfg.DB.Password,
			DBName:       cfg.DB.DBName,
			SSLMode:      cfg.DB.SSLMode,
			MaxOpenConns: cfg.DB.MaxOpenConns,
			MaxIdleConns: cfg.DB.MaxIdleConns,
			ConnLifetime: cfg.DB.ConnLifetime,
		}

		// The database may still be starting; retry with a growing delay.
		var (
			store *postgres.Store
			err   error
		)
		for i := 0; i < 5; i++ {
			store, err = postgres.New(ctx, pgCfg)
			if err == nil {
				return store, nil
			}
			l.Errorw("Failed to connect to database, retrying...", "attempt", i+1, "error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i+1) * time.Second):
			}
		}
		return nil, err
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
