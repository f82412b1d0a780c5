package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"userdeck/internal/app"
	"userdeck/internal/config"
	"userdeck/internal/email"
	"userdeck/internal/export"
	"userdeck/internal/ingest"
	"userdeck/internal/media"
	"userdeck/internal/metrics"
	"userdeck/internal/review"
	"userdeck/internal/search"
	"userdeck/internal/store"
	"userdeck/internal/summary"
	"userdeck/internal/util"
)

func main() {
	cfg := config.Load()
	logger := util.InitLogger(cfg.Environment, cfg.LogLevel, cfg.LogFormat)
	defer util.SyncLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir, logger); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	dataStore := store.NewPostgresStore(db)
	m := metrics.New(prometheus.DefaultRegisterer)
	reviews := review.NewSynchronizer(dataStore, logger.Named("review"), m)

	pgSearch := search.NewPgSearch(db)
	searchService := search.NewService(nil, pgSearch, logger.Named("search"))
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		index := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger.Named("search"))
		defer index.Close()
		searchService = search.NewService(index, pgSearch, logger.Named("search"))
	}
	reviews.AddObserver(searchService.ObserveSnapshot)

	images, err := media.NewResolver(media.Config{
		MinioEndpoint:  cfg.MinioEndpoint,
		MinioAccessKey: cfg.MinioAccessKey,
		MinioSecretKey: cfg.MinioSecretKey,
		MinioUseSSL:    cfg.MinioUseSSL,
		ProxyURL:       cfg.ImageProxyURL,
	})
	if err != nil {
		logger.Fatal("image resolver setup failed", zap.Error(err))
	}

	var generator summary.Generator
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gemini, err := summary.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Fatal("summary model setup failed", zap.Error(err))
		}
		generator = gemini
	} else {
		logger.Warn("GEMINI_API_KEY not set, summaries are disabled")
	}

	var cache *summary.RedisCache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		cache, err = summary.NewRedisCache(cfg.RedisURL, cfg.SummaryCacheTTL)
		if err != nil {
			logger.Warn("redis unavailable, summaries are not cached", zap.Error(err))
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	var summaries *summary.Service
	if cache != nil {
		summaries = summary.NewService(generator, images, cache, logger.Named("summary"), m)
	} else {
		summaries = summary.NewService(generator, images, nil, logger.Named("summary"), m)
	}

	deps := app.Deps{
		Store:     dataStore,
		Reviews:   reviews,
		Summaries: summaries,
		Exporter:  export.NewService(images, summaries, logger.Named("export")),
		Search:    searchService,
	}
	if cache != nil {
		deps.Cache = cache
	}
	service := app.New(cfg, deps, logger)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, logger.Named("http"), promhttp.Handler())
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	server.RegisterOnShutdown(httpServer.CloseStreams)

	group, groupCtx := errgroup.WithContext(ctx)

	mailer := email.NewService(email.Config{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		Username:   cfg.SMTPUsername,
		Password:   cfg.SMTPPassword,
		From:       cfg.SMTPFrom,
		FromName:   "Userdeck",
		Recipients: cfg.NotifyTo,
		ReviewURL:  cfg.ReviewQueueURL,
	})
	if mailer.IsConfigured() {
		notifier := email.NewNotifier(reviews, mailer, logger.Named("notify"))
		group.Go(func() error {
			notifier.Run(groupCtx)
			return nil
		})
	} else {
		logger.Info("arrivals email disabled")
	}

	group.Go(func() error {
		listener := store.NewListener(cfg.DatabaseURL, dataStore, logger.Named("listener"))
		err := listener.Run(groupCtx, reviews.OnRemoteSnapshot)
		if err != nil {
			// the partitions keep serving their last snapshot
			logger.Error("submission subscription ended", zap.Error(err))
		}
		return nil
	})

	if len(cfg.KafkaBrokers) > 0 {
		group.Go(func() error {
			consumer := ingest.NewConsumer(ingest.Config{
				Brokers:         cfg.KafkaBrokers,
				Topic:           cfg.KafkaSubmissionsTopic,
				GroupID:         cfg.KafkaGroupID,
				DeadLetterTopic: cfg.KafkaDeadLetterTopic,
				MaxAttempts:     cfg.KafkaMaxAttempts,
			}, dataStore, logger.Named("ingest"), m)
			if err := consumer.Run(groupCtx); err != nil {
				logger.Error("submission ingestion stopped", zap.Error(err))
			}
			return nil
		})
	}

	group.Go(func() error {
		logger.Info("userdeck API listening", zap.String("addr", cfg.Addr), zap.String("env", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	failed := false
	if err := group.Wait(); err != nil {
		logger.Error("server failed", zap.Error(err))
		failed = true
	}

	reviews.Drain()
	searchService.Wait()
	logger.Info("shutdown complete")
	if failed {
		util.SyncLogger()
		os.Exit(1)
	}
}
