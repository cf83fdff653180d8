// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chat-image-sync/internal/application"
	"chat-image-sync/internal/config"
	"chat-image-sync/internal/domain/ports/repository"
	"chat-image-sync/internal/infra/cache"
	pg "chat-image-sync/internal/infra/db/postgres"
	"chat-image-sync/internal/infra/logging"
	"chat-image-sync/internal/infra/metrics"
	"chat-image-sync/internal/infra/notify"
	"chat-image-sync/internal/infra/rest"
	red "chat-image-sync/internal/infra/redis"
	"chat-image-sync/internal/infra/store"
	"chat-image-sync/internal/infra/sweeper"
	"chat-image-sync/internal/infra/transport"
	"chat-image-sync/internal/infra/web"
	"chat-image-sync/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Message store ----
	var messages repository.MessageStore
	switch strings.ToLower(cfg.Store.Backend) {
	case "", "memory":
		messages = store.NewMemoryMessageStore()
		logger.Info().Msg("message store: memory")
	case "redis":
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()
		messages = red.NewMessageStore(redisClient, cfg.Redis.TTL)
		logger.Info().Str("addr", cfg.Redis.URL).Msg("message store: redis")
	case "postgres":
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		repo := pg.NewMessageRepo(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatalf("postgres schema: %v", err)
		}
		messages = repo
		logger.Info().Msg("message store: postgres")
	default:
		log.Fatalf("store.backend %q not supported (memory|redis|postgres)", cfg.Store.Backend)
	}

	// ---- Job cache + sweep ----
	jobCache := cache.NewJobCache(cfg.Sync.TerminalMaxAge, logger)
	sweep := sweeper.NewSweeper(cfg.Sync.SweepInterval, jobCache, logger)
	sweep.Start(ctx)
	defer sweep.Stop()

	// ---- REST backend ----
	jobClient, err := rest.NewJobClient(cfg.API)
	if err != nil {
		log.Fatalf("job client: %v", err)
	}

	// ---- Use cases ----
	resolver := usecase.NewReconcileUseCase(jobCache, messages, cfg.Sync.RetryDelay, cfg.Sync.RetryAttempts, logger)
	backfillUC := usecase.NewBackfillUseCase(jobCache, messages, jobClient, resolver, logger)
	cancelUC := usecase.NewCancelUseCase(jobCache, messages, jobClient, cfg.Sync.CancelGrace, logger)

	facade := application.NewSyncFacade(jobCache, messages, cancelUC, backfillUC)

	// ---- Realtime transport ----
	conn := transport.NewConnection(cfg.Transport, resolver, notify.NewLogSink(logger), logger)
	conn.OnOpen(func(ctx context.Context) {
		// The channel cannot replay frames missed while disconnected;
		// converge every known conversation through REST instead.
		seen := map[string]bool{}
		for _, j := range jobCache.List() {
			if j.ConversationID == "" || seen[j.ConversationID] {
				continue
			}
			seen[j.ConversationID] = true
			if _, err := backfillUC.Run(ctx, j.ConversationID, "reconnect"); err != nil {
				logger.Warn().Err(err).Str("conversation_id", j.ConversationID).Msg("reconnect backfill failed")
			}
		}
	})
	go conn.Run(ctx)

	// ---- Ops server ----
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Web.Port),
		Handler: web.NewServer(facade, cfg.Web.APIKey, logger).Router(),
	}
	go func() {
		logger.Info().Int("port", cfg.Web.Port).Msg("ops server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("ops server stopped")
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")
	cancel()
	_ = srv.Shutdown(context.Background())
}
