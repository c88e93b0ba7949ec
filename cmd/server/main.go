// Command server runs the Emogotchi HTTP API.
//
// @title       Emogotchi API
// @version     1.0
// @description Companion pet backend: users, chat turns and daily diaries.
// @BasePath    /
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/emogotchi/emogotchi-backend/internal/config"
	"github.com/emogotchi/emogotchi-backend/internal/conversation"
	httpapi "github.com/emogotchi/emogotchi-backend/internal/http"
	"github.com/emogotchi/emogotchi-backend/internal/jobs"
	"github.com/emogotchi/emogotchi-backend/internal/llm"
	"github.com/emogotchi/emogotchi-backend/internal/observability"
	"github.com/emogotchi/emogotchi-backend/internal/repo"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	observability.SetupLogger(nil, cfg.LogLevel, cfg.LogPretty, observability.RoleServer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, observability.RoleServer, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.Open(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	cm, err := llm.NewChatModel(ctx, cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.LLM.Provider).Msg("chat model")
	}
	companion, err := llm.NewClient(ctx, cm, llm.OptionsFrom(cfg.LLM))
	if err != nil {
		log.Fatal().Err(err).Msg("llm client")
	}

	conv, err := conversation.New(cfg.Conversation, db)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Conversation.Store).Msg("conversation store")
	}

	svcs := httpapi.NewServices(db, companion, conv, cfg)
	stopJobs := startDiaryJobs(ctx, cfg.Diary, svcs.Diary)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	httpapi.RegisterRoutes(r, svcs, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	log.Info().
		Str("addr", srv.Addr).
		Str("version", version).
		Str("llm", cfg.LLM.Provider).
		Str("conversation_store", cfg.Conversation.Store).
		Bool("diary_scheduler", cfg.Diary.SchedulerEnabled).
		Msg("emogotchi api listening")
	if err := runServer(ctx, srv); err != nil {
		log.Error().Err(err).Msg("server error")
	}

	stopJobs()
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownOTel(flushCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("bye")
}

// runServer serves until ctx is cancelled, then drains connections.
func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startDiaryJobs runs the nightly sweep when enabled. Jobs go to RabbitMQ
// when a broker is configured, otherwise to an in-process pool. The returned
// func blocks until the scheduler has stopped and the dispatcher is closed.
func startDiaryJobs(ctx context.Context, cfg config.DiaryConfig, gen jobs.Generator) func() {
	if !cfg.SchedulerEnabled {
		return func() {}
	}
	lg := log.With().Str("component", "diary_scheduler").Logger()

	var d jobs.Dispatcher
	if cfg.RabbitURL != "" {
		pub, err := jobs.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			lg.Error().Err(err).Msg("rabbitmq unavailable, running diary jobs in-process")
		} else {
			d = pub
			lg.Info().Str("queue", cfg.RabbitQueue).Msg("diary jobs published to rabbitmq")
		}
	}
	if d == nil {
		d = jobs.NewPool(gen, cfg.Workers, lg)
	}

	s := &jobs.Scheduler{Gen: gen, Dispatcher: d, Interval: cfg.Interval, Log: lg}
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	return func() {
		<-done
		if err := d.Close(); err != nil {
			lg.Warn().Err(err).Msg("close dispatcher")
		}
	}
}
