// Command worker consumes diary jobs from RabbitMQ and writes the entries.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/emogotchi/emogotchi-backend/internal/config"
	"github.com/emogotchi/emogotchi-backend/internal/jobs"
	"github.com/emogotchi/emogotchi-backend/internal/llm"
	"github.com/emogotchi/emogotchi-backend/internal/observability"
	"github.com/emogotchi/emogotchi-backend/internal/repo"
	"github.com/emogotchi/emogotchi-backend/internal/services"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	observability.SetupLogger(nil, cfg.LogLevel, cfg.LogPretty, observability.RoleWorker)
	if cfg.Diary.RabbitURL == "" {
		log.Fatal().Msg("RABBIT_URL is required for the diary worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, observability.RoleWorker, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.Open(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	cm, err := llm.NewChatModel(ctx, cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("chat model")
	}
	companion, err := llm.NewClient(ctx, cm, llm.OptionsFrom(cfg.LLM))
	if err != nil {
		log.Fatal().Err(err).Msg("llm client")
	}

	diary := services.NewDiaryService(db, repo.Users{}, companion)
	diary.StoreTimeout = cfg.DB.Timeout

	conn, err := amqp.Dial(cfg.Diary.RabbitURL)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit dial")
	}
	defer conn.Close()

	metrics := serveMetrics(cfg.Diary.MetricsAddr)

	consumer := &jobs.Consumer{
		Gen:         diary,
		Queue:       cfg.Diary.RabbitQueue,
		Concurrency: cfg.Diary.Workers,
		MaxRetries:  cfg.Diary.MaxRetries,
		RetryDelay:  cfg.Diary.RetryDelay,
		Log:         log.With().Str("component", "diary_consumer").Logger(),
	}
	if err := consumer.Run(ctx, conn); err != nil {
		log.Error().Err(err).Msg("consumer stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metrics.Shutdown(shutdownCtx)
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown")
	}
	log.Info().Msg("worker stopped")
}

// serveMetrics exposes /metrics and /health on addr in the background.
func serveMetrics(addr string) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics listener")
		}
	}()
	return srv
}
