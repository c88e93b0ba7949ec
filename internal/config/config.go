// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, storage, LLM provider settings, conversation state, diary jobs,
// rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emogotchi/emogotchi-backend/internal/sysutil"
	"github.com/emogotchi/emogotchi-backend/internal/utils"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "emogotchi-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects and addresses the relational store.
type DBConfig struct {
	Driver  string        // sqlite|postgres
	Path    string        // SQLite path (driver=sqlite)
	DSN     string        // Postgres DSN (driver=postgres)
	Timeout time.Duration // per-call budget for blocking store reads
}

// LLMConfig holds generation provider settings.
type LLMConfig struct {
	Provider     string // ark|mock
	APIKey       string
	Model        string
	BaseURL      string
	Region       string
	Temperature  float64
	MaxTokens    int // reply turns
	AnalysisMax  int // analysis turns
	DiaryMax     int // diary summaries
	Timeout      time.Duration
	DiaryTimeout time.Duration
}

// ConversationConfig controls where per-user conversation state lives.
type ConversationConfig struct {
	Store         string // memory|db|redis
	Cycle         int    // exchanges per assignment cycle
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration // redis only; 0 keeps state forever
}

// DiaryConfig controls scheduled diary generation.
type DiaryConfig struct {
	SchedulerEnabled bool
	Interval         time.Duration
	Workers          int
	RabbitURL        string // empty => inline worker pool
	RabbitQueue      string
	MaxRetries       int           // worker: timeout retries before dead-lettering
	RetryDelay       time.Duration // worker: delay between retries
	MetricsAddr      string        // worker: /metrics and /health listener
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	DB           DBConfig
	LLM          LLMConfig
	Conversation ConversationConfig
	Diary        DiaryConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8000"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/")),

		DB: DBConfig{
			Driver:  strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:    getenv("DB_PATH", "emogotchi.db"),
			DSN:     getenv("DB_DSN", ""),
			Timeout: getdur("STORE_TIMEOUT", 3*time.Second),
		},

		LLM: LLMConfig{
			Provider:     strings.ToLower(getenv("LLM_PROVIDER", "ark")),
			APIKey:       sysutil.FirstNonEmpty(os.Getenv("ARK_API_KEY"), os.Getenv("LLM_API_KEY")),
			Model:        getenv("ARK_MODEL", ""),
			BaseURL:      getenv("ARK_BASE_URL", ""),
			Region:       getenv("ARK_REGION", ""),
			Temperature:  getfloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:    getint("LLM_MAX_TOKENS", 150),
			AnalysisMax:  getint("LLM_ANALYSIS_MAX_TOKENS", 200),
			DiaryMax:     getint("LLM_DIARY_MAX_TOKENS", 500),
			Timeout:      getdur("LLM_TIMEOUT", 5*time.Second),
			DiaryTimeout: getdur("DIARY_LLM_TIMEOUT", 20*time.Second),
		},

		Conversation: ConversationConfig{
			Store:         strings.ToLower(getenv("CONVERSATION_STORE", "memory")),
			Cycle:         getint("CONVERSATION_CYCLE", 4),
			RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getenv("REDIS_PASSWORD", ""),
			RedisDB:       getint("REDIS_DB", 0),
			TTL:           getdur("CONVERSATION_TTL", 0),
		},

		Diary: DiaryConfig{
			SchedulerEnabled: getbool("DIARY_SCHEDULER_ENABLED", false),
			Interval:         getdur("DIARY_INTERVAL", 24*time.Hour),
			Workers:          getint("DIARY_WORKERS", 4),
			RabbitURL:        getenv("RABBIT_URL", ""),
			RabbitQueue:      getenv("RABBIT_QUEUE", "diary_jobs"),
			MaxRetries:       getint("DIARY_MAX_RETRIES", 3),
			RetryDelay:       getdur("DIARY_RETRY_DELAY", 30*time.Second),
			MetricsAddr:      getenv("WORKER_METRICS_ADDR", ":9100"),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "emogotchi-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DB.Driver == "postgresql" {
		cfg.DB.Driver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.DSN) == "" {
			return cfg, errors.New("DB_DSN is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if cfg.DB.Timeout <= 0 {
		return cfg, errors.New("STORE_TIMEOUT must be > 0")
	}
	switch cfg.LLM.Provider {
	case "ark", "mock":
	default:
		return cfg, errors.New("LLM_PROVIDER must be one of: ark, mock")
	}
	if cfg.LLM.Timeout <= 0 || cfg.LLM.DiaryTimeout <= 0 {
		return cfg, errors.New("LLM_TIMEOUT and DIARY_LLM_TIMEOUT must be > 0")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return cfg, errors.New("LLM_TEMPERATURE must be between 0 and 2")
	}
	if cfg.LLM.MaxTokens <= 0 || cfg.LLM.AnalysisMax <= 0 || cfg.LLM.DiaryMax <= 0 {
		return cfg, errors.New("LLM_MAX_TOKENS, LLM_ANALYSIS_MAX_TOKENS and LLM_DIARY_MAX_TOKENS must be > 0")
	}
	switch cfg.Conversation.Store {
	case "memory", "db":
	case "redis":
		if strings.TrimSpace(cfg.Conversation.RedisAddr) == "" {
			return cfg, errors.New("REDIS_ADDR is required when CONVERSATION_STORE=redis")
		}
	default:
		return cfg, errors.New("CONVERSATION_STORE must be one of: memory, db, redis")
	}
	if cfg.Conversation.Cycle < 1 {
		return cfg, errors.New("CONVERSATION_CYCLE must be >= 1")
	}
	if cfg.Conversation.TTL < 0 {
		return cfg, errors.New("CONVERSATION_TTL must be >= 0")
	}
	if cfg.Diary.Interval <= 0 {
		return cfg, errors.New("DIARY_INTERVAL must be > 0")
	}
	if cfg.Diary.Workers < 1 {
		return cfg, errors.New("DIARY_WORKERS must be >= 1")
	}
	if cfg.Diary.MaxRetries < 0 || cfg.Diary.RetryDelay <= 0 {
		return cfg, errors.New("DIARY_MAX_RETRIES must be >= 0 and DIARY_RETRY_DELAY > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- env helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	return utils.ParseIntDefault(os.Getenv(k), def)
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch {
		case sysutil.IsTruthy(v):
			return true
		case sysutil.IsFalsy(v):
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
