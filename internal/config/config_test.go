package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// Variables a developer shell commonly exports; the defaults test must not see them.
func TestMain(m *testing.M) {
	for _, k := range []string{
		"PORT", "API_BASE_PATH", "LOG_LEVEL", "GIN_MODE",
		"DB_DRIVER", "DB_PATH", "DB_DSN",
		"LLM_PROVIDER", "ARK_API_KEY", "LLM_API_KEY",
		"CONVERSATION_STORE", "REDIS_ADDR", "RABBIT_URL",
	} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

func setenvs(t *testing.T, env map[string]string) {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func mustLoad(t *testing.T) Config {
	t.Helper()
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg := mustLoad(t)

	if cfg.Port != "8000" || cfg.GinMode != "release" || cfg.APIBasePath != "/" || cfg.MaxHeaderBytes != 1<<20 {
		t.Fatalf("server defaults: %+v", cfg)
	}
	if cfg.DB != (DBConfig{Driver: "sqlite", Path: "emogotchi.db", Timeout: 3 * time.Second}) {
		t.Fatalf("db defaults: %+v", cfg.DB)
	}
	if cfg.LLM.Provider != "ark" || cfg.LLM.Timeout != 5*time.Second || cfg.LLM.DiaryTimeout != 20*time.Second ||
		cfg.LLM.MaxTokens != 150 || cfg.LLM.AnalysisMax != 200 || cfg.LLM.DiaryMax != 500 || cfg.LLM.Temperature != 0.7 {
		t.Fatalf("llm defaults: %+v", cfg.LLM)
	}
	if cfg.Conversation.Store != "memory" || cfg.Conversation.Cycle != 4 || cfg.Conversation.TTL != 0 {
		t.Fatalf("conversation defaults: %+v", cfg.Conversation)
	}
	want := DiaryConfig{
		Interval:    24 * time.Hour,
		Workers:     4,
		RabbitQueue: "diary_jobs",
		MaxRetries:  3,
		RetryDelay:  30 * time.Second,
		MetricsAddr: ":9100",
	}
	if cfg.Diary != want {
		t.Fatalf("diary defaults: %+v", cfg.Diary)
	}
	if cfg.RateRPS != 5 || cfg.RateBurst != 10 || cfg.CORS.AllowedOrigins != nil {
		t.Fatalf("edge defaults: rps=%v burst=%d cors=%v", cfg.RateRPS, cfg.RateBurst, cfg.CORS.AllowedOrigins)
	}
	if cfg.OTEL.Enabled || !cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "emogotchi-backend" || cfg.OTEL.SampleRatio != 1 {
		t.Fatalf("otel defaults: %+v", cfg.OTEL)
	}
}

func TestLoad_ServerAndLogging(t *testing.T) {
	setenvs(t, map[string]string{
		"PORT":                "9001",
		"READ_TIMEOUT":        "2s",
		"READ_HEADER_TIMEOUT": "500ms",
		"WRITE_TIMEOUT":       "7s",
		"IDLE_TIMEOUT":        "1m",
		"MAX_HEADER_BYTES":    "4096",
		"GIN_MODE":            "Verbose",
		"LOG_LEVEL":           "WARNING",
		"LOG_PRETTY":          "y",
		"SWAGGER_ENABLED":     "on",
		"API_BASE_PATH":       " api/v1/ ",
	})
	cfg := mustLoad(t)

	timeouts := []time.Duration{cfg.ReadTimeout, cfg.ReadHeaderTimeout, cfg.WriteTimeout, cfg.IdleTimeout}
	if !reflect.DeepEqual(timeouts, []time.Duration{2 * time.Second, 500 * time.Millisecond, 7 * time.Second, time.Minute}) {
		t.Fatalf("timeouts = %v", timeouts)
	}
	if cfg.Port != "9001" || cfg.MaxHeaderBytes != 4096 {
		t.Fatalf("port/header bytes: %q %d", cfg.Port, cfg.MaxHeaderBytes)
	}
	// unknown gin modes fall back to release
	if cfg.GinMode != "release" {
		t.Fatalf("GinMode = %q", cfg.GinMode)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api/v1" {
		t.Fatalf("logging: level=%q pretty=%v swagger=%v base=%q", cfg.LogLevel, cfg.LogPretty, cfg.SwaggerEnabled, cfg.APIBasePath)
	}
}

func TestLoad_StorageAndLLM(t *testing.T) {
	setenvs(t, map[string]string{
		"DB_DRIVER":               "PostgreSQL",
		"DB_DSN":                  "postgres://emo:emo@db:5432/emo",
		"STORE_TIMEOUT":           "750ms",
		"LLM_PROVIDER":            "Mock",
		"ARK_API_KEY":             "k",
		"ARK_MODEL":               "doubao-lite",
		"ARK_BASE_URL":            "https://ark.example",
		"ARK_REGION":              "cn-beijing",
		"LLM_TEMPERATURE":         "0.2",
		"LLM_MAX_TOKENS":          "99",
		"LLM_ANALYSIS_MAX_TOKENS": "321",
		"LLM_DIARY_MAX_TOKENS":    "640",
		"LLM_TIMEOUT":             "2s",
		"DIARY_LLM_TIMEOUT":       "9s",
	})
	cfg := mustLoad(t)

	if cfg.DB.Driver != "postgres" || cfg.DB.DSN != "postgres://emo:emo@db:5432/emo" || cfg.DB.Timeout != 750*time.Millisecond {
		t.Fatalf("db: %+v", cfg.DB)
	}
	want := LLMConfig{
		Provider:     "mock",
		APIKey:       "k",
		Model:        "doubao-lite",
		BaseURL:      "https://ark.example",
		Region:       "cn-beijing",
		Temperature:  0.2,
		MaxTokens:    99,
		AnalysisMax:  321,
		DiaryMax:     640,
		Timeout:      2 * time.Second,
		DiaryTimeout: 9 * time.Second,
	}
	if cfg.LLM != want {
		t.Fatalf("llm:\n got %+v\nwant %+v", cfg.LLM, want)
	}
}

func TestLoad_ConversationAndDiary(t *testing.T) {
	setenvs(t, map[string]string{
		"CONVERSATION_STORE":      "REDIS",
		"CONVERSATION_CYCLE":      "6",
		"REDIS_ADDR":              "cache:6379",
		"REDIS_PASSWORD":          "pw",
		"REDIS_DB":                " 2 ",
		"CONVERSATION_TTL":        "72h",
		"DIARY_SCHEDULER_ENABLED": "true",
		"DIARY_INTERVAL":          "1h",
		"DIARY_WORKERS":           "2",
		"RABBIT_URL":              "amqp://guest:guest@mq:5672/",
		"RABBIT_QUEUE":            "diaries",
		"DIARY_MAX_RETRIES":       "0",
		"DIARY_RETRY_DELAY":       "5s",
		"WORKER_METRICS_ADDR":     ":9200",
	})
	cfg := mustLoad(t)

	wantConv := ConversationConfig{Store: "redis", Cycle: 6, RedisAddr: "cache:6379", RedisPassword: "pw", RedisDB: 2, TTL: 72 * time.Hour}
	if cfg.Conversation != wantConv {
		t.Fatalf("conversation: %+v", cfg.Conversation)
	}
	wantDiary := DiaryConfig{
		SchedulerEnabled: true,
		Interval:         time.Hour,
		Workers:          2,
		RabbitURL:        "amqp://guest:guest@mq:5672/",
		RabbitQueue:      "diaries",
		MaxRetries:       0,
		RetryDelay:       5 * time.Second,
		MetricsAddr:      ":9200",
	}
	if cfg.Diary != wantDiary {
		t.Fatalf("diary: %+v", cfg.Diary)
	}
}

func TestLoad_EdgeAndTelemetry(t *testing.T) {
	setenvs(t, map[string]string{
		"RATE_RPS":                    "x",
		"RATE_BURST":                  "nope",
		"CORS_ALLOWED_ORIGINS":        " https://app.emogotchi.io , , http://localhost:3000 ",
		"ENABLE_HSTS":                 "TRUE",
		"HSTS_MAX_AGE":                "24h",
		"OTEL_ENABLED":                "1",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "collector:4317",
		"OTEL_EXPORTER_OTLP_INSECURE": "off",
		"OTEL_SERVICE_NAME":           "emo",
		"OTEL_TRACES_SAMPLER_ARG":     "0.25",
	})
	cfg := mustLoad(t)

	// unparseable numbers keep their defaults
	if cfg.RateRPS != 5 || cfg.RateBurst != 10 {
		t.Fatalf("rate: %v/%d", cfg.RateRPS, cfg.RateBurst)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://app.emogotchi.io", "http://localhost:3000"}) {
		t.Fatalf("cors: %#v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Security != (SecurityConfig{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour}) {
		t.Fatalf("security: %+v", cfg.Security)
	}
	if cfg.OTEL != (OTELConfig{Enabled: true, Endpoint: "collector:4317", ServiceName: "emo", SampleRatio: 0.25}) {
		t.Fatalf("otel: %+v", cfg.OTEL)
	}
}

func TestLoad_APIKeyFallback(t *testing.T) {
	t.Setenv("LLM_API_KEY", "generic")
	if cfg := mustLoad(t); cfg.LLM.APIKey != "generic" {
		t.Fatalf("fallback key = %q", cfg.LLM.APIKey)
	}
	t.Setenv("ARK_API_KEY", "ark")
	if cfg := mustLoad(t); cfg.LLM.APIKey != "ark" {
		t.Fatalf("ARK_API_KEY should win, got %q", cfg.LLM.APIKey)
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string]struct {
		env  map[string]string
		want string
	}{
		"log level":           {map[string]string{"LOG_LEVEL": "trace"}, "LOG_LEVEL"},
		"blank port":          {map[string]string{"PORT": "  "}, "PORT"},
		"zero timeout":        {map[string]string{"IDLE_TIMEOUT": "0s"}, "timeouts"},
		"header bytes":        {map[string]string{"MAX_HEADER_BYTES": "-5"}, "MAX_HEADER_BYTES"},
		"blank sqlite path":   {map[string]string{"DB_PATH": " "}, "DB_PATH"},
		"postgres no dsn":     {map[string]string{"DB_DRIVER": "postgres"}, "DB_DSN"},
		"driver":              {map[string]string{"DB_DRIVER": "mysql"}, "DB_DRIVER"},
		"store timeout":       {map[string]string{"STORE_TIMEOUT": "-1s"}, "STORE_TIMEOUT"},
		"provider":            {map[string]string{"LLM_PROVIDER": "openai"}, "LLM_PROVIDER"},
		"diary llm timeout":   {map[string]string{"DIARY_LLM_TIMEOUT": "0s"}, "DIARY_LLM_TIMEOUT"},
		"temperature":         {map[string]string{"LLM_TEMPERATURE": "2.5"}, "LLM_TEMPERATURE"},
		"analysis tokens":     {map[string]string{"LLM_ANALYSIS_MAX_TOKENS": "0"}, "LLM_MAX_TOKENS"},
		"diary tokens":        {map[string]string{"LLM_DIARY_MAX_TOKENS": "-1"}, "LLM_DIARY_MAX_TOKENS"},
		"conversation store":  {map[string]string{"CONVERSATION_STORE": "disk"}, "CONVERSATION_STORE"},
		"redis without addr":  {map[string]string{"CONVERSATION_STORE": "redis", "REDIS_ADDR": " "}, "REDIS_ADDR"},
		"cycle":               {map[string]string{"CONVERSATION_CYCLE": "0"}, "CONVERSATION_CYCLE"},
		"ttl":                 {map[string]string{"CONVERSATION_TTL": "-1m"}, "CONVERSATION_TTL"},
		"diary interval":      {map[string]string{"DIARY_INTERVAL": "0s"}, "DIARY_INTERVAL"},
		"diary workers":       {map[string]string{"DIARY_WORKERS": "0"}, "DIARY_WORKERS"},
		"diary retries":       {map[string]string{"DIARY_MAX_RETRIES": "-1"}, "DIARY_MAX_RETRIES"},
		"diary retry delay":   {map[string]string{"DIARY_RETRY_DELAY": "0s"}, "DIARY_RETRY_DELAY"},
		"rate":                {map[string]string{"RATE_RPS": "-0.5"}, "RATE_RPS"},
		"burst":               {map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		"hsts":                {map[string]string{"HSTS_MAX_AGE": "-1h"}, "HSTS_MAX_AGE"},
		"sample ratio":        {map[string]string{"OTEL_TRACES_SAMPLER_ARG": "-0.1"}, "OTEL_TRACES_SAMPLER_ARG"},
		"sample ratio over 1": {map[string]string{"OTEL_TRACES_SAMPLER_ARG": "2"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			setenvs(t, tc.env)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("want error mentioning %s, got %v", tc.want, err)
			}
		})
	}
}

func TestMustLoad(t *testing.T) {
	if cfg := MustLoad(); cfg.Port == "" {
		t.Fatalf("MustLoad returned an empty config")
	}

	t.Setenv("CONVERSATION_CYCLE", "-3")
	defer func() {
		if recover() == nil {
			t.Fatalf("MustLoad should panic on an invalid config")
		}
	}()
	MustLoad()
}

func TestEnvReaders(t *testing.T) {
	setenvs(t, map[string]string{
		"T_STR": "val", "T_EMPTY": "",
		"T_F": "3.5", "T_F_BAD": "pi",
		"T_I": " 42 ", "T_I_BAD": "4x",
		"T_D": "150ms", "T_D_BAD": "soon",
	})
	if getenv("T_STR", "d") != "val" || getenv("T_EMPTY", "d") != "d" || getenv("T_MISSING", "d") != "d" {
		t.Fatalf("getenv")
	}
	if getfloat("T_F", 0) != 3.5 || getfloat("T_F_BAD", 1.5) != 1.5 {
		t.Fatalf("getfloat")
	}
	if getint("T_I", 0) != 42 || getint("T_I_BAD", 7) != 7 || getint("T_MISSING", 9) != 9 {
		t.Fatalf("getint")
	}
	if getdur("T_D", 0) != 150*time.Millisecond || getdur("T_D_BAD", time.Second) != time.Second {
		t.Fatalf("getdur")
	}
}

func TestGetbool(t *testing.T) {
	cases := []struct {
		raw  string
		def  bool
		want bool
	}{
		{"1", false, true},
		{" Yes ", false, true},
		{"ON", false, true},
		{"0", true, false},
		{"no", true, false},
		{"Off", true, false},
		{"", true, true},
		{"", false, false},
		{"maybe", true, true},
		{"maybe", false, false},
	}
	for _, c := range cases {
		t.Setenv("T_BOOL", c.raw)
		if got := getbool("T_BOOL", c.def); got != c.want {
			t.Fatalf("getbool(%q, %v) = %v", c.raw, c.def, got)
		}
	}
}

func TestSplitCSV(t *testing.T) {
	if splitCSV("") != nil {
		t.Fatalf("empty input should be nil")
	}
	if got := splitCSV(" a, ,b ,  c  ,"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitCSV = %#v", got)
	}
	if got := splitCSV(" , "); len(got) != 0 {
		t.Fatalf("blank entries should be dropped, got %#v", got)
	}
}

func TestNormalizeBasePath(t *testing.T) {
	for in, want := range map[string]string{
		"":         "/",
		" / ":      "/",
		"v1":       "/v1",
		"/v1/":     "/v1",
		"api/v1//": "/api/v1",
		"/api/v1":  "/api/v1",
	} {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}
