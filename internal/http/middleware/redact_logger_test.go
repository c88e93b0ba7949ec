package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func withCapturedLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func TestRedactingLogger_InfoAndRedactions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-resp")
		c.Next()
	})
	r.Use(RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))
	r.GET("/user/:uuid", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	q := "uuid=DEVICE-42&nickname=Momo&email=a@example.com&ref=123e4567-e89b-12d3-a456-426614174000"
	req := httptest.NewRequest(http.MethodGet, "/user/DEVICE-42?"+q, nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Cookie", "sid=topsecret")
	req.Header.Set("X-Api-Key", "shhh")
	req.Header.Set("X-Custom", "email a@b.com id=123e4567-e89b-12d3-a456-426614174000 phone 555-123-4567")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	logs := buf.String()
	if strings.Contains(logs, "DEVICE-42") || strings.Contains(logs, "Momo") {
		t.Fatalf("user identifiers leaked: %s", logs)
	}
	for _, want := range []string{
		`"level":"info"`,
		`"path":"/user/:uuid"`,
		`"request_id":"rid-resp"`,
		`uuid=[REDACTED]`,
		`nickname=[REDACTED]`,
		`email=[REDACTED:email]`,
		`ref=[REDACTED:id]`,
		`"Authorization":"[REDACTED]"`,
		`"Cookie":"[REDACTED]"`,
		`"X-Api-Key":"[REDACTED]"`,
		`"X-Custom":"email [REDACTED:email] id=[REDACTED:id] phone [REDACTED:phone]"`,
	} {
		if !strings.Contains(logs, want) {
			t.Fatalf("missing %s in: %s", want, logs)
		}
	}
}

func TestRedactingLogger_EntityTagsKeepVersions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/diary/dates/:uuid", func(c *gin.Context) { c.Status(http.StatusNotModified) })

	req := httptest.NewRequest(http.MethodGet, "/diary/dates/P1", nil)
	req.Header.Set("If-None-Match", `W/"diaries:P1:1:1792435319"`)
	req.Header.Set("If-Match", `W/"diaries:123e4567-e89b-12d3-a456-426614174000:2:1700000000000000000"`)
	req.Header.Set("X-Contact", "555-123-4567")
	r.ServeHTTP(httptest.NewRecorder(), req)

	logs := buf.String()
	for _, want := range []string{
		`"If-None-Match":"W/\"diaries:P1:1:1792435319\""`,
		`"If-Match":"W/\"diaries:[REDACTED:id]:2:1700000000000000000\""`,
		`"X-Contact":"[REDACTED:phone]"`,
	} {
		if !strings.Contains(logs, want) {
			t.Fatalf("missing %s in: %s", want, logs)
		}
	}
}

func TestRedactingLogger_WarnAndErrorLevels_RequestIDFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/warn", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/error", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	reqWarn := httptest.NewRequest(http.MethodGet, "/warn", nil)
	reqWarn.Header.Set("X-Request-ID", "rid-warn")
	r.ServeHTTP(httptest.NewRecorder(), reqWarn)

	reqErr := httptest.NewRequest(http.MethodGet, "/error", nil)
	reqErr.Header.Set("X-Request-ID", "rid-err")
	r.ServeHTTP(httptest.NewRecorder(), reqErr)

	logs := buf.String()
	if !strings.Contains(logs, `"level":"warn"`) || !strings.Contains(logs, `"request_id":"rid-warn"`) {
		t.Fatalf("warn log not found or missing request_id fallback: %s", logs)
	}
	if !strings.Contains(logs, `"level":"error"`) || !strings.Contains(logs, `"request_id":"rid-err"`) {
		t.Fatalf("error log not found or missing request_id fallback: %s", logs)
	}
}

func TestScrubQuery(t *testing.T) {
	mask := toSet(defaultMaskParams)
	if got := scrubQuery("", mask); got != "" {
		t.Fatalf("empty query = %q", got)
	}
	if got := scrubQuery("user_uuid=abc&emotion=sad", mask); got != "emotion=sad&user_uuid=[REDACTED]" {
		t.Fatalf("got %q", got)
	}
	// invalid escape falls back to pattern scrubbing
	if got := scrubQuery("x=%zz&mail=a@b.co", mask); !strings.Contains(got, "[REDACTED:email]") {
		t.Fatalf("got %q", got)
	}
	// disabling name masking
	if got := scrubQuery("uuid=abc", toSet([]string{})); got != "uuid=abc" {
		t.Fatalf("got %q", got)
	}
}
