// Package httpapi assembles the Emogotchi HTTP surface: it builds the
// application services from config and mounts the user, chat and diary
// routes behind the shared middleware chain (tracing, request logging,
// metrics, rate limiting and CORS).
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/emogotchi/emogotchi-backend/docs"
	"github.com/emogotchi/emogotchi-backend/internal/config"
	"github.com/emogotchi/emogotchi-backend/internal/conversation"
	"github.com/emogotchi/emogotchi-backend/internal/http/handlers"
	"github.com/emogotchi/emogotchi-backend/internal/http/middleware"
	"github.com/emogotchi/emogotchi-backend/internal/repo"
	"github.com/emogotchi/emogotchi-backend/internal/services"
)

// Services bundles the application services behind the HTTP API. The diary
// service is shared with the background scheduler.
type Services struct {
	Users *services.UserService
	Chat  *services.ChatService
	Diary *services.DiaryService
}

// NewServices builds the application services over db, the generation
// client and the conversation store, applying the configured budgets.
func NewServices(db *gorm.DB, companion services.Companion, conv conversation.Store, cfg config.Config) Services {
	users := repo.Users{}

	userSvc := services.NewUserService(db, users, conv)
	chatSvc := services.NewChatService(db, users, companion, conv)
	diarySvc := services.NewDiaryService(db, users, companion)

	if cfg.DB.Timeout > 0 {
		userSvc.StoreTimeout = cfg.DB.Timeout
		chatSvc.StoreTimeout = cfg.DB.Timeout
		diarySvc.StoreTimeout = cfg.DB.Timeout
	}
	if cfg.Conversation.Cycle > 0 {
		chatSvc.Cycle = cfg.Conversation.Cycle
	}
	return Services{Users: userSvc, Chat: chatSvc, Diary: diarySvc}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID and UserKey: correlation id and caller key
//  3. ContextLogger: request-scoped logger for handlers and services
//  4. RedactingLogger: access log with PII scrubbing
//  5. Recovery: capture panics after logger
//  6. Body size limiter
//  7. Metrics
//  8. Rate limiter (per user/IP)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, svcs Services, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	r.RedirectTrailingSlash = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2-3) Correlate requests and logs
	r.Use(middleware.RequestID(), middleware.UserKey(), middleware.ContextLogger())

	// 4) Structured access log with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 5) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 6) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics("/metrics", "/health"))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP(), "/metrics", "/health")
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	allowMethods := []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match"}
	exposeHeaders := []string{"X-Request-ID", "ETag", "Content-Length"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     allowMethods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     allowMethods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(svcs.Users, svcs.Chat, svcs.Diary)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/", welcome)
		api.GET("/test", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "API is working"}) })

		// Users
		api.POST("/onboarding", h.Onboard)
		api.GET("/user", h.GetUserByQuery)
		api.GET("/user/:uuid", h.GetUser)
		api.DELETE("/user/:uuid", h.DeleteUser)
		api.POST("/character", h.SelectCharacter)
		api.PATCH("/emotion", h.UpdateEmotion)
		api.GET("/user/update/points", h.UpdatePointsQuery)
		api.POST("/user/update/points", h.UpdatePoints)
		api.GET("/user/update/level", h.UpdateLevelQuery)
		api.POST("/user/update/level", h.UpdateLevel)
		api.GET("/user/update/name", h.UpdateNameQuery)
		api.POST("/user/update/name", h.UpdateName)

		// Chat
		api.POST("/chat", h.PostChat)

		// Diary
		api.POST("/diary/generate", h.GenerateDiary)
		api.POST("/diary/generate/:uuid", h.GenerateDiaryByPath)
		api.GET("/diary/dates", h.ListDiaryDatesByQuery)
		api.GET("/diary/dates/:uuid", h.ListDiaryDates)
		api.GET("/diary/entry/:uuid/:date", h.GetDiaryEntry)
		api.POST("/diary/custom", h.CustomDiary)
	}
}

func welcome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to the Emogotchi API"})
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
