// Package httpapi mounts the digest service's HTTP surface on Gin: the edge
// middleware chain (tracing, request ids, redacted logging, recovery, body
// caps, metrics, idempotency, rate limiting, CORS, security headers), the
// system endpoints (/health, /metrics, optional Swagger UI), and the
// versioned tenant API for settings, briefings, posts, runs, and the manual
// digest trigger. All dependencies are injected; nothing here reaches for
// globals beyond the process config.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-feed-digest/docs"
	"github.com/tbourn/go-feed-digest/internal/config"
	"github.com/tbourn/go-feed-digest/internal/domain"
	"github.com/tbourn/go-feed-digest/internal/http/handlers"
	"github.com/tbourn/go-feed-digest/internal/http/middleware"
	"github.com/tbourn/go-feed-digest/internal/repo"
	"github.com/tbourn/go-feed-digest/internal/services"
)

// settingsRepoShim satisfies services.SettingsRepo with the repo package's
// free functions, so the service depends on an interface it can fake in
// tests instead of on the concrete repository.
type settingsRepoShim struct{}

func (settingsRepoShim) GetOrCreateSettings(ctx context.Context, db *gorm.DB, ownerID string) (*domain.UserSettings, error) {
	return repo.GetOrCreateSettings(ctx, db, ownerID)
}

func (settingsRepoShim) UpdateSettings(ctx context.Context, db *gorm.DB, ownerID string, updates map[string]any) (*domain.UserSettings, error) {
	return repo.UpdateSettings(ctx, db, ownerID, updates)
}

// Deps carries the application dependencies the HTTP layer exposes beyond the
// database handle.
type Deps struct {
	// Prompts validates preset names on settings updates. Nil falls back to
	// the built-in presets.
	Prompts *services.Prompts
	// Trigger runs one tenant's digest pipeline on demand (the scheduler).
	Trigger handlers.TriggerService
	// Events streams pipeline progress to websocket subscribers. Nil disables
	// the stream endpoint.
	Events *services.RunEventHub
}

// RegisterRoutes attaches the full middleware chain and every endpoint to
// the given engine. The chain is installed in two stages, observability
// first and request guards second, because /metrics must be registered in
// between: Gin snapshots a route's handlers at registration time, so the
// scrape endpoint sees the tracing and metrics middleware but is never rate
// limited, CORS filtered, or charged against an idempotency key.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	useObservability(r, cfg)
	useProtection(r, db, cfg)

	// Unknown routes and wrong methods answer with the standard error
	// envelope instead of Gin's plain-text defaults.
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	settingsSvc := services.NewSettingsService(db, settingsRepoShim{}, deps.Prompts)
	h := handlers.New(db, settingsSvc, deps.Trigger, deps.Events, cfg.IdempotencyTTL)

	base := cfg.APIBasePath
	if base == "/" {
		base = ""
	}
	api := r.Group(base)

	// Compress API responses. The websocket upgrade must bypass compression
	// or the hijack fails.
	streamPath := strings.TrimSuffix(base, "/") + "/runs/stream"
	api.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{streamPath})))
	{
		// Settings
		api.GET("/settings", h.GetSettings)
		api.PATCH("/settings", h.UpdateSettings)

		// Briefings
		api.GET("/briefings", h.ListBriefings)
		api.GET("/briefings/latest", h.LatestBriefing)
		api.GET("/briefings/:id", h.GetBriefing)
		api.DELETE("/briefings/:id", h.DeleteBriefing)

		// Posts
		api.GET("/posts", h.ListPosts)
		api.GET("/posts/stats", h.PostStats)
		api.GET("/posts/search", h.SearchPosts)

		// Runs
		api.GET("/runs", h.ListRuns)
		api.GET("/runs/stream", h.StreamRuns)

		// Manual trigger
		api.POST("/digest/trigger", h.TriggerDigest)
	}
}

// useObservability installs the middleware every request passes through
// before any gatekeeping. Order is load-bearing: RequestID runs before the
// logger so every line carries the id, and Recovery sits after the logger
// so a panic is reported through the request-scoped logger it installed.
func useObservability(r *gin.Engine, cfg config.Config) {
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		// Authorization and cookie headers are always masked; X-API-Key
		// covers deployments fronted by a key-checking gateway.
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(bodyLimit(1 << 20))
	r.Use(middleware.Metrics())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// useProtection installs the gatekeeping middleware. The idempotency
// validator precedes the rate limiter because a recognized replay sets the
// bypass flag the limiter honors: retrying a completed trigger should never
// burn rate budget.
func useProtection(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, ownerID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, ownerID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Open posture: answer with a wildcard even when the request has no
		// Origin header, which plain health checks and curl never send.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
	} else {
		// Echo the request origin when allowlisted, with Vary so caches
		// keep the per-origin answers apart.
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
	}
	r.Use(cors.New(corsConfig(cfg.CORS.AllowedOrigins)))

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))
}

// corsConfig builds the shared CORS policy; an empty allowlist means any
// origin. Credentials stay off, which AllowAllOrigins requires anyway.
func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cc
}

// bodyLimit caps request bodies with http.MaxBytesReader; reads past the
// cap fail in the handler rather than buffering unbounded input.
func bodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
