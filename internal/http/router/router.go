package router

import (
	"context"
	"net/http"
	"time"

	apphttp "vdestor_backend/internal/http"
	"vdestor_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const readyTimeout = 2 * time.Second

func New(app *apphttp.App) *gin.Engine {
	cfg := app.Config
	log := app.Logger

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(log))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(corsConfig(cfg)))

	engine.GET("/api/health", func(c *gin.Context) {
		httpkit.OK(c, gin.H{"status": "ok"})
	})
	engine.GET("/api/ready", func(c *gin.Context) {
		if app.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
			defer cancel()
			if err := app.Health.Ping(ctx); err != nil {
				log.DatabaseError("ready_ping", err)
				httpkit.Failure(c, http.StatusServiceUnavailable, "NOT_READY", "database unavailable", nil)
				return
			}
		}
		httpkit.OK(c, gin.H{"status": "ready"})
	})

	rps, burst := cfg.GetSearchRateLimit()
	v1 := engine.Group("/api/v1")
	rc := &apphttp.RouterContext{
		Engine: engine,
		V1:     v1,
		Config: cfg,
	}
	if rps > 0 {
		rc.SearchRateLimit = httpkit.NewIPRateLimiter(rate.Limit(rps), burst, log).RateLimit()
	}
	if cfg.GetJWTAccessSecret() != "" {
		rc.AuthMiddleware = httpkit.AuthRequired(cfg)
		rc.Admin = v1.Group("/admin", rc.AuthMiddleware, httpkit.RequireRole("admin"))
	} else {
		log.Info("admin routes disabled: no JWT secret configured")
	}

	for _, module := range app.Modules {
		module.RegisterRoutes(rc)
		log.Info("module registered", "module", module.Name())
	}

	engine.NoRoute(func(c *gin.Context) {
		httpkit.Failure(c, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})

	return engine
}

func corsConfig(cfg apphttp.RouterConfig) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: cfg.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	if cfg.GetCORSAllowAll() {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.GetCORSOrigins()
	}
	return corsCfg
}
