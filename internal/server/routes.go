package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/Spountil/watermark-gdrive/internal/config"
	"github.com/Spountil/watermark-gdrive/internal/server/handlers/webhook"
	"github.com/Spountil/watermark-gdrive/internal/server/middlewares"
	"github.com/Spountil/watermark-gdrive/internal/version"
)

func SetupRoutes(cfg *config.Config, svc *Services) http.Handler {
	r := gin.New()

	webhookH := webhook.New(cfg.Drive.ChannelToken, svc.Gate, svc.Pool)

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.BestSpeed))
	r.Use(cors.Default())
	if cfg.HTTP.CertFile != "" && cfg.HTTP.KeyFile != "" {
		r.Use(middlewares.HSTS())
	}

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	notifications := r.Group("/")
	notifications.Use(middlewares.RateLimiter(cfg.HTTP.RateLimit))
	{
		notifications.POST("/webhook", webhookH.Notify)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r.Handler()
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
