package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"catalog/internal/api/handlers"
	"catalog/internal/api/middleware"
	"catalog/internal/app"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	app    *app.App
	router *gin.Engine
	server *http.Server
}

func New(a *app.App) *Server {
	// Set Gin mode
	if a.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Client addresses feed the rate limiter, so forwarding headers are only
	// believed from configured proxies.
	if err := router.SetTrustedProxies(a.Config.TrustedProxies); err != nil {
		a.Logger.Warn("Ignoring trusted proxies %v: %v", a.Config.TrustedProxies, err)
		_ = router.SetTrustedProxies(nil)
	}

	// Middleware
	router.Use(middleware.Logger(a.Logger))
	router.Use(middleware.Recovery(a.Logger))
	router.Use(middleware.CORS(a.Config.CORSOrigins))
	router.Use(middleware.Metrics(a.Metrics))

	// Initialize handlers
	embedHandler := handlers.NewEmbedHandler(a)
	ajaxHandler := handlers.NewAjaxHandler(a)
	settingsHandler := handlers.NewSettingsHandler(a)
	cacheHandler := handlers.NewCacheHandler(a)
	recordHandler := handlers.NewRecordHandler(a)

	router.GET("/health", func(c *gin.Context) {
		if err := a.Health(c.Request.Context()); err != nil {
			a.Logger.Warn("Health check failed: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})))

	// Content records
	router.GET("/products/:id", recordHandler.View)

	// Routes
	v1 := router.Group("/api/v1")
	{
		// Embeds
		embed := v1.Group("/embed")
		{
			embed.GET("/product", embedHandler.Product)
			embed.GET("/random", embedHandler.Random)
		}

		// On-demand widget
		v1.GET("/nonce", ajaxHandler.Nonce)
		v1.POST("/ajax", ajaxHandler.Handle)

		// Admin
		admin := v1.Group("", middleware.AdminAuth(a.Config.JWTSecret, a.Logger))
		{
			admin.GET("/settings", settingsHandler.Get)
			admin.PUT("/settings", settingsHandler.Update)

			admin.DELETE("/cache", cacheHandler.ClearAll)
			admin.DELETE("/cache/:id", cacheHandler.ClearOne)
		}
	}

	return &Server{
		app:    a,
		router: router,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.app.Config.APIHost, s.app.Config.APIPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.app.Logger.Info("Starting server on %s", addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.app.Logger.Info("Shutting down server...")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Gin engine, for tests and embedding.
func (s *Server) Router() *gin.Engine {
	return s.router
}
