package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/partyline/soundclash/internal/v1/catalog"
	"github.com/partyline/soundclash/internal/v1/config"
	"github.com/partyline/soundclash/internal/v1/game"
	"github.com/partyline/soundclash/internal/v1/health"
	"github.com/partyline/soundclash/internal/v1/logging"
	"github.com/partyline/soundclash/internal/v1/middleware"
	"github.com/partyline/soundclash/internal/v1/ratelimit"
	"github.com/partyline/soundclash/internal/v1/tracing"
)

func main() {
	for _, path := range []string{".env", "../../.env"} {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		panic(err) // logging isn't initialized yet; fail fast and loud
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		panic(err)
	}
	logger := logging.GetLogger()
	ctx := context.Background()

	tracingEnabled := false
	if cfg.OTLPEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, "soundclash", cfg.OTLPEndpoint)
		if err != nil {
			logging.Error(ctx, "failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			tracingEnabled = true
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				tp.Shutdown(shutdownCtx)
			}()
		}
	}

	cat := catalog.New(cfg.PromptCatalogPath, cfg.SoundCatalogPath, cfg.CatalogCacheTTL)

	rateLimiter, err := ratelimit.NewRateLimiter(cfg)
	if err != nil {
		logging.Error(ctx, "failed to configure rate limiter", zap.Error(err))
		os.Exit(1)
	}

	hub := game.NewHub(cfg, cat, rateLimiter)
	healthHandler := health.NewHandler(cat)

	if cfg.GoEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	if tracingEnabled {
		router.Use(otelgin.Middleware("soundclash"))
	}

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "" {
		corsConfig.AllowAllOrigins = true
	} else {
		var origins []string
		for _, o := range strings.Split(cfg.AllowedOrigins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		corsConfig.AllowOrigins = origins
	}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", healthHandler.Liveness)
	router.GET("/readyz", healthHandler.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws/room/:roomCode", hub.ServeWs)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("soundclash server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}
