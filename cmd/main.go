package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamspace/playground/internal/auth"
	"github.com/streamspace/playground/internal/authz"
	"github.com/streamspace/playground/internal/cache"
	"github.com/streamspace/playground/internal/config"
	"github.com/streamspace/playground/internal/ingress"
	"github.com/streamspace/playground/internal/k8s"
	"github.com/streamspace/playground/internal/logger"
	"github.com/streamspace/playground/internal/metrics"
	"github.com/streamspace/playground/internal/middleware"
	"github.com/streamspace/playground/internal/pool"
	"github.com/streamspace/playground/internal/reaper"
	"github.com/streamspace/playground/internal/repository"
	"github.com/streamspace/playground/internal/restapi"
	"github.com/streamspace/playground/internal/session"
	"github.com/streamspace/playground/internal/store"
)

func main() {
	logger.Initialize(envOr("LOG_LEVEL", "info"), envOr("LOG_PRETTY", "false") == "true")
	log := logger.GetLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	restConfig, err := k8s.LoadRestConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve Kubernetes REST config")
	}
	gw, err := k8s.New(restConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build Kubernetes gateway")
	}

	redisCache, cacheErr := cache.NewCache(cache.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Enabled:  cfg.RedisEnabled,
	})
	if cacheErr != nil {
		log.Warn().Err(cacheErr).Msg("redis cache unavailable, continuing without it")
		redisCache = &cache.Cache{}
	}

	roleStore := store.NewRoleStore(gw, cfg.ControlNamespace, redisCache)
	repositoryStore := store.NewRepositoryStore(gw, cfg.ControlNamespace, redisCache)
	userStore := store.NewUserStore(gw)
	authorizer := authz.New(roleStore)
	poolResolver := pool.NewResolver(gw, cfg.MaxSessionsPerNode)
	repoPipeline := repository.New(gw, cfg.ControlNamespace, cfg.WorkspaceBaseImage)
	ingressRouter := ingress.New(gw, cfg.ControlNamespace)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if ensureErr := ingressRouter.EnsureExists(startupCtx, cfg.IngressHost); ensureErr != nil {
		startupCancel()
		log.Fatal().Err(ensureErr).Msg("failed to ensure singleton ingress exists")
	}
	startupCancel()

	rec := metrics.NewRecorder(prometheus.DefaultRegisterer)

	orchestrator := session.New(
		gw, logger.Session(), cfg.ControlNamespace, cfg.IngressHost,
		ingressRouter, poolResolver, repoPipeline, rec,
		cfg.DefaultPoolAffinity, cfg.WorkspaceDefaultDuration, cfg.WorkspaceMaxDuration,
	)

	reaperLoop := reaper.New(orchestrator, ingressRouter, cfg.IngressHost, rec, logger.Reaper())
	reaperCtx, reaperCancel := context.WithCancel(context.Background())
	if startErr := reaperLoop.Start(reaperCtx); startErr != nil {
		reaperCancel()
		log.Fatal().Err(startErr).Msg("failed to start reaper loop")
	}

	authManager := auth.NewManager(string(cfg.JWTSecret), cfg.JWTIssuer)
	apiServer := restapi.New(authorizer, userStore, repositoryStore, repoPipeline, poolResolver, orchestrator, log, cfg.IngressHost)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.StructuredLogger(),
		middleware.Recovery(),
		middleware.Timeout(15*time.Second),
		middleware.SecurityHeaders(),
		middleware.Gzip(),
	)
	engine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authenticated := engine.Group("/")
	authenticated.Use(optionalBearer(authManager))
	apiServer.RegisterRoutes(authenticated)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("playground-api listening")
		if serveErr := srv.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			log.Fatal().Err(serveErr).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	reaperCancel()
	reaperLoop.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error().Err(shutdownErr).Msg("error during server shutdown")
	}
	if closeErr := redisCache.Close(); closeErr != nil {
		log.Error().Err(closeErr).Msg("error closing redis cache")
	}
	log.Info().Msg("graceful shutdown complete")
}

// optionalBearer resolves the caller from a bearer token when present but
// never rejects an anonymous request: GET / (spec §6's playground metadata
// endpoint) is readable unauthenticated, and every other route enforces its
// own authorization via authz.Ensure once the caller is resolved (possibly
// to the zero-value, unprivileged Caller).
func optionalBearer(m *auth.Manager) gin.HandlerFunc {
	required := m.RequireBearer()
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		required(c)
	}
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
