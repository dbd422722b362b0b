// Command server runs the avatar relay API: the WebSocket session fabric,
// the two-stage authentication handshake against the external identity
// oracle, the public/internal HTTP surface, and the background asset-sync
// scheduler.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/streamspace/streamspace/api/internal/assetsync"
	"github.com/streamspace/streamspace/api/internal/avatarstore"
	"github.com/streamspace/streamspace/api/internal/cache"
	"github.com/streamspace/streamspace/api/internal/config"
	apperrors "github.com/streamspace/streamspace/api/internal/errors"
	"github.com/streamspace/streamspace/api/internal/handshake"
	"github.com/streamspace/streamspace/api/internal/httpapi"
	"github.com/streamspace/streamspace/api/internal/logger"
	"github.com/streamspace/streamspace/api/internal/middleware"
	"github.com/streamspace/streamspace/api/internal/notify"
	"github.com/streamspace/streamspace/api/internal/registry"
	"github.com/streamspace/streamspace/api/internal/session"
	"github.com/streamspace/streamspace/api/internal/topic"
)

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func main() {
	env := config.LoadEnv()

	logger.Initialize(env.LogLevel, env.LogPretty)
	log := logger.GetLogger()

	cfg, err := config.Load(env.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("server: failed to load Config.toml")
	}

	if err := os.MkdirAll(env.AvatarsDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", env.AvatarsDir).Msg("server: failed to create avatars directory")
	}
	if err := os.MkdirAll(env.AssetsDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", env.AssetsDir).Msg("server: failed to create assets directory")
	}

	avatars, err := avatarstore.New(env.AvatarsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("server: failed to open avatar store")
	}

	reg := registry.New()
	topics := topic.NewRegistry(logger.Registry())
	sessions := session.NewMap()

	redisCache, err := cache.NewCache(cache.Config{
		Host:     env.RedisHost,
		Port:     env.RedisPort,
		Password: env.RedisPass,
		DB:       env.RedisDB,
		Enabled:  env.RedisEnable,
	})
	if err != nil {
		log.Warn().Err(err).Msg("server: redis unavailable, falling back to in-process caching")
		redisCache, _ = cache.NewCache(cache.Config{Enabled: false})
	}
	defer redisCache.Close()

	pendingStore := handshake.NewPendingStore(redisCache, reg, logger.Handshake())
	oracle := handshake.NewOracle(env.OracleBaseURL, env.OracleName, env.OracleTimeout)
	handshakeHandler := handshake.NewHandler(pendingStore, oracle, reg, logger.Handshake())

	notifier := notify.New(topics, sessions, logger.Session())
	relay := notify.NewRelay(notify.RelayConfig{
		URL:      env.NATSURL,
		User:     env.NATSUser,
		Password: env.NATSPass,
	}, logger.Relay())
	notifier.SetRelay(relay)
	unsubscribe, err := relay.Subscribe(notifier.HandleRemoteEvent)
	if err != nil {
		log.Warn().Err(err).Msg("server: failed to subscribe to cross-instance relay")
		unsubscribe = func() {}
	}
	defer unsubscribe()
	defer relay.Close()

	var syncScheduler *assetsync.Scheduler
	if env.AssetManifestURL != "" {
		syncer := assetsync.New(env.AssetManifestURL, env.AssetBaseURL, env.AssetsDir, logger.GetLogger())
		syncScheduler = assetsync.NewScheduler(logger.GetLogger())
		if err := syncScheduler.Start(env.AssetSyncCron, syncer); err != nil {
			log.Warn().Err(err).Msg("server: failed to start asset-sync scheduler")
			syncScheduler = nil
		}
	}
	if syncScheduler != nil {
		defer syncScheduler.Stop()
	}

	sweepDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				pendingStore.Sweep()
			case <-sweepDone:
				return
			}
		}
	}()
	defer close(sweepDone)

	rateLimiter := middleware.NewRateLimiter(5, 10)

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(apperrors.Recovery())
	router.Use(middleware.StructuredLoggerWithConfigFunc(middleware.DefaultStructuredLoggerConfig()))
	router.Use(middleware.Timeout(httpapi.DefaultMiddlewareTimeout()))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimiter(middleware.MaxRequestBodySize))
	router.Use(middleware.GzipWithExclusions(5, []string{"/ws"}))
	router.Use(cache.CacheControl(time.Minute))
	router.Use(apperrors.ErrorHandler())

	httpapi.Mount(router, httpapi.Deps{
		Config:      cfg,
		Registry:    reg,
		Avatars:     avatars,
		Topics:      topics,
		Sessions:    sessions,
		Notifier:    notifier,
		Handshake:   handshakeHandler,
		RateLimiter: rateLimiter,
		Cache:       redisCache,
		Log:         logger.HTTP(),
	})

	handler := httpapi.NormalizeLegacyDoubleSlash(router)

	srv := &http.Server{
		Addr:              env.ListenAddr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Info().Str("addr", env.ListenAddr).Msg("server: listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server: listen failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("server: shutting down")

	shutdownTimeout := getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 10)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server: graceful shutdown failed")
	}
	log.Info().Msg("server: stopped")
}
