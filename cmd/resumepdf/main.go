package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	runtime "github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"resumepdf/internal/app"
	"resumepdf/internal/cache"
	"resumepdf/internal/chrome"
	"resumepdf/internal/handlers"
	"resumepdf/internal/storage"
	u "resumepdf/internal/utils"
	"resumepdf/internal/warmer"
)

func main() {
	cfg := u.LoadConfig()
	u.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	u.SetLogLevel(cfg.Logger.Level)

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		u.Error("Failed to load AWS configuration", "error", err)
		os.Exit(1)
	}

	svc, cleanup, err := newService(cfg, awsCfg)
	if err != nil {
		u.Error("Failed to initialise service", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	if isLambdaRuntime() {
		w := warmer.New(awslambda.NewFromConfig(awsCfg), lambdacontext.FunctionName, lambdacontext.FunctionVersion, cfg.Warmer.Delay)
		h := handlers.NewLambdaHandler(svc, w)
		u.Info("Starting Lambda runtime", "function", lambdacontext.FunctionName, "version", lambdacontext.FunctionVersion)
		runtime.Start(h.Handle)
		return
	}

	idleConnsClosed := make(chan struct{})
	startServer(app.SetupApp(cfg, svc), cfg, idleConnsClosed)
	<-idleConnsClosed
}

func isLambdaRuntime() bool {
	return os.Getenv("AWS_LAMBDA_RUNTIME_API") != ""
}

// newService wires the object store, renderer and optional render cache.
// cleanup releases the Redis client if one was opened.
func newService(cfg u.Config, awsCfg aws.Config) (*handlers.Service, func(), error) {
	store, err := storage.NewS3Store(awsCfg, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("object store: %w", err)
	}

	cleanup := func() {}
	var renderCache handlers.RenderCache
	if cfg.Cache.RenderCacheEnabled && cfg.Cache.RedisHost != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.RenderCacheDB,
		})
		renderCache = cache.NewRenderCache(rdb, cfg.Cache.RenderCacheTTL)
		cleanup = func() {
			if err := rdb.Close(); err != nil {
				u.Warn("Redis close failed", "error", err)
			}
		}
		u.Info("Render cache enabled", "addr", cfg.Cache.RedisHost, "db", cfg.Cache.RenderCacheDB, "ttl", cfg.Cache.RenderCacheTTL.String())
	}

	u.Info("Service ready", "bucket", store.Bucket(), "site", cfg.Resume.SiteURL)
	return handlers.NewService(cfg, chrome.NewRenderer(cfg), store, renderCache), cleanup, nil
}

// startServer starts the Fiber app and listens for shutdown signals
func startServer(app *fiber.App, cfg u.Config, idleConnsClosed chan struct{}) {
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			u.Error("Server error", "error", err)
		}
	}()

	// Listen for OS termination signals
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	<-sigint

	u.Warn("Shutdown signal received, closing server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		u.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	u.Info("Server stopped cleanly")
}
