package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/walkmapper/walkmapper_core/internal/api"
	"github.com/walkmapper/walkmapper_core/internal/app"
	"github.com/walkmapper/walkmapper_core/internal/config"
	"github.com/walkmapper/walkmapper_core/internal/logging"
	"github.com/walkmapper/walkmapper_core/internal/middleware"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", getEnv("WALKMAPPER_CONFIG", "walkmapper.toml"), "Path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	zl.Info("starting walkmapper api", zap.String("variant", cfg.Capture.Variant))

	ctx := context.Background()
	rt, err := app.Build(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("failed to open sinks", zap.Error(err))
	}
	defer rt.Close()

	manager, err := rt.NewManager(ctx)
	if err != nil {
		zl.Fatal("failed to create capture manager", zap.Error(err))
	}

	// Create Fiber app
	server := fiber.New(fiber.Config{
		AppName:      "WalkMapper API",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    cfg.Server.BodyLimitKB * 1024,
		ErrorHandler: api.ErrorHandler(zl),
	})

	// Middleware
	server.Use(recover.New())
	server.Use(middleware.RequestLog(zl))
	server.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.AllowedOrigins, ","),
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	if cfg.Throttle.Enabled {
		server.Use(middleware.WriteThrottle(rt.Redis, middleware.ThrottleConfig{
			Limit:  cfg.Throttle.WritesPerMin,
			Window: time.Duration(cfg.Throttle.WindowSeconds) * time.Second,
		}, zl))
		zl.Info("write throttle enabled", zap.Int("writes_per_window", cfg.Throttle.WritesPerMin))
	}

	// Routes
	handler := api.New(api.Deps{
		Manager:     manager,
		Coordinator: rt.Coordinator,
		Registry:    rt.Registry,
		Exporter:    rt.Exporter,
		Checks:      rt.Checks,
		Logger:      zl,
	})
	handler.Register(server)

	// 404 handler
	server.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "endpoint not found",
		})
	})

	addr := fmt.Sprintf(":%s", cfg.Server.Port)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		zl.Info("shutting down gracefully")
		if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
			zl.Error("error during shutdown", zap.Error(err))
		}
	}()

	zl.Info("server listening",
		zap.String("addr", addr),
		zap.String("ledger", rt.Ledger.Path()),
		zap.String("store", cfg.Storage.Driver),
		zap.String("sessions", cfg.Session.Backend))

	if err := server.Listen(addr); err != nil {
		zl.Fatal("failed to start server", zap.Error(err))
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
