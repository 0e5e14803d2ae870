package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/restopos/internal/config"
	"github.com/example/restopos/internal/database"
	"github.com/example/restopos/internal/handlers"
	"github.com/example/restopos/internal/logger"
	"github.com/example/restopos/internal/middleware"
	"github.com/example/restopos/internal/routes"
	"github.com/example/restopos/internal/services"
)

func main() {
	cfg := config.Load()

	zapLog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zapLog.Sync()

	db := database.Connect(cfg.DatabaseURL, zapLog)
	if err := database.SeedAdmin(db, cfg.AdminEmail, cfg.AdminPassword, zapLog); err != nil {
		zapLog.Warn("admin seed skipped", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache := newCache(ctx, cfg, zapLog)

	notifiers := services.MultiNotifier{}
	if cfg.AMQPURL != "" {
		broker, err := services.NewBrokerNotifier(cfg.AMQPURL, cfg.BroadcastExchange, zapLog.Named("broker"))
		if err != nil {
			zapLog.Warn("broadcast disabled", zap.Error(err))
		} else {
			defer broker.Close()
			notifiers = append(notifiers, broker)
		}
	}
	if cfg.TelegramBotToken != "" {
		notifiers = append(notifiers, services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat, cfg.Currency, zapLog.Named("telegram")))
	}

	app := fiber.New(fiber.Config{
		AppName:      "RestoPOS",
		ErrorHandler: handlers.ErrorHandler(zapLog),
	})

	app.Use(recover.New())
	app.Use(middleware.RequestLogger(zapLog.Named("http")))

	routes.Register(app, db, cfg, cache, notifiers, zapLog)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLog.Info("starting server", zap.String("port", cfg.AppPort))
		return app.Listen(":" + cfg.AppPort)
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLog.Info("shutting down server")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil {
		zapLog.Error("server stopped with error", zap.Error(err))
	}
	zapLog.Info("server stopped")
}

func newCache(ctx context.Context, cfg *config.Config, log *zap.Logger) services.Cache {
	if cfg.RedisAddr == "" {
		log.Info("redis not configured, caching disabled")
		return services.NopCache{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unreachable, caching disabled", zap.Error(err))
		_ = client.Close()
		return services.NopCache{}
	}

	log.Info("redis connected", zap.String("addr", cfg.RedisAddr))
	return services.NewRedisCache(client, log.Named("cache"))
}
