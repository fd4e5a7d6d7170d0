package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"myshop/internal/app"
	"myshop/internal/cache"
	"myshop/internal/config"
	"myshop/internal/database"
	"myshop/internal/events"
	"myshop/internal/metrics"
	"myshop/internal/storage"
	"myshop/pkg/logger"
	"myshop/pkg/rabbitmq"
	"myshop/pkg/redis"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"gorm.io/gorm"
)

const (
	eventsExchange = "catalog"
	auditQueue     = "catalog.audit"
	shutdownGrace  = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		ServiceName: cfg.ServiceName,
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize server")
	}
	defer srv.Close()

	go func() {
		log.Info().Str("addr", cfg.AppPort).Msg("starting server")
		if err := srv.app.Listen(cfg.AppPort); err != nil {
			log.Error().Err(err).Msg("server stopped unexpectedly")
			stop()
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during fiber shutdown")
	}
	log.Info().Msg("server gracefully stopped")
}

// server owns the HTTP app and every connection opened for it.
type server struct {
	app   *fiber.App
	db    *gorm.DB
	redis *redis.Client
	mq    *rabbitmq.Client
	log   zerolog.Logger
}

// newServer opens the database, optional Redis and RabbitMQ connections, and
// assembles the application on top of them.
func newServer(ctx context.Context, cfg config.Config, log zerolog.Logger) (*server, error) {
	db, err := database.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	s := &server{db: db, log: log}
	if err := database.Migrate(db); err != nil {
		s.Close()
		return nil, err
	}

	m := metrics.New()
	dispatcher := events.NewDispatcher(log, m)
	dispatcher.Subscribe("log", events.LogSubscriber(log))
	dispatcher.Subscribe("low_stock", events.LowStockSubscriber(log, cfg.LowStockThreshold))

	var limiterStorage fiber.Storage
	if cfg.RedisURL != "" {
		client, err := redis.New(ctx, redis.Config{URL: cfg.RedisURL})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.redis = client
		limiterStorage = redis.NewLimiterStorage(client)
		log.Info().Msg("redis connected, rate limits are shared")
	}

	catalogCache, err := newCache(cfg, s.redis)
	if err != nil {
		s.Close()
		return nil, err
	}

	if cfg.RabbitMQURL != "" {
		mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Exchange: eventsExchange}, log)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.mq = mq
		dispatcher.Subscribe("amqp", events.AMQPSubscriber(mq, mq.Exchange()))
		if err := mq.Consume(auditQueue, "product.#", auditHandler(log)); err != nil {
			log.Error().Err(err).Msg("failed to start audit consumer")
		}
	}
	log.Info().Strs("subscribers", dispatcher.Subscribers()).Msg("catalog events wired")

	a := app.New(cfg, app.Deps{
		DB:             db,
		Cache:          catalogCache,
		Images:         storage.NewImageStore(cfg.MediaRoot, cfg.MediaURL),
		Events:         dispatcher,
		Metrics:        m,
		LimiterStorage: limiterStorage,
		Logger:         log,
	})
	s.app = a.Fiber
	return s, nil
}

// newCache picks the cache backend named by the configuration.
func newCache(cfg config.Config, client *redis.Client) (cache.Cache, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		if client == nil {
			return nil, errors.New("redis cache backend selected but redis is not connected")
		}
		return cache.NewRedisCache(client), nil
	default:
		memCfg := cache.DefaultMemoryConfig()
		if cfg.CacheTTL > memCfg.MaxTTL {
			memCfg.MaxTTL = cfg.CacheTTL
		}
		return cache.NewMemoryCache(memCfg), nil
	}
}

// auditHandler logs every catalog event read back from the broker.
func auditHandler(log zerolog.Logger) func(amqp.Delivery) error {
	return func(msg amqp.Delivery) error {
		var e events.Event
		if err := json.Unmarshal(msg.Body, &e); err != nil {
			return fmt.Errorf("decode catalog event: %w", err)
		}
		log.Info().
			Str("routing_key", msg.RoutingKey).
			Str("event", string(e.Type)).
			Str("product_id", e.ProductID).
			Time("occurred_at", e.OccurredAt).
			Msg("catalog event received")
		return nil
	}
}

// Close releases every connection the server opened.
func (s *server) Close() {
	if s.mq != nil {
		if err := s.mq.Close(); err != nil {
			s.log.Error().Err(err).Msg("error closing rabbitmq")
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.log.Error().Err(err).Msg("error closing redis")
		}
	}
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
