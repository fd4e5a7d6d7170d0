package app

import (
	"context"
	"strings"
	"time"

	"myshop/internal/cache"
	"myshop/internal/config"
	"myshop/internal/database"
	"myshop/internal/events"
	"myshop/internal/handlers"
	"myshop/internal/metrics"
	"myshop/internal/middleware"
	"myshop/internal/repositories"
	"myshop/internal/services"
	"myshop/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gorm.io/gorm"
)

const bodyLimit = 10 * 1024 * 1024

// Deps are the long-lived resources the HTTP application is built on.
// Cache, Images, Events, Metrics and LimiterStorage are optional.
type Deps struct {
	DB             *gorm.DB
	Cache          cache.Cache
	Images         *storage.ImageStore
	Events         *events.Dispatcher
	Metrics        *metrics.Metrics
	LimiterStorage fiber.Storage
	Logger         zerolog.Logger
}

// App is the assembled HTTP application plus the services behind it.
type App struct {
	Fiber   *fiber.App
	Catalog *services.CatalogService
	Auth    *services.AuthService
}

// New wires repositories, services, middleware and routes.
func New(cfg config.Config, deps Deps) *App {
	log := deps.Logger
	if deps.Cache == nil {
		deps.Cache = cache.NewMemoryCache(cache.DefaultMemoryConfig())
	}
	if deps.Images == nil {
		deps.Images = storage.NewImageStore(cfg.MediaRoot, cfg.MediaURL)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	userRepo := repositories.NewGORMUserRepository(deps.DB)
	productRepo := repositories.NewGORMProductRepository(deps.DB)

	authService := services.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTTTL, log)
	catalog := services.NewCatalogService(services.CatalogDeps{
		Repo:              productRepo,
		Cache:             deps.Cache,
		Images:            deps.Images,
		Events:            deps.Events,
		Metrics:           deps.Metrics,
		Logger:            log,
		CacheTTL:          cfg.CacheTTL,
		PageSize:          cfg.PageSize,
		LowStockThreshold: cfg.LowStockThreshold,
	})

	app := fiber.New(fiber.Config{
		AppName:               cfg.ServiceName,
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit,
		ErrorHandler:          handlers.ErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(log))
	app.Use(deps.Metrics.Middleware())

	app.Get("/health", healthCheck(deps.DB))
	app.Get("/metrics", deps.Metrics.Handler())
	if prefix := strings.TrimSuffix(cfg.MediaURL, "/"); strings.HasPrefix(prefix, "/") {
		app.Use(prefix, filesystem.New(filesystem.Config{
			Root: afero.NewHttpFs(deps.Images.Fs()),
		}))
	}

	throttles := middleware.ThrottleConfig{
		AnonPerMinute:  cfg.ThrottleAnonPerMinute,
		UserPerMinute:  cfg.ThrottleUserPerMinute,
		BurstPerMinute: cfg.ThrottleBurstPerMinute,
		Storage:        deps.LimiterStorage,
	}
	throttle := middleware.Throttle(throttles)

	api := app.Group("", middleware.Authenticate(authService, log))
	handlers.NewAuthHandler(authService, log).RegisterRoutes(api, throttle)
	handlers.NewProductHandler(catalog, deps.Images, handlers.Paging{
		PageSize:    cfg.PageSize,
		MaxPageSize: cfg.MaxPageSize,
	}).RegisterRoutes(api, throttle, middleware.Burst(throttles))

	return &App{Fiber: app, Catalog: catalog, Auth: authService}
}

func healthCheck(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		if err := database.Ping(ctx, db); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":   "degraded",
				"time":     time.Now().Format(time.RFC3339),
				"database": "unavailable",
			})
		}
		return c.JSON(fiber.Map{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "connected",
		})
	}
}
