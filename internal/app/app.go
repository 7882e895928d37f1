// Package app assembles the HTTP service from configuration.
package app

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"harvestlink/internal/config"
	"harvestlink/internal/events"
	"harvestlink/internal/handlers"
	"harvestlink/internal/metrics"
	"harvestlink/internal/middleware"
	"harvestlink/internal/ratelimit"
	"harvestlink/internal/services"
	"harvestlink/pkg/rabbitmq"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// App is the wired service: Fiber routes over the configured storage, with
// optional RabbitMQ events.
type App struct {
	Fiber   *fiber.App
	Metrics *metrics.Metrics

	cfg *config.Config
	db  *gorm.DB
	mq  *rabbitmq.Client
}

// New opens storage and the event broker and registers every route.
func New(cfg *config.Config) (*App, error) {
	st, db, err := openStores(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, db: db, Metrics: metrics.New()}

	var publisher events.Publisher
	if cfg.RabbitMQURL != "" {
		a.mq, err = rabbitmq.NewClient(rabbitmq.Config{
			URL:        cfg.RabbitMQURL,
			Exchange:   cfg.RabbitMQExchange,
			Queue:      cfg.RabbitMQQueue,
			BindingKey: "order.#",
		})
		if err != nil {
			a.closeStorage()
			return nil, err
		}
		publisher = a.mq
		audit := log.Logger.With().Str("component", "order-audit").Logger()
		if err := a.mq.Consume(events.AuditHandler(audit)); err != nil {
			log.Error().Err(err).Msg("failed to start order event consumer")
		}
	} else {
		log.Info().Msg("RABBITMQ_URL not set, order events disabled")
	}

	authService := services.NewAuthService(st.users, cfg.JWTSecret, cfg.TokenTTL)
	productService := services.NewProductService(st.products)
	orderService := services.NewOrderService(st.orders, st.products, st.users,
		events.NewEmitter(publisher), a.Metrics, services.OrderOptions{
			StrictTransitions: cfg.StrictTransitions,
			PinHashCost:       cfg.PinHashCost,
			PinLimiter:        ratelimit.NewKeyedLimiter(cfg.PinAttemptsPerMinute, cfg.PinAttemptBurst),
		})
	cartService := services.NewCartService(st.carts, st.products, st.users, orderService)

	a.Fiber = fiber.New(fiber.Config{
		AppName:      "harvestlink",
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ErrorHandler: errorHandler,
	})

	a.Fiber.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			log.Error().
				Str("method", c.Method()).
				Str("path", c.Path()).
				Interface("panic", e).
				Bytes("stack", debug.Stack()).
				Msg("recovered from panic")
		},
	}))
	a.Fiber.Use(logger.New(logger.Config{
		Format: "${status} ${method} ${path} ${latency}\n",
		Output: log.Logger,
	}))

	a.Fiber.Get("/health", a.health)
	a.Fiber.Get("/metrics", adaptor.HTTPHandler(a.Metrics.Handler()))

	apiV1 := a.Fiber.Group("/api/v1")
	// Public routes first; everything registered after the protected group needs a token.
	// The token check runs for any /api/v1 path, so unknown API paths answer 401
	// until the caller is authenticated and 404 after.
	handlers.NewAuthHandler(authService).RegisterRoutes(apiV1)

	protected := apiV1.Group("", middleware.AuthRequired(authService))
	handlers.NewProductHandler(productService).RegisterRoutes(protected)
	handlers.NewOrderHandler(orderService).RegisterRoutes(protected)
	handlers.NewCartHandler(cartService).RegisterRoutes(protected)

	return a, nil
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
	}
	return c.Status(code).JSON(fiber.Map{
		"message": statusMessage(code),
		"error":   err.Error(),
	})
}

func statusMessage(code int) string {
	switch code {
	case fiber.StatusNotFound:
		return "Route not found"
	case fiber.StatusMethodNotAllowed:
		return "Method not allowed"
	case fiber.StatusInternalServerError:
		return "Internal server error"
	default:
		return "Request failed"
	}
}

func (a *App) health(c *fiber.Ctx) error {
	status, code := "healthy", fiber.StatusOK
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err != nil || sqlDB.Ping() != nil {
			status, code = "degraded", fiber.StatusServiceUnavailable
		}
	}
	eventsState := "disabled"
	if a.mq != nil {
		eventsState = "connected"
	}
	return c.Status(code).JSON(fiber.Map{
		"status":  status,
		"time":    time.Now().Format(time.RFC3339),
		"storage": a.cfg.StorageDriver,
		"events":  eventsState,
	})
}

// Listen serves on the configured port until Shutdown.
func (a *App) Listen() error {
	log.Info().Str("addr", a.cfg.AppPort).Msg("starting server")
	return a.Fiber.Listen(a.cfg.AppPort)
}

// Shutdown stops the server and releases the broker and database.
func (a *App) Shutdown() error {
	var errs []error
	if err := a.Fiber.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("fiber shutdown: %w", err))
	}
	if a.mq != nil {
		if err := a.mq.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.closeStorage(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeStorage() error {
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
