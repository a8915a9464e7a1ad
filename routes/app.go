package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"ledger-backend/controllers"
	"ledger-backend/middlewares"
)

// AppConfig holds the HTTP server limits.
type AppConfig struct {
	BodyLimitBytes  int
	AllowedOrigins  string
	RateLimitMax    int
	RateLimitWindow time.Duration
	RequestTimeout  time.Duration
}

// NewApp builds the fiber app with the global middleware stack and all routes.
func NewApp(h *controllers.Handler, deps Deps, cfg AppConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middlewares.ErrorHandler(deps.Logger),
		BodyLimit:             cfg.BodyLimitBytes,
		DisableStartupMessage: true,
	})

	app.Use(middlewares.RequestID())
	app.Use(middlewares.AccessLog(deps.Logger))

	// ---- CORS
	allowedOrigins := cfg.AllowedOrigins
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: false, // using Bearer tokens, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key, X-Request-ID",
		ExposeHeaders:    "X-Request-ID, Idempotent-Replayed",
	}))

	// ---- Global rate limiter (per client IP)
	if cfg.RateLimitMax > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimitMax,
			Expiration: cfg.RateLimitWindow,
		}))
	}

	app.Use(middlewares.RequestTimeout(cfg.RequestTimeout))

	Register(app, h, deps)
	return app
}
