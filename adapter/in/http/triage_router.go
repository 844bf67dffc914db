package http

import (
	"strings"

	"triage_server/infra/middleware"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog"
)

// RouterConfig controls the app-level middleware.
type RouterConfig struct {
	JWTSecret      string
	AllowedOrigins []string
	Production     bool
}

// Handlers groups everything mounted on the app. Nil handlers are skipped.
type Handlers struct {
	Health *HealthHandler
	Email  *EmailHandler
	Triage *TriageHandler
}

// NewApp builds the fiber app. Health routes are public; everything under
// /api/v1 requires a bearer token when a JWT secret is configured.
func NewApp(cfg RouterConfig, h Handlers, log zerolog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(log),
		DisableStartupMessage: cfg.Production,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             2 * 1024 * 1024,
		DisableDefaultDate:    true,
	})

	// order matters
	app.Use(middleware.Recover(log))
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger(log))
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		if cfg.Production {
			allowOrigins = ""
			allowCredentials = false
		} else {
			allowOrigins = "http://localhost:3000,http://localhost:5173"
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,PUT,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders:    "X-Request-ID",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	if h.Health != nil {
		h.Health.Register(app)
	}

	api := app.Group("/api/v1", middleware.JWTAuth(cfg.JWTSecret))
	if h.Email != nil {
		h.Email.Register(api)
	}
	if h.Triage != nil {
		h.Triage.Register(api)
	}

	return app
}
