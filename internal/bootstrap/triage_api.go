package bootstrap

import (
	"context"

	"triage_server/adapter/in/http"

	"github.com/gofiber/fiber/v2"
)

// NewAPI mounts the HTTP handlers on top of deps.
func NewAPI(deps *Dependencies) *fiber.App {
	cfg := deps.Config

	health := http.NewHealthHandler(map[string]http.Probe{
		"postgres": func(ctx context.Context) error { return deps.DB.Ping(ctx) },
		"redis":    func(ctx context.Context) error { return deps.Redis.Ping(ctx).Err() },
	})

	return http.NewApp(http.RouterConfig{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
		Production:     cfg.IsProduction(),
	}, http.Handlers{
		Health: health,
		Email:  http.NewEmailHandler(deps.Inbox, deps.Accounts),
		Triage: http.NewTriageHandler(deps.APIGovernor, deps.Metrics, deps.APICache),
	}, deps.Log.With().Str("component", "api").Logger())
}
