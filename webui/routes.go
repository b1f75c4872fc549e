package webui

import (
	"crypto/subtle"
	"errors"

	"github.com/0xSaurabhSharma/code-correction-agent/core/sse"
	"github.com/dave-gray101/v2keyauth"
	fiber "github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// publicPaths stay reachable without an API key.
var publicPaths = map[string]bool{
	"/":       true,
	"/health": true,
}

func (app *App) registerRoutes(webapp *fiber.App) {
	if len(app.config.ApiKeys) > 0 {
		kaConfig, err := GetKeyAuthConfig(app.config.ApiKeys)
		if err != nil || kaConfig == nil {
			panic(err)
		}
		webapp.Use(v2keyauth.New(*kaConfig))
	}

	webapp.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": welcomeMessage})
	})

	webapp.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	webapp.Post("/run_agent", app.RunAgent())

	webapp.Get("/api/runs", app.ListRuns())
	webapp.Get("/api/runs/:id", app.GetRun())
	webapp.Get("/api/memory/search", app.SearchMemory())

	if app.config.Events != nil {
		webapp.Get("/sse/runs", func(c *fiber.Ctx) error {
			app.config.Events.Handle(c, sse.NewClient(uuid.New().String(), c.Query("run")))
			return nil
		})
	}

	if app.config.Metrics != nil {
		webapp.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(app.config.Metrics, promhttp.HandlerOpts{})))
	}
}

func GetKeyAuthConfig(apiKeys []string) (*v2keyauth.Config, error) {
	customLookup, err := v2keyauth.MultipleKeySourceLookup([]string{"header:Authorization", "header:x-api-key", "cookie:token"}, keyauth.ConfigDefault.AuthScheme)
	if err != nil {
		return nil, err
	}

	return &v2keyauth.Config{
		CustomKeyLookup: customLookup,
		Next:            func(c *fiber.Ctx) bool { return publicPaths[c.Path()] },
		Validator:       getApiKeyValidationFunction(apiKeys),
		ErrorHandler:    getApiKeyErrorHandler(apiKeys),
		AuthScheme:      "Bearer",
	}, nil
}

func getApiKeyErrorHandler(apiKeys []string) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		if errors.Is(err, v2keyauth.ErrMissingOrMalformedAPIKey) {
			if len(apiKeys) == 0 {
				return ctx.Next()
			}
			ctx.Set("WWW-Authenticate", "Bearer")
			return detailJSON(ctx, fiber.StatusUnauthorized, "Missing or invalid API key")
		}
		return err
	}
}

func getApiKeyValidationFunction(apiKeys []string) func(*fiber.Ctx, string) (bool, error) {
	return func(ctx *fiber.Ctx, apiKey string) (bool, error) {
		if len(apiKeys) == 0 {
			return true, nil
		}
		for _, validKey := range apiKeys {
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) == 1 {
				return true, nil
			}
		}
		return false, v2keyauth.ErrMissingOrMalformedAPIKey
	}
}
