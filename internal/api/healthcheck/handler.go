package healthcheck

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"

	"bookwhisperer/config"
	"bookwhisperer/internal/core/format"
	"bookwhisperer/internal/core/tts"
	"bookwhisperer/internal/database"
	"bookwhisperer/pkg/apperror"
)

type componentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func OverviewHealthCheck(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": config.Cfg.Server.AppName,
	})
}

func ApiHealthCheck(c fiber.Ctx) error {
	return c.SendString("ok")
}

func DatabaseHealthCheck(c fiber.Ctx) error {
	if err := pingDatabase(); err != nil {
		return apperror.InternalError(config.ModuleDatabase, c, err)
	}
	return c.SendString("ok")
}

// LLMHealthCheck verifies the chat endpoint is up and serves the
// configured model.
func LLMHealthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := format.New().Health(ctx); err != nil {
		return apperror.InternalError(config.ModuleFormat, c, err)
	}
	return c.SendString("ok")
}

func TTSHealthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tts.New().Health(ctx); err != nil {
		return apperror.InternalError(config.ModuleTTS, c, err)
	}
	return c.SendString("ok")
}

// AllHealthCheck probes every dependency and reports degraded when any of
// them is down. Always responds 200 so monitors can read the breakdown.
func AllHealthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	components := map[string]componentHealth{
		"database": toComponent(pingDatabase()),
		"llm":      toComponent(format.New().Health(ctx)),
		"tts":      toComponent(tts.New().Health(ctx)),
	}

	status := "healthy"
	for _, ch := range components {
		if ch.Status != "healthy" {
			status = "degraded"
			break
		}
	}

	return c.JSON(fiber.Map{
		"status":     status,
		"components": components,
	})
}

func pingDatabase() error {
	db, err := database.GetDB()
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

func toComponent(err error) componentHealth {
	if err != nil {
		return componentHealth{Status: "unhealthy", Message: err.Error()}
	}
	return componentHealth{Status: "healthy"}
}
