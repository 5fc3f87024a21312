package healthcheck

import (
	"github.com/gofiber/fiber/v3"
)

func RegisterRoutes(r fiber.Router) {
	grp := r.Group("/health")

	grp.Get("/", OverviewHealthCheck)
	grp.Get("/api", ApiHealthCheck)
	grp.Get("/database", DatabaseHealthCheck)
	grp.Get("/llm", LLMHealthCheck)
	grp.Get("/tts", TTSHealthCheck)
	grp.Get("/all", AllHealthCheck)
}
