package voices

import (
	"github.com/gofiber/fiber/v3"
)

func RegisterRoutes(r fiber.Router) {
	grp := r.Group("/voices")
	grp.Get("/", HandleList)
	grp.Post("/", HandleUpload)
}
