package jobs

import (
	"github.com/gofiber/fiber/v3"
)

func RegisterRoutes(r fiber.Router) {
	r.Get("/jobs/:jobID", HandleGet)
	r.Get("/books/:bookID/jobs", HandleListByBook)
}
