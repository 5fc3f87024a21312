package books

import (
	"github.com/gofiber/fiber/v3"

	"bookwhisperer/internal/services/jobs"
)

// RegisterRoutes wires the book endpoints. q is the shared job queue used
// to hand work to the background runner.
func RegisterRoutes(r fiber.Router, q jobs.Queue) {
	queue = q

	grp := r.Group("/books")
	grp.Post("/upload", HandleUpload)
	grp.Get("/", HandleList)
	grp.Get("/:bookID", HandleGet)
	grp.Patch("/:bookID", HandleUpdate)
	grp.Post("/:bookID/process", HandleProcess)
	grp.Delete("/:bookID", HandleDelete)
}
