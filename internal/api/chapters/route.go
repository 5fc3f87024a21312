package chapters

import (
	"github.com/gofiber/fiber/v3"

	"bookwhisperer/internal/services/jobs"
)

// RegisterRoutes wires the chapter endpoints. Per-chapter routes live
// under /chapters; the batch triggers hang off the owning book.
func RegisterRoutes(r fiber.Router, q jobs.Queue) {
	queue = q

	grp := r.Group("/chapters")
	grp.Get("/:chapterID", HandleGet)
	grp.Patch("/:chapterID/exclude", HandleToggleExclude)
	grp.Post("/:chapterID/format", HandleFormat)
	grp.Post("/:chapterID/generate", HandleGenerate)

	books := r.Group("/books")
	books.Get("/:bookID/chapters", HandleListByBook)
	books.Post("/:bookID/chapters/format", HandleFormatBook)
	books.Post("/:bookID/chapters/generate", HandleGenerateBook)
}
