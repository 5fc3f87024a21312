package audio

import (
	"github.com/gofiber/fiber/v3"
)

func RegisterRoutes(r fiber.Router) {
	grp := r.Group("/audio")
	grp.Get("/:audioID/download", HandleDownload)
	grp.Get("/:audioID/stream", HandleStream)
	grp.Delete("/:audioID", HandleDelete)

	r.Get("/chapters/:chapterID/audio", HandleListByChapter)
	r.Get("/books/:bookID/audio/download", HandleDownloadBook)
}
