package jobs

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"gorm.io/gorm"

	"bookwhisperer/config"
	"bookwhisperer/internal/database"
	"bookwhisperer/internal/database/model"
	"bookwhisperer/pkg/apperror"
	"bookwhisperer/pkg/apperror/status"
)

type listResponse struct {
	BookID string                `json:"book_id"`
	Jobs   []model.ProcessingJob `json:"jobs"`
	Total  int                   `json:"total"`
}

// HandleGet returns one job row. Clients poll this for progress.
func HandleGet(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	job, err := database.GetEntityByID[model.ProcessingJob](c.Context(), c.Params("jobID"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound(config.ModuleJobs, c, status.JobNotFound, "job not found")
		}
		return apperror.InternalError(config.ModuleJobs, c, err)
	}

	return apperror.Success(c, apperror.SuccessMessage{
		Code:       status.OK,
		Message:    "job found",
		TrackingID: trackingID,
		Data:       job,
	})
}

// HandleListByBook lists a book's jobs, newest first.
func HandleListByBook(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	book, err := database.GetEntityByID[model.Book](c.Context(), c.Params("bookID"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound(config.ModuleJobs, c, status.BookNotFound, "book not found")
		}
		return apperror.InternalError(config.ModuleJobs, c, err)
	}

	db, err := database.GetDB()
	if err != nil {
		return apperror.InternalError(config.ModuleJobs, c, err)
	}
	var rows []model.ProcessingJob
	err = db.WithContext(c.Context()).
		Where("book_id = ?", book.ID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return apperror.InternalError(config.ModuleJobs, c, err)
	}

	return apperror.Success(c, apperror.SuccessMessage{
		Code:       status.OK,
		Message:    "jobs listed",
		TrackingID: trackingID,
		Data:       listResponse{BookID: book.ID, Jobs: rows, Total: len(rows)},
	})
}
