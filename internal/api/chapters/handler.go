package chapters

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"gorm.io/gorm"

	"bookwhisperer/config"
	"bookwhisperer/internal/database"
	"bookwhisperer/internal/database/model"
	"bookwhisperer/internal/services/jobs"
	"bookwhisperer/pkg/apperror"
	"bookwhisperer/pkg/apperror/status"
)

var queue jobs.Queue

type listResponse struct {
	BookID   string          `json:"book_id"`
	Chapters []model.Chapter `json:"chapters"`
	Total    int             `json:"total"`
}

type batchResponse struct {
	BookID string                `json:"book_id"`
	Jobs   []model.ProcessingJob `json:"jobs"`
}

// HandleListByBook lists a book's chapters in reading order.
func HandleListByBook(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	book, err := database.GetEntityByID[model.Book](c.Context(), c.Params("bookID"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound(config.ModuleChapters, c, status.BookNotFound, "book not found")
		}
		return apperror.InternalError(config.ModuleChapters, c, err)
	}

	db, err := database.GetDB()
	if err != nil {
		return apperror.InternalError(config.ModuleChapters, c, err)
	}
	var chapters []model.Chapter
	err = db.WithContext(c.Context()).
		Where("book_id = ?", book.ID).
		Order("chapter_number ASC").
		Find(&chapters).Error
	if err != nil {
		return apperror.InternalError(config.ModuleChapters, c, err)
	}

	return apperror.Success(c, apperror.SuccessMessage{
		Code:       status.OK,
		Message:    "chapters listed",
		TrackingID: trackingID,
		Data:       listResponse{BookID: book.ID, Chapters: chapters, Total: len(chapters)},
	})
}

func HandleGet(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	chapter, err := database.GetEntityByID[model.Chapter](c.Context(), c.Params("chapterID"))
	if err != nil {
		return chapterLookupError(c, err)
	}

	return apperror.Success(c, apperror.SuccessMessage{
		Code:       status.OK,
		Message:    "chapter found",
		TrackingID: trackingID,
		Data:       chapter,
	})
}

// HandleToggleExclude flips whether the chapter takes part in formatting
// and audio generation.
func HandleToggleExclude(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	chapter, err := database.GetEntityByID[model.Chapter](c.Context(), c.Params("chapterID"))
	if err != nil {
		return chapterLookupError(c, err)
	}

	err = database.UpdateEntityByID[model.Chapter](c.Context(), chapter.ID, map[string]interface{}{
		"excluded": !chapter.Excluded,
	})
	if err != nil {
		return apperror.InternalError(config.ModuleChapters, c, err)
	}
	chapter.Excluded = !chapter.Excluded

	return apperror.Success(c, apperror.SuccessMessage{
		Code:       status.OK,
		Message:    "chapter updated",
		TrackingID: trackingID,
		Data:       chapter,
	})
}

// HandleFormat queues LLM formatting for one chapter.
func HandleFormat(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	chapter, err := database.GetEntityByID[model.Chapter](c.Context(), c.Params("chapterID"))
	if err != nil {
		return chapterLookupError(c, err)
	}
	if chapter.Excluded {
		return apperror.BadRequest(config.ModuleChapters, c, status.ChapterExcluded, "chapter is excluded from processing")
	}
	if strings.TrimSpace(chapter.RawText) == "" {
		return apperror.BadRequest(config.ModuleChapters, c, status.ChapterNoText, "chapter has no text to format")
	}
	if chapter.Status == model.ChapterFormatting {
		return apperror.Conflict(config.ModuleChapters, c, status.ChapterInvalidRequest, "chapter is already being formatted")
	}

	job, err := jobs.Submit(c.Context(), queue, jobs.Task{
		Type:      model.JobFormatChapter,
		BookID:    chapter.BookID,
		ChapterID: chapter.ID,
	})
	if err != nil {
		return apperror.InternalError(config.ModuleChapters, c, status.New(status.JobEnqueueFailed, err))
	}

	return apperror.Success(c, apperror.SuccessMessage{
		Code:       status.OK,
		Message:    "formatting started",
		TrackingID: trackingID,
		Data:       job,
	})
}

// HandleFormatBook queues formatting for every extracted, included chapter
// of the book.
func HandleFormatBook(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	book, err := database.GetEntityByID[model.Book](c.Context(), c.Params("bookID"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound(config.ModuleChapters, c, status.BookNotFound, "book not found")
		}
		return apperror.InternalError(config.ModuleChapters, c, err)
	}

	chapters, err := chaptersInStatus(c, book.ID, model.ChapterExtracted)
	if err != nil {
		return apperror.InternalError(config.ModuleChapters, c, err)
	}
	if len(chapters) == 0 {
		return apperror.BadRequest(config.ModuleChapters, c, status.ChapterInvalidRequest,
			"no extracted chapters to format")
	}

	submitted := make([]model.ProcessingJob, 0, len(chapters))
	for _, ch := range chapters {
		job, err := jobs.Submit(c.Context(), queue, jobs.Task{
			Type:      model.JobFormatChapter,
			BookID:    book.ID,
			ChapterID: ch.ID,
		})
		if err != nil {
			return apperror.InternalError(config.ModuleChapters, c, status.New(status.JobEnqueueFailed, err))
		}
		submitted = append(submitted, *job)
	}

	return apperror.Success(c, apperror.SuccessMessage{
		Code:       status.OK,
		Message:    fmt.Sprintf("formatting started for %d chapters", len(submitted)),
		TrackingID: trackingID,
		Data:       batchResponse{BookID: book.ID, Jobs: submitted},
	})
}

type generateRequest struct {
	Voice    string `json:"voice"`
	Language string `json:"language"`
}

// generateParams reads the synthesis options from the JSON body when one is
// sent, falling back to query parameters. Defaults apply when both are
// absent.
func generateParams(c fiber.Ctx) (string, string, error) {
	var req generateRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&req); err != nil {
			return "", "", err
		}
	}
	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = strings.TrimSpace(c.Query("voice"))
	}
	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = strings.TrimSpace(c.Query("language"))
	}
	return voice, language, nil
}

// HandleGenerate queues audio synthesis for one formatted chapter.
func HandleGenerate(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	chapter, err := database.GetEntityByID[model.Chapter](c.Context(), c.Params("chapterID"))
	if err != nil {
		return chapterLookupError(c, err)
	}
	if chapter.Excluded {
		return apperror.BadRequest(config.ModuleChapters, c, status.ChapterExcluded, "chapter is excluded from processing")
	}
	if chapter.FormattedText == nil || strings.TrimSpace(*chapter.FormattedText) == "" {
		return apperror.BadRequest(config.ModuleChapters, c, status.ChapterNotFormatted,
			"chapter has no formatted text, format it first")
	}
	if chapter.Status == model.ChapterGenerating {
		return apperror.Conflict(config.ModuleChapters, c, status.ChapterInvalidRequest,
			"audio generation is already running for this chapter")
	}

	voice, language, err := generateParams(c)
	if err != nil {
		return apperror.BadRequest(config.ModuleChapters, c, status.ChapterInvalidRequest, "invalid request body")
	}

	job, err := jobs.Submit(c.Context(), queue, jobs.Task{
		Type:      model.JobGenerateAudio,
		BookID:    chapter.BookID,
		ChapterID: chapter.ID,
		Voice:     voice,
		Language:  language,
	})
	if err != nil {
		return apperror.InternalError(config.ModuleChapters, c, status.New(status.JobEnqueueFailed, err))
	}

	return apperror.Success(c, apperror.SuccessMessage{
		Code:       status.OK,
		Message:    "audio generation started",
		TrackingID: trackingID,
		Data:       job,
	})
}

// HandleGenerateBook queues audio synthesis for every formatted, included
// chapter of the book.
func HandleGenerateBook(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	book, err := database.GetEntityByID[model.Book](c.Context(), c.Params("bookID"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound(config.ModuleChapters, c, status.BookNotFound, "book not found")
		}
		return apperror.InternalError(config.ModuleChapters, c, err)
	}

	chapters, err := chaptersInStatus(c, book.ID, model.ChapterFormatted)
	if err != nil {
		return apperror.InternalError(config.ModuleChapters, c, err)
	}
	if len(chapters) == 0 {
		return apperror.BadRequest(config.ModuleChapters, c, status.ChapterInvalidRequest,
			"no formatted chapters to generate audio for")
	}

	voice, language, err := generateParams(c)
	if err != nil {
		return apperror.BadRequest(config.ModuleChapters, c, status.ChapterInvalidRequest, "invalid request body")
	}

	submitted := make([]model.ProcessingJob, 0, len(chapters))
	for _, ch := range chapters {
		job, err := jobs.Submit(c.Context(), queue, jobs.Task{
			Type:      model.JobGenerateAudio,
			BookID:    book.ID,
			ChapterID: ch.ID,
			Voice:     voice,
			Language:  language,
		})
		if err != nil {
			return apperror.InternalError(config.ModuleChapters, c, status.New(status.JobEnqueueFailed, err))
		}
		submitted = append(submitted, *job)
	}

	return apperror.Success(c, apperror.SuccessMessage{
		Code:       status.OK,
		Message:    fmt.Sprintf("audio generation started for %d chapters", len(submitted)),
		TrackingID: trackingID,
		Data:       batchResponse{BookID: book.ID, Jobs: submitted},
	})
}

func chaptersInStatus(c fiber.Ctx, bookID string, st model.ChapterStatus) ([]model.Chapter, error) {
	db, err := database.GetDB()
	if err != nil {
		return nil, err
	}
	var chapters []model.Chapter
	err = db.WithContext(c.Context()).
		Where("book_id = ? AND status = ? AND excluded = ?", bookID, st, false).
		Order("chapter_number ASC").
		Find(&chapters).Error
	return chapters, err
}

func chapterLookupError(c fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(config.ModuleChapters, c, status.ChapterNotFound, "chapter not found")
	}
	return apperror.InternalError(config.ModuleChapters, c, err)
}
