package books

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"gorm.io/gorm"

	"bookwhisperer/config"
	"bookwhisperer/internal/database"
	"bookwhisperer/internal/database/model"
	"bookwhisperer/internal/services/jobs"
	"bookwhisperer/internal/services/storage"
	"bookwhisperer/pkg/apperror"
	"bookwhisperer/pkg/apperror/status"
)

var queue jobs.Queue

var fileTypes = map[string]model.FileType{
	".epub": model.FileEPUB,
	".txt":  model.FileTXT,
	".pdf":  model.FilePDF,
}

type uploadResponse struct {
	Book *model.Book          `json:"book"`
	Job  *model.ProcessingJob `json:"job"`
}

type listResponse struct {
	Books    []model.Book `json:"books"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// HandleUpload stores the manuscript, creates the book record and kicks
// off parsing in the background.
func HandleUpload(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	fh, err := c.FormFile("file")
	if err != nil || fh == nil || fh.Size == 0 {
		return apperror.BadRequest(config.ModuleBooks, c, status.BookMissingFile, "file is required")
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	fileType, ok := fileTypes[ext]
	if !ok {
		return apperror.BadRequest(config.ModuleBooks, c, status.BookUnsupportedType,
			fmt.Sprintf("unsupported file type %q, expected .epub, .txt or .pdf", ext))
	}
	if fh.Size > config.Cfg.Storage.MaxUploadSize {
		return apperror.WriteError(config.ModuleBooks, c, fiber.StatusRequestEntityTooLarge,
			fmt.Sprintf("BW-%d", status.BookTooLarge),
			fmt.Sprintf("file exceeds the %d byte upload limit", config.Cfg.Storage.MaxUploadSize))
	}

	file, err := fh.Open()
	if err != nil {
		return apperror.BadRequest(config.ModuleBooks, c, status.BookInvalidRequest, "cannot open uploaded file")
	}
	defer file.Close()

	storedPath, _, err := storage.SaveUpload(c.Context(), file, fh.Filename)
	if err != nil {
		return apperror.InternalError(config.ModuleBooks, c, err)
	}

	title := strings.TrimSpace(c.FormValue("title"))
	if title == "" {
		title = strings.TrimSuffix(fh.Filename, ext)
	}
	book := model.Book{
		Title:    title,
		FileName: fh.Filename,
		FilePath: storedPath,
		FileType: fileType,
		Status:   model.BookUploaded,
	}
	if author := strings.TrimSpace(c.FormValue("author")); author != "" {
		book.Author = &author
	}
	if err := database.CreateEntity(c.Context(), &book); err != nil {
		return apperror.InternalError(config.ModuleBooks, c, err)
	}

	job, err := jobs.Submit(c.Context(), queue, jobs.Task{Type: model.JobParseBook, BookID: book.ID})
	if err != nil {
		return apperror.InternalError(config.ModuleBooks, c, status.New(status.JobEnqueueFailed, err))
	}

	return apperror.Created(c, apperror.SuccessMessage{
		Code:       status.OK,
		Message:    "book uploaded, parsing started",
		TrackingID: trackingID,
		Data:       uploadResponse{Book: &book, Job: job},
	})
}

// HandleList returns a page of books, newest first, optionally filtered
// by status.
func HandleList(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := queryInt(c, "page_size", 20)
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	db, err := database.GetDB()
	if err != nil {
		return apperror.InternalError(config.ModuleBooks, c, err)
	}

	q := db.WithContext(c.Context()).Model(&model.Book{})
	if st := strings.TrimSpace(c.Query("status")); st != "" {
		q = q.Where("status = ?", st)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return apperror.InternalError(config.ModuleBooks, c, err)
	}

	var books []model.Book
	err = q.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&books).Error
	if err != nil {
		return apperror.InternalError(config.ModuleBooks, c, err)
	}

	return apperror.Success(c, apperror.SuccessMessage{
		Code:       status.OK,
		Message:    "books listed",
		TrackingID: trackingID,
		Data:       listResponse{Books: books, Total: total, Page: page, PageSize: pageSize},
	})
}

func HandleGet(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	book, err := database.GetEntityByID[model.Book](c.Context(), c.Params("bookID"))
	if err != nil {
		return bookLookupError(c, err)
	}

	return apperror.Success(c, apperror.SuccessMessage{
		Code:       status.OK,
		Message:    "book found",
		TrackingID: trackingID,
		Data:       book,
	})
}

type updateRequest struct {
	Title  *string `json:"title"`
	Author *string `json:"author"`
}

// HandleUpdate patches the editable book fields.
func HandleUpdate(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	book, err := database.GetEntityByID[model.Book](c.Context(), c.Params("bookID"))
	if err != nil {
		return bookLookupError(c, err)
	}

	var req updateRequest
	if err := c.Bind().Body(&req); err != nil {
		return apperror.BadRequest(config.ModuleBooks, c, status.BookInvalidRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		if t == "" {
			return apperror.BadRequest(config.ModuleBooks, c, status.BookInvalidRequest, "title cannot be empty")
		}
		updates["title"] = t
	}
	if req.Author != nil {
		updates["author"] = strings.TrimSpace(*req.Author)
	}
	if len(updates) == 0 {
		return apperror.BadRequest(config.ModuleBooks, c, status.BookInvalidRequest, "nothing to update")
	}

	if err := database.UpdateEntityByID[model.Book](c.Context(), book.ID, updates); err != nil {
		return apperror.InternalError(config.ModuleBooks, c, err)
	}
	book, err = database.GetEntityByID[model.Book](c.Context(), book.ID)
	if err != nil {
		return apperror.InternalError(config.ModuleBooks, c, err)
	}

	return apperror.Success(c, apperror.SuccessMessage{
		Code:       status.OK,
		Message:    "book updated",
		TrackingID: trackingID,
		Data:       book,
	})
}

// HandleProcess re-runs parsing for an already uploaded book.
func HandleProcess(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	book, err := database.GetEntityByID[model.Book](c.Context(), c.Params("bookID"))
	if err != nil {
		return bookLookupError(c, err)
	}
	if book.Status == model.BookParsing || book.Status == model.BookProcessing {
		return apperror.Conflict(config.ModuleBooks, c, status.BookInvalidRequest,
			fmt.Sprintf("book is already %s", book.Status))
	}

	job, err := jobs.Submit(c.Context(), queue, jobs.Task{Type: model.JobParseBook, BookID: book.ID})
	if err != nil {
		return apperror.InternalError(config.ModuleBooks, c, status.New(status.JobEnqueueFailed, err))
	}
	err = database.UpdateEntityByID[model.Book](c.Context(), book.ID, map[string]interface{}{
		"status": model.BookParsing,
	})
	if err != nil {
		return apperror.InternalError(config.ModuleBooks, c, err)
	}

	return apperror.Success(c, apperror.SuccessMessage{
		Code:       status.OK,
		Message:    "parsing started",
		TrackingID: trackingID,
		Data:       job,
	})
}

// HandleDelete removes the book, its chapters, jobs and audio, and the
// stored files.
func HandleDelete(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	book, err := database.GetEntityByID[model.Book](c.Context(), c.Params("bookID"))
	if err != nil {
		return bookLookupError(c, err)
	}

	db, err := database.GetDB()
	if err != nil {
		return apperror.InternalError(config.ModuleBooks, c, err)
	}

	// Remove stored audio before the rows disappear.
	var audioFiles []model.AudioFile
	err = db.WithContext(c.Context()).
		Joins("JOIN chapters ON chapters.id = audio_files.chapter_id").
		Where("chapters.book_id = ?", book.ID).
		Find(&audioFiles).Error
	if err != nil {
		return apperror.InternalError(config.ModuleBooks, c, err)
	}
	for _, af := range audioFiles {
		if err := storage.Delete(c.Context(), af.FilePath); err != nil {
			return apperror.InternalError(config.ModuleBooks, c, err)
		}
	}
	if err := storage.Delete(c.Context(), book.FilePath); err != nil {
		return apperror.InternalError(config.ModuleBooks, c, err)
	}

	err = database.WithTx(c.Context(), func(tx *gorm.DB) error {
		if err := tx.Where("chapter_id IN (?)",
			tx.Session(&gorm.Session{NewDB: true}).Model(&model.Chapter{}).Select("id").Where("book_id = ?", book.ID),
		).Delete(&model.AudioFile{}).Error; err != nil {
			return err
		}
		if err := tx.Where("book_id = ?", book.ID).Delete(&model.Chapter{}).Error; err != nil {
			return err
		}
		if err := tx.Where("book_id = ?", book.ID).Delete(&model.ProcessingJob{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Book{}, "id = ?", book.ID).Error
	})
	if err != nil {
		return apperror.InternalError(config.ModuleBooks, c, err)
	}

	return apperror.Success(c, apperror.SuccessMessage{
		Code:       status.OK,
		Message:    "book deleted",
		TrackingID: trackingID,
	})
}

func bookLookupError(c fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(config.ModuleBooks, c, status.BookNotFound, "book not found")
	}
	return apperror.InternalError(config.ModuleBooks, c, err)
}

func queryInt(c fiber.Ctx, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
