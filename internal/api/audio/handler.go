package audio

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/gofiber/fiber/v3"
	"gorm.io/gorm"

	"bookwhisperer/config"
	"bookwhisperer/internal/database"
	"bookwhisperer/internal/database/model"
	"bookwhisperer/internal/services/storage"
	"bookwhisperer/pkg/apperror"
	"bookwhisperer/pkg/apperror/status"
)

type audioEntry struct {
	ID              string   `json:"id"`
	FileSize        int64    `json:"file_size"`
	Format          string   `json:"format"`
	ChunkIndex      int      `json:"chunk_index"`
	TotalChunks     int      `json:"total_chunks"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	Voice           *string  `json:"voice,omitempty"`
	DownloadURL     string   `json:"download_url"`
	StreamURL       string   `json:"stream_url"`
	PresignedURL    string   `json:"presigned_url,omitempty"`
}

type listResponse struct {
	ChapterID  string       `json:"chapter_id"`
	AudioFiles []audioEntry `json:"audio_files"`
	Total      int          `json:"total"`
}

// HandleDownload serves one audio chunk as an attachment.
func HandleDownload(c fiber.Ctx) error {
	af, err := loadAudioFile(c)
	if err != nil {
		return audioLookupError(c, err)
	}

	name := fmt.Sprintf("audio_%s.%s", af.ID, af.Format)
	chapter, err := database.GetEntityByID[model.Chapter](c.Context(), af.ChapterID)
	if err == nil && chapter.Title != nil && *chapter.Title != "" {
		name = fmt.Sprintf("%s_chunk_%03d.%s", *chapter.Title, af.ChunkIndex, af.Format)
	}
	name = cleanFilename(name)

	return serveAudio(c, af, fiber.SendFile{Download: true}, name)
}

// HandleStream serves one audio chunk inline with range support so
// players can seek.
func HandleStream(c fiber.Ctx) error {
	af, err := loadAudioFile(c)
	if err != nil {
		return audioLookupError(c, err)
	}
	return serveAudio(c, af, fiber.SendFile{ByteRange: true}, "")
}

// HandleListByChapter lists a chapter's audio chunks in playback order.
func HandleListByChapter(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	chapter, err := database.GetEntityByID[model.Chapter](c.Context(), c.Params("chapterID"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound(config.ModuleAudio, c, status.ChapterNotFound, "chapter not found")
		}
		return apperror.InternalError(config.ModuleAudio, c, err)
	}

	db, err := database.GetDB()
	if err != nil {
		return apperror.InternalError(config.ModuleAudio, c, err)
	}
	var rows []model.AudioFile
	err = db.WithContext(c.Context()).
		Where("chapter_id = ?", chapter.ID).
		Order("chunk_index ASC").
		Find(&rows).Error
	if err != nil {
		return apperror.InternalError(config.ModuleAudio, c, err)
	}

	entries := make([]audioEntry, 0, len(rows))
	for _, af := range rows {
		// Best effort; S3-backed files get a direct link, local ones go
		// through the download endpoint.
		presigned, err := storage.PresignDownload(c.Context(), af.FilePath, 15*time.Minute)
		if err != nil {
			presigned = ""
		}
		entries = append(entries, audioEntry{
			ID:              af.ID,
			FileSize:        af.FileSize,
			Format:          af.Format,
			ChunkIndex:      af.ChunkIndex,
			TotalChunks:     af.TotalChunks,
			DurationSeconds: af.DurationSeconds,
			Voice:           af.Voice,
			DownloadURL:     fmt.Sprintf("/api/v1/audio/%s/download", af.ID),
			StreamURL:       fmt.Sprintf("/api/v1/audio/%s/stream", af.ID),
			PresignedURL:    presigned,
		})
	}

	return apperror.Success(c, apperror.SuccessMessage{
		Code:       status.OK,
		Message:    "audio files listed",
		TrackingID: trackingID,
		Data:       listResponse{ChapterID: chapter.ID, AudioFiles: entries, Total: len(entries)},
	})
}

// HandleDownloadBook bundles every audio chunk of the book into a ZIP,
// one folder per multi-chunk chapter.
func HandleDownloadBook(c fiber.Ctx) error {
	book, err := database.GetEntityByID[model.Book](c.Context(), c.Params("bookID"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound(config.ModuleAudio, c, status.BookNotFound, "book not found")
		}
		return apperror.InternalError(config.ModuleAudio, c, err)
	}

	db, err := database.GetDB()
	if err != nil {
		return apperror.InternalError(config.ModuleAudio, c, err)
	}
	var chapters []model.Chapter
	err = db.WithContext(c.Context()).
		Where("book_id = ?", book.ID).
		Order("chapter_number ASC").
		Find(&chapters).Error
	if err != nil {
		return apperror.InternalError(config.ModuleAudio, c, err)
	}
	if len(chapters) == 0 {
		return apperror.BadRequest(config.ModuleAudio, c, status.AudioInvalidRequest, "book has no chapters")
	}

	zipFile, err := os.CreateTemp("", "audiobook-*.zip")
	if err != nil {
		return apperror.InternalError(config.ModuleAudio, c, err)
	}
	zipPath := zipFile.Name()
	defer os.Remove(zipPath)

	zw := zip.NewWriter(zipFile)
	written := 0
	for _, ch := range chapters {
		var rows []model.AudioFile
		err = db.WithContext(c.Context()).
			Where("chapter_id = ?", ch.ID).
			Order("chunk_index ASC").
			Find(&rows).Error
		if err != nil {
			zw.Close()
			zipFile.Close()
			return apperror.InternalError(config.ModuleAudio, c, err)
		}
		for _, af := range rows {
			if err := addToArchive(c, zw, ch, af); err != nil {
				zw.Close()
				zipFile.Close()
				return apperror.InternalError(config.ModuleAudio, c, err)
			}
			written++
		}
	}
	if err := zw.Close(); err != nil {
		zipFile.Close()
		return apperror.InternalError(config.ModuleAudio, c, err)
	}
	if err := zipFile.Close(); err != nil {
		return apperror.InternalError(config.ModuleAudio, c, err)
	}

	if written == 0 {
		return apperror.BadRequest(config.ModuleAudio, c, status.AudioInvalidRequest, "book has no audio files")
	}

	// Hold the response in memory so the temp file can be removed.
	data, err := os.ReadFile(zipPath)
	if err != nil {
		return apperror.InternalError(config.ModuleAudio, c, err)
	}
	name := cleanFilename(fmt.Sprintf("%s_audiobook.zip", book.Title))
	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Send(data)
}

// HandleDelete removes one audio chunk and its stored file.
func HandleDelete(c fiber.Ctx) error {
	trackingID := c.Get("X-Request-ID")

	af, err := loadAudioFile(c)
	if err != nil {
		return audioLookupError(c, err)
	}

	if err := storage.Delete(c.Context(), af.FilePath); err != nil {
		return apperror.InternalError(config.ModuleAudio, c, err)
	}
	if err := database.DeleteEntityByID[model.AudioFile](c.Context(), af.ID); err != nil {
		return apperror.InternalError(config.ModuleAudio, c, err)
	}

	return apperror.Success(c, apperror.SuccessMessage{
		Code:       status.OK,
		Message:    "audio file deleted",
		TrackingID: trackingID,
	})
}

func loadAudioFile(c fiber.Ctx) (*model.AudioFile, error) {
	return database.GetEntityByID[model.AudioFile](c.Context(), c.Params("audioID"))
}

// serveAudio sends a stored audio file. S3-backed files redirect to a
// short-lived presigned URL; local files are served directly.
func serveAudio(c fiber.Ctx, af *model.AudioFile, cfg fiber.SendFile, downloadName string) error {
	if strings.HasPrefix(af.FilePath, "s3://") {
		presigned, err := storage.PresignDownload(c.Context(), af.FilePath, 15*time.Minute)
		if err != nil {
			return apperror.InternalError(config.ModuleAudio, c, err)
		}
		return c.Redirect().Status(fiber.StatusTemporaryRedirect).To(presigned)
	}

	local, cleanup, err := storage.FetchToLocalTemp(c.Context(), af.FilePath)
	if err != nil {
		return apperror.NotFound(config.ModuleAudio, c, status.AudioNotFound, "audio file not found in storage")
	}
	defer cleanup()

	c.Set(fiber.HeaderContentType, "audio/"+af.Format)
	if downloadName != "" {
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", downloadName))
	}
	return c.SendFile(local, cfg)
}

func addToArchive(c fiber.Ctx, zw *zip.Writer, ch model.Chapter, af model.AudioFile) error {
	local, cleanup, err := storage.FetchToLocalTemp(c.Context(), af.FilePath)
	if err != nil {
		// Missing chunks are skipped rather than failing the archive.
		return nil
	}
	defer cleanup()

	title := fmt.Sprintf("Chapter_%03d", ch.ChapterNumber)
	if ch.Title != nil && *ch.Title != "" {
		title = cleanFilename(*ch.Title)
	}
	name := fmt.Sprintf("%03d_%s.%s", ch.ChapterNumber, title, af.Format)
	if af.TotalChunks > 1 {
		name = fmt.Sprintf("%03d_%s/chunk_%03d.%s", ch.ChapterNumber, title, af.ChunkIndex, af.Format)
	}

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// cleanFilename keeps letters, digits and a few separators so the name
// is safe in a Content-Disposition header and on any filesystem.
func cleanFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(" _-.", r) {
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		out = "audio"
	}
	return out
}

func audioLookupError(c fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(config.ModuleAudio, c, status.AudioNotFound, "audio file not found")
	}
	return apperror.InternalError(config.ModuleAudio, c, err)
}
