package jobs

import (
	"context"
	"fmt"
	"strings"

	"bookwhisperer/config"
	"bookwhisperer/internal/core/format"
	"bookwhisperer/internal/core/tts"
	"bookwhisperer/internal/database"
	"bookwhisperer/internal/database/model"
	"bookwhisperer/internal/parser"
	"bookwhisperer/internal/services/storage"
	"bookwhisperer/pkg/logger"

	"gorm.io/gorm"
)

// ParseBook extracts chapters from the uploaded manuscript file and stores
// them. A re-run replaces the book's existing chapters.
func ParseBook(ctx context.Context, task Task, report func(int)) error {
	book, err := database.GetEntityByID[model.Book](ctx, task.BookID)
	if err != nil {
		return fmt.Errorf("book not found: %w", err)
	}

	if err := setBookStatus(ctx, book.ID, model.BookParsing, nil); err != nil {
		return err
	}

	local, cleanup, err := storage.FetchToLocalTemp(ctx, book.FilePath)
	if err != nil {
		return failBook(ctx, book.ID, fmt.Errorf("fetch manuscript: %w", err))
	}
	defer cleanup()

	parsed, err := parser.Parse(local)
	if err != nil {
		return failBook(ctx, book.ID, err)
	}
	report(50)

	err = database.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("book_id = ?", book.ID).Delete(&model.Chapter{}).Error; err != nil {
			return err
		}
		for _, ch := range parsed.Chapters {
			title := ch.Title
			row := model.Chapter{
				BookID:         book.ID,
				ChapterNumber:  ch.Number,
				Title:          &title,
				RawText:        ch.Content,
				WordCount:      ch.WordCount,
				CharacterCount: ch.CharCount,
				Status:         model.ChapterExtracted,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}

		updates := map[string]interface{}{
			"total_chapters": len(parsed.Chapters),
			"status":         model.BookParsed,
			"error_message":  nil,
		}
		if t := strings.TrimSpace(parsed.Metadata.Title); t != "" && t != "Unknown Title" {
			updates["title"] = t
		}
		if a := strings.TrimSpace(parsed.Metadata.Author); a != "" && a != "Unknown Author" {
			updates["author"] = a
		}
		return tx.Model(&model.Book{}).Where("id = ?", book.ID).Updates(updates).Error
	})
	if err != nil {
		return failBook(ctx, book.ID, err)
	}

	logger.Info("%v: book %s parsed into %d chapters", config.ModuleBooks, book.ID, len(parsed.Chapters))
	return nil
}

// FormatChapter runs the raw chapter text through the LLM formatter and
// stores the merged result.
func FormatChapter(ctx context.Context, task Task, report func(int)) error {
	chapter, err := database.GetEntityByID[model.Chapter](ctx, task.ChapterID)
	if err != nil {
		return fmt.Errorf("chapter not found: %w", err)
	}
	if chapter.Excluded {
		return failChapter(ctx, chapter.ID, fmt.Errorf("chapter is excluded from processing"))
	}
	if strings.TrimSpace(chapter.RawText) == "" {
		return failChapter(ctx, chapter.ID, fmt.Errorf("chapter has no raw text to format"))
	}

	if err := setChapterStatus(ctx, chapter.ID, model.ChapterFormatting, nil); err != nil {
		return err
	}

	formatter := format.New()
	result, err := formatter.FormatChapter(ctx, chapter.RawText, func(completed, total int) {
		report(completed * 100 / total)
	})
	if err != nil {
		return failChapter(ctx, chapter.ID, err)
	}

	err = database.UpdateEntityByID[model.Chapter](ctx, chapter.ID, map[string]interface{}{
		"formatted_text":  result.Text,
		"character_count": len([]rune(result.Text)),
		"status":          model.ChapterFormatted,
		"error_message":   nil,
	})
	if err != nil {
		return err
	}

	logger.Info("%v: chapter %s formatted: %d chunks, %d -> %d chars",
		config.ModuleChapters, chapter.ID, result.ChunkCount,
		len([]rune(chapter.RawText)), len([]rune(result.Text)))
	return nil
}

// GenerateAudio synthesizes the formatted chapter text chunk by chunk and
// records one AudioFile row per segment. Re-running replaces the chapter's
// previous audio.
func GenerateAudio(ctx context.Context, task Task, report func(int)) error {
	chapter, err := database.GetEntityByID[model.Chapter](ctx, task.ChapterID)
	if err != nil {
		return fmt.Errorf("chapter not found: %w", err)
	}
	if chapter.FormattedText == nil || strings.TrimSpace(*chapter.FormattedText) == "" {
		return failChapter(ctx, chapter.ID, fmt.Errorf("chapter has no formatted text, format it first"))
	}

	if err := setChapterStatus(ctx, chapter.ID, model.ChapterGenerating, nil); err != nil {
		return err
	}

	client := tts.New()
	if err := client.Health(ctx); err != nil {
		return failChapter(ctx, chapter.ID, err)
	}

	opts := tts.DefaultOptions()
	if task.Voice != "" {
		opts.Voice = task.Voice
	}
	if task.Language != "" {
		opts.Language = task.Language
	}

	// Synthesis dominates the runtime; saving files is the last 10%.
	segments, err := client.SynthesizeChapter(ctx, *chapter.FormattedText, opts, func(completed, total int) {
		report(completed * 90 / total)
	})
	if err != nil {
		return failChapter(ctx, chapter.ID, err)
	}
	if len(segments) == 0 {
		return failChapter(ctx, chapter.ID, fmt.Errorf("formatted text produced no audio chunks"))
	}

	db, err := database.GetDB()
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Where("chapter_id = ?", chapter.ID).Delete(&model.AudioFile{}).Error; err != nil {
		return failChapter(ctx, chapter.ID, err)
	}

	var voice *string
	if opts.Voice != "" {
		v := opts.Voice
		voice = &v
	}
	for _, seg := range segments {
		path, err := storage.SaveAudio(ctx, seg.Output, chapter.ID, seg.Index, "wav")
		if err != nil {
			return failChapter(ctx, chapter.ID, err)
		}
		row := model.AudioFile{
			ChapterID:   chapter.ID,
			FilePath:    path,
			FileSize:    int64(len(seg.Output)),
			Format:      "wav",
			ChunkIndex:  seg.Index,
			TotalChunks: seg.Total,
			Voice:       voice,
		}
		if err := database.CreateEntity(ctx, &row); err != nil {
			return failChapter(ctx, chapter.ID, err)
		}
	}

	if err := setChapterStatus(ctx, chapter.ID, model.ChapterCompleted, nil); err != nil {
		return err
	}
	logger.Info("%v: chapter %s audio generated: %d segments", config.ModuleAudio, chapter.ID, len(segments))

	return maybeCompleteBook(ctx, chapter.BookID)
}

// maybeCompleteBook flips the book to completed once every included chapter
// has audio.
func maybeCompleteBook(ctx context.Context, bookID string) error {
	db, err := database.GetDB()
	if err != nil {
		return err
	}
	var remaining int64
	err = db.WithContext(ctx).Model(&model.Chapter{}).
		Where("book_id = ? AND excluded = ? AND status <> ?", bookID, false, model.ChapterCompleted).
		Count(&remaining).Error
	if err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}
	return setBookStatus(ctx, bookID, model.BookCompleted, nil)
}

func setBookStatus(ctx context.Context, bookID string, status model.BookStatus, message *string) error {
	updates := map[string]interface{}{"status": status}
	if message != nil {
		updates["error_message"] = *message
	}
	return database.UpdateEntityByID[model.Book](ctx, bookID, updates)
}

func setChapterStatus(ctx context.Context, chapterID string, status model.ChapterStatus, message *string) error {
	updates := map[string]interface{}{"status": status}
	if message != nil {
		updates["error_message"] = *message
	} else {
		updates["error_message"] = nil
	}
	return database.UpdateEntityByID[model.Chapter](ctx, chapterID, updates)
}

func failBook(ctx context.Context, bookID string, cause error) error {
	msg := cause.Error()
	if err := setBookStatus(ctx, bookID, model.BookFailed, &msg); err != nil {
		logger.Error(err, "%v: cannot mark book %s failed", config.ModuleBooks, bookID)
	}
	return cause
}

func failChapter(ctx context.Context, chapterID string, cause error) error {
	msg := cause.Error()
	if err := setChapterStatus(ctx, chapterID, model.ChapterFailed, &msg); err != nil {
		logger.Error(err, "%v: cannot mark chapter %s failed", config.ModuleChapters, chapterID)
	}
	return cause
}
