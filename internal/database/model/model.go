package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookStatus string

const (
	BookUploaded   BookStatus = "uploaded"
	BookParsing    BookStatus = "parsing"
	BookParsed     BookStatus = "parsed"
	BookProcessing BookStatus = "processing"
	BookCompleted  BookStatus = "completed"
	BookFailed     BookStatus = "failed"
)

type FileType string

const (
	FileEPUB FileType = "epub"
	FileTXT  FileType = "txt"
	FilePDF  FileType = "pdf"
)

type Book struct {
	ID            string     `gorm:"type:char(36);primaryKey" json:"id"`
	Title         string     `gorm:"size:500;not null" json:"title"`
	Author        *string    `gorm:"size:255" json:"author,omitempty"`
	FileName      string     `gorm:"size:500;not null" json:"file_name"`
	FilePath      string     `gorm:"size:1000;not null" json:"-"`
	FileType      FileType   `gorm:"size:10;not null" json:"file_type"`
	TotalChapters int        `gorm:"default:0" json:"total_chapters"`
	Status        BookStatus `gorm:"size:20;not null;default:uploaded" json:"status"`
	ErrorMessage  *string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Chapters []Chapter       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Jobs     []ProcessingJob `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (b *Book) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

type ChapterStatus string

const (
	ChapterExtracted  ChapterStatus = "extracted"
	ChapterFormatting ChapterStatus = "formatting"
	ChapterFormatted  ChapterStatus = "formatted"
	ChapterGenerating ChapterStatus = "generating"
	ChapterCompleted  ChapterStatus = "completed"
	ChapterFailed     ChapterStatus = "failed"
)

type Chapter struct {
	ID             string        `gorm:"type:char(36);primaryKey" json:"id"`
	BookID         string        `gorm:"type:char(36);not null;index" json:"book_id"`
	ChapterNumber  int           `gorm:"not null" json:"chapter_number"`
	Title          *string       `gorm:"size:500" json:"title,omitempty"`
	RawText        string        `gorm:"type:longtext;not null" json:"raw_text"`
	FormattedText  *string       `gorm:"type:longtext" json:"formatted_text,omitempty"`
	WordCount      int           `gorm:"default:0" json:"word_count"`
	CharacterCount int           `gorm:"default:0" json:"character_count"`
	Status         ChapterStatus `gorm:"size:20;not null;default:extracted" json:"status"`
	Excluded       bool          `gorm:"not null;default:false" json:"excluded"`
	ErrorMessage   *string       `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`

	AudioFiles []AudioFile `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (c *Chapter) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

type JobType string

const (
	JobParseBook     JobType = "parse_book"
	JobFormatChapter JobType = "format_chapter"
	JobGenerateAudio JobType = "generate_audio"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobRetrying  JobStatus = "retrying"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

type ProcessingJob struct {
	ID              string     `gorm:"type:char(36);primaryKey" json:"id"`
	BookID          string     `gorm:"type:char(36);not null;index" json:"book_id"`
	ChapterID       *string    `gorm:"type:char(36);index" json:"chapter_id,omitempty"`
	JobType         JobType    `gorm:"size:20;not null" json:"job_type"`
	Status          JobStatus  `gorm:"size:20;not null;default:pending" json:"status"`
	ProgressPercent int        `gorm:"default:0" json:"progress_percent"`
	ErrorMessage    *string    `gorm:"type:text" json:"error_message,omitempty"`
	RetryCount      int        `gorm:"default:0" json:"retry_count"`
	MaxRetries      int        `gorm:"default:3" json:"max_retries"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (j *ProcessingJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}

type AudioFile struct {
	ID              string    `gorm:"type:char(36);primaryKey" json:"id"`
	ChapterID       string    `gorm:"type:char(36);not null;index" json:"chapter_id"`
	FilePath        string    `gorm:"size:1000;not null" json:"-"`
	FileSize        int64     `gorm:"not null" json:"file_size"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty"`
	Format          string    `gorm:"size:10;not null;default:wav" json:"format"`
	ChunkIndex      int       `gorm:"default:0" json:"chunk_index"`
	TotalChunks     int       `gorm:"default:1" json:"total_chunks"`
	Voice           *string   `gorm:"size:100" json:"voice,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func (a *AudioFile) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
