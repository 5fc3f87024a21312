package parser

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"bookwhisperer/config"
	"bookwhisperer/pkg/logger"
)

// chapterPatterns match common chapter heading lines: "Chapter 1",
// "CHAPTER IV: Title", "1. Title", "Part 2" and a bare number on its own
// line.
var chapterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?:CHAPTER|Chapter|chapter)\s+(?:\d+|[IVXivx]+|[A-Z][a-z]+)\s*[:\-.]?\s*(.*)$`),
	regexp.MustCompile(`^(?:\d+|[IVXivx]+)\.\s+(.+)$`),
	regexp.MustCompile(`^(?:PART|Part|part)\s+(?:\d+|[IVXivx]+)\s*[:\-.]?\s*(.*)$`),
	regexp.MustCompile(`^\s*(\d+)\s*$`),
}

// minLinesBetweenChapters filters marker false positives: headings closer
// than this are not real chapter starts.
const minLinesBetweenChapters = 50

var multiBlank = regexp.MustCompile(`\n{3,}`)
var multiSpace = regexp.MustCompile(` {2,}`)

// ParseTXT reads a plain text manuscript and splits it into chapters by
// heading heuristics. Files without recognizable headings come back as a
// single chapter.
func ParseTXT(path string) (*Book, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	content := decodeText(raw)
	if content == "" {
		return nil, fmt.Errorf("empty text file")
	}

	book := &Book{
		Metadata: txtMetadata(path, content),
		Chapters: extractTextChapters(content),
	}
	logger.Info("%v: parsed txt %s: %d chapters", config.ModuleBooks, path, len(book.Chapters))
	return book, nil
}

// decodeText converts the raw bytes to clean UTF-8. Invalid sequences
// become replacement runes during conversion and are then stripped.
func decodeText(raw []byte) string {
	var content string
	if utf8.Valid(raw) {
		content = string(raw)
	} else {
		content = string([]rune(string(raw)))
	}
	return sanitizeText(content)
}

func txtMetadata(path, content string) Metadata {
	meta := Metadata{
		Title:    titleFromFilename(path),
		Author:   "Unknown Author",
		Language: "en",
	}

	// A short early line that is not a chapter heading is probably the title.
	lines := strings.SplitN(content, "\n", 11)
	if len(lines) > 10 {
		lines = lines[:10]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) <= 3 || len(line) >= 100 {
			continue
		}
		if matchChapterPattern(line) == nil {
			meta.Title = line
			break
		}
	}
	return meta
}

type chapterMarker struct {
	line  int
	title string
}

func matchChapterPattern(line string) *chapterMarker {
	for _, pattern := range chapterPatterns {
		m := pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		title := strings.TrimSpace(m[len(m)-1])
		if title == "" {
			title = line
		}
		return &chapterMarker{title: title}
	}
	return nil
}

func extractTextChapters(content string) []Chapter {
	lines := strings.Split(content, "\n")
	markers := findChapterMarkers(lines)

	if len(markers) == 0 {
		logger.Warn("%v: no chapter markers found, treating file as one chapter", config.ModuleBooks)
		return []Chapter{newChapter(1, "Full Text", cleanText(content))}
	}

	var chapters []Chapter
	for i, marker := range markers {
		end := len(lines)
		if i+1 < len(markers) {
			end = markers[i+1].line
		}

		// The heading line itself is not chapter content.
		body := cleanText(strings.Join(lines[marker.line+1:end], "\n"))
		if len([]rune(body)) < minChapterChars {
			logger.Warn("%v: skipping short chapter %q", config.ModuleBooks, marker.title)
			continue
		}

		title := marker.title
		if title == "" {
			title = fmt.Sprintf("Chapter %d", len(chapters)+1)
		}
		chapters = append(chapters, newChapter(len(chapters)+1, title, body))
	}
	return chapters
}

func findChapterMarkers(lines []string) []chapterMarker {
	var markers []chapterMarker
	for i, line := range lines {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			continue
		}
		if m := matchChapterPattern(stripped); m != nil {
			m.line = i
			markers = append(markers, *m)
		}
	}

	if len(markers) <= 1 {
		return markers
	}
	filtered := markers[:1]
	for _, m := range markers[1:] {
		if m.line-filtered[len(filtered)-1].line >= minLinesBetweenChapters {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

// cleanText collapses blank-line runs, trims line ends and squeezes space
// runs.
func cleanText(text string) string {
	text = multiBlank.ReplaceAllString(text, "\n\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	text = strings.Join(lines, "\n")
	text = multiSpace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
