package parser

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// Metadata is the book-level information a manuscript file carries.
type Metadata struct {
	Title     string
	Author    string
	Language  string
	Publisher string
}

// Chapter is one extracted chapter with derived counts.
type Chapter struct {
	Number    int
	Title     string
	Content   string
	WordCount int
	CharCount int
}

// Book is the parse result: metadata plus ordered chapters.
type Book struct {
	Metadata Metadata
	Chapters []Chapter
}

var ErrUnsupportedFormat = fmt.Errorf("unsupported file format")

// minChapterChars filters out front matter, blank spine items and false
// positive markers.
const minChapterChars = 100

// Parse dispatches on the file extension.
func Parse(path string) (*Book, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".epub":
		return ParseEPUB(path)
	case ".txt":
		return ParseTXT(path)
	case ".pdf":
		return ParsePDF(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func newChapter(number int, title, content string) Chapter {
	return Chapter{
		Number:    number,
		Title:     title,
		Content:   content,
		WordCount: len(strings.Fields(content)),
		CharCount: len([]rune(content)),
	}
}

// sanitizeText drops the BOM, replacement runes and non-printable runes,
// keeping common whitespace.
func sanitizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\uFEFF' || r == unicode.ReplacementChar {
			continue
		}
		if r == '\n' || r == '\t' || r == '\r' {
			b.WriteRune(r)
		} else if unicode.IsPrint(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// titleFromFilename turns "my_great_book.txt" into "My Great Book".
func titleFromFilename(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	words := strings.Fields(name)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
