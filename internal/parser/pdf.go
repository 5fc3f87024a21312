package parser

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"bookwhisperer/config"
	"bookwhisperer/pkg/logger"
)

// ParsePDF extracts page text in order and reuses the plain-text chapter
// heuristics on the result. PDFs carry no chapter structure of their own.
func ParsePDF(path string) (*Book, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("invalid pdf file: %w", err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			logger.Warn("%v: page %d text extraction failed: %v", config.ModuleBooks, i, err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	content := sanitizeText(strings.Join(pages, "\n\n"))
	if content == "" {
		return nil, fmt.Errorf("no extractable text in pdf")
	}

	book := &Book{
		Metadata: Metadata{
			Title:    titleFromFilename(path),
			Author:   "Unknown Author",
			Language: "en",
		},
		Chapters: extractTextChapters(content),
	}
	logger.Info("%v: parsed pdf %s: %d pages, %d chapters", config.ModuleBooks, path, len(pages), len(book.Chapters))
	return book, nil
}
