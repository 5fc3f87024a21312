package parser

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"bookwhisperer/config"
	"bookwhisperer/pkg/logger"
)

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Metadata struct {
		Titles     []string `xml:"title"`
		Creators   []string `xml:"creator"`
		Languages  []string `xml:"language"`
		Publishers []string `xml:"publisher"`
	} `xml:"metadata"`
	Manifest struct {
		Items []struct {
			ID        string `xml:"id,attr"`
			Href      string `xml:"href,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

// ParseEPUB opens the archive, reads the OPF package for metadata and spine
// order, and extracts chapter text from each spine document.
func ParseEPUB(filePath string) (*Book, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("invalid epub file: %w", err)
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	opfPath, err := findOPFPath(files)
	if err != nil {
		return nil, err
	}
	var pkg epubPackage
	if err := decodeZipXML(files, opfPath, &pkg); err != nil {
		return nil, fmt.Errorf("invalid epub package: %w", err)
	}

	book := &Book{Metadata: epubMetadata(pkg)}
	opfDir := path.Dir(opfPath)

	hrefByID := make(map[string]string, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		if item.MediaType == "application/xhtml+xml" || item.MediaType == "text/html" {
			hrefByID[item.ID] = item.Href
		}
	}

	for _, ref := range pkg.Spine.ItemRefs {
		href, ok := hrefByID[ref.IDRef]
		if !ok {
			continue
		}
		docPath := href
		if opfDir != "." {
			docPath = path.Join(opfDir, href)
		}
		f, ok := files[docPath]
		if !ok {
			logger.Warn("%v: spine document %s missing from archive", config.ModuleBooks, docPath)
			continue
		}

		number := len(book.Chapters) + 1
		chapter, err := extractEPUBChapter(f, docPath, number)
		if err != nil {
			logger.Error(err, "%v: failed to extract %s", config.ModuleBooks, docPath)
			continue
		}
		if chapter == nil {
			continue
		}
		book.Chapters = append(book.Chapters, *chapter)
	}

	logger.Info("%v: parsed epub %s: %d chapters", config.ModuleBooks, filePath, len(book.Chapters))
	return book, nil
}

func findOPFPath(files map[string]*zip.File) (string, error) {
	var c epubContainer
	if err := decodeZipXML(files, "META-INF/container.xml", &c); err != nil {
		return "", fmt.Errorf("invalid epub container: %w", err)
	}
	if len(c.Rootfiles) == 0 || c.Rootfiles[0].FullPath == "" {
		return "", fmt.Errorf("epub container lists no rootfile")
	}
	return c.Rootfiles[0].FullPath, nil
}

func decodeZipXML(files map[string]*zip.File, name string, out interface{}) error {
	f, ok := files[name]
	if !ok {
		return fmt.Errorf("%s not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return xml.NewDecoder(rc).Decode(out)
}

func epubMetadata(pkg epubPackage) Metadata {
	meta := Metadata{
		Title:    "Unknown Title",
		Author:   "Unknown Author",
		Language: "en",
	}
	if len(pkg.Metadata.Titles) > 0 && strings.TrimSpace(pkg.Metadata.Titles[0]) != "" {
		meta.Title = strings.TrimSpace(pkg.Metadata.Titles[0])
	}
	if len(pkg.Metadata.Creators) > 0 && strings.TrimSpace(pkg.Metadata.Creators[0]) != "" {
		meta.Author = strings.TrimSpace(pkg.Metadata.Creators[0])
	}
	if len(pkg.Metadata.Languages) > 0 && strings.TrimSpace(pkg.Metadata.Languages[0]) != "" {
		meta.Language = strings.TrimSpace(pkg.Metadata.Languages[0])
	}
	if len(pkg.Metadata.Publishers) > 0 {
		meta.Publisher = strings.TrimSpace(pkg.Metadata.Publishers[0])
	}
	return meta
}

// extractEPUBChapter pulls the readable text out of one spine document.
// Documents shorter than minChapterChars (covers, blank pages, copyright
// notices) are skipped and return nil.
func extractEPUBChapter(f *zip.File, docPath string, number int) (*Chapter, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(rc, 16<<20))
	if err != nil {
		return nil, err
	}
	doc.Find("script, style").Remove()

	var parts []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, blockquote").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	text := strings.Join(parts, "\n")
	if text == "" {
		text = doc.Find("body").Text()
	}
	text = cleanEPUBText(text)

	if len([]rune(text)) < minChapterChars {
		return nil, nil
	}

	title := epubChapterTitle(doc, docPath, number)
	chapter := newChapter(number, title, sanitizeText(text))
	return &chapter, nil
}

func epubChapterTitle(doc *goquery.Document, docPath string, number int) string {
	for _, tag := range []string{"h1", "h2", "h3"} {
		if t := strings.TrimSpace(doc.Find(tag).First().Text()); t != "" {
			return t
		}
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if name := titleFromFilename(docPath); name != "" && !strings.EqualFold(name, "untitled") {
		return name
	}
	return fmt.Sprintf("Chapter %d", number)
}

// cleanEPUBText drops blank lines and joins the rest with paragraph breaks.
func cleanEPUBText(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return multiSpace.ReplaceAllString(strings.Join(lines, "\n\n"), " ")
}
