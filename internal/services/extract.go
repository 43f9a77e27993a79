package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxSourceTextLen bounds the cleaned text embedded in generation prompts.
const MaxSourceTextLen = 150000

type ExtractService struct{}

func NewExtractService() *ExtractService {
	return &ExtractService{}
}

// ExtractText pulls plain text from a PDF on disk. It fails when the file
// is missing, has no pages, or yields no extractable text.
func (s *ExtractService) ExtractText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()

	totalPage := reader.NumPage()
	if totalPage == 0 {
		return "", fmt.Errorf("pdf file has no pages")
	}

	var b strings.Builder
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}

	text := b.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no extractable text found in pdf")
	}

	return text, nil
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanText collapses whitespace runs, strips form feeds and control
// characters, and truncates to MaxSourceTextLen to bound prompt size.
func CleanText(text string) string {
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, text)
	text = strings.TrimSpace(text)
	if len(text) > MaxSourceTextLen {
		text = text[:MaxSourceTextLen]
	}
	return text
}
