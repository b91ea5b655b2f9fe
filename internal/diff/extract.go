package diff

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrNotExtractable marks content that cannot be turned into comparable text.
var ErrNotExtractable = errors.New("content is not text extractable")

var defaultTextExtensions = []string{
	".txt", ".md", ".csv", ".json", ".xml", ".html", ".yml", ".yaml",
	".c", ".h", ".cpp", ".hpp", ".py", ".go", ".js", ".ts", ".sh", ".tex",
}

// Extractor turns file payloads into plain text. PDF documents go through a
// PDF text reader; known text extensions are passed through.
type Extractor struct {
	textExtensions map[string]bool
}

func NewExtractor() *Extractor {
	x := &Extractor{textExtensions: make(map[string]bool, len(defaultTextExtensions))}
	for _, ext := range defaultTextExtensions {
		x.textExtensions[ext] = true
	}
	return x
}

// Supports reports whether files named like name can be extracted at all.
func (x *Extractor) Supports(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".pdf" || x.textExtensions[ext]
}

// ExtractText never panics: malformed input of a supported format is
// reported as ErrNotExtractable.
func (x *Extractor) ExtractText(name string, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %s: %v", ErrNotExtractable, name, r)
		}
	}()

	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case ext == ".pdf":
		return pdfText(data)
	case x.textExtensions[ext]:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrNotExtractable, name)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotExtractable, name)
}

func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: opening pdf: %v", ErrNotExtractable, err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: reading pdf text: %v", ErrNotExtractable, err)
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("%w: reading pdf text: %v", ErrNotExtractable, err)
	}
	return string(out), nil
}
