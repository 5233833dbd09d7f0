// Package pdf extracts per-page text from PDF documents.
package pdf

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ExtractPages returns the plain text of each page in order. Pages whose
// text cannot be decoded yield an empty string rather than failing the
// whole document.
func ExtractPages(data []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "pdf: open")
	}

	total := reader.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			zap.L().Warn("page text extraction failed", zap.Int("page", i), zap.Error(err))
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// ExtractFile reads a PDF from disk and extracts its pages.
func ExtractFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pdf: read %s", filepath.Base(path))
	}
	return ExtractPages(data)
}
