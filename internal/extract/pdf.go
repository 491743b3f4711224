package extract

import (
	"bytes"
	"fmt"
	"math"

	"github.com/hyperjump/marcador/internal/geometry"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// defaultPageSize is US Letter, used when a page has no usable MediaBox.
var defaultPageSize = geometry.Size{Width: 612, Height: 792}

func readPDF(content []byte, password string, logger *zap.Logger) (doc *Document, err error) {
	// the reader panics on some malformed files instead of returning errors
	defer func() {
		if rec := recover(); rec != nil {
			doc, err = nil, fmt.Errorf("malformed PDF: %v", rec)
		}
	}()

	r, err := openReader(content, password)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	numPages := r.NumPage()
	if numPages < 1 {
		return nil, ErrNoPages
	}
	doc = &Document{Pages: make([]Page, 0, numPages)}
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			logger.Debug("page not found in page tree", zap.Int("page", i))
			doc.Pages = append(doc.Pages, Page{Number: i, Size: defaultPageSize})
			continue
		}
		doc.Pages = append(doc.Pages, Page{
			Number: i,
			Size:   mediaBox(page),
			Runs:   groupRuns(pageGlyphs(page, i, logger)),
		})
	}
	return doc, nil
}

func openReader(content []byte, password string) (*pdf.Reader, error) {
	ra := bytes.NewReader(content)
	if password == "" {
		return pdf.NewReader(ra, int64(len(content)))
	}
	// the callback is polled until it returns "", so offer the password once
	tried := false
	return pdf.NewReaderEncrypted(ra, int64(len(content)), func() string {
		if tried {
			return ""
		}
		tried = true
		return password
	})
}

// pageGlyphs returns the positioned glyphs of a page. A page whose content
// stream cannot be interpreted yields no glyphs rather than failing the file.
func pageGlyphs(page pdf.Page, n int, logger *zap.Logger) (glyphs []pdf.Text) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Debug("skipping unreadable page content", zap.Int("page", n), zap.Any("error", rec))
			glyphs = nil
		}
	}()
	return page.Content().Text
}

// mediaBox returns the page size from the MediaBox, inherited through the page
// tree when the page itself has none.
func mediaBox(page pdf.Page) geometry.Size {
	for v := page.V; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Kind() != pdf.Array || box.Len() != 4 {
			continue
		}
		w := math.Abs(box.Index(2).Float64() - box.Index(0).Float64())
		h := math.Abs(box.Index(3).Float64() - box.Index(1).Float64())
		if w > 0 && h > 0 {
			return geometry.Size{Width: w, Height: h}
		}
	}
	return defaultPageSize
}
