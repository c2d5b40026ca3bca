// Package loader extracts page text from uploaded documents.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"rag-backend/internal/domain"
)

// PDFLoader yields one Document per page that has extractable text.
type PDFLoader struct{}

func NewPDFLoader() *PDFLoader { return &PDFLoader{} }

// Load parses data as a PDF. Page numbers in metadata are 0-based.
func (l *PDFLoader) Load(ctx context.Context, data []byte, source string) (docs []domain.Document, err error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrInvalidDocument, source)
	}
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("%w: %s: %v", domain.ErrInvalidDocument, source, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidDocument, source, err)
	}
	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s page %d: %v", domain.ErrInvalidDocument, source, i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, domain.Document{
			ID:      fmt.Sprintf("%s#%d", source, i-1),
			Source:  source,
			Content: text,
			Metadata: map[string]any{
				"source": source,
				"page":   i - 1,
			},
		})
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no extractable text in %s", domain.ErrInvalidDocument, source)
	}
	return docs, nil
}
