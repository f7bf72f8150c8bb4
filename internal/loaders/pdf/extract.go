package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/docchat-cli/internal/core/domain"
	"github.com/custodia-labs/docchat-cli/internal/logger"
)

// extractFile parses a PDF and returns the plain text of each page.
// Pages that fail text extraction are skipped; a file where no page
// yields text is treated as unparsable.
func extractFile(ctx context.Context, path string) ([]domain.PageText, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := reader.NumPage()
	pages := make([]domain.PageText, 0, total)

	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Page %d of %s: %v", i, path, err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		pages = append(pages, domain.PageText{
			Path: path,
			Page: i,
			Text: text,
		})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no extractable text in %d pages", total)
	}

	return pages, nil
}
