package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
)

const pageExtractTimeout = time.Second * 10

func extractPDF(ctx context.Context, path string) ([]rawPage, int, error) {
	logger.Debug("extractPDF", "attempting extraction", path)
	f, err := pdf.Open(path)
	if err != nil {
		logger.Error("failed opening of pdf file", "error", err)
		return nil, 0, fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []rawPage
	numPages := f.NumPage()
	logger.Debug("extractPDF", "number of pages", numPages)
	for i := 1; i <= numPages; i++ {
		if ctx.Err() != nil {
			return nil, numPages, fmt.Errorf("pdf extraction interrupted: %w", ctx.Err())
		}

		page := f.Page(i)
		if page.V.IsNull() {
			logger.Debug("extractPDF", "empty page object at", i)
			continue
		}

		content, err := protectExtract(page)
		if err != nil {
			// Log and continue with the remaining pages
			logger.Error("Error parsing page content", "page", i, "Error", err)
			continue
		}

		pages = append(pages, rawPage{
			Number:  i,
			Content: content,
		})
	}
	return pages, numPages, nil
}

// extractPlainText reads a .odt, .docx, .rtf or plaintext file and
// returns the content as a single page.
func extractPlainText(path string) ([]rawPage, error) {
	text, err := cat.File(path)
	if err != nil {
		logger.Error("Error extracting content from doc", "error", err)
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	return []rawPage{
		{
			Number:  1,
			Content: text,
		},
	}, nil
}

// protectExtract shields the loop from pages the pdf library hangs or
// panics on. The extraction runs in its own goroutine with a deadline.
func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resChan <- result{"", fmt.Errorf("page extraction panicked: %v", r)}
			}
		}()
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(pageExtractTimeout):
		logger.Error("pageExtract", "timeout")
		return "", errors.New("timeout")
	}
}
