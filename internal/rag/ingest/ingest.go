// Package ingest turns fetched document bytes into ordered, embeddable
// chunks. Parsing is extension-dispatched (pdf via dslipak, the plain
// text family via lu4p/cat) and the planner is a pure function so the
// same text always yields the same chunk set.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/internal/domain/commonModels"
	"github.com/akolanti/docproc/pkg/logger_i"
)

// ErrNoText is returned when parsing succeeded mechanically but the
// document carried no extractable text. Callers treat it as terminal.
var ErrNoText = errors.New("no extractable text")

type rawPage struct {
	Number  int    `json:"number"`
	Content string `json:"content"`
}

var logger *logger_i.Logger

type sourceKind int

const (
	kindPDF sourceKind = iota
	kindPlainText
	kindUnknown
)

func detectKind(path string) sourceKind {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return kindPDF
	case ".docx", ".txt", ".rtf", ".odt":
		return kindPlainText
	default:
		return kindUnknown
	}
}

// Parser converts a scratch file into parsed text plus page metadata.
// The caller owns the scratch file and removes it afterwards.
type Parser interface {
	Parse(ctx context.Context, path string) (commonModels.ParsedDocument, error)
}

type documentParser struct{}

func NewParser() Parser {
	return &documentParser{}
}

func (p *documentParser) Parse(ctx context.Context, path string) (commonModels.ParsedDocument, error) {
	logger = logger_i.NewLogger("Document Parser ")
	if traceId, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok {
		logger = logger.With("traceId", traceId)
	}

	var (
		pages     []rawPage
		pageCount int
		err       error
	)

	switch detectKind(path) {
	case kindPDF:
		pages, pageCount, err = extractPDF(ctx, path)
		if err != nil {
			return commonModels.ParsedDocument{}, err
		}
		if totalContent(pages) == "" {
			// Some PDFs carry pages the extractor cannot read (scanned
			// images, exotic encodings). cat only accepts utf8 input so
			// a binary file fails cleanly rather than returning noise.
			logger.Debug("pdf pages held no text, trying plain extraction")
			if fallback, fbErr := extractPlainText(path); fbErr == nil {
				pages = fallback
			}
		}
	case kindPlainText:
		pages, err = extractPlainText(path)
		if err != nil {
			return commonModels.ParsedDocument{}, err
		}
		pageCount = len(pages)
	default:
		return commonModels.ParsedDocument{}, fmt.Errorf("unsupported document type: %s", filepath.Ext(path))
	}

	text := assembleText(pages)
	if text == "" {
		return commonModels.ParsedDocument{}, ErrNoText
	}
	return commonModels.ParsedDocument{Text: text, PageCount: pageCount}, nil
}

func totalContent(pages []rawPage) string {
	var b strings.Builder
	for _, page := range pages {
		b.WriteString(strings.TrimSpace(page.Content))
	}
	return b.String()
}

// assembleText joins page texts with blank lines so downstream chunking
// sees page breaks as paragraph boundaries.
func assembleText(pages []rawPage) string {
	var parts []string
	for _, page := range pages {
		if text := strings.TrimSpace(page.Content); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}
