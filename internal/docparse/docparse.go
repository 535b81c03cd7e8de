// Package docparse extracts plain text from uploaded documents.
package docparse

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/grocerly/internal/errs"
)

// Supported content types.
const (
	TypeText = "text/plain"
	TypeHTML = "text/html"
	TypeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	TypePDF  = "application/pdf"
	TypeJPEG = "image/jpeg"
	TypeJPG  = "image/jpg"
	TypePNG  = "image/png"
)

var byExt = map[string]string{
	".txt":  TypeText,
	".text": TypeText,
	".html": TypeHTML,
	".htm":  TypeHTML,
	".docx": TypeDocx,
	".pdf":  TypePDF,
	".jpg":  TypeJPEG,
	".jpeg": TypeJPEG,
	".png":  TypePNG,
}

// OCR reads text from an encoded image.
type OCR interface {
	Text(ctx context.Context, image []byte) (string, error)
}

// Resolve normalises a declared content type. Missing or generic types fall
// back to the filename extension.
func Resolve(contentType, filename string) (string, error) {
	ct := strings.TrimSpace(contentType)
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	ct = strings.ToLower(ct)
	if ct == "" || ct == "application/octet-stream" {
		if t, ok := byExt[strings.ToLower(filepath.Ext(filename))]; ok {
			return t, nil
		}
	}
	switch ct {
	case TypeText, TypeHTML, TypeDocx, TypePDF, TypeJPEG, TypeJPG, TypePNG:
		return ct, nil
	}
	shown := contentType
	if shown == "" {
		shown = "unknown"
	}
	return "", fmt.Errorf("%w: %s", errs.ErrUnsupportedType, shown)
}

// Parser dispatches documents to the extractor for their type.
type Parser struct {
	ocr OCR
	log *zap.Logger
}

// New constructs a Parser. A nil ocr makes images unsupported.
func New(ocr OCR, log *zap.Logger) *Parser {
	return &Parser{ocr: ocr, log: log}
}

// Extract returns the text of data, which must be of a type Resolve accepts.
// Blank output yields errs.ErrNoText.
func (p *Parser) Extract(ctx context.Context, contentType string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch contentType {
	case TypeText:
		text, err = plainText(data)
	case TypeHTML:
		text = htmlText(data)
	case TypeDocx:
		text, err = docxText(data)
	case TypePDF:
		text, err = pdfText(data, p.log)
	case TypeJPEG, TypeJPG, TypePNG:
		if p.ocr == nil {
			return "", fmt.Errorf("%w: %s (ocr disabled)", errs.ErrUnsupportedType, contentType)
		}
		text, err = p.ocr.Text(ctx, data)
		if err != nil {
			err = fmt.Errorf("ocr: %w", err)
		}
	default:
		return "", fmt.Errorf("%w: %s", errs.ErrUnsupportedType, contentType)
	}
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errs.ErrNoText
	}
	return text, nil
}
