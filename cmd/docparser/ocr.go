//go:build !notesseract

package main

import (
	"go.uber.org/zap"

	"github.com/and161185/grocerly/internal/docparse"
	"github.com/and161185/grocerly/internal/ocr/tesseract"
)

func newOCR(langs []string, log *zap.Logger) docparse.OCR {
	c := tesseract.New(langs, 0)
	log.Info("ocr enabled", zap.String("tesseract", tesseract.Version()), zap.Strings("languages", langs))
	return c
}
