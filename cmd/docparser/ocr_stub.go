//go:build notesseract

package main

import (
	"go.uber.org/zap"

	"github.com/and161185/grocerly/internal/docparse"
)

// newOCR returns nil in builds without libtesseract.
func newOCR([]string, *zap.Logger) docparse.OCR { return nil }
