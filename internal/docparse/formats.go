package docparse

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/and161185/grocerly/internal/sanitize"
)

const maxDocxXML = 32 << 20

var bom = []byte{0xEF, 0xBB, 0xBF}

func plainText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, bom)
	if !utf8.Valid(data) {
		return "", errors.New("text is not valid UTF-8")
	}
	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}

// blockEnd matches tags after which a rendered page starts a new line.
var blockEnd = regexp.MustCompile(`(?i)<(br|/p|/li|/div|/tr|/td|/h[1-6])\b`)

func htmlText(data []byte) string {
	return sanitize.Text(blockEnd.ReplaceAllString(string(data), "\n$0"))
}

// docxText returns body paragraphs followed by table cells, one per line.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("docx: %w", err)
	}
	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", errors.New("docx: word/document.xml missing")
	}
	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("docx: %w", err)
	}
	defer rc.Close()

	var (
		body, cells []string
		para        strings.Builder
		cellParas   []string
		tableDepth  int
		inCell      bool
		inText      bool
	)
	dec := xml.NewDecoder(io.LimitReader(rc, maxDocxXML))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("docx: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth++
			case "tc":
				if tableDepth == 1 {
					inCell, cellParas = true, cellParas[:0]
				}
			case "p":
				para.Reset()
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth--
			case "tc":
				if tableDepth == 1 && inCell {
					if s := strings.TrimSpace(strings.Join(cellParas, "\n")); s != "" {
						cells = append(cells, s)
					}
					inCell = false
				}
			case "p":
				s := para.String()
				switch {
				case inCell:
					cellParas = append(cellParas, s)
				case tableDepth == 0:
					if s = strings.TrimSpace(s); s != "" {
						body = append(body, s)
					}
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	return strings.Join(append(body, cells...), "\n"), nil
}

// pdfText reads the whole document, falling back to page by page when the
// document-level pass fails or yields nothing.
func pdfText(data []byte, log *zap.Logger) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf: malformed document: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf: %w", err)
	}

	if rd, err := r.GetPlainText(); err == nil {
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rd); err == nil && strings.TrimSpace(buf.String()) != "" {
			return buf.String(), nil
		}
	} else {
		log.Warn("pdf: document text failed, trying pages", zap.Error(err))
	}

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		for _, name := range p.Fonts() {
			f := p.Font(name)
			fonts[name] = &f
		}
		s, err := p.GetPlainText(fonts)
		if err != nil {
			log.Warn("pdf: page text failed", zap.Int("page", i), zap.Error(err))
			continue
		}
		pages = append(pages, s)
	}
	return strings.Join(pages, "\n"), nil
}
