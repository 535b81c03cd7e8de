package docparse

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/grocerly/internal/errs"
)

type fakeOCR struct {
	text string
	err  error
	got  []byte
}

func (f *fakeOCR) Text(_ context.Context, img []byte) (string, error) {
	f.got = img
	return f.text, f.err
}

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, _ = w.Write([]byte(`<?xml version="1.0"?><Types/>`))
	w, err = zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

func TestResolve(t *testing.T) {
	cases := []struct {
		ct, name, want string
	}{
		{"text/plain", "a.txt", TypeText},
		{"text/plain; charset=utf-8", "a", TypeText},
		{"TEXT/HTML", "a", TypeHTML},
		{"", "list.DOCX", TypeDocx},
		{"application/octet-stream", "scan.jpeg", TypeJPEG},
		{"application/octet-stream", "doc.pdf", TypePDF},
		{"image/jpg", "x", TypeJPG},
		{"image/png", "x", TypePNG},
	}
	for _, tc := range cases {
		got, err := Resolve(tc.ct, tc.name)
		require.NoError(t, err, tc.ct)
		require.Equal(t, tc.want, got, tc.ct)
	}

	_, err := Resolve("application/zip", "a.zip")
	require.ErrorIs(t, err, errs.ErrUnsupportedType)
	require.Contains(t, err.Error(), "application/zip")

	_, err = Resolve("", "notes.rtf")
	require.ErrorIs(t, err, errs.ErrUnsupportedType)
}

func TestExtract_PlainText(t *testing.T) {
	p := New(nil, zaptest.NewLogger(t))
	got, err := p.Extract(context.Background(), TypeText, []byte("\xEF\xBB\xBFmilk\r\neggs\n"))
	require.NoError(t, err)
	require.Equal(t, "milk\neggs", got)

	_, err = p.Extract(context.Background(), TypeText, []byte("   \n\t"))
	require.ErrorIs(t, err, errs.ErrNoText)

	_, err = p.Extract(context.Background(), TypeText, []byte{0xff, 0xfe, 0x00})
	require.Error(t, err)
	require.False(t, errors.Is(err, errs.ErrNoText))
}

func TestExtract_HTML(t *testing.T) {
	p := New(nil, zaptest.NewLogger(t))
	doc := `<html><head><title>t</title><script>alert(1)</script></head>
<body><h1>Shopping</h1><ul><li>Milk &amp; honey</li><li><b>Eggs</b></li></ul><p>bread</p></body></html>`
	got, err := p.Extract(context.Background(), TypeHTML, []byte(doc))
	require.NoError(t, err)
	require.NotContains(t, got, "alert")
	require.NotContains(t, got, "<")
	require.Contains(t, got, "Milk & honey\n")
	require.Contains(t, got, "Eggs\n")
	require.Contains(t, got, "bread")
}

func TestExtract_Docx(t *testing.T) {
	xml := `<?xml version="1.0" encoding="UTF-8"?>
<w:document ` + wordNS + `><w:body>
<w:p><w:r><w:t>Weekly list</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">whole </w:t></w:r><w:r><w:t>milk</w:t></w:r></w:p>
<w:p></w:p>
<w:tbl><w:tr>
<w:tc><w:p><w:r><w:t>apples</w:t></w:r></w:p></w:tc>
<w:tc><w:p><w:r><w:t> </w:t></w:r></w:p></w:tc>
<w:tc><w:p><w:r><w:t>rye</w:t></w:r></w:p><w:p><w:r><w:t>bread</w:t></w:r></w:p></w:tc>
</w:tr></w:tbl>
<w:p><w:r><w:t>eggs</w:t></w:r></w:p>
</w:body></w:document>`
	p := New(nil, zaptest.NewLogger(t))
	got, err := p.Extract(context.Background(), TypeDocx, buildDocx(t, xml))
	require.NoError(t, err)
	require.Equal(t, "Weekly list\nwhole milk\neggs\napples\nrye\nbread", got)
}

func TestExtract_DocxErrors(t *testing.T) {
	p := New(nil, zaptest.NewLogger(t))
	_, err := p.Extract(context.Background(), TypeDocx, []byte("not a zip"))
	require.Error(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, _ = zw.Create("other.xml")
	require.NoError(t, zw.Close())
	_, err = p.Extract(context.Background(), TypeDocx, buf.Bytes())
	require.ErrorContains(t, err, "document.xml missing")

	empty := buildDocx(t, `<w:document `+wordNS+`><w:body><w:p/></w:body></w:document>`)
	_, err = p.Extract(context.Background(), TypeDocx, empty)
	require.ErrorIs(t, err, errs.ErrNoText)
}

func TestExtract_PDFMalformed(t *testing.T) {
	p := New(nil, zaptest.NewLogger(t))
	_, err := p.Extract(context.Background(), TypePDF, []byte("%PDF-1.4 garbage"))
	require.Error(t, err)
	require.False(t, errors.Is(err, errs.ErrNoText))
}

func TestExtract_Image(t *testing.T) {
	ocr := &fakeOCR{text: "  milk\neggs  "}
	p := New(ocr, zaptest.NewLogger(t))
	img := []byte{0x89, 'P', 'N', 'G'}
	got, err := p.Extract(context.Background(), TypePNG, img)
	require.NoError(t, err)
	require.Equal(t, "milk\neggs", got)
	require.Equal(t, img, ocr.got)

	ocr.err = errors.New("tesseract missing")
	_, err = p.Extract(context.Background(), TypeJPEG, img)
	require.ErrorContains(t, err, "ocr")

	_, err = New(nil, zaptest.NewLogger(t)).Extract(context.Background(), TypePNG, img)
	require.ErrorIs(t, err, errs.ErrUnsupportedType)
}
