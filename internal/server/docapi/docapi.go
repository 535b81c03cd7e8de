// Package docapi serves the document parsing HTTP API.
package docapi

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/and161185/grocerly/internal/convert"
	"github.com/and161185/grocerly/internal/docparse"
	"github.com/and161185/grocerly/internal/errs"
	"github.com/and161185/grocerly/internal/extract"
	"github.com/and161185/grocerly/internal/limiter"
	"github.com/and161185/grocerly/internal/server/httpx"
)

// Version is reported by the banner endpoint.
const Version = "1.0.0"

// Extractor turns document bytes into text.
type Extractor interface {
	Extract(ctx context.Context, contentType string, data []byte) (string, error)
}

// Limits are per-client request budgets.
type Limits struct {
	Default limiter.Limiter // /api/documents/*
	Root    limiter.Limiter // GET /
	Health  limiter.Limiter // GET /health
}

// DefaultLimits allows 100 document requests per hour, 30 banner and 60 health checks per minute.
func DefaultLimits() Limits {
	return Limits{
		Default: limiter.NewMemory(100, time.Hour),
		Root:    limiter.NewMemory(30, time.Minute),
		Health:  limiter.NewMemory(60, time.Minute),
	}
}

// Options wires the document API. A nil Verifier disables auth.
type Options struct {
	Parser         Extractor
	Verifier       httpx.TokenVerifier
	Limits         Limits
	Origins        []string
	MaxUploadBytes int64
	Environment    string
	Log            *zap.Logger
	TrustProxy     bool // take the client address from forwarding headers
}

type handler struct {
	parser    Extractor
	maxUpload int64
	env       string
	log       *zap.Logger
}

// NewRouter builds the document API router.
func NewRouter(o Options) http.Handler {
	h := &handler{parser: o.Parser, maxUpload: o.MaxUploadBytes, env: o.Environment, log: o.Log}
	if h.maxUpload <= 0 {
		h.maxUpload = 10 << 20
	}

	r := chi.NewRouter()
	r.Use(httpx.ProxyHeaders(o.TrustProxy))
	r.Use(httpx.Recoverer(o.Log))
	r.Use(httpx.Logger(o.Log))
	r.Use(httpx.CORS(o.Origins))

	limit := func(r chi.Router, l limiter.Limiter) {
		if l != nil {
			r.Use(httpx.RateLimit(l, httpx.ClientIP, o.Log))
		}
	}

	r.Group(func(r chi.Router) {
		limit(r, o.Limits.Root)
		r.Get("/", h.root)
	})
	r.Group(func(r chi.Router) {
		limit(r, o.Limits.Health)
		r.Get("/health", h.health)
	})
	r.Route("/api/documents", func(r chi.Router) {
		limit(r, o.Limits.Default)
		if o.Verifier != nil {
			r.Use(httpx.Auth(o.Verifier, false))
		}
		r.Post("/parse", h.parse)
		r.Post("/extract-text", h.extractText)
		r.Post("/voice", h.voice)
	})
	return r
}

func (h *handler) root(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Grocery List API", "version": Version})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "healthy", "environment": h.env})
}

type upload struct {
	filename    string
	contentType string
	data        []byte
	listID      string
}

// readUpload reads the multipart "file" part; listID comes from the optional "list_id" field.
func (h *handler) readUpload(w http.ResponseWriter, r *http.Request) (*upload, int, string) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || errors.Is(err, multipart.ErrMessageTooLarge) {
			return nil, http.StatusRequestEntityTooLarge, "File too large"
		}
		return nil, http.StatusBadRequest, "Expected multipart form with a file field"
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, http.StatusBadRequest, "Missing file field"
	}
	defer f.Close()

	ct, err := docparse.Resolve(hdr.Header.Get("Content-Type"), hdr.Filename)
	if err != nil {
		shown := hdr.Header.Get("Content-Type")
		if shown == "" {
			shown = "unknown"
		}
		return nil, http.StatusBadRequest, "Unsupported file type: " + shown
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, http.StatusInternalServerError, "Error processing document"
	}
	return &upload{filename: hdr.Filename, contentType: ct, data: data, listID: r.FormValue("list_id")}, 0, ""
}

// text maps extraction failures onto the service's reply codes.
func (h *handler) text(w http.ResponseWriter, r *http.Request, u *upload, noText string) (string, bool) {
	text, err := h.parser.Extract(r.Context(), u.contentType, u.data)
	switch {
	case err == nil:
		return text, true
	case errors.Is(err, errs.ErrNoText):
		httpx.Fail(w, http.StatusBadRequest, noText)
	case errors.Is(err, errs.ErrUnsupportedType):
		httpx.Fail(w, http.StatusBadRequest, "Unsupported file type: "+u.contentType)
	default:
		h.log.Error("document extraction failed",
			zap.String("filename", u.filename),
			zap.String("content_type", u.contentType),
			zap.Int("bytes", len(u.data)),
			zap.Error(err),
		)
		httpx.Fail(w, http.StatusInternalServerError, "Error processing document")
	}
	return "", false
}

func (h *handler) parse(w http.ResponseWriter, r *http.Request) {
	u, status, msg := h.readUpload(w, r)
	if u == nil {
		httpx.Fail(w, status, msg)
		return
	}
	text, ok := h.text(w, r, u, "Could not extract text from document")
	if !ok {
		return
	}
	items := toParsed(extract.Items(text))
	resp := convert.ParseResponse{
		Success:       true,
		Filename:      u.filename,
		ExtractedText: text,
		Items:         items,
		Count:         len(items),
	}
	if u.listID != "" {
		resp.ListID = &u.listID
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *handler) extractText(w http.ResponseWriter, r *http.Request) {
	u, status, msg := h.readUpload(w, r)
	if u == nil {
		httpx.Fail(w, status, msg)
		return
	}
	text, ok := h.text(w, r, u, "Could not extract text")
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, convert.ExtractTextResponse{Success: true, Text: text})
}

func (h *handler) voice(w http.ResponseWriter, r *http.Request) {
	var req convert.VoiceRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	items := toParsed(extract.Voice(req.Text))
	httpx.JSON(w, http.StatusOK, convert.VoiceResponse{Success: true, Items: items, Count: len(items)})
}

func toParsed(cs []extract.Candidate) []convert.ParsedItemDTO {
	out := make([]convert.ParsedItemDTO, len(cs))
	for i, c := range cs {
		out[i] = convert.ParsedItemDTO{Name: c.Name, Category: c.Category, Original: c.Original, Quantity: c.Quantity}
	}
	return out
}
