// Package httpapi serves the grocery list JSON API over chi.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/grocerly/internal/limiter"
	"github.com/and161185/grocerly/internal/realtime"
	"github.com/and161185/grocerly/internal/server/httpx"
	"github.com/and161185/grocerly/internal/service"
)

// Pinger reports database reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Subscriber hands out per-list change feeds.
type Subscriber interface {
	Subscribe(listID uuid.UUID) *realtime.Subscription
}

// Options wires the API. Limiter may be nil.
type Options struct {
	Lists    service.ListService
	Items    service.ItemService
	Members  service.MemberService
	Hub      Subscriber
	DB       Pinger
	Verifier httpx.TokenVerifier
	Limiter  limiter.Limiter
	Origins  []string
	Log      *zap.Logger

	// TrustProxy takes the client address from forwarding headers.
	TrustProxy bool

	// Heartbeat is the SSE comment interval; zero means 25s.
	Heartbeat time.Duration
}

// Handler holds the API dependencies.
type Handler struct {
	lists     service.ListService
	items     service.ItemService
	members   service.MemberService
	hub       Subscriber
	db        Pinger
	log       *zap.Logger
	heartbeat time.Duration
}

// NewRouter builds the API router.
func NewRouter(o Options) http.Handler {
	h := &Handler{
		lists:     o.Lists,
		items:     o.Items,
		members:   o.Members,
		hub:       o.Hub,
		db:        o.DB,
		log:       o.Log,
		heartbeat: o.Heartbeat,
	}
	if h.heartbeat <= 0 {
		h.heartbeat = 25 * time.Second
	}

	r := chi.NewRouter()
	r.Use(httpx.ProxyHeaders(o.TrustProxy))
	r.Use(httpx.Recoverer(o.Log))
	r.Use(httpx.Logger(o.Log))
	r.Use(httpx.CORS(o.Origins))

	r.Get("/health", h.health)

	limited := func(r chi.Router) {
		if o.Limiter != nil {
			r.Use(httpx.RateLimit(o.Limiter, rateKey, o.Log))
		}
	}

	r.Route("/api/lists", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(httpx.Auth(o.Verifier, false))
			limited(r)

			r.Get("/", h.listLists)
			r.Post("/", h.createList)
			r.Get("/{listID}", h.getList)
			r.Patch("/{listID}", h.renameList)
			r.Delete("/{listID}", h.deleteList)

			r.Get("/{listID}/items", h.listItems)
			r.Post("/{listID}/items", h.addItem)
			r.Post("/{listID}/items/bulk", h.addItems)
			r.Patch("/{listID}/items/{itemID}", h.updateItem)
			r.Post("/{listID}/items/{itemID}/toggle", h.toggleItem)
			r.Delete("/{listID}/items/{itemID}", h.deleteItem)
			r.Get("/{listID}/changes", h.changes)
			r.Post("/{listID}/sync", h.sync)

			r.Get("/{listID}/members", h.listMembers)
			r.Post("/{listID}/members", h.addMember)
			r.Patch("/{listID}/members/{userID}", h.updateMember)
			r.Delete("/{listID}/members/{userID}", h.removeMember)
		})
		r.Group(func(r chi.Router) {
			r.Use(httpx.Auth(o.Verifier, true))
			limited(r)
			r.Get("/{listID}/events", h.events)
		})
	})
	return r
}

// rateKey buckets authenticated callers by user and the rest by address.
func rateKey(r *http.Request) string {
	if id := httpx.UserID(r.Context()); id != uuid.Nil {
		return "user:" + id.String()
	}
	return "ip:" + httpx.ClientIP(r)
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// health answers 200 when the database pings, 503 otherwise.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.log.Error("health-check: database ping failed", zap.Error(err))
		httpx.JSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:   "error",
			Database: "disconnected",
			Message:  "Database unavailable",
			Error:    err.Error(),
		})
		return
	}
	httpx.JSON(w, http.StatusOK, healthResponse{Status: "ok", Database: "connected"})
}
