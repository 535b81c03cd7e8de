package httpapi

import (
	"net/http"

	"github.com/and161185/grocerly/internal/convert"
	"github.com/and161185/grocerly/internal/server/httpx"
)

func (h *Handler) listLists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.lists.List(r.Context(), httpx.UserID(r.Context()))
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, convert.ToLists(lists))
}

func (h *Handler) createList(w http.ResponseWriter, r *http.Request) {
	var req convert.NameRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	l, err := h.lists.Create(r.Context(), httpx.UserID(r.Context()), req.Name)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, convert.ToList(*l))
}

func (h *Handler) getList(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "listID")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	l, err := h.lists.Get(r.Context(), httpx.UserID(r.Context()), listID)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, convert.ToList(*l))
}

func (h *Handler) renameList(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "listID")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	var req convert.NameRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	l, err := h.lists.Rename(r.Context(), httpx.UserID(r.Context()), listID, req.Name)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, convert.ToList(*l))
}

func (h *Handler) deleteList(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "listID")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	if err := h.lists.Delete(r.Context(), httpx.UserID(r.Context()), listID); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
