package httpapi

import (
	"net/http"

	"github.com/and161185/grocerly/internal/convert"
	"github.com/and161185/grocerly/internal/model"
	"github.com/and161185/grocerly/internal/server/httpx"
)

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "listID")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	items, err := h.items.List(r.Context(), httpx.UserID(r.Context()), listID)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, convert.ToItems(items))
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "listID")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	var req convert.NewItemDTO
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	it, err := h.items.Add(r.Context(), httpx.UserID(r.Context()), listID, convert.FromNewItem(req))
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, convert.ToItem(*it))
}

// addItems inserts a batch in one transaction; document import uses it.
func (h *Handler) addItems(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "listID")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	var req convert.BulkItemsRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	in := make([]model.NewItem, len(req.Items))
	for i, d := range req.Items {
		in[i] = convert.FromNewItem(d)
	}
	items, err := h.items.AddBulk(r.Context(), httpx.UserID(r.Context()), listID, in)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, convert.ToItems(items))
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "listID")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	var req convert.ItemPatchDTO
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	it, err := h.items.Update(r.Context(), httpx.UserID(r.Context()), listID, itemID, convert.FromItemPatch(req))
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, convert.ToItem(*it))
}

func (h *Handler) toggleItem(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "listID")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	var req convert.ToggleRequest
	if err := httpx.DecodeOptional(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	it, err := h.items.Toggle(r.Context(), httpx.UserID(r.Context()), listID, itemID, req.BaseRev)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, convert.ToItem(*it))
}

// deleteItem replies with the tombstone so clients can advance their rev.
func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "listID")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	baseRev, err := queryInt64(r, "base_rev")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	it, err := h.items.Delete(r.Context(), httpx.UserID(r.Context()), listID, itemID, baseRev)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, convert.ToItem(*it))
}

func (h *Handler) changes(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "listID")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	since, err := queryInt64(r, "since")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	var from int64
	if since != nil {
		from = *since
	}
	ch, err := h.items.Changes(r.Context(), httpx.UserID(r.Context()), listID, from)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, convert.ToChanges(ch))
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "listID")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	var req convert.SyncRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	res, err := h.items.Sync(r.Context(), httpx.UserID(r.Context()), listID, convert.FromSyncOps(req.Ops))
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, convert.SyncResponse{Results: convert.ToSyncResults(res)})
}
