package httpapi

import (
	"net/http"

	"github.com/and161185/grocerly/internal/convert"
	"github.com/and161185/grocerly/internal/model"
	"github.com/and161185/grocerly/internal/server/httpx"
)

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "listID")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	ms, err := h.members.List(r.Context(), httpx.UserID(r.Context()), listID)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, convert.ToMembers(ms))
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "listID")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	var req convert.AddMemberRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	m, err := h.members.Add(r.Context(), httpx.UserID(r.Context()), listID, req.UserID, model.Role(req.Role))
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, convert.ToMember(*m))
}

func (h *Handler) updateMember(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "listID")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	memberID, err := pathID(r, "userID")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	var req convert.RoleRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	if err := h.members.SetRole(r.Context(), httpx.UserID(r.Context()), listID, memberID, model.Role(req.Role)); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "listID")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	memberID, err := pathID(r, "userID")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	if err := h.members.Remove(r.Context(), httpx.UserID(r.Context()), listID, memberID); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
