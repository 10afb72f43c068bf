package handler

import (
	"net/http"

	"charmstudio/internal/apperr"
)

func (h *Handler) ListJewelryTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.catalog.JewelryTypes(r.Context(), h.seeds)
	if err != nil {
		h.writeError(w, r, apperr.Wrap(apperr.KindPersistence, "handler.ListJewelryTypes", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"types": types})
}

func (h *Handler) ListCharms(w http.ResponseWriter, r *http.Request) {
	charms, err := h.catalog.Charms(r.Context())
	if err != nil {
		h.writeError(w, r, apperr.Wrap(apperr.KindPersistence, "handler.ListCharms", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"charms": charms})
}

func (h *Handler) GetCharm(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.catalog.Charm(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
