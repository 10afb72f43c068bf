package handler

import (
	"net/http"

	"charmstudio/internal/editor"
)

// workspace resolves the session named by the request for the current user.
func (h *Handler) workspace(r *http.Request, sessionID string) (*editor.Workspace, error) {
	user, err := currentUser(r)
	if err != nil {
		return nil, err
	}
	return h.editor.Get(sessionID, user.ID)
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ws, err := h.editor.Create(user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	st, err := h.editor.State(r.Context(), ws)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ws, err := h.sessionFromPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	st, err := h.editor.State(r.Context(), ws)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	ws, err := h.sessionFromPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.editor.Close(ws.ID())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	ws, err := h.sessionFromPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	itemID, err := pathID(r, "item")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := ws.RemoveCartItem(itemID); err != nil {
		h.writeError(w, r, err)
		return
	}
	st, err := h.editor.State(r.Context(), ws)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) sessionFromPath(r *http.Request) (*editor.Workspace, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}
	return h.workspace(r, id)
}
