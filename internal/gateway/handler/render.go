package handler

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"charmstudio/internal/apperr"
	"charmstudio/internal/compose"
)

type renderRequest struct {
	Variant compose.Variant `json:"variant"`
	compose.Input
}

type renderOutput struct {
	Image string `json:"image"`
	ID    string `json:"id,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Render composes a photorealistic preview and archives it. A failed archive
// write does not fail the render; the data URI is still returned.
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	serveFlow(h, w, r, func(_ context.Context, in *renderRequest) error {
		if in.Variant == "" {
			in.Variant = compose.VariantHolistic
		}
		if !in.Variant.Valid() {
			return apperr.Validation("handler.Render", "unknown variant %q", in.Variant)
		}
		return nil
	}, func(ctx context.Context, in renderRequest) (renderOutput, error) {
		out, err := h.composer.Render(ctx, in.Variant, in.Input)
		if err != nil {
			return renderOutput{}, err
		}
		res := renderOutput{Image: out.DataURI}
		stored, err := h.renders.Put(ctx, user.ID.String(), out.Image)
		if err != nil {
			h.log.Warn("render archive failed", zap.String("user_id", user.ID.String()), zap.Error(err))
			return res, nil
		}
		res.ID, res.URL = stored.ID, stored.URL
		return res, nil
	})
}

// GetRender streams an archived render.
func (h *Handler) GetRender(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	img, err := h.renders.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", img.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}
