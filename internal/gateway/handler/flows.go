package handler

import (
	"context"
	"net/http"

	"charmstudio/internal/apperr"
	"charmstudio/internal/catalog"
	"charmstudio/internal/flow"
)

// serveFlow decodes the input, runs fn and writes the result envelope. The
// envelope is sent for failures too, with the status of the failure kind.
func serveFlow[In, Out any](h *Handler, w http.ResponseWriter, r *http.Request, prepare func(context.Context, *In) error, fn func(context.Context, In) (Out, error)) {
	var in In
	if err := decodeJSON(w, r, &in); err != nil {
		writeJSON(w, statusOf(err), flow.Result[Out]{State: flow.StateFailed, Err: err})
		return
	}
	if prepare != nil {
		if err := prepare(r.Context(), &in); err != nil {
			writeJSON(w, statusOf(err), flow.Result[Out]{State: flow.StateFailed, Err: err})
			return
		}
	}
	res, err := flow.Start(r.Context(), func(ctx context.Context) (Out, error) {
		return fn(ctx, in)
	}).Wait(r.Context())
	if err != nil {
		// The client went away; the call finishes on its own.
		return
	}
	status := http.StatusOK
	if res.State == flow.StateFailed {
		status = statusOf(res.Err)
		h.log.Sugar().Infow("flow failed", "path", r.URL.Path, "kind", apperr.KindOf(res.Err).String(), "error", res.Err)
	}
	writeJSON(w, status, res)
}

func (h *Handler) catalogNames(ctx context.Context) ([]string, error) {
	charms, err := h.catalog.Charms(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "handler.catalogNames", err)
	}
	return catalog.Names(charms), nil
}

func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	serveFlow(h, w, r, func(ctx context.Context, in *flow.SuggestInput) error {
		if len(in.AllCharms) > 0 {
			return nil
		}
		names, err := h.catalogNames(ctx)
		in.AllCharms = names
		return err
	}, h.flows.Suggest)
}

func (h *Handler) AnalyzePhoto(w http.ResponseWriter, r *http.Request) {
	serveFlow(h, w, r, func(ctx context.Context, in *flow.PhotoInput) error {
		if len(in.Candidates) > 0 {
			return nil
		}
		names, err := h.catalogNames(ctx)
		in.Candidates = names
		return err
	}, h.flows.AnalyzePhoto)
}

func (h *Handler) Critique(w http.ResponseWriter, r *http.Request) {
	serveFlow[flow.CritiqueInput](h, w, r, nil, h.flows.Critique)
}

func (h *Handler) ShareContent(w http.ResponseWriter, r *http.Request) {
	serveFlow[flow.ShareInput](h, w, r, nil, h.flows.ShareContent)
}
