package handler

import (
	"net/http"

	"go.uber.org/zap"

	"charmstudio/internal/apperr"
	"charmstudio/internal/catalog"
	"charmstudio/internal/order"
	"charmstudio/internal/pricing"
)

func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	charms, err := h.catalog.LowStock(r.Context())
	if err != nil {
		h.writeError(w, r, apperr.Wrap(apperr.KindPersistence, "handler.LowStock", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"charms": charms})
}

func (h *Handler) SetStock(w http.ResponseWriter, r *http.Request) {
	h.updateCharm(w, r, "stock", func(id string, n int) (catalog.Charm, error) {
		return h.catalog.SetStock(r.Context(), id, n)
	})
}

func (h *Handler) SetLowStockThreshold(w http.ResponseWriter, r *http.Request) {
	h.updateCharm(w, r, "threshold", func(id string, n int) (catalog.Charm, error) {
		return h.catalog.SetLowStockThreshold(r.Context(), id, n)
	})
}

func (h *Handler) updateCharm(w http.ResponseWriter, r *http.Request, field string, set func(id string, n int) (catalog.Charm, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in map[string]*int
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	v, ok := in[field]
	if !ok || v == nil || len(in) != 1 {
		h.writeError(w, r, apperr.Validation("handler.updateCharm", "body must be {%q: <integer>}", field))
		return
	}
	c, err := set(id, *v)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.log.Info("charm updated", zap.String("charm_id", id), zap.String("field", field), zap.Int("value", *v))
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) UpsertCharm(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var c catalog.Charm
	if err := decodeJSON(w, r, &c); err != nil {
		h.writeError(w, r, err)
		return
	}
	c.ID = id
	if err := h.catalog.UpsertCharm(r.Context(), c); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) AdminOrders(w http.ResponseWriter, r *http.Request) {
	h.ListOrders(w, r)
}

func (h *Handler) AdvanceOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in struct {
		Status order.Status `json:"status"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	rec, err := h.checkout.AdvanceStatus(r.Context(), id, in.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.List(r.Context())
	if err != nil {
		h.writeError(w, r, apperr.Wrap(apperr.KindPersistence, "handler.ListCoupons", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"coupons": coupons})
}

func (h *Handler) UpsertCoupon(w http.ResponseWriter, r *http.Request) {
	code, err := pathID(r, "code")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var c pricing.Coupon
	if err := decodeJSON(w, r, &c); err != nil {
		h.writeError(w, r, err)
		return
	}
	c.Code = pricing.NormalizeCode(code)
	if err := h.coupons.Upsert(r.Context(), c); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
