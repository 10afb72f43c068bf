package handler

import (
	"net/http"
	"strings"

	"charmstudio/internal/apperr"
	orderrepo "charmstudio/internal/gateway/repository/order"
	"charmstudio/internal/gateway/service/checkout"
	"charmstudio/internal/order"
)

type checkoutRequest struct {
	SessionID      string `json:"session_id"`
	RequestID      string `json:"request_id,omitempty"`
	CouponCode     string `json:"coupon_code,omitempty"`
	PointsToUse    int    `json:"points_to_use,omitempty"`
	ShippingMethod string `json:"shipping_method,omitempty"`
}

func (h *Handler) readCheckout(w http.ResponseWriter, r *http.Request) (checkoutRequest, checkout.Request, error) {
	var in checkoutRequest
	if err := decodeJSON(w, r, &in); err != nil {
		return in, checkout.Request{}, err
	}
	in.SessionID = strings.TrimSpace(in.SessionID)
	if in.SessionID == "" {
		return in, checkout.Request{}, apperr.Validation("handler.checkout", "session_id is required")
	}
	ws, err := h.workspace(r, in.SessionID)
	if err != nil {
		return in, checkout.Request{}, err
	}
	return in, checkout.Request{
		RequestID:      in.RequestID,
		Items:          ws.CartItems(),
		CouponCode:     in.CouponCode,
		PointsToUse:    in.PointsToUse,
		ShippingMethod: in.ShippingMethod,
	}, nil
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_, req, err := h.readCheckout(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q, err := h.checkout.Quote(r.Context(), user, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// Checkout turns the session cart into an order and empties the cart. A
// replayed request id answers 200 with the original order.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	in, req, err := h.readCheckout(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.checkout.Checkout(r.Context(), user, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if ws, err := h.workspace(r, in.SessionID); err == nil {
		ws.ClearCart()
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	f, err := listFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	recs, err := h.checkout.Orders(r.Context(), user, f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": recs})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rec, err := h.checkout.Order(r.Context(), user, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rec, err := h.checkout.ConfirmPayment(r.Context(), user, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) Loyalty(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	n, err := h.checkout.PointsBalance(r.Context(), user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"balance": n})
}

func listFilter(r *http.Request) (orderrepo.ListFilter, error) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return orderrepo.ListFilter{}, err
	}
	f := orderrepo.ListFilter{
		UserID: strings.TrimSpace(r.URL.Query().Get("user_id")),
		Limit:  limit,
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		f.Status = order.Status(raw)
		if !f.Status.Valid() {
			return orderrepo.ListFilter{}, apperr.Validation("handler.listFilter", "unknown status %q", raw)
		}
	}
	return f, nil
}
