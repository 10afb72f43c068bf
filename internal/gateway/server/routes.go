package server

import (
	"net/http"

	"go.uber.org/zap"

	"charmstudio/internal/gateway/handler"
	"charmstudio/internal/gateway/middleware"
)

func NewMux(h *handler.Handler, admins []string, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	user := func(fn http.HandlerFunc) http.Handler { return middleware.RequireUser(fn) }
	admin := func(fn http.HandlerFunc) http.Handler { return middleware.RequireAdmin(fn) }

	// Catalog
	mux.HandleFunc("GET /api/catalog/types", h.ListJewelryTypes)
	mux.HandleFunc("GET /api/catalog/charms", h.ListCharms)
	mux.HandleFunc("GET /api/catalog/charms/{id}", h.GetCharm)

	// Editor
	mux.Handle("POST /api/sessions", user(h.CreateSession))
	mux.Handle("GET /api/sessions/{id}", user(h.GetSession))
	mux.Handle("DELETE /api/sessions/{id}", user(h.CloseSession))
	mux.Handle("DELETE /api/sessions/{id}/cart/{item}", user(h.RemoveCartItem))
	mux.Handle("GET /ws/editor", user(h.EditorWS))

	// AI flows
	mux.Handle("POST /api/ai/suggestions", user(h.Suggest))
	mux.Handle("POST /api/ai/photo-analysis", user(h.AnalyzePhoto))
	mux.Handle("POST /api/ai/critique", user(h.Critique))
	mux.Handle("POST /api/ai/share-content", user(h.ShareContent))
	mux.Handle("POST /api/ai/render", user(h.Render))
	mux.HandleFunc("GET /api/renders/{id}", h.GetRender)

	// Checkout & orders
	mux.Handle("POST /api/checkout/quote", user(h.Quote))
	mux.Handle("POST /api/checkout", user(h.Checkout))
	mux.Handle("GET /api/orders", user(h.ListOrders))
	mux.Handle("GET /api/orders/{id}", user(h.GetOrder))
	mux.Handle("POST /api/orders/{id}/confirm-payment", user(h.ConfirmPayment))
	mux.Handle("GET /api/loyalty", user(h.Loyalty))

	// Admin
	mux.Handle("GET /api/admin/inventory/low-stock", admin(h.LowStock))
	mux.Handle("PUT /api/admin/charms/{id}", admin(h.UpsertCharm))
	mux.Handle("PUT /api/admin/charms/{id}/stock", admin(h.SetStock))
	mux.Handle("PUT /api/admin/charms/{id}/threshold", admin(h.SetLowStockThreshold))
	mux.Handle("GET /api/admin/orders", admin(h.AdminOrders))
	mux.Handle("POST /api/admin/orders/{id}/status", admin(h.AdvanceOrder))
	mux.Handle("GET /api/admin/coupons", admin(h.ListCoupons))
	mux.Handle("PUT /api/admin/coupons/{code}", admin(h.UpsertCoupon))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Middleware
	var out http.Handler = mux
	out = middleware.Identity(admins)(out)
	out = middleware.Logging(logger)(out)
	return middleware.CORS(out)
}
