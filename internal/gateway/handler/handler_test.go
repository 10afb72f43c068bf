package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogcache "charmstudio/internal/cache/catalog"
	"charmstudio/internal/compose"
	"charmstudio/internal/datauri"
	"charmstudio/internal/editor"
	"charmstudio/internal/flow"
	"charmstudio/internal/gateway/entity"
	"charmstudio/internal/gateway/handler"
	"charmstudio/internal/gateway/middleware"
	"charmstudio/internal/gateway/payment"
	catalogrepo "charmstudio/internal/gateway/repository/catalog"
	couponrepo "charmstudio/internal/gateway/repository/coupon"
	orderrepo "charmstudio/internal/gateway/repository/order"
	"charmstudio/internal/gateway/repository/render"
	"charmstudio/internal/gateway/server"
	"charmstudio/internal/gateway/service/checkout"
	"charmstudio/internal/llm"
)

var pngURI = datauri.Encode("image/png", []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a})

type testEnv struct {
	mux    http.Handler
	llm    *llm.FakeClient
	editor *editor.Manager
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	shelf := catalogrepo.NewSeededMemoryStore()
	cached := catalogcache.NewCachedStore(shelf, catalogcache.DefaultCacheConfig())
	coupons := couponrepo.NewSeededMemoryStore()
	mgr, err := editor.NewManager(8, cached, nil)
	require.NoError(t, err)
	renders, err := render.NewMemoryStore(8, "/api/renders/")
	require.NoError(t, err)
	fake := llm.NewFakeClient()

	svc := checkout.New(checkout.Deps{
		Catalog:    cached,
		Coupons:    coupons,
		Orders:     orderrepo.NewMemoryStore(shelf),
		Payments:   payment.NewManual(),
		Invalidate: cached.Invalidate,
	}, checkout.Config{
		Currency:   "EUR",
		PointValue: decimal.RequireFromString("0.01"),
		EarnRate:   decimal.NewFromInt(1),
		Shipping: map[string]decimal.Decimal{
			checkout.ShippingStandard: decimal.Zero,
			checkout.ShippingExpress:  decimal.RequireFromString("9.90"),
		},
	})
	h := handler.New(handler.Deps{
		Catalog:  cached,
		Coupons:  coupons,
		Editor:   mgr,
		Flows:    flow.New(fake, nil),
		Composer: compose.New(fake, compose.NewHTTPResolver(), nil),
		Renders:  renders,
		Checkout: svc,
	})
	return &testEnv{mux: server.NewMux(h, []string{"boss"}, nil), llm: fake, editor: mgr}
}

func (e *testEnv) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(middleware.HeaderUserID, user)
	}
	rr := httptest.NewRecorder()
	e.mux.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

// designPiece opens a session for user and finishes one necklace with the given charms.
func (e *testEnv) designPiece(t *testing.T, user string, charmIDs ...string) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/sessions", user, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	sessionID := decode[editor.State](t, rr).SessionID

	ws, err := e.editor.Get(sessionID, entity.NormalizeUserID(user))
	require.NoError(t, err)
	frames := []string{`{"type":"select_model","model_id":"collier-chaine-fine"}`}
	for _, id := range charmIDs {
		frames = append(frames, `{"type":"add","charm_id":"`+id+`","x":50,"y":50}`)
	}
	frames = append(frames, `{"type":"finish"}`)
	for _, f := range frames {
		g, err := editor.Decode([]byte(f))
		require.NoError(t, err)
		_, err = e.editor.Apply(context.Background(), ws, g)
		require.NoError(t, err)
	}
	return sessionID
}

func TestCatalogIsPublic(t *testing.T) {
	env := newEnv(t)
	rr := env.do(t, http.MethodGet, "/api/catalog/charms", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[struct {
		Charms []struct{ ID string } `json:"charms"`
	}](t, rr)
	assert.Len(t, body.Charms, 6)

	rr = env.do(t, http.MethodGet, "/api/catalog/charms/unicorn", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestProtectedRoutesNeedIdentity(t *testing.T) {
	env := newEnv(t)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/api/sessions", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/orders", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/admin/inventory/low-stock", "u1", nil).Code)
}

// flowFailure is the envelope of a failed flow call.
type flowFailure struct {
	Status string          `json:"status"`
	Kind   string          `json:"kind"`
	Reason string          `json:"reason"`
	Output json.RawMessage `json:"output"`
}

func TestSuggestionEnvelope(t *testing.T) {
	suggest := func(t *testing.T, answer string) *httptest.ResponseRecorder {
		env := newEnv(t)
		env.llm.ScriptJSON("suggest", answer, nil)
		return env.do(t, http.MethodPost, "/api/ai/suggestions", "u1", map[string]any{"jewelry_type": "necklace"})
	}

	t.Run("succeeded", func(t *testing.T) {
		rr := suggest(t, `{"suggestions":[
			{"name":"Star","x":20,"y":40,"justification":"a"},
			{"name":"Moon","x":50,"y":60,"justification":"b"},
			{"name":"Heart","x":80,"y":40,"justification":"c"}]}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		ok := decode[struct {
			Status string             `json:"status"`
			Output flow.SuggestOutput `json:"output"`
		}](t, rr)
		assert.Equal(t, "succeeded", ok.Status)
		assert.Len(t, ok.Output.Suggestions, 3)
	})

	t.Run("unknown charm fails the whole answer", func(t *testing.T) {
		rr := suggest(t, `{"suggestions":[
			{"name":"Unicorn","x":20,"y":40,"justification":"a"},
			{"name":"Moon","x":50,"y":60,"justification":"b"},
			{"name":"Heart","x":80,"y":40,"justification":"c"}]}`)
		require.Equal(t, http.StatusBadGateway, rr.Code, rr.Body.String())
		failed := decode[flowFailure](t, rr)
		assert.Equal(t, "failed", failed.Status)
		assert.Equal(t, "generation_failed", failed.Kind)
		assert.Contains(t, failed.Reason, "Unicorn")
		assert.Empty(t, failed.Output, "failed calls carry no output")
	})

	t.Run("provider error", func(t *testing.T) {
		env := newEnv(t)
		env.llm.ScriptJSON("suggest", "", errors.New("upstream timeout"))
		rr := env.do(t, http.MethodPost, "/api/ai/suggestions", "u1", map[string]any{"jewelry_type": "necklace"})
		require.Equal(t, http.StatusBadGateway, rr.Code, rr.Body.String())
		failed := decode[flowFailure](t, rr)
		assert.Equal(t, "failed", failed.Status)
		assert.Equal(t, "generation_failed", failed.Kind)
		assert.Contains(t, failed.Reason, "upstream timeout")
	})
}

func TestFlowRejectsMalformedBody(t *testing.T) {
	env := newEnv(t)
	rr := env.do(t, http.MethodPost, "/api/ai/critique", "u1", map[string]any{"image": "nope", "locale": "fr"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	failed := decode[flowFailure](t, rr)
	assert.Equal(t, "failed", failed.Status)
	assert.Equal(t, "validation", failed.Kind)
}

func TestRenderArchivesImage(t *testing.T) {
	env := newEnv(t)
	env.llm.ScriptImage("render", llm.Image{MIMEType: "image/png", Data: []byte("rendered")}, nil)

	rr := env.do(t, http.MethodPost, "/api/ai/render", "u1", map[string]any{
		"variant":      "holistic",
		"model_name":   "Chaîne fine",
		"jewelry_type": "necklace",
		"snapshot":     pngURI,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decode[struct {
		Output struct {
			Image string `json:"image"`
			ID    string `json:"id"`
			URL   string `json:"url"`
		} `json:"output"`
	}](t, rr)
	assert.Equal(t, datauri.Encode("image/png", []byte("rendered")), res.Output.Image)
	require.NotEmpty(t, res.Output.ID)

	got := env.do(t, http.MethodGet, res.Output.URL, "", nil)
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, "image/png", got.Header().Get("Content-Type"))
	assert.Equal(t, "rendered", got.Body.String())

	rr = env.do(t, http.MethodPost, "/api/ai/render", "u1", map[string]any{"variant": "cubist"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCheckoutFlow(t *testing.T) {
	env := newEnv(t)
	sessionID := env.designPiece(t, "u1", "star", "moon")

	q := env.do(t, http.MethodPost, "/api/checkout/quote", "u1", map[string]any{"session_id": sessionID})
	require.Equal(t, http.StatusOK, q.Code, q.Body.String())
	quote := decode[checkout.Quote](t, q)
	assert.Equal(t, "28.75", quote.Breakdown.Total.StringFixed(2))

	body := map[string]any{"session_id": sessionID, "request_id": "req-1"}
	rr := env.do(t, http.MethodPost, "/api/checkout", "u1", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	first := decode[checkout.Result](t, rr)
	require.NotNil(t, first.Payment)

	st := decode[editor.State](t, env.do(t, http.MethodGet, "/api/sessions/"+sessionID, "u1", nil))
	assert.Empty(t, st.Cart, "the cart is emptied after checkout")

	replay := env.do(t, http.MethodPost, "/api/checkout", "u1", body)
	require.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, first.Order.ID, decode[checkout.Result](t, replay).Order.ID)

	got := env.do(t, http.MethodGet, "/api/orders/"+first.Order.ID, "u2", nil)
	assert.Equal(t, http.StatusNotFound, got.Code, "orders of other users are hidden")

	loyalty := decode[map[string]int](t, env.do(t, http.MethodGet, "/api/loyalty", "u1", nil))
	assert.Zero(t, loyalty["balance"], "nothing is earned before payment")

	paid := env.do(t, http.MethodPost, "/api/orders/"+first.Order.ID+"/confirm-payment", "u1", nil)
	require.Equal(t, http.StatusOK, paid.Code, paid.Body.String())

	adv := env.do(t, http.MethodPost, "/api/admin/orders/"+first.Order.ID+"/status", "boss", map[string]string{"status": "livrée"})
	assert.Equal(t, http.StatusBadRequest, adv.Code, "commandée cannot jump to livrée")
	adv = env.do(t, http.MethodPost, "/api/admin/orders/"+first.Order.ID+"/status", "boss", map[string]string{"status": "en cours de préparation"})
	assert.Equal(t, http.StatusOK, adv.Code)

	loyalty = decode[map[string]int](t, env.do(t, http.MethodGet, "/api/loyalty", "u1", nil))
	assert.Equal(t, 28, loyalty["balance"])
}

func TestCheckoutConflictListsPlacements(t *testing.T) {
	env := newEnv(t)
	sessionID := env.designPiece(t, "u1", "shell", "shell")

	rr := env.do(t, http.MethodPost, "/api/checkout", "u1", map[string]any{"session_id": sessionID, "request_id": "r"})
	require.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())
	body := decode[struct {
		Error struct {
			Kind       string `json:"kind"`
			Placements []struct {
				CharmID string `json:"charm_id"`
			} `json:"placements"`
		} `json:"error"`
	}](t, rr)
	assert.Equal(t, "availability_conflict", body.Error.Kind)
	require.Len(t, body.Error.Placements, 1)
	assert.Equal(t, "shell", body.Error.Placements[0].CharmID)
}

func TestAdminInventory(t *testing.T) {
	env := newEnv(t)
	rr := env.do(t, http.MethodPut, "/api/admin/charms/star/stock", "boss", map[string]int{"stock": 1})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	low := decode[struct {
		Charms []struct{ ID string } `json:"charms"`
	}](t, env.do(t, http.MethodGet, "/api/admin/inventory/low-stock", "boss", nil))
	ids := make([]string, 0, len(low.Charms))
	for _, c := range low.Charms {
		ids = append(ids, c.ID)
	}
	assert.Contains(t, ids, "star")

	rr = env.do(t, http.MethodPut, "/api/admin/charms/star/stock", "boss", map[string]int{"stock": -2})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = env.do(t, http.MethodPut, "/api/admin/charms/star/threshold", "boss", map[string]int{"stock": 2})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEditorWebsocket(t *testing.T) {
	env := newEnv(t)
	srv := httptest.NewServer(env.mux)
	defer srv.Close()

	rr := env.do(t, http.MethodPost, "/api/sessions", "u1", nil)
	sessionID := decode[editor.State](t, rr).SessionID

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/editor?session_id=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{middleware.HeaderUserID: {"u1"}})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	type frame struct {
		Type  string        `json:"type"`
		State *editor.State `json:"state"`
		Error *struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	read := func() frame {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		return f
	}

	assert.Equal(t, "state", read().Type, "initial state")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"select_model","model_id":"bracelet-jonc"}`)))
	f := read()
	require.Equal(t, "state", f.Type)
	require.NotNil(t, f.State.Model)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"teleport"}`)))
	f = read()
	require.Equal(t, "error", f.Type)
	assert.Equal(t, "validation_error", f.Error.Kind)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"add","charm_id":"pearl","x":10,"y":20}`)))
	f = read()
	require.Equal(t, "state", f.Type, "the socket survives an invalid gesture")
	assert.Len(t, f.State.PlacedCharms, 1)

	env.editor.Close(sessionID)
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "closing the session closes the socket")

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{middleware.HeaderUserID: {"u2"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
