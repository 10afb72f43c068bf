package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"charmstudio/internal/gateway/entity"
)

func whoami(t *testing.T, seen *entity.User) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := entity.UserFrom(r.Context())
		require.True(t, ok)
		*seen = u
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestIdentityMarksAdmins(t *testing.T) {
	var seen entity.User
	h := Identity(ParseAdmins(" boss , ,ops"))(RequireUser(whoami(t, &seen)))

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set(HeaderUserID, " boss ")
	req.Header.Set(HeaderUserEmail, "boss@example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, entity.UserID("boss"), seen.ID)
	assert.Equal(t, "boss@example.com", seen.Email)
	assert.True(t, seen.Admin)

	req.Header.Set(HeaderUserID, "shopper")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, seen.Admin)
}

func TestRequireUserAndAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	identity := Identity([]string{"boss"})

	tests := []struct {
		name   string
		h      http.Handler
		user   string
		status int
	}{
		{"anonymous user route", identity(RequireUser(ok)), "", http.StatusUnauthorized},
		{"user route", identity(RequireUser(ok)), "shopper", http.StatusOK},
		{"anonymous admin route", identity(RequireAdmin(ok)), "", http.StatusUnauthorized},
		{"non-admin admin route", identity(RequireAdmin(ok)), "shopper", http.StatusForbidden},
		{"admin route", identity(RequireAdmin(ok)), "boss", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.user != "" {
				req.Header.Set(HeaderUserID, tt.user)
			}
			rr := httptest.NewRecorder()
			tt.h.ServeHTTP(rr, req)
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodOptions, "/api/checkout", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://shop.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), HeaderUserID)
}

func TestLoggingRecordsStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/renders/x", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/renders/x", fields["path"])
	assert.EqualValues(t, http.StatusNotFound, fields["status"])
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
}
