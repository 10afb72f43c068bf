package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"charmstudio/internal/apperr"
	"charmstudio/internal/catalog"
	"charmstudio/internal/editor"
	"charmstudio/internal/gateway/entity"
	couponrepo "charmstudio/internal/gateway/repository/coupon"
	orderrepo "charmstudio/internal/gateway/repository/order"
	"charmstudio/internal/gateway/repository/render"
)

// maxBodyBytes leaves room for several base64 images in one request.
const maxBodyBytes = 32 << 20

type errorBody struct {
	Kind       string                     `json:"kind"`
	Message    string                     `json:"message"`
	Placements []apperr.AffectedPlacement `json:"placements,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a bounded request body into v. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("handler.decode", "request body is required")
		}
		return apperr.Validation("handler.decode", "invalid json body: %v", err)
	}
	return nil
}

// statusOf maps an error to its HTTP status.
func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindAvailabilityConflict:
		return http.StatusConflict
	case apperr.KindGenerationFailed, apperr.KindImageGenerationFailed:
		return http.StatusBadGateway
	case apperr.KindPersistence:
		return http.StatusServiceUnavailable
	}
	switch {
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, orderrepo.ErrNotFound),
		errors.Is(err, couponrepo.ErrNotFound),
		errors.Is(err, render.ErrNotFound),
		errors.Is(err, editor.ErrUnknownSession):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrClosed):
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

func errorPayload(err error) errorBody {
	body := errorBody{Kind: apperr.KindOf(err).String(), Message: err.Error()}
	var conflict *apperr.AvailabilityConflict
	if errors.As(err, &conflict) {
		body.Placements = conflict.Placements
	}
	return body
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, map[string]errorBody{"error": errorPayload(err)})
}

// currentUser returns the verified user. Routes behind RequireUser always have one.
func currentUser(r *http.Request) (entity.User, error) {
	u, ok := entity.UserFrom(r.Context())
	if !ok {
		return entity.User{}, apperr.New(apperr.KindUnauthorized, "handler.user", "missing user identity")
	}
	return u, nil
}

func pathID(r *http.Request, name string) (string, error) {
	id := strings.TrimSpace(r.PathValue(name))
	if id == "" {
		return "", apperr.Validation("handler.path", "%s is required", name)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Validation("handler.query", "%s must be a non-negative integer", name)
	}
	return n, nil
}
