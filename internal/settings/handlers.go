package settings

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/noah-isme/backend-quote/internal/common"
)

// Handler exposes the pricing settings over HTTP.
type Handler struct {
	Provider *Provider
}

// Get returns the settings currently in force.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Provider == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "SETTINGS_UNAVAILABLE", "settings not configured", nil)
		return
	}
	common.Data(w, http.StatusOK, h.Provider.Current(r.Context()))
}

// Put replaces the stored settings. Fields omitted from the body keep their current value.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	if h.Provider == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "SETTINGS_UNAVAILABLE", "settings not configured", nil)
		return
	}
	next := h.Provider.Current(r.Context())
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&next); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Provider.Put(r.Context(), next); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			common.JSONError(w, http.StatusConflict, "SETTINGS_READ_ONLY", "settings backend is static", nil)
			return
		}
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, next)
}

// RequireAdmin allows requests carrying "Authorization: Bearer <token>". With an empty
// token every request is refused.
func RequireAdmin(token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(want) == 0 {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "admin API disabled", nil)
				return
			}
			got := []byte(common.BearerToken(r))
			if len(got) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
				common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
