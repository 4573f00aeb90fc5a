package quote

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/noah-isme/backend-quote/internal/common"
	"github.com/noah-isme/backend-quote/internal/obs"
)

var errNoService = errors.New("quote service not configured")

// Handler exposes quote creation over HTTP.
type Handler struct {
	Svc *Service
}

// Create prices a quote using the mode carried in the request body.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "")
}

// CreateBranded prices a quote including branding charges.
func (h *Handler) CreateBranded(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, ModeBranded)
}

// CreateUnbranded prices a quote ignoring any branding charges.
func (h *Handler) CreateUnbranded(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, ModeUnbranded)
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request, forced Mode) {
	if h.Svc == nil {
		common.WriteError(w, errNoService)
		return
	}
	var payload Request
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		obs.ObserveQuoteRejected(string(forced), "bad_request")
		common.WriteError(w, common.BadRequest("BAD_REQUEST", "invalid payload"))
		return
	}
	mode := forced
	if mode == "" {
		parsed, ok := ParseMode(payload.Mode)
		if !ok {
			obs.ObserveQuoteRejected("", "invalid_mode")
			common.WriteError(w, common.BadRequest("INVALID_MODE", "mode must be branded or unbranded").
				WithDetails(map[string]any{"mode": payload.Mode}))
			return
		}
		mode = parsed
	}
	out, err := h.Svc.Create(r.Context(), payload, mode)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, out)
}
