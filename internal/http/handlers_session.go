package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/leafcart/storefront-api/internal/domain/session"
	"github.com/leafcart/storefront-api/internal/service"
)

// SessionHandlers provides HTTP handlers for the session resource.
type SessionHandlers struct {
	Sessions *service.SessionService
	Cookies  *CookieWriter
	Logger   *slog.Logger
}

// sessionView is the JSON shape of a session returned to clients. The
// security token is included so API clients can echo it on later
// requests; the HMAC secret never leaves the server.
type sessionView struct {
	ID            string            `json:"id"`
	Type          session.Type      `json:"type"`
	UserID        int64             `json:"user_id,omitempty"`
	GuestID       string            `json:"guest_id,omitempty"`
	CartItems     session.CartItems `json:"cart_items"`
	CSRFToken     string            `json:"csrf_token"`
	SecurityToken string            `json:"security_token,omitempty"`
	ExpiresAt     time.Time         `json:"expires_at"`
}

func viewOf(rec *session.Record) sessionView {
	return sessionView{
		ID:            rec.ID,
		Type:          rec.Type,
		UserID:        rec.UserID,
		GuestID:       rec.GuestID,
		CartItems:     rec.CartItems,
		CSRFToken:     rec.CSRFToken,
		SecurityToken: rec.SecurityToken,
		ExpiresAt:     rec.ExpiresAt,
	}
}

// Current handles GET /api/session.
func (h *SessionHandlers) Current(w http.ResponseWriter, r *http.Request) {
	rec := SessionFromContext(r.Context())
	if rec == nil {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: errors.New("session not found")})
		return
	}
	WriteJSON(w, http.StatusOK, viewOf(rec))
}

// cartItemPayload is one cart line in an update request.
type cartItemPayload struct {
	ProductID   int64  `json:"product_id"`
	VariationID *int64 `json:"variation_id,omitempty"`
	Quantity    int    `json:"quantity"`
}

type updateCartRequest struct {
	Items []cartItemPayload `json:"items"`
}

// UpdateCart handles PUT /api/session/cart, replacing the session cart
// with the submitted lines.
func (h *SessionHandlers) UpdateCart(w http.ResponseWriter, r *http.Request) {
	rec := SessionFromContext(r.Context())
	if rec == nil {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: errors.New("session not found")})
		return
	}

	var req updateCartRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	cart := session.CartItems{}
	for _, item := range req.Items {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "validation", Err: errors.New("items need a product_id and a positive quantity")})
			return
		}
		ci := session.CartItem{ProductID: item.ProductID, VariationID: item.VariationID, Quantity: item.Quantity}
		cart[ci.Key()] = ci
	}

	updated, err := h.Sessions.Update(r.Context(), rec.ID, requestContext(r), session.Update{CartItems: &cart})
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, viewOf(updated))
}

// Delete handles DELETE /api/session.
func (h *SessionHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	rec := SessionFromContext(r.Context())
	if rec == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.Sessions.Delete(r.Context(), rec.ID, requestContext(r)); err != nil {
		WriteAppError(w, err)
		return
	}
	h.Cookies.ClearSession(w, r)
	w.WriteHeader(http.StatusNoContent)
}
