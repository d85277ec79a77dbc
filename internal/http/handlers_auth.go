package httpx

import (
	"log/slog"
	"net/http"

	"github.com/leafcart/storefront-api/internal/service"
)

// AuthHandlers provides HTTP handlers for login, registration, and logout.
type AuthHandlers struct {
	Auth    *service.AuthService
	Cookies *CookieWriter
	Logger  *slog.Logger
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login. On success the response carries
// the user session and the session cookie is replaced.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	rec, err := h.Auth.Login(r.Context(), h.loginInput(r, req))
	if err != nil {
		WriteAppError(w, err)
		return
	}

	h.Cookies.SetSession(w, r, rec)
	WriteJSON(w, http.StatusOK, viewOf(rec))
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	rec, err := h.Auth.Register(r.Context(), service.RegisterInput{
		Name:  req.Name,
		Login: h.loginInput(r, loginRequest{Email: req.Email, Password: req.Password}),
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}

	h.Cookies.SetSession(w, r, rec)
	WriteJSON(w, http.StatusCreated, viewOf(rec))
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if rec := SessionFromContext(r.Context()); rec != nil {
		if err := h.Auth.Logout(r.Context(), rec.ID, requestContext(r)); err != nil {
			WriteAppError(w, err)
			return
		}
	}
	h.Cookies.ClearSession(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// loginInput assembles the login input from the credentials and whatever
// anonymous state the request carries, so the guest cart can follow the
// shopper into their account.
func (h *AuthHandlers) loginInput(r *http.Request, req loginRequest) service.LoginInput {
	in := service.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IP:        ClientIP(r),
		UserAgent: r.UserAgent(),
	}
	if rec := SessionFromContext(r.Context()); rec != nil && rec.IsGuest() {
		in.SessionID = rec.ID
		in.GuestID = rec.GuestID
	}
	if c, err := r.Cookie(h.Cookies.config.GuestCookieName); err == nil && in.GuestID == "" {
		in.GuestID = c.Value
	}
	return in
}
