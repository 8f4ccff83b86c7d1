package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/storefront"
)

type AuthHandler struct {
	app     *storefront.App
	timeout time.Duration
}

func NewAuthHandler(app *storefront.App, timeout time.Duration) *AuthHandler {
	return &AuthHandler{
		app:     app,
		timeout: timeout,
	}
}

type MeResponseDTO struct {
	User      *domain.Identity `json:"user"`
	Resolving bool             `json:"resolving"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_credentials", "email and password are required")
		return
	}

	user, err := h.app.Login(ctx, req)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req domain.Registration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_registration", "username, email and password are required")
		return
	}

	if err := h.app.Register(ctx, req); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"username": req.Username})
}

// Logout always ends the session and redirects, even when the stored
// credential could not be removed.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Logout(r.Context()); err != nil {
		log.Printf("logout failed request_id=%s: %v", getRequestID(r.Context()), err)
	}

	target := redirectTarget(r.Context())
	if target == "" {
		target = session.LoginPath
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	st := h.app.Session.State()
	respondJSON(w, http.StatusOK, MeResponseDTO{User: st.User, Resolving: st.Resolving})
}
