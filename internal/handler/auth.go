package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/memorial/internal/auth"
	"github.com/sakif/memorial/internal/model"
	"github.com/sakif/memorial/internal/service"
)

// AuthHandler serves registration, login, logout and the current account.
type AuthHandler struct {
	accounts     *service.AccountService
	cookieSecure bool
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. cookieSecure marks the session
// cookie Secure and should be true whenever the site is served over HTTPS.
func NewAuthHandler(accounts *service.AccountService, cookieSecure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, cookieSecure: cookieSecure, logger: logger}
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Account   *model.Account `json:"account"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

// HandleRegister creates an account.
//
// HTTP: POST /api/auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	account, err := h.accounts.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Name:     req.Name,
		Email:    req.Email,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// HandleLogin checks credentials and sets the session cookie.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	auth.SetSessionCookie(w, res.Token, res.ExpiresAt, h.cookieSecure)
	writeJSON(w, http.StatusOK, loginResponse{Account: res.Account, ExpiresAt: res.ExpiresAt})
}

// HandleLogout ends the session and clears the cookie. Calling it without
// a session is not an error.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.CookieName); err == nil {
		if err := h.accounts.Logout(r.Context(), cookie.Value); err != nil {
			writeError(w, err)
			return
		}
	}
	auth.ClearSessionCookie(w, h.cookieSecure)
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns the signed-in account.
//
// HTTP: GET /api/auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.Me(actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}
