package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/memorial/internal/apperror"
	"github.com/sakif/memorial/internal/service"
)

// AdminHandler serves account moderation. Every route sits behind
// RequireAdmin, and the service checks the role again.
type AdminHandler struct {
	accounts *service.AccountService
	logger   *slog.Logger
}

func NewAdminHandler(accounts *service.AccountService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{accounts: accounts, logger: logger}
}

// roleRequest uses a pointer so a body without isAdmin is rejected
// instead of reading as a demotion.
type roleRequest struct {
	IsAdmin *bool `json:"isAdmin"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

// HTTP: GET /api/admin/users?limit=&offset=
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	accounts, err := h.accounts.ListAccounts(r.Context(), actor(r), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// HTTP: PUT /api/admin/users/{id}/role
func (h *AdminHandler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.IsAdmin == nil {
		writeError(w, apperror.ValidationFailed("isAdmin", "isAdmin is required"))
		return
	}

	account, err := h.accounts.UpdateRole(r.Context(), actor(r), chi.URLParam(r, "id"), *req.IsAdmin)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// HandleResetPassword sets a new password and signs the account out
// everywhere.
//
// HTTP: PUT /api/admin/users/{id}/password
func (h *AdminHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.accounts.ResetPassword(r.Context(), actor(r), chi.URLParam(r, "id"), req.Password); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: DELETE /api/admin/users/{id}
func (h *AdminHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.DeleteAccount(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
