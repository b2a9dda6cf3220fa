package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/userhub/apiserver/internal/services"
	"github.com/userhub/apiserver/types"
)

// AccountListHandler provides the administrative account listing.
type AccountListHandler struct {
	accounts *services.AccountService
}

// AccountListRouter registers the listing routes on the given router.
// All routes require an authenticated Manager.
func AccountListRouter(r chi.Router, accounts *services.AccountService, authMiddleware func(http.Handler) http.Handler) {
	handler := &AccountListHandler{accounts: accounts}
	r.With(authMiddleware, handler.requireManager).Get("/", handler.List)
}

// List returns safe projections of accounts, newest first.
func (h *AccountListHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.accounts.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}

	writeJSON(w, http.StatusOK, AccountListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
	})
}

func (h *AccountListHandler) requireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID, err := accountIDFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		caller, err := h.accounts.GetByID(r.Context(), accountID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		if caller.Role != types.RoleManager && caller.Role != types.RoleAdmin {
			writeError(w, http.StatusForbidden, "manager access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AccountListResponse is the paginated list response payload.
type AccountListResponse struct {
	Items []types.AccountSummary `json:"items"`
	Page  int                    `json:"page"`
	Limit int                    `json:"limit"`
}
