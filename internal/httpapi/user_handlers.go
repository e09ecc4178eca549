package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"eastviewpta.org/internal/auth"
	"eastviewpta.org/internal/pta"
)

func (a *API) handlePendingUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.svc.PendingUsers(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) handleApproveUser(w http.ResponseWriter, r *http.Request) {
	u, err := a.svc.ApproveUser(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) handleRejectUser(w http.ResponseWriter, r *http.Request) {
	u, err := a.svc.RejectUser(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := a.svc.GetUser(r.Context(), auth.ActorFromContext(r.Context()).ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req pta.ProfileUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	u, err := a.svc.UpdateProfile(r.Context(), auth.ActorFromContext(r.Context()), req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
