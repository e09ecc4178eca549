package httpapi

import (
	"errors"
	"net/http"

	"eastviewpta.org/internal/audit"
	"eastviewpta.org/internal/auth"
	"eastviewpta.org/internal/pta"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleRegister creates a pending account and hands back a token. The
// token only opens gated routes once an admin approves the account.
func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req pta.NewUser
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	u, err := a.svc.RegisterUser(r.Context(), req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	session, err := a.auth.SessionFor(u)
	if err != nil {
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"user_id":    u.ID,
		"expires_at": session.ExpiresAt,
	})
	writeJSON(w, http.StatusCreated, session)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	session, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, pta.ErrInvalidCredentials) || errors.Is(err, auth.ErrNotApproved) {
			_ = audit.LogEvent(r.Context(), "auth.login.rejected", map[string]any{
				"email":  pta.NormalizeEmail(req.Email),
				"reason": err.Error(),
			})
		}
		handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id":    session.User.ID,
		"expires_at": session.ExpiresAt,
	})
	writeJSON(w, http.StatusOK, session)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	u, err := a.svc.GetUser(r.Context(), id.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
