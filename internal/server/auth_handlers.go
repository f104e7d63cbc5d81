package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/services/iam"
	"github.com/terraconstructs/estate/pkg/api"
)

type authHandlers struct {
	iam   iam.Service
	cache *sessionCache
	log   *slog.Logger
}

func clientInfo(r *http.Request) iam.ClientInfo {
	return iam.ClientInfo{UserAgent: r.UserAgent(), IPAddress: r.RemoteAddr}
}

// token handles POST /auth/v1/token?grant_type=password.
func (h *authHandlers) token(w http.ResponseWriter, r *http.Request) {
	if gt := r.URL.Query().Get("grant_type"); gt != "" && gt != "password" {
		writeError(w, http.StatusBadRequest, api.CodeValidation, "unsupported grant_type")
		return
	}
	var req api.PasswordGrantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	grant, err := h.iam.SignIn(r.Context(), req.Email, req.Password, clientInfo(r))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPISession(grant, time.Now()))
}

// signup handles POST /auth/v1/signup.
func (h *authHandlers) signup(w http.ResponseWriter, r *http.Request) {
	var req api.SignUpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	meta := iam.SignUpMetadata{FirstName: req.Data.FirstName, LastName: req.Data.LastName}
	res, err := h.iam.SignUp(r.Context(), req.Email, req.Password, meta, clientInfo(r))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, api.SignUpResponse{
		User:    toAPIUser(res.User),
		Session: toAPISession(res.Session, time.Now()),
	})
}

// logout handles POST /auth/v1/logout.
func (h *authHandlers) logout(w http.ResponseWriter, r *http.Request) {
	p := principalOf(r.Context())
	if err := h.iam.SignOut(r.Context(), p.SessionID); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	h.cache.evict(auth.HashToken(p.Token))
	w.WriteHeader(http.StatusNoContent)
}

// user handles GET /auth/v1/user.
func (h *authHandlers) user(w http.ResponseWriter, r *http.Request) {
	p := principalOf(r.Context())
	u, err := h.iam.GetUser(r.Context(), p.UserID)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPIUser(u))
}

// recover handles POST /auth/v1/recover.
func (h *authHandlers) recover(w http.ResponseWriter, r *http.Request) {
	var req api.RecoverRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	if err := h.iam.SendPasswordReset(r.Context(), req.Email, req.RedirectTo); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// recoverConfirm handles POST /auth/v1/recover/confirm.
func (h *authHandlers) recoverConfirm(w http.ResponseWriter, r *http.Request) {
	var req api.RecoverConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	if err := h.iam.ConfirmPasswordReset(r.Context(), req.Token, req.Password); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}
