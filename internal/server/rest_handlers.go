package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terraconstructs/estate/internal/db/models"
	"github.com/terraconstructs/estate/internal/roles"
	"github.com/terraconstructs/estate/internal/services/directory"
	"github.com/terraconstructs/estate/pkg/api"
)

type restHandlers struct {
	dir *directory.Service
	log *slog.Logger
}

func (h *restHandlers) listRoles(w http.ResponseWriter, r *http.Request) {
	assigned, err := h.dir.ListRoles(r.Context(), principalOf(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, api.RoleList{Roles: roles.Strings(assigned)})
}

func (h *restHandlers) grantRole(w http.ResponseWriter, r *http.Request) {
	var req api.RoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	created, err := h.dir.GrantRole(r.Context(), principalOf(r.Context()), chi.URLParam(r, "id"), roles.Role(req.Role))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, req)
}

func (h *restHandlers) revokeRole(w http.ResponseWriter, r *http.Request) {
	_, err := h.dir.RevokeRole(r.Context(), principalOf(r.Context()), chi.URLParam(r, "id"), roles.Role(chi.URLParam(r, "role")))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *restHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.dir.GetProfile(r.Context(), principalOf(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPIProfile(p))
}

func (h *restHandlers) createProfile(w http.ResponseWriter, r *http.Request) {
	var req api.Profile
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	p, created, err := h.dir.CreateProfile(r.Context(), principalOf(r.Context()), models.Profile{
		ID:        chi.URLParam(r, "id"),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toAPIProfile(p))
}

func (h *restHandlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req api.ProfilePatch
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	p, err := h.dir.UpdateProfile(r.Context(), principalOf(r.Context()), chi.URLParam(r, "id"), directory.ProfilePatch{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPIProfile(p))
}

func (h *restHandlers) getVerification(w http.ResponseWriter, r *http.Request) {
	v, err := h.dir.GetVerification(r.Context(), principalOf(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPIVerification(v))
}
