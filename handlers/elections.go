// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/ballotbridge/middleware"
	"github.com/danielhkuo/ballotbridge/models"
	"github.com/danielhkuo/ballotbridge/service"
)

type ElectionHandler struct {
	svc *service.Service
}

func NewElectionHandler(svc *service.Service) *ElectionHandler {
	return &ElectionHandler{svc: svc}
}

// CreateElection handles POST /elections
func (h *ElectionHandler) CreateElection(w http.ResponseWriter, r *http.Request, u models.User) {
	var req models.ElectionFields
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	e, err := h.svc.CreateElection(r.Context(), u, req)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, e)
}

// ListElections handles GET /elections?phase=
func (h *ElectionHandler) ListElections(w http.ResponseWriter, r *http.Request, u models.User) {
	phase := models.Phase(r.URL.Query().Get("phase"))
	list, err := h.svc.ListElections(r.Context(), u, phase)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, list)
}

// GetElection handles GET /elections/{id}
func (h *ElectionHandler) GetElection(w http.ResponseWriter, r *http.Request, u models.User) {
	e, err := h.svc.GetElection(r.Context(), u, r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, e)
}

// UpdateElection handles PATCH /elections/{id}
func (h *ElectionHandler) UpdateElection(w http.ResponseWriter, r *http.Request, u models.User) {
	var req models.ElectionUpdate
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	e, err := h.svc.UpdateElection(r.Context(), u, r.PathValue("id"), req)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, e)
}

// CancelElection handles POST /elections/{id}/cancel
func (h *ElectionHandler) CancelElection(w http.ResponseWriter, r *http.Request, u models.User) {
	e, err := h.svc.CancelElection(r.Context(), u, r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, e)
}

// DeleteElection handles DELETE /elections/{id}
func (h *ElectionHandler) DeleteElection(w http.ResponseWriter, r *http.Request, u models.User) {
	if err := h.svc.DeleteElection(r.Context(), u, r.PathValue("id")); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAllowlist handles GET /elections/{id}/allowlist/{role}
func (h *ElectionHandler) ListAllowlist(w http.ResponseWriter, r *http.Request, u models.User) {
	electionID := r.PathValue("id")
	role := models.Role(r.PathValue("role"))

	users, err := h.svc.ListAllowlist(r.Context(), u, electionID, role)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.AllowlistResponse{
		ElectionID: electionID,
		Role:       role,
		Users:      users,
	})
}

// AddToAllowlist handles POST /elections/{id}/allowlist/{role}. Adding an
// existing member returns 200 instead of 201.
func (h *ElectionHandler) AddToAllowlist(w http.ResponseWriter, r *http.Request, u models.User) {
	var req models.AllowlistRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	electionID := r.PathValue("id")
	role := models.Role(r.PathValue("role"))
	added, err := h.svc.AddToAllowlist(r.Context(), u, electionID, role, req.UserID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	users, err := h.svc.ListAllowlist(r.Context(), u, electionID, role)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	middleware.JSONResponse(w, status, models.AllowlistResponse{
		ElectionID: electionID,
		Role:       role,
		Users:      users,
	})
}

// RemoveFromAllowlist handles DELETE /elections/{id}/allowlist/{role}/{user}
func (h *ElectionHandler) RemoveFromAllowlist(w http.ResponseWriter, r *http.Request, u models.User) {
	_, err := h.svc.RemoveFromAllowlist(r.Context(), u, r.PathValue("id"), models.Role(r.PathValue("role")), r.PathValue("user"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
