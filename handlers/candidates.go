// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/ballotbridge/middleware"
	"github.com/danielhkuo/ballotbridge/models"
	"github.com/danielhkuo/ballotbridge/service"
)

type CandidateHandler struct {
	svc *service.Service
}

func NewCandidateHandler(svc *service.Service) *CandidateHandler {
	return &CandidateHandler{svc: svc}
}

// Apply handles POST /elections/{id}/candidates
func (h *CandidateHandler) Apply(w http.ResponseWriter, r *http.Request, u models.User) {
	var req models.CandidateApplication
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	c, err := h.svc.Apply(r.Context(), u, r.PathValue("id"), req)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, c)
}

// ListCandidates handles GET /elections/{id}/candidates?status=
func (h *CandidateHandler) ListCandidates(w http.ResponseWriter, r *http.Request, u models.User) {
	st := models.CandidateStatus(r.URL.Query().Get("status"))
	list, err := h.svc.ListCandidates(r.Context(), u, r.PathValue("id"), st)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, list)
}

// Decide handles POST /candidates/{id}/decision
func (h *CandidateHandler) Decide(w http.ResponseWriter, r *http.Request, u models.User) {
	var req models.DecisionRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	c, err := h.svc.DecideCandidate(r.Context(), u, r.PathValue("id"), req)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, c)
}

// ListPending handles GET /admin/candidates/pending?election=
func (h *CandidateHandler) ListPending(w http.ResponseWriter, r *http.Request, u models.User) {
	list, err := h.svc.PendingCandidates(r.Context(), u, r.URL.Query().Get("election"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, list)
}

// MyApplications handles GET /me/applications
func (h *CandidateHandler) MyApplications(w http.ResponseWriter, r *http.Request, u models.User) {
	list, err := h.svc.MyApplications(r.Context(), u)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, list)
}
