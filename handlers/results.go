// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"math"
	"net/http"

	"github.com/danielhkuo/ballotbridge/middleware"
	"github.com/danielhkuo/ballotbridge/models"
	"github.com/danielhkuo/ballotbridge/service"
)

type ResultsHandler struct {
	svc *service.Service
}

func NewResultsHandler(svc *service.Service) *ResultsHandler {
	return &ResultsHandler{svc: svc}
}

// GetResults handles GET /elections/{id}/results
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request, u models.User) {
	results, err := h.svc.Results(r.Context(), u, r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	for i := range results.Results {
		results.Results[i].Percentage = roundPercent(results.Results[i].Percentage)
	}
	middleware.JSONResponse(w, http.StatusOK, results)
}

// GetTurnout handles GET /elections/{id}/turnout
func (h *ResultsHandler) GetTurnout(w http.ResponseWriter, r *http.Request, u models.User) {
	turnout, err := h.svc.Turnout(r.Context(), u, r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, turnout)
}

// Reconcile handles POST /admin/reconcile
func (h *ResultsHandler) Reconcile(w http.ResponseWriter, r *http.Request, u models.User) {
	n, err := h.svc.Reconcile(r.Context(), u)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.ReconcileResponse{Transitions: n})
}

// roundPercent rounds to two decimals for display
func roundPercent(p float64) float64 {
	return math.Round(p*100) / 100
}
