// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/ballotbridge/middleware"
	"github.com/danielhkuo/ballotbridge/models"
	"github.com/danielhkuo/ballotbridge/service"
)

type VotingHandler struct {
	svc *service.Service
}

func NewVotingHandler(svc *service.Service) *VotingHandler {
	return &VotingHandler{svc: svc}
}

// CastVote handles POST /elections/{id}/votes
func (h *VotingHandler) CastVote(w http.ResponseWriter, r *http.Request, u models.User) {
	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}

	vote, err := h.svc.CastVote(r.Context(), u, r.PathValue("id"), req.CandidateID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.CastVoteResponse{
		VoteID:  vote.ID,
		Message: "Vote recorded",
	})
}

// GetMyVote handles GET /elections/{id}/my-vote. It says whether the caller
// voted, never for whom.
func (h *VotingHandler) GetMyVote(w http.ResponseWriter, r *http.Request, u models.User) {
	electionID := r.PathValue("id")
	voted, err := h.svc.HasVoted(r.Context(), u, electionID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.HasVotedResponse{
		ElectionID: electionID,
		HasVoted:   voted,
	})
}

// EligibleElections handles GET /me/elections
func (h *VotingHandler) EligibleElections(w http.ResponseWriter, r *http.Request, u models.User) {
	list, err := h.svc.EligibleElections(r.Context(), u)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, list)
}

// CheckEligibility handles GET /elections/{id}/eligibility
func (h *VotingHandler) CheckEligibility(w http.ResponseWriter, r *http.Request, u models.User) {
	resp, err := h.svc.CheckEligibility(r.Context(), u, r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resp)
}
