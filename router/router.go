// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielhkuo/ballotbridge/cliparse"
	"github.com/danielhkuo/ballotbridge/handlers"
	"github.com/danielhkuo/ballotbridge/middleware"
	"github.com/danielhkuo/ballotbridge/service"
)

// NewRouter registers every endpoint. gatherer backs GET /metrics and may be
// nil, in which case the endpoint is not registered.
func NewRouter(svc *service.Service, cfg cliparse.Config, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	electionHandler := handlers.NewElectionHandler(svc)
	candidateHandler := handlers.NewCandidateHandler(svc)
	votingHandler := handlers.NewVotingHandler(svc)
	resultsHandler := handlers.NewResultsHandler(svc)

	authed := func(h middleware.IdentityHandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.WithIdentity(cfg.IdentitySecret, h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	// Elections
	mux.HandleFunc("POST /elections", authed(electionHandler.CreateElection))
	mux.HandleFunc("GET /elections", authed(electionHandler.ListElections))
	mux.HandleFunc("GET /elections/{id}", authed(electionHandler.GetElection))
	mux.HandleFunc("PATCH /elections/{id}", authed(electionHandler.UpdateElection))
	mux.HandleFunc("DELETE /elections/{id}", authed(electionHandler.DeleteElection))
	mux.HandleFunc("POST /elections/{id}/cancel", authed(electionHandler.CancelElection))

	// Allowlists ({role} is voter or candidate)
	mux.HandleFunc("GET /elections/{id}/allowlist/{role}", authed(electionHandler.ListAllowlist))
	mux.HandleFunc("POST /elections/{id}/allowlist/{role}", authed(electionHandler.AddToAllowlist))
	mux.HandleFunc("DELETE /elections/{id}/allowlist/{role}/{user}", authed(electionHandler.RemoveFromAllowlist))

	// Candidates
	mux.HandleFunc("POST /elections/{id}/candidates", authed(candidateHandler.Apply))
	mux.HandleFunc("GET /elections/{id}/candidates", authed(candidateHandler.ListCandidates))
	mux.HandleFunc("POST /candidates/{id}/decision", authed(candidateHandler.Decide))
	mux.HandleFunc("GET /me/applications", authed(candidateHandler.MyApplications))
	mux.HandleFunc("GET /admin/candidates/pending", authed(candidateHandler.ListPending))

	// Voting
	mux.HandleFunc("POST /elections/{id}/votes", authed(votingHandler.CastVote))
	mux.HandleFunc("GET /elections/{id}/my-vote", authed(votingHandler.GetMyVote))
	mux.HandleFunc("GET /me/elections", authed(votingHandler.EligibleElections))
	mux.HandleFunc("GET /elections/{id}/eligibility", authed(votingHandler.CheckEligibility))

	// Results and maintenance
	mux.HandleFunc("GET /elections/{id}/results", authed(resultsHandler.GetResults))
	mux.HandleFunc("GET /elections/{id}/turnout", authed(resultsHandler.GetTurnout))
	mux.HandleFunc("POST /admin/reconcile", authed(resultsHandler.Reconcile))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ballotbridge API v1"))
	})

	return mux
}
