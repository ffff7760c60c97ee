// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the BallotBridge API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(svc, cfg, registry)

# Endpoints

Unauthenticated:

	GET /health  - Liveness
	GET /metrics - Prometheus metrics

Everything else needs the signed identity headers and answers 401
without them.

Elections:

	POST   /elections                                 - Create (admin)
	GET    /elections?phase=                          - List
	GET    /elections/{id}                            - Get
	PATCH  /elections/{id}                            - Edit while upcoming (owner)
	DELETE /elections/{id}                            - Delete (owner)
	POST   /elections/{id}/cancel                     - Cancel (owner)
	GET    /elections/{id}/allowlist/{role}           - List allowlist (admin)
	POST   /elections/{id}/allowlist/{role}           - Add to allowlist (admin)
	DELETE /elections/{id}/allowlist/{role}/{user}    - Remove from allowlist (admin)

Candidates:

	POST /elections/{id}/candidates          - Apply (candidate)
	GET  /elections/{id}/candidates?status=  - List
	POST /candidates/{id}/decision           - Approve or reject (admin)
	GET  /me/applications                    - Own applications (candidate)
	GET  /admin/candidates/pending?election= - Review queue (admin)

Voting:

	POST /elections/{id}/votes   - Cast vote (voter)
	GET  /elections/{id}/my-vote - Whether the caller voted (voter)
	GET  /me/elections           - Elections the caller may vote in (voter)
	GET  /elections/{id}/eligibility - Whether the caller may vote or apply

Results:

	GET  /elections/{id}/results - Tally and turnout
	GET  /elections/{id}/turnout - Turnout (admin)
	POST /admin/reconcile        - Store recomputed phases (admin)
*/
package router
