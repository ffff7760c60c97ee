// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the BallotBridge API.

# Handler Types

Each handler is a thin struct over *service.Service:

  - ElectionHandler: election lifecycle and allowlists
  - CandidateHandler: applications and admin review
  - VotingHandler: casting votes and voter self-service
  - ResultsHandler: tally, turnout and reconcile

Handlers are created via constructor functions:

	votingHandler := handlers.NewVotingHandler(svc)

Every handler method has the middleware.IdentityHandlerFunc signature and
receives the verified caller. Role checks happen in the service; handlers
only decode requests and map errors through middleware.WriteError.

# Error Responses

Failures are JSON with an error kind:

	{"error": "Conflict", "kind": "already_voted", "message": "..."}

The kind is stable and meant for client-side messaging.
*/
package handlers
