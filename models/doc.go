// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Domain Types

  - Election: schedule, positions, limits, allowlists and the freshly
    resolved Phase
  - Candidate: one application by a user for one position
  - Vote: one selection by one voter in one election
  - VoterRecord: per-voter participation flag
  - TallyEntry, Turnout: derived results

# Request Types

  - ElectionFields: create an election
  - ElectionUpdate: partial update while upcoming
  - CandidateApplication: apply for a position
  - DecisionRequest: approve or reject an application
  - CastVoteRequest: candidate_id
  - AllowlistRequest: user_id

# Constants

Phases:

	PhaseUpcoming  = "upcoming"
	PhaseActive    = "active"
	PhaseCompleted = "completed"
	PhaseCancelled = "cancelled"

Candidate status:

	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"

Roles:

	RoleAdmin     = "admin"
	RoleCandidate = "candidate"
	RoleVoter     = "voter"
*/
package models
