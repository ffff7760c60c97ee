// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Request types

// ElectionFields carries everything an admin supplies when creating an
// election. Allowlists are optional; an empty allowlist means open.
type ElectionFields struct {
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	Positions          []string  `json:"positions"`
	MaxCandidates      *int      `json:"max_candidates,omitempty"`
	MaxVoters          *int      `json:"max_voters,omitempty"`
	EmailKeyword       string    `json:"email_keyword,omitempty"`
	VoterAllowlist     []string  `json:"voter_allowlist,omitempty"`
	CandidateAllowlist []string  `json:"candidate_allowlist,omitempty"`
}

// ElectionUpdate is a partial update. Nil fields are left unchanged; a limit
// of zero clears that limit.
type ElectionUpdate struct {
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	Positions     []string   `json:"positions,omitempty"`
	MaxCandidates *int       `json:"max_candidates,omitempty"`
	MaxVoters     *int       `json:"max_voters,omitempty"`
	EmailKeyword  *string    `json:"email_keyword,omitempty"`
}

type CandidateApplication struct {
	Position     string   `json:"position"`
	DisplayName  string   `json:"display_name"`
	Age          int      `json:"age,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	Bio          string   `json:"bio,omitempty"`
	Manifesto    string   `json:"manifesto,omitempty"`
	ImageRef     string   `json:"image_ref,omitempty"`
	DocumentRefs []string `json:"document_refs,omitempty"`
}

type DecisionRequest struct {
	Outcome CandidateStatus `json:"outcome"`
	Reason  string          `json:"reason,omitempty"`
}

type CastVoteRequest struct {
	CandidateID string `json:"candidate_id"`
}

type AllowlistRequest struct {
	UserID string `json:"user_id"`
}

// Response types

type CastVoteResponse struct {
	VoteID  string `json:"vote_id"`
	Message string `json:"message"`
}

type HasVotedResponse struct {
	ElectionID string `json:"election_id"`
	HasVoted   bool   `json:"has_voted"`
}

type AllowlistResponse struct {
	ElectionID string   `json:"election_id"`
	Role       Role     `json:"role"`
	Users      []string `json:"users"`
}

type ResultsResponse struct {
	ElectionID string       `json:"election_id"`
	Phase      Phase        `json:"phase"`
	Turnout    Turnout      `json:"turnout"`
	Results    []TallyEntry `json:"results"`
}

// EligibilityResponse answers for the caller's own role only
type EligibilityResponse struct {
	ElectionID string `json:"election_id"`
	CanVote    bool   `json:"can_vote"`
	CanApply   bool   `json:"can_apply"`
}

type ReconcileResponse struct {
	Transitions int `json:"transitions"`
}
