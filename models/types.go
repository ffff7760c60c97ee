// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Phase is the lifecycle phase of an election
type Phase string

const (
	PhaseUpcoming  Phase = "upcoming"
	PhaseActive    Phase = "active"
	PhaseCompleted Phase = "completed"
	PhaseCancelled Phase = "cancelled"
)

// Valid reports whether p is one of the four known phases
func (p Phase) Valid() bool {
	switch p {
	case PhaseUpcoming, PhaseActive, PhaseCompleted, PhaseCancelled:
		return true
	}
	return false
}

// Candidate application status constants
type CandidateStatus string

const (
	StatusPending  CandidateStatus = "pending"
	StatusApproved CandidateStatus = "approved"
	StatusRejected CandidateStatus = "rejected"
)

func (s CandidateStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Role is supplied by the identity provider with every request
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleCandidate Role = "candidate"
	RoleVoter     Role = "voter"
)

// User is an authenticated caller. The core never authenticates; it trusts
// whatever the identity provider hands it.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Domain types

type Election struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Phase       Phase     `json:"phase"`
	Cancelled   bool      `json:"cancelled"`
	Positions   []string  `json:"positions"`

	MaxCandidates *int   `json:"max_candidates,omitempty"`
	MaxVoters     *int   `json:"max_voters,omitempty"`
	EmailKeyword  string `json:"email_keyword,omitempty"`

	// Only admins see allowlists; they are cleared for everyone else
	VoterAllowlist     []string `json:"voter_allowlist,omitempty"`
	CandidateAllowlist []string `json:"candidate_allowlist,omitempty"`

	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPosition reports whether position is one of the election's positions
func (e *Election) HasPosition(position string) bool {
	for _, p := range e.Positions {
		if p == position {
			return true
		}
	}
	return false
}

type Candidate struct {
	ID              string          `json:"id"`
	ElectionID      string          `json:"election_id"`
	UserID          string          `json:"user_id"`
	Position        string          `json:"position"`
	DisplayName     string          `json:"display_name"`
	Age             int             `json:"age,omitempty"`
	Phone           string          `json:"phone,omitempty"`
	Bio             string          `json:"bio,omitempty"`
	Manifesto       string          `json:"manifesto,omitempty"`
	ImageRef        string          `json:"image_ref,omitempty"`
	DocumentRefs    []string        `json:"document_refs"`
	Status          CandidateStatus `json:"status"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	VoteCount       int             `json:"vote_count"`
	DecidedBy       string          `json:"decided_by,omitempty"`
	DecidedAt       *time.Time      `json:"decided_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type Vote struct {
	ID          string    `json:"id"`
	ElectionID  string    `json:"election_id"`
	CandidateID string    `json:"candidate_id"`
	VoterID     string    `json:"-"` // Never expose in JSON
	CastAt      time.Time `json:"cast_at"`
}

type VoterRecord struct {
	ElectionID string     `json:"election_id"`
	UserID     string     `json:"user_id"`
	HasVoted   bool       `json:"has_voted"`
	VotedAt    *time.Time `json:"voted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Result types

type TallyEntry struct {
	CandidateID string  `json:"candidate_id"`
	DisplayName string  `json:"display_name"`
	Position    string  `json:"position"`
	Votes       int     `json:"votes"`
	Percentage  float64 `json:"percentage"`
}

type Turnout struct {
	TotalVoters int `json:"total_voters"`
	TotalVotes  int `json:"total_votes"`
	Pending     int `json:"pending"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}
