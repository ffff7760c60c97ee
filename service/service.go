// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package service

import (
	"context"
	"database/sql"

	"github.com/danielhkuo/ballotbridge/apperr"
	"github.com/danielhkuo/ballotbridge/candidates"
	"github.com/danielhkuo/ballotbridge/db"
	"github.com/danielhkuo/ballotbridge/elections"
	"github.com/danielhkuo/ballotbridge/eligibility"
	"github.com/danielhkuo/ballotbridge/events"
	"github.com/danielhkuo/ballotbridge/ledger"
	"github.com/danielhkuo/ballotbridge/metrics"
	"github.com/danielhkuo/ballotbridge/models"
	"github.com/danielhkuo/ballotbridge/status"
)

// Service is the role-scoped entry point used by every transport. It checks
// the caller's declared role and delegates to the registries, which enforce
// ownership, phase and eligibility.
type Service struct {
	Elections   *elections.Registry
	Candidates  *candidates.Registry
	Ledger      *ledger.Ledger
	Eligibility *eligibility.Store
	Bus         *events.Bus
}

func New(conn *sql.DB, clock status.Clock, bus *events.Bus, m *metrics.Metrics, retry db.RetryPolicy) *Service {
	l := ledger.New(conn, clock, bus, m, retry)
	return &Service{
		Elections:   elections.NewRegistry(conn, clock, bus, m, retry),
		Candidates:  candidates.NewRegistry(conn, clock, bus, m, retry, l),
		Ledger:      l,
		Eligibility: eligibility.New(conn, clock, retry),
		Bus:         bus,
	}
}

func requireRole(u models.User, roles ...models.Role) error {
	if u.ID == "" {
		return apperr.New(apperr.ErrAuthorization, "an authenticated user is required")
	}
	for _, r := range roles {
		if u.Role == r {
			return nil
		}
	}
	return apperr.New(apperr.ErrAuthorization, "role %q may not perform this action", u.Role)
}

// Admin operations

func (s *Service) CreateElection(ctx context.Context, u models.User, f models.ElectionFields) (*models.Election, error) {
	if err := requireRole(u, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.Elections.Create(ctx, u.ID, f)
}

func (s *Service) UpdateElection(ctx context.Context, u models.User, id string, upd models.ElectionUpdate) (*models.Election, error) {
	if err := requireRole(u, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.Elections.Update(ctx, u.ID, id, upd)
}

func (s *Service) CancelElection(ctx context.Context, u models.User, id string) (*models.Election, error) {
	if err := requireRole(u, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.Elections.Cancel(ctx, u.ID, id)
}

func (s *Service) DeleteElection(ctx context.Context, u models.User, id string) error {
	if err := requireRole(u, models.RoleAdmin); err != nil {
		return err
	}
	return s.Elections.Delete(ctx, u.ID, id)
}

func (s *Service) ListAllowlist(ctx context.Context, u models.User, electionID string, role models.Role) ([]string, error) {
	if err := requireRole(u, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.Eligibility.List(ctx, electionID, role)
}

func (s *Service) AddToAllowlist(ctx context.Context, u models.User, electionID string, role models.Role, userID string) (bool, error) {
	if err := requireRole(u, models.RoleAdmin); err != nil {
		return false, err
	}
	return s.Eligibility.Add(ctx, electionID, role, userID)
}

func (s *Service) RemoveFromAllowlist(ctx context.Context, u models.User, electionID string, role models.Role, userID string) (bool, error) {
	if err := requireRole(u, models.RoleAdmin); err != nil {
		return false, err
	}
	return s.Eligibility.Remove(ctx, electionID, role, userID)
}

func (s *Service) DecideCandidate(ctx context.Context, u models.User, candidateID string, d models.DecisionRequest) (*models.Candidate, error) {
	if err := requireRole(u, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.Candidates.Decide(ctx, u.ID, candidateID, d.Outcome, d.Reason)
}

// PendingCandidates is the admin review queue, across elections unless
// electionID is set
func (s *Service) PendingCandidates(ctx context.Context, u models.User, electionID string) ([]*models.Candidate, error) {
	if err := requireRole(u, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.Candidates.ListPending(ctx, electionID)
}

func (s *Service) Turnout(ctx context.Context, u models.User, electionID string) (models.Turnout, error) {
	if err := requireRole(u, models.RoleAdmin); err != nil {
		return models.Turnout{}, err
	}
	return s.Ledger.Turnout(ctx, electionID)
}

// Reconcile is ReconcileAll on behalf of an admin
func (s *Service) Reconcile(ctx context.Context, u models.User) (int, error) {
	if err := requireRole(u, models.RoleAdmin); err != nil {
		return 0, err
	}
	return s.ReconcileAll(ctx)
}

// ReconcileAll is for the scheduler and has no caller identity
func (s *Service) ReconcileAll(ctx context.Context) (int, error) {
	return s.Elections.ReconcileAll(ctx)
}

// Shared reads

// redact clears who else is allowed in an election unless u is an admin
func redact(u models.User, list ...*models.Election) {
	if u.Role == models.RoleAdmin {
		return
	}
	for _, e := range list {
		e.VoterAllowlist = nil
		e.CandidateAllowlist = nil
	}
}

func (s *Service) ListElections(ctx context.Context, u models.User, phase models.Phase) ([]*models.Election, error) {
	if err := requireRole(u, models.RoleAdmin, models.RoleCandidate, models.RoleVoter); err != nil {
		return nil, err
	}
	list, err := s.Elections.List(ctx, elections.Filter{Phase: phase})
	if err != nil {
		return nil, err
	}
	redact(u, list...)
	return list, nil
}

func (s *Service) GetElection(ctx context.Context, u models.User, id string) (*models.Election, error) {
	if err := requireRole(u, models.RoleAdmin, models.RoleCandidate, models.RoleVoter); err != nil {
		return nil, err
	}
	e, err := s.Elections.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	redact(u, e)
	return e, nil
}

// ListCandidates shows admins every application. Everyone else sees only
// approved candidates.
func (s *Service) ListCandidates(ctx context.Context, u models.User, electionID string, st models.CandidateStatus) ([]*models.Candidate, error) {
	if err := requireRole(u, models.RoleAdmin, models.RoleCandidate, models.RoleVoter); err != nil {
		return nil, err
	}
	if u.Role != models.RoleAdmin {
		if st != "" && st != models.StatusApproved {
			return nil, apperr.New(apperr.ErrAuthorization, "only admins can list %s candidates", st)
		}
		st = models.StatusApproved
	}
	return s.Candidates.ListForElection(ctx, electionID, st)
}

// Results returns the tally with turnout. Admins may read it at any time,
// others only once the election has completed.
func (s *Service) Results(ctx context.Context, u models.User, electionID string) (*models.ResultsResponse, error) {
	if err := requireRole(u, models.RoleAdmin, models.RoleCandidate, models.RoleVoter); err != nil {
		return nil, err
	}

	e, err := s.Elections.Get(ctx, electionID)
	if err != nil {
		return nil, err
	}
	if u.Role != models.RoleAdmin && e.Phase != models.PhaseCompleted {
		return nil, apperr.New(apperr.ErrPhase, "results for election %s are available once it completes; it is %s", electionID, e.Phase)
	}

	tally, err := s.Ledger.Tally(ctx, electionID)
	if err != nil {
		return nil, err
	}
	turnout, err := s.Ledger.Turnout(ctx, electionID)
	if err != nil {
		return nil, err
	}

	return &models.ResultsResponse{
		ElectionID: electionID,
		Phase:      e.Phase,
		Turnout:    turnout,
		Results:    tally,
	}, nil
}

// CheckEligibility reports whether a voter may vote, or a candidate may
// apply, in the election right now
func (s *Service) CheckEligibility(ctx context.Context, u models.User, electionID string) (models.EligibilityResponse, error) {
	resp := models.EligibilityResponse{ElectionID: electionID}
	if err := requireRole(u, models.RoleCandidate, models.RoleVoter); err != nil {
		return resp, err
	}

	var err error
	if u.Role == models.RoleVoter {
		resp.CanVote, err = s.Eligibility.CanVote(ctx, electionID, u)
	} else {
		resp.CanApply, err = s.Eligibility.CanApplyAsCandidate(ctx, electionID, u)
	}
	return resp, err
}

// Candidate operations

func (s *Service) Apply(ctx context.Context, u models.User, electionID string, app models.CandidateApplication) (*models.Candidate, error) {
	if err := requireRole(u, models.RoleCandidate); err != nil {
		return nil, err
	}
	return s.Candidates.Apply(ctx, u, electionID, app)
}

func (s *Service) MyApplications(ctx context.Context, u models.User) ([]*models.Candidate, error) {
	if err := requireRole(u, models.RoleCandidate); err != nil {
		return nil, err
	}
	return s.Candidates.ListForUser(ctx, u.ID)
}

// Voter operations

// EligibleElections lists active elections the voter may vote in, whether
// or not they already have
func (s *Service) EligibleElections(ctx context.Context, u models.User) ([]*models.Election, error) {
	if err := requireRole(u, models.RoleVoter); err != nil {
		return nil, err
	}

	active, err := s.Elections.List(ctx, elections.Filter{Phase: models.PhaseActive})
	if err != nil {
		return nil, err
	}

	result := []*models.Election{}
	for _, e := range active {
		if eligibility.CanVote(e, u) {
			result = append(result, e)
		}
	}
	redact(u, result...)
	return result, nil
}

func (s *Service) CastVote(ctx context.Context, u models.User, electionID, candidateID string) (*models.Vote, error) {
	if err := requireRole(u, models.RoleVoter); err != nil {
		return nil, err
	}
	return s.Ledger.CastVote(ctx, u, electionID, candidateID)
}

func (s *Service) HasVoted(ctx context.Context, u models.User, electionID string) (bool, error) {
	if err := requireRole(u, models.RoleVoter); err != nil {
		return false, err
	}
	return s.Ledger.HasVoted(ctx, electionID, u.ID)
}
