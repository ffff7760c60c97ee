// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package eligibility

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/danielhkuo/ballotbridge/apperr"
	"github.com/danielhkuo/ballotbridge/db"
	"github.com/danielhkuo/ballotbridge/models"
	"github.com/danielhkuo/ballotbridge/status"
	"github.com/danielhkuo/ballotbridge/store"
)

// CheckVote returns an IneligibleError explaining why u may not vote in e,
// or nil. It ignores phase and prior votes.
func CheckVote(e *models.Election, u models.User) error {
	if len(e.VoterAllowlist) > 0 && !contains(e.VoterAllowlist, u.ID) {
		return apperr.New(apperr.ErrIneligible, "user %s is not on the voter list for election %s", u.ID, e.ID)
	}
	if !MatchesKeyword(e.EmailKeyword, u.Email) {
		return apperr.New(apperr.ErrIneligible, "email address does not match the election's required format")
	}
	return nil
}

// CanVote reports whether u passes the allowlist and email rules of e
func CanVote(e *models.Election, u models.User) bool {
	return CheckVote(e, u) == nil
}

// CheckApply is CheckVote's counterpart for candidates. It also enforces
// max_candidates against live applications, so callers that need the count
// to stay true until commit must hold the election lock.
func CheckApply(ctx context.Context, q db.Querier, e *models.Election, u models.User) error {
	if len(e.CandidateAllowlist) > 0 && !contains(e.CandidateAllowlist, u.ID) {
		return apperr.New(apperr.ErrIneligible, "user %s is not on the candidate list for election %s", u.ID, e.ID)
	}
	if !MatchesKeyword(e.EmailKeyword, u.Email) {
		return apperr.New(apperr.ErrIneligible, "email address does not match the election's required format")
	}
	if e.MaxCandidates != nil {
		n, err := store.CountLiveApplications(ctx, q, e.ID)
		if err != nil {
			return err
		}
		if n >= *e.MaxCandidates {
			return apperr.New(apperr.ErrIneligible, "election %s has reached its candidate limit of %d", e.ID, *e.MaxCandidates)
		}
	}
	return nil
}

// MatchesKeyword is a case-insensitive substring test; an empty keyword
// matches every address.
func MatchesKeyword(keyword, email string) bool {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return true
	}
	return strings.Contains(strings.ToLower(email), strings.ToLower(keyword))
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Store answers eligibility questions and manages allowlist membership
type Store struct {
	conn  *sql.DB
	clock status.Clock
	retry db.RetryPolicy
}

func New(conn *sql.DB, clock status.Clock, retry db.RetryPolicy) *Store {
	return &Store{conn: conn, clock: clock, retry: retry}
}

func (s *Store) CanVote(ctx context.Context, electionID string, u models.User) (bool, error) {
	e, err := s.load(ctx, electionID)
	if err != nil {
		return false, err
	}
	return CanVote(e, u), nil
}

func (s *Store) CanApplyAsCandidate(ctx context.Context, electionID string, u models.User) (bool, error) {
	var ok bool
	err := s.retry.Do(ctx, "check candidate eligibility", func(ctx context.Context) error {
		e, err := store.GetElection(ctx, s.conn, electionID)
		if err != nil {
			return err
		}
		checkErr := CheckApply(ctx, s.conn, e, u)
		if checkErr != nil && !errors.Is(checkErr, apperr.ErrIneligible) {
			return checkErr
		}
		ok = checkErr == nil
		return nil
	})
	return ok, err
}

// Add puts userID on the election's allowlist for role. Adding a voter also
// registers them on the roster. It reports false if they were already listed.
func (s *Store) Add(ctx context.Context, electionID string, role models.Role, userID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	if err := validateEntry(role, userID); err != nil {
		return false, err
	}

	var added bool
	err := s.retry.Do(ctx, "add allowlist entry", func(ctx context.Context) error {
		return db.InTx(ctx, s.conn, func(tx *sql.Tx) error {
			if _, err := store.GetElection(ctx, tx, electionID); err != nil {
				return err
			}
			now := s.clock.Now()
			var err error
			added, err = store.AddAllowlistEntry(ctx, tx, electionID, role, userID, now)
			if err != nil {
				return err
			}
			if role == models.RoleVoter {
				return store.EnsureVoterRecord(ctx, tx, electionID, userID, now)
			}
			return nil
		})
	})
	if err != nil {
		return false, err
	}

	if added {
		slog.Info("allowlist entry added", "election_id", electionID, "role", role, "user_id", userID)
	}
	return added, nil
}

// Remove takes userID off the allowlist for role. A voter who has not voted
// also leaves the roster.
func (s *Store) Remove(ctx context.Context, electionID string, role models.Role, userID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	if err := validateEntry(role, userID); err != nil {
		return false, err
	}

	var removed bool
	err := s.retry.Do(ctx, "remove allowlist entry", func(ctx context.Context) error {
		return db.InTx(ctx, s.conn, func(tx *sql.Tx) error {
			if _, err := store.GetElection(ctx, tx, electionID); err != nil {
				return err
			}
			var err error
			removed, err = store.RemoveAllowlistEntry(ctx, tx, electionID, role, userID)
			if err != nil {
				return err
			}
			if role == models.RoleVoter {
				return store.DeleteUnvotedVoterRecord(ctx, tx, electionID, userID)
			}
			return nil
		})
	})
	if err != nil {
		return false, err
	}

	if removed {
		slog.Info("allowlist entry removed", "election_id", electionID, "role", role, "user_id", userID)
	}
	return removed, nil
}

// List returns the allowlist for role
func (s *Store) List(ctx context.Context, electionID string, role models.Role) ([]string, error) {
	if err := validateEntry(role, "-"); err != nil {
		return nil, err
	}
	e, err := s.load(ctx, electionID)
	if err != nil {
		return nil, err
	}
	if role == models.RoleVoter {
		return e.VoterAllowlist, nil
	}
	return e.CandidateAllowlist, nil
}

func (s *Store) load(ctx context.Context, electionID string) (*models.Election, error) {
	var e *models.Election
	err := s.retry.Do(ctx, "load election", func(ctx context.Context) error {
		var err error
		e, err = store.GetElection(ctx, s.conn, electionID)
		return err
	})
	return e, err
}

func validateEntry(role models.Role, userID string) error {
	if role != models.RoleVoter && role != models.RoleCandidate {
		return apperr.New(apperr.ErrValidation, "allowlist role must be voter or candidate, got %q", role)
	}
	if userID == "" {
		return apperr.New(apperr.ErrValidation, "user_id is required")
	}
	return nil
}
