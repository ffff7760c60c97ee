// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package candidates

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/danielhkuo/ballotbridge/apperr"
	"github.com/danielhkuo/ballotbridge/db"
	"github.com/danielhkuo/ballotbridge/eligibility"
	"github.com/danielhkuo/ballotbridge/events"
	"github.com/danielhkuo/ballotbridge/metrics"
	"github.com/danielhkuo/ballotbridge/models"
	"github.com/danielhkuo/ballotbridge/status"
	"github.com/danielhkuo/ballotbridge/store"
)

const (
	maxDisplayNameLength = 120
	maxBioLength         = 2000
	maxManifestoLength   = 10000
	maxDocuments         = 10
)

// VoteCounter gives an authoritative vote count straight from the ledger
type VoteCounter interface {
	CountForCandidate(ctx context.Context, candidateID string) (int, error)
}

// Registry manages candidate applications and their review
type Registry struct {
	conn    *sql.DB
	clock   status.Clock
	bus     *events.Bus
	metrics *metrics.Metrics
	retry   db.RetryPolicy
	votes   VoteCounter
}

func NewRegistry(conn *sql.DB, clock status.Clock, bus *events.Bus, m *metrics.Metrics, retry db.RetryPolicy, votes VoteCounter) *Registry {
	return &Registry{conn: conn, clock: clock, bus: bus, metrics: m, retry: retry, votes: votes}
}

// Apply files a pending application for u. The election must be upcoming,
// the position must exist, u must pass the candidate rules and must not
// already hold a pending or approved application there.
func (r *Registry) Apply(ctx context.Context, u models.User, electionID string, app models.CandidateApplication) (*models.Candidate, error) {
	c, err := newApplication(u, electionID, app)
	if err != nil {
		return nil, err
	}

	err = r.retry.Do(ctx, "apply as candidate", func(ctx context.Context) error {
		return db.InTx(ctx, r.conn, func(tx *sql.Tx) error {
			e, err := store.GetElection(ctx, tx, electionID)
			if err != nil {
				return err
			}

			now := r.clock.Now()
			if phase := status.Of(e, now); phase != models.PhaseUpcoming {
				return apperr.New(apperr.ErrPhase, "applications are closed: election %s is %s", electionID, phase)
			}
			if !e.HasPosition(c.Position) {
				return apperr.New(apperr.ErrValidation, "election %s has no position %q", electionID, c.Position)
			}

			// Hold the election row so the candidate count stays true until commit
			if e.MaxCandidates != nil {
				if err := store.LockElection(ctx, tx, electionID); err != nil {
					return err
				}
			}
			if err := eligibility.CheckApply(ctx, tx, e, u); err != nil {
				return err
			}

			live, err := store.HasLiveApplication(ctx, tx, electionID, u.ID)
			if err != nil {
				return err
			}
			if live {
				return store.ErrLiveApplication
			}

			c.CreatedAt = now
			c.UpdatedAt = now
			return store.InsertCandidate(ctx, tx, c)
		})
	})
	if err != nil {
		return nil, err
	}

	r.metrics.ApplicationAccepted()
	slog.Info("candidate applied",
		"candidate_id", c.ID,
		"election_id", electionID,
		"user_id", u.ID,
		"position", c.Position,
	)
	return c, nil
}

func newApplication(u models.User, electionID string, app models.CandidateApplication) (*models.Candidate, error) {
	if strings.TrimSpace(u.ID) == "" {
		return nil, apperr.New(apperr.ErrValidation, "user id is required")
	}

	c := &models.Candidate{
		ID:          uuid.NewString(),
		ElectionID:  electionID,
		UserID:      u.ID,
		Position:    strings.TrimSpace(app.Position),
		DisplayName: strings.TrimSpace(app.DisplayName),
		Age:         app.Age,
		Phone:       strings.TrimSpace(app.Phone),
		Bio:         strings.TrimSpace(app.Bio),
		Manifesto:   strings.TrimSpace(app.Manifesto),
		ImageRef:    strings.TrimSpace(app.ImageRef),
		Status:      models.StatusPending,
	}

	switch {
	case c.Position == "":
		return nil, apperr.New(apperr.ErrValidation, "position is required")
	case c.DisplayName == "":
		return nil, apperr.New(apperr.ErrValidation, "display_name is required")
	case len(c.DisplayName) > maxDisplayNameLength:
		return nil, apperr.New(apperr.ErrValidation, "display_name must be at most %d characters", maxDisplayNameLength)
	case c.Age < 0:
		return nil, apperr.New(apperr.ErrValidation, "age cannot be negative")
	case len(c.Bio) > maxBioLength:
		return nil, apperr.New(apperr.ErrValidation, "bio must be at most %d characters", maxBioLength)
	case len(c.Manifesto) > maxManifestoLength:
		return nil, apperr.New(apperr.ErrValidation, "manifesto must be at most %d characters", maxManifestoLength)
	case len(app.DocumentRefs) > maxDocuments:
		return nil, apperr.New(apperr.ErrValidation, "at most %d documents are allowed", maxDocuments)
	}

	c.DocumentRefs = make([]string, 0, len(app.DocumentRefs))
	for _, ref := range app.DocumentRefs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			return nil, apperr.New(apperr.ErrValidation, "document references cannot be empty")
		}
		c.DocumentRefs = append(c.DocumentRefs, ref)
	}
	return c, nil
}

// Decide approves or rejects an application. Repeating the current decision
// returns the candidate unchanged. Rejection needs a reason, and an
// approval cannot be withdrawn once the candidate has votes.
func (r *Registry) Decide(ctx context.Context, adminID, candidateID string, outcome models.CandidateStatus, reason string) (*models.Candidate, error) {
	reason = strings.TrimSpace(reason)
	switch outcome {
	case models.StatusApproved:
		reason = ""
	case models.StatusRejected:
		if reason == "" {
			return nil, apperr.New(apperr.ErrValidation, "a reason is required when rejecting a candidate")
		}
	default:
		return nil, apperr.New(apperr.ErrValidation, "outcome must be approved or rejected, got %q", outcome)
	}

	var c *models.Candidate
	var changed bool
	err := r.retry.Do(ctx, "decide candidate", func(ctx context.Context) error {
		changed = false
		return db.InTx(ctx, r.conn, func(tx *sql.Tx) error {
			var err error
			c, err = store.GetCandidate(ctx, tx, candidateID)
			if err != nil {
				return err
			}
			if c.Status == outcome {
				return nil
			}

			if c.Status == models.StatusApproved {
				votes, err := store.CountVotesForCandidate(ctx, tx, candidateID)
				if err != nil {
					return err
				}
				if votes > 0 {
					return apperr.New(apperr.ErrPhase, "candidate %s already has %d votes and cannot be rejected", candidateID, votes)
				}
			}

			now := r.clock.Now()
			c.Status = outcome
			c.RejectionReason = reason
			c.DecidedBy = adminID
			c.DecidedAt = &now
			c.UpdatedAt = now
			if err := store.UpdateDecision(ctx, tx, c); err != nil {
				return err
			}
			changed = true
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if changed {
		r.metrics.CandidateDecided(string(outcome))
		r.bus.Publish(events.NewEvent(events.TypeCandidateDecided, events.CandidateDecided{
			CandidateID: c.ID,
			ElectionID:  c.ElectionID,
			Status:      c.Status,
		}, r.clock.Now()))
		slog.Info("candidate decided",
			"candidate_id", c.ID,
			"election_id", c.ElectionID,
			"outcome", outcome,
			"admin", adminID,
		)
	}
	return c, nil
}

func (r *Registry) Get(ctx context.Context, candidateID string) (*models.Candidate, error) {
	var c *models.Candidate
	err := r.retry.Do(ctx, "get candidate", func(ctx context.Context) error {
		var err error
		c, err = store.GetCandidate(ctx, r.conn, candidateID)
		return err
	})
	return c, err
}

// ListForElection returns an election's applications, optionally narrowed
// to one status
func (r *Registry) ListForElection(ctx context.Context, electionID string, st models.CandidateStatus) ([]*models.Candidate, error) {
	if st != "" && !st.Valid() {
		return nil, apperr.New(apperr.ErrValidation, "unknown candidate status %q", st)
	}

	var list []*models.Candidate
	err := r.retry.Do(ctx, "list candidates", func(ctx context.Context) error {
		if _, err := store.GetElection(ctx, r.conn, electionID); err != nil {
			return err
		}
		var err error
		list, err = store.ListCandidates(ctx, r.conn, store.CandidateFilter{ElectionID: electionID, Status: st})
		return err
	})
	return list, err
}

// ListPending returns applications awaiting a decision. An empty electionID
// spans every election.
func (r *Registry) ListPending(ctx context.Context, electionID string) ([]*models.Candidate, error) {
	if electionID != "" {
		return r.ListForElection(ctx, electionID, models.StatusPending)
	}

	var list []*models.Candidate
	err := r.retry.Do(ctx, "list pending candidates", func(ctx context.Context) error {
		var err error
		list, err = store.ListCandidates(ctx, r.conn, store.CandidateFilter{Status: models.StatusPending})
		return err
	})
	return list, err
}

// ListForUser returns every application userID has filed, across elections
func (r *Registry) ListForUser(ctx context.Context, userID string) ([]*models.Candidate, error) {
	var list []*models.Candidate
	err := r.retry.Do(ctx, "list user applications", func(ctx context.Context) error {
		var err error
		list, err = store.ListCandidates(ctx, r.conn, store.CandidateFilter{UserID: userID})
		return err
	})
	return list, err
}

// VoteCount asks the ledger rather than trusting the cached vote_count
func (r *Registry) VoteCount(ctx context.Context, candidateID string) (int, error) {
	if _, err := r.Get(ctx, candidateID); err != nil {
		return 0, err
	}
	return r.votes.CountForCandidate(ctx, candidateID)
}
