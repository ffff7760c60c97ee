// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package elections

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/danielhkuo/ballotbridge/apperr"
	"github.com/danielhkuo/ballotbridge/db"
	"github.com/danielhkuo/ballotbridge/events"
	"github.com/danielhkuo/ballotbridge/metrics"
	"github.com/danielhkuo/ballotbridge/models"
	"github.com/danielhkuo/ballotbridge/status"
	"github.com/danielhkuo/ballotbridge/store"
)

// Registry is the election lifecycle authority. Every read resolves the
// phase fresh from the clock; the stored phase is only a cache kept current
// by ReconcileAll.
type Registry struct {
	conn    *sql.DB
	clock   status.Clock
	bus     *events.Bus
	metrics *metrics.Metrics
	retry   db.RetryPolicy
}

func NewRegistry(conn *sql.DB, clock status.Clock, bus *events.Bus, m *metrics.Metrics, retry db.RetryPolicy) *Registry {
	return &Registry{conn: conn, clock: clock, bus: bus, metrics: m, retry: retry}
}

// Create validates fields and stores a new election owned by ownerID
func (r *Registry) Create(ctx context.Context, ownerID string, f models.ElectionFields) (*models.Election, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperr.New(apperr.ErrValidation, "owner is required")
	}

	e := &models.Election{
		ID:            uuid.NewString(),
		Title:         strings.TrimSpace(f.Title),
		Description:   strings.TrimSpace(f.Description),
		StartTime:     f.StartTime.UTC(),
		EndTime:       f.EndTime.UTC(),
		MaxCandidates: f.MaxCandidates,
		MaxVoters:     f.MaxVoters,
		EmailKeyword:  strings.TrimSpace(f.EmailKeyword),
		OwnerID:       ownerID,
	}

	var err error
	if e.Positions, err = normalizePositions(f.Positions); err != nil {
		return nil, err
	}
	if e.VoterAllowlist, err = normalizeUsers("voter_allowlist", f.VoterAllowlist); err != nil {
		return nil, err
	}
	if e.CandidateAllowlist, err = normalizeUsers("candidate_allowlist", f.CandidateAllowlist); err != nil {
		return nil, err
	}
	if err := validate(e); err != nil {
		return nil, err
	}

	now := r.clock.Now()
	e.CreatedAt = now
	e.UpdatedAt = now
	e.Phase = status.Of(e, now)

	err = r.retry.Do(ctx, "create election", func(ctx context.Context) error {
		return db.InTx(ctx, r.conn, func(tx *sql.Tx) error {
			return store.InsertElection(ctx, tx, e)
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("election created",
		"election_id", e.ID,
		"owner", ownerID,
		"phase", e.Phase,
		"positions", len(e.Positions),
	)
	return e, nil
}

// Get returns the election with its phase resolved now
func (r *Registry) Get(ctx context.Context, id string) (*models.Election, error) {
	var e *models.Election
	err := r.retry.Do(ctx, "get election", func(ctx context.Context) error {
		var err error
		e, err = store.GetElection(ctx, r.conn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.Phase = status.Of(e, r.clock.Now())
	return e, nil
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Phase   models.Phase
	OwnerID string
}

// List returns elections newest first, filtered on the freshly resolved
// phase
func (r *Registry) List(ctx context.Context, f Filter) ([]*models.Election, error) {
	if f.Phase != "" && !f.Phase.Valid() {
		return nil, apperr.New(apperr.ErrValidation, "unknown phase %q", f.Phase)
	}

	var all []*models.Election
	err := r.retry.Do(ctx, "list elections", func(ctx context.Context) error {
		var err error
		all, err = store.ListElections(ctx, r.conn)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := r.clock.Now()
	result := []*models.Election{}
	for _, e := range all {
		e.Phase = status.Of(e, now)
		if f.Phase != "" && e.Phase != f.Phase {
			continue
		}
		if f.OwnerID != "" && e.OwnerID != f.OwnerID {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

// Update applies a partial edit. Only the owner may edit, and only while the
// election is upcoming.
func (r *Registry) Update(ctx context.Context, requesterID, id string, u models.ElectionUpdate) (*models.Election, error) {
	var updated *models.Election
	err := r.retry.Do(ctx, "update election", func(ctx context.Context) error {
		return db.InTx(ctx, r.conn, func(tx *sql.Tx) error {
			e, err := store.GetElection(ctx, tx, id)
			if err != nil {
				return err
			}
			if e.OwnerID != requesterID {
				return apperr.New(apperr.ErrAuthorization, "only the owner can edit election %s", id)
			}

			now := r.clock.Now()
			if phase := status.Of(e, now); phase != models.PhaseUpcoming {
				return apperr.New(apperr.ErrPhase, "election %s is %s; only upcoming elections can be edited", id, phase)
			}

			if err := applyUpdate(e, u); err != nil {
				return err
			}
			if err := validate(e); err != nil {
				return err
			}
			if err := checkPositionsInUse(ctx, tx, e); err != nil {
				return err
			}

			e.UpdatedAt = now
			e.Phase = status.Of(e, now)
			if err := store.UpdateElection(ctx, tx, e); err != nil {
				return err
			}
			updated = e
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("election updated", "election_id", id, "phase", updated.Phase)
	return updated, nil
}

// Cancel is the only manual phase transition. Cancelling twice is a no-op;
// a completed election cannot be cancelled.
func (r *Registry) Cancel(ctx context.Context, requesterID, id string) (*models.Election, error) {
	var e *models.Election
	var from models.Phase

	err := r.retry.Do(ctx, "cancel election", func(ctx context.Context) error {
		return db.InTx(ctx, r.conn, func(tx *sql.Tx) error {
			var err error
			e, err = store.GetElection(ctx, tx, id)
			if err != nil {
				return err
			}
			if e.OwnerID != requesterID {
				return apperr.New(apperr.ErrAuthorization, "only the owner can cancel election %s", id)
			}

			now := r.clock.Now()
			from = status.Of(e, now)
			switch from {
			case models.PhaseCancelled:
				return nil
			case models.PhaseCompleted:
				return apperr.New(apperr.ErrPhase, "election %s has already completed", id)
			}

			e.Cancelled = true
			e.UpdatedAt = now
			return store.CancelElection(ctx, tx, id, now)
		})
	})
	if err != nil {
		return nil, err
	}

	e.Phase = models.PhaseCancelled
	if from != models.PhaseCancelled {
		slog.Info("election cancelled", "election_id", id, "from", from)
		r.metrics.PhaseTransition(string(models.PhaseCancelled))
		r.bus.Publish(events.NewEvent(events.TypePhaseChanged, events.PhaseChanged{
			ElectionID: id,
			From:       from,
			To:         models.PhaseCancelled,
		}, r.clock.Now()))
	}
	return e, nil
}

// Delete removes an election that has no votes. Only the owner may delete.
func (r *Registry) Delete(ctx context.Context, requesterID, id string) error {
	err := r.retry.Do(ctx, "delete election", func(ctx context.Context) error {
		return db.InTx(ctx, r.conn, func(tx *sql.Tx) error {
			e, err := store.GetElection(ctx, tx, id)
			if err != nil {
				return err
			}
			if e.OwnerID != requesterID {
				return apperr.New(apperr.ErrAuthorization, "only the owner can delete election %s", id)
			}

			votes, err := store.CountVotes(ctx, tx, id)
			if err != nil {
				return err
			}
			if votes > 0 {
				return apperr.New(apperr.ErrPhase, "election %s has %d recorded votes; cancel it instead", id, votes)
			}

			return store.DeleteElection(ctx, tx, id)
		})
	})
	if err != nil {
		return err
	}

	slog.Info("election deleted", "election_id", id, "requester", requesterID)
	return nil
}

// ReconcileAll brings every stored phase in line with the clock and returns
// the number of elections that changed. Running it again immediately
// changes nothing. An external scheduler decides how often it runs.
func (r *Registry) ReconcileAll(ctx context.Context) (int, error) {
	var states []store.PhaseState
	err := r.retry.Do(ctx, "list election phases", func(ctx context.Context) error {
		var err error
		states, err = store.ListPhaseStates(ctx, r.conn)
		return err
	})
	if err != nil {
		return 0, err
	}

	now := r.clock.Now()
	changed := 0
	for _, s := range states {
		want := status.Resolve(now, s.StartTime, s.EndTime, s.Cancelled)
		if want == s.Stored {
			continue
		}

		var ok bool
		err := r.retry.Do(ctx, "reconcile election phase", func(ctx context.Context) error {
			var err error
			ok, err = store.CompareAndSetPhase(ctx, r.conn, s.ID, s.Stored, want)
			return err
		})
		if err != nil {
			return changed, err
		}
		if !ok {
			// Another reconciler got there first
			continue
		}

		changed++
		slog.Info("election phase changed", "election_id", s.ID, "from", s.Stored, "to", want)
		r.metrics.PhaseTransition(string(want))
		r.bus.Publish(events.NewEvent(events.TypePhaseChanged, events.PhaseChanged{
			ElectionID: s.ID,
			From:       s.Stored,
			To:         want,
		}, now))
	}

	r.metrics.ReconcileRun()
	slog.Info("reconcile complete", "elections", len(states), "transitions", changed)
	return changed, nil
}
