// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sort"
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

// Ledger is the only writer of votes and of the per-candidate vote counts
type Ledger struct {
	conn    *sql.DB
	clock   status.Clock
	bus     *events.Bus
	metrics *metrics.Metrics
	retry   db.RetryPolicy
}

func New(conn *sql.DB, clock status.Clock, bus *events.Bus, m *metrics.Metrics, retry db.RetryPolicy) *Ledger {
	return &Ledger{conn: conn, clock: clock, bus: bus, metrics: m, retry: retry}
}

// CastVote records one vote for candidateID by voter. Every precondition and
// every write happen inside one transaction, and the transaction as a whole
// is retried on transient failures. A retry after a commit that the caller
// never saw acknowledged fails with AlreadyVoted, never a second vote.
func (l *Ledger) CastVote(ctx context.Context, voter models.User, electionID, candidateID string) (*models.Vote, error) {
	if strings.TrimSpace(voter.ID) == "" {
		return nil, apperr.New(apperr.ErrValidation, "voter id is required")
	}

	var vote *models.Vote
	err := l.retry.Do(ctx, "cast vote", func(ctx context.Context) error {
		vote = nil
		return db.InTx(ctx, l.conn, func(tx *sql.Tx) error {
			v, err := l.castInTx(ctx, tx, voter, electionID, candidateID)
			if err != nil {
				return err
			}
			vote = v
			return nil
		})
	})
	if err != nil {
		l.metrics.VoteRejected(apperr.Kind(err))
		return nil, err
	}

	l.metrics.VoteCast()
	l.bus.Publish(events.NewEvent(events.TypeVoteRecorded, events.VoteRecorded{
		VoteID:      vote.ID,
		ElectionID:  vote.ElectionID,
		CandidateID: vote.CandidateID,
		CastAt:      vote.CastAt,
	}, vote.CastAt))
	// Never log the voter id next to the vote
	slog.Info("vote recorded", "vote_id", vote.ID, "election_id", electionID)
	return vote, nil
}

func (l *Ledger) castInTx(ctx context.Context, tx *sql.Tx, voter models.User, electionID, candidateID string) (*models.Vote, error) {
	e, err := store.GetElection(ctx, tx, electionID)
	if err != nil {
		return nil, err
	}

	now := l.clock.Now()
	if phase := status.Of(e, now); phase != models.PhaseActive {
		return nil, apperr.New(apperr.ErrPhase, "election %s is %s; voting is closed", electionID, phase)
	}

	if err := eligibility.CheckVote(e, voter); err != nil {
		return nil, err
	}

	c, err := store.GetCandidate(ctx, tx, candidateID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.New(apperr.ErrInvalidCandidate, "candidate %s does not exist", candidateID)
	}
	if err != nil {
		return nil, err
	}
	if c.ElectionID != electionID {
		return nil, apperr.New(apperr.ErrInvalidCandidate, "candidate %s is not standing in election %s", candidateID, electionID)
	}
	if c.Status != models.StatusApproved {
		return nil, apperr.New(apperr.ErrInvalidCandidate, "candidate %s is %s, not approved", candidateID, c.Status)
	}

	// Capped elections serialize on the election row so the count below
	// cannot be overtaken by a concurrent vote
	if e.MaxVoters != nil {
		if err := store.LockElection(ctx, tx, electionID); err != nil {
			return nil, err
		}
	}

	voted, err := store.HasVote(ctx, tx, electionID, voter.ID)
	if err != nil {
		return nil, err
	}
	if voted {
		return nil, apperr.New(apperr.ErrAlreadyVoted, "voter has already voted in election %s", electionID)
	}

	if e.MaxVoters != nil {
		total, err := store.CountVotes(ctx, tx, electionID)
		if err != nil {
			return nil, err
		}
		if total >= *e.MaxVoters {
			return nil, apperr.New(apperr.ErrIneligible, "election %s has reached its limit of %d voters", electionID, *e.MaxVoters)
		}
	}

	v := &models.Vote{
		ID:          uuid.NewString(),
		ElectionID:  electionID,
		CandidateID: candidateID,
		VoterID:     voter.ID,
		CastAt:      now,
	}
	// The unique (election_id, voter_id) index closes the window between
	// HasVote and this insert
	if err := store.InsertVote(ctx, tx, v); err != nil {
		return nil, err
	}
	if err := store.MarkVoted(ctx, tx, electionID, voter.ID, now); err != nil {
		return nil, err
	}
	if err := store.IncrementVoteCount(ctx, tx, candidateID, now); err != nil {
		return nil, err
	}
	return v, nil
}

// Tally counts votes per approved candidate from the vote table. Entries
// are sorted by votes descending, then candidate id ascending.
func (l *Ledger) Tally(ctx context.Context, electionID string) ([]models.TallyEntry, error) {
	var entries []models.TallyEntry
	err := l.retry.Do(ctx, "tally", func(ctx context.Context) error {
		if _, err := store.GetElection(ctx, l.conn, electionID); err != nil {
			return err
		}
		var err error
		entries, err = store.TallyRows(ctx, l.conn, electionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	total := 0
	for _, e := range entries {
		total += e.Votes
	}
	for i := range entries {
		entries[i].Percentage = percentage(entries[i].Votes, total)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Votes != b.Votes {
			return a.Votes > b.Votes
		}
		return a.CandidateID < b.CandidateID
	})
	return entries, nil
}

// percentage is votes/total*100, unrounded; zero total means zero
func percentage(votes, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(votes) / float64(total) * 100
}

// HasVoted checks the voter record first and scans the votes only when the
// voter has no record
func (l *Ledger) HasVoted(ctx context.Context, electionID, voterID string) (bool, error) {
	var voted bool
	err := l.retry.Do(ctx, "has voted", func(ctx context.Context) error {
		if _, err := store.GetElection(ctx, l.conn, electionID); err != nil {
			return err
		}
		rec, err := store.GetVoterRecord(ctx, l.conn, electionID, voterID)
		if err != nil {
			return err
		}
		if rec != nil {
			voted = rec.HasVoted
			return nil
		}
		voted, err = store.HasVote(ctx, l.conn, electionID, voterID)
		return err
	})
	return voted, err
}

// Turnout compares eligible voters with votes cast. Eligible voters are the
// voter allowlist when there is one, else max_voters when set, else the
// registered roster.
func (l *Ledger) Turnout(ctx context.Context, electionID string) (models.Turnout, error) {
	var t models.Turnout
	err := l.retry.Do(ctx, "turnout", func(ctx context.Context) error {
		e, err := store.GetElection(ctx, l.conn, electionID)
		if err != nil {
			return err
		}
		if t.TotalVotes, err = store.CountVotes(ctx, l.conn, electionID); err != nil {
			return err
		}

		switch {
		case len(e.VoterAllowlist) > 0:
			t.TotalVoters = len(e.VoterAllowlist)
		case e.MaxVoters != nil:
			t.TotalVoters = *e.MaxVoters
		default:
			if t.TotalVoters, err = store.CountVoterRecords(ctx, l.conn, electionID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Turnout{}, err
	}

	t.Pending = max(0, t.TotalVoters-t.TotalVotes)
	return t, nil
}

// CountForCandidate is the authoritative vote count for one candidate
func (l *Ledger) CountForCandidate(ctx context.Context, candidateID string) (int, error) {
	var n int
	err := l.retry.Do(ctx, "count candidate votes", func(ctx context.Context) error {
		var err error
		n, err = store.CountVotesForCandidate(ctx, l.conn, candidateID)
		return err
	})
	return n, err
}

// OnVoteRecorded runs fn for every committed vote. fn runs on its own
// goroutine and must not block for long.
func (l *Ledger) OnVoteRecorded(fn func(events.VoteRecorded)) events.SubscriberID {
	return l.bus.SubscribeFunc(events.TypeVoteRecorded, func(evt events.Event) {
		if data, ok := evt.Data.(events.VoteRecorded); ok {
			fn(data)
		}
	})
}
