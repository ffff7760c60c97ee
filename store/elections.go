// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielhkuo/ballotbridge/apperr"
	"github.com/danielhkuo/ballotbridge/db"
	"github.com/danielhkuo/ballotbridge/models"
)

const electionColumns = `id, title, description, start_at, end_at, cancelled, phase, positions,
	max_candidates, max_voters, email_keyword, owner_id, created_at, updated_at`

// InsertElection stores a new election together with its allowlists.
// e.Phase is written as the cached phase.
func InsertElection(ctx context.Context, q db.Querier, e *models.Election) error {
	positions, err := json.Marshal(e.Positions)
	if err != nil {
		return fmt.Errorf("failed to encode positions: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO elections (id, title, description, start_at, end_at, cancelled, phase, positions,
			max_candidates, max_voters, email_keyword, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, e.ID, e.Title, e.Description, Millis(e.StartTime), Millis(e.EndTime), e.Cancelled, string(e.Phase),
		string(positions), nullInt(e.MaxCandidates), nullInt(e.MaxVoters), e.EmailKeyword, e.OwnerID,
		Millis(e.CreatedAt), Millis(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert election: %w", err)
	}

	for _, userID := range e.VoterAllowlist {
		if _, err := AddAllowlistEntry(ctx, q, e.ID, models.RoleVoter, userID, e.CreatedAt); err != nil {
			return err
		}
		if err := EnsureVoterRecord(ctx, q, e.ID, userID, e.CreatedAt); err != nil {
			return err
		}
	}
	for _, userID := range e.CandidateAllowlist {
		if _, err := AddAllowlistEntry(ctx, q, e.ID, models.RoleCandidate, userID, e.CreatedAt); err != nil {
			return err
		}
	}

	return nil
}

// GetElection loads an election and its allowlists. Phase holds the cached
// value; callers resolve the live phase themselves.
func GetElection(ctx context.Context, q db.Querier, id string) (*models.Election, error) {
	row := q.QueryRowContext(ctx, `SELECT `+electionColumns+` FROM elections WHERE id = $1`, id)
	e, err := scanElection(row)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.ErrNotFound, "election %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query election: %w", err)
	}

	voters, candidates, err := loadAllowlists(ctx, q, id)
	if err != nil {
		return nil, err
	}
	e.VoterAllowlist = voters
	e.CandidateAllowlist = candidates

	return e, nil
}

// ListElections loads every election, newest first
func ListElections(ctx context.Context, q db.Querier) ([]*models.Election, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+electionColumns+` FROM elections ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query elections: %w", err)
	}

	elections := []*models.Election{}
	byID := make(map[string]*models.Election)
	for rows.Next() {
		e, err := scanElection(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan election: %w", err)
		}
		elections = append(elections, e)
		byID[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate elections: %w", err)
	}
	rows.Close()

	// Second pass after the first cursor is closed; SQLite runs on one connection
	entries, err := q.QueryContext(ctx, `SELECT election_id, role, user_id FROM election_allowlist ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query allowlists: %w", err)
	}
	defer entries.Close()

	for entries.Next() {
		var electionID, role, userID string
		if err := entries.Scan(&electionID, &role, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan allowlist entry: %w", err)
		}
		e, ok := byID[electionID]
		if !ok {
			continue
		}
		if models.Role(role) == models.RoleVoter {
			e.VoterAllowlist = append(e.VoterAllowlist, userID)
		} else {
			e.CandidateAllowlist = append(e.CandidateAllowlist, userID)
		}
	}
	if err := entries.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate allowlists: %w", err)
	}

	return elections, nil
}

// UpdateElection writes the editable fields of e
func UpdateElection(ctx context.Context, q db.Querier, e *models.Election) error {
	positions, err := json.Marshal(e.Positions)
	if err != nil {
		return fmt.Errorf("failed to encode positions: %w", err)
	}

	result, err := q.ExecContext(ctx, `
		UPDATE elections
		SET title = $1, description = $2, start_at = $3, end_at = $4, phase = $5, positions = $6,
			max_candidates = $7, max_voters = $8, email_keyword = $9, updated_at = $10
		WHERE id = $11
	`, e.Title, e.Description, Millis(e.StartTime), Millis(e.EndTime), string(e.Phase), string(positions),
		nullInt(e.MaxCandidates), nullInt(e.MaxVoters), e.EmailKeyword, Millis(e.UpdatedAt), e.ID)
	if err != nil {
		return fmt.Errorf("failed to update election: %w", err)
	}
	return requireRow(result, "election", e.ID)
}

// CancelElection sets the cancellation flag and the cached phase
func CancelElection(ctx context.Context, q db.Querier, id string, now time.Time) error {
	result, err := q.ExecContext(ctx, `
		UPDATE elections SET cancelled = $1, phase = $2, updated_at = $3 WHERE id = $4
	`, true, string(models.PhaseCancelled), Millis(now), id)
	if err != nil {
		return fmt.Errorf("failed to cancel election: %w", err)
	}
	return requireRow(result, "election", id)
}

// PhaseState is the schedule and cached phase of one election
type PhaseState struct {
	ID        string
	StartTime time.Time
	EndTime   time.Time
	Cancelled bool
	Stored    models.Phase
}

// ListPhaseStates loads what reconciliation needs for every election
func ListPhaseStates(ctx context.Context, q db.Querier) ([]PhaseState, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, start_at, end_at, cancelled, phase FROM elections ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query election phases: %w", err)
	}
	defer rows.Close()

	states := []PhaseState{}
	for rows.Next() {
		var s PhaseState
		var start, end int64
		var phase string
		if err := rows.Scan(&s.ID, &start, &end, &s.Cancelled, &phase); err != nil {
			return nil, fmt.Errorf("failed to scan election phase: %w", err)
		}
		s.StartTime = FromMillis(start)
		s.EndTime = FromMillis(end)
		s.Stored = models.Phase(phase)
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate election phases: %w", err)
	}

	return states, nil
}

// CompareAndSetPhase moves the cached phase from one value to another. It
// reports false when the stored value was no longer from, so concurrent
// reconcilers never double count a transition.
func CompareAndSetPhase(ctx context.Context, q db.Querier, id string, from, to models.Phase) (bool, error) {
	result, err := q.ExecContext(ctx, `
		UPDATE elections SET phase = $1 WHERE id = $2 AND phase = $3
	`, string(to), id, string(from))
	if err != nil {
		return false, fmt.Errorf("failed to update election phase: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// LockElection takes a write lock on the election row for the rest of the
// transaction. PostgreSQL holds the row lock until commit; SQLite already
// serializes writers.
func LockElection(ctx context.Context, q db.Querier, id string) error {
	result, err := q.ExecContext(ctx, `UPDATE elections SET revision = revision + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to lock election: %w", err)
	}
	return requireRow(result, "election", id)
}

// DeleteElection removes an election and everything that belongs to it.
// Elections with votes are never deleted, so votes are not touched here.
func DeleteElection(ctx context.Context, q db.Querier, id string) error {
	for _, stmt := range []string{
		`DELETE FROM voter_records WHERE election_id = $1`,
		`DELETE FROM election_allowlist WHERE election_id = $1`,
		`DELETE FROM candidates WHERE election_id = $1`,
	} {
		if _, err := q.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to delete election data: %w", err)
		}
	}

	result, err := q.ExecContext(ctx, `DELETE FROM elections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete election: %w", err)
	}
	return requireRow(result, "election", id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanElection(row scanner) (*models.Election, error) {
	var e models.Election
	var start, end, created, updated int64
	var phase, positions string
	var maxCandidates, maxVoters sql.NullInt64

	err := row.Scan(&e.ID, &e.Title, &e.Description, &start, &end, &e.Cancelled, &phase, &positions,
		&maxCandidates, &maxVoters, &e.EmailKeyword, &e.OwnerID, &created, &updated)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(positions), &e.Positions); err != nil {
		return nil, fmt.Errorf("failed to decode positions: %w", err)
	}

	e.StartTime = FromMillis(start)
	e.EndTime = FromMillis(end)
	e.CreatedAt = FromMillis(created)
	e.UpdatedAt = FromMillis(updated)
	e.Phase = models.Phase(phase)
	e.MaxCandidates = intPtr(maxCandidates)
	e.MaxVoters = intPtr(maxVoters)
	e.VoterAllowlist = []string{}
	e.CandidateAllowlist = []string{}

	return &e, nil
}

func loadAllowlists(ctx context.Context, q db.Querier, electionID string) (voters, candidates []string, err error) {
	rows, err := q.QueryContext(ctx, `
		SELECT role, user_id FROM election_allowlist WHERE election_id = $1 ORDER BY user_id
	`, electionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query allowlists: %w", err)
	}
	defer rows.Close()

	voters, candidates = []string{}, []string{}
	for rows.Next() {
		var role, userID string
		if err := rows.Scan(&role, &userID); err != nil {
			return nil, nil, fmt.Errorf("failed to scan allowlist entry: %w", err)
		}
		if models.Role(role) == models.RoleVoter {
			voters = append(voters, userID)
		} else {
			candidates = append(candidates, userID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate allowlists: %w", err)
	}

	return voters, candidates, nil
}
