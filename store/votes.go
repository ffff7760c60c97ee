// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"fmt"

	"github.com/danielhkuo/ballotbridge/apperr"
	"github.com/danielhkuo/ballotbridge/db"
	"github.com/danielhkuo/ballotbridge/models"
)

// InsertVote writes a vote. The UNIQUE (election_id, voter_id) constraint
// turns a second vote by the same voter into an AlreadyVoted error, whatever
// the interleaving of concurrent requests.
func InsertVote(ctx context.Context, q db.Querier, v *models.Vote) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO votes (id, election_id, candidate_id, voter_id, cast_at)
		VALUES ($1, $2, $3, $4, $5)
	`, v.ID, v.ElectionID, v.CandidateID, v.VoterID, Millis(v.CastAt))
	if db.IsUniqueViolation(err) {
		return apperr.New(apperr.ErrAlreadyVoted, "voter has already voted in election %s", v.ElectionID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert vote: %w", err)
	}
	return nil
}

// HasVote scans the vote table directly
func HasVote(ctx context.Context, q db.Querier, electionID, voterID string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM votes WHERE election_id = $1 AND voter_id = $2
	`, electionID, voterID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query votes: %w", err)
	}
	return n > 0, nil
}

func CountVotes(ctx context.Context, q db.Querier, electionID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes WHERE election_id = $1`, electionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return n, nil
}

func CountVotesForCandidate(ctx context.Context, q db.Querier, candidateID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes WHERE candidate_id = $1`, candidateID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count candidate votes: %w", err)
	}
	return n, nil
}

// TallyRows counts votes per approved candidate straight from the vote
// table, including candidates with zero votes. Percentages and ordering are
// left to the caller.
func TallyRows(ctx context.Context, q db.Querier, electionID string) ([]models.TallyEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT c.id, c.display_name, c.position, COUNT(v.id)
		FROM candidates c
		LEFT JOIN votes v ON v.candidate_id = c.id
		WHERE c.election_id = $1 AND c.status = $2
		GROUP BY c.id, c.display_name, c.position
	`, electionID, string(models.StatusApproved))
	if err != nil {
		return nil, fmt.Errorf("failed to query tally: %w", err)
	}
	defer rows.Close()

	entries := []models.TallyEntry{}
	for rows.Next() {
		var e models.TallyEntry
		if err := rows.Scan(&e.CandidateID, &e.DisplayName, &e.Position, &e.Votes); err != nil {
			return nil, fmt.Errorf("failed to scan tally row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tally: %w", err)
	}
	return entries, nil
}
