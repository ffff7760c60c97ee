// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/danielhkuo/ballotbridge/db"
	"github.com/danielhkuo/ballotbridge/models"
)

// EnsureVoterRecord registers a voter on the roster without touching an
// existing record
func EnsureVoterRecord(ctx context.Context, q db.Querier, electionID, userID string, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO voter_records (election_id, user_id, has_voted, voted_at, created_at, updated_at)
		VALUES ($1, $2, $3, NULL, $4, $5)
		ON CONFLICT (election_id, user_id) DO NOTHING
	`, electionID, userID, false, Millis(now), Millis(now))
	if err != nil {
		return fmt.Errorf("failed to create voter record: %w", err)
	}
	return nil
}

// MarkVoted creates or updates the voter's record with has_voted set
func MarkVoted(ctx context.Context, q db.Querier, electionID, userID string, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO voter_records (election_id, user_id, has_voted, voted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (election_id, user_id) DO UPDATE
		SET has_voted = excluded.has_voted, voted_at = excluded.voted_at, updated_at = excluded.updated_at
	`, electionID, userID, true, Millis(now), Millis(now), Millis(now))
	if err != nil {
		return fmt.Errorf("failed to mark voter record: %w", err)
	}
	return nil
}

// GetVoterRecord returns nil without error when there is no record
func GetVoterRecord(ctx context.Context, q db.Querier, electionID, userID string) (*models.VoterRecord, error) {
	var rec models.VoterRecord
	var votedAt sql.NullInt64
	var created int64

	err := q.QueryRowContext(ctx, `
		SELECT election_id, user_id, has_voted, voted_at, created_at
		FROM voter_records WHERE election_id = $1 AND user_id = $2
	`, electionID, userID).Scan(&rec.ElectionID, &rec.UserID, &rec.HasVoted, &votedAt, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query voter record: %w", err)
	}

	rec.VotedAt = timePtr(votedAt)
	rec.CreatedAt = FromMillis(created)
	return &rec, nil
}

// DeleteUnvotedVoterRecord drops a roster entry unless the voter already voted
func DeleteUnvotedVoterRecord(ctx context.Context, q db.Querier, electionID, userID string) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM voter_records WHERE election_id = $1 AND user_id = $2 AND has_voted = $3
	`, electionID, userID, false)
	if err != nil {
		return fmt.Errorf("failed to delete voter record: %w", err)
	}
	return nil
}

// CountVoterRecords returns the roster size
func CountVoterRecords(ctx context.Context, q db.Querier, electionID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM voter_records WHERE election_id = $1`, electionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count voter records: %w", err)
	}
	return n, nil
}
