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

const candidateColumns = `id, election_id, user_id, position, display_name, age, phone, bio, manifesto,
	image_ref, document_refs, status, rejection_reason, vote_count, decided_by, decided_at, created_at, updated_at`

// ErrLiveApplication is returned by InsertCandidate and UpdateDecision when
// the user already holds a pending or approved application
var ErrLiveApplication = apperr.New(apperr.ErrDuplicate, "user already has a live application for this election")

func InsertCandidate(ctx context.Context, q db.Querier, c *models.Candidate) error {
	docs, err := json.Marshal(c.DocumentRefs)
	if err != nil {
		return fmt.Errorf("failed to encode document refs: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO candidates (id, election_id, user_id, position, display_name, age, phone, bio, manifesto,
			image_ref, document_refs, status, rejection_reason, vote_count, decided_by, decided_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, c.ID, c.ElectionID, c.UserID, c.Position, c.DisplayName, c.Age, c.Phone, c.Bio, c.Manifesto,
		c.ImageRef, string(docs), string(c.Status), c.RejectionReason, c.VoteCount, c.DecidedBy,
		nullMillis(c.DecidedAt), Millis(c.CreatedAt), Millis(c.UpdatedAt))
	if db.IsUniqueViolation(err) {
		return ErrLiveApplication
	}
	if err != nil {
		return fmt.Errorf("failed to insert candidate: %w", err)
	}
	return nil
}

func GetCandidate(ctx context.Context, q db.Querier, id string) (*models.Candidate, error) {
	row := q.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id)
	c, err := scanCandidate(row)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.ErrNotFound, "candidate %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate: %w", err)
	}
	return c, nil
}

// CandidateFilter narrows ListCandidates. Empty fields match everything.
type CandidateFilter struct {
	ElectionID string
	UserID     string
	Status     models.CandidateStatus
}

// ListCandidates returns matching applications, oldest first
func ListCandidates(ctx context.Context, q db.Querier, f CandidateFilter) ([]*models.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE 1 = 1`
	args := []any{}
	if f.ElectionID != "" {
		args = append(args, f.ElectionID)
		query += fmt.Sprintf(" AND election_id = $%d", len(args))
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	candidates := []*models.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate candidates: %w", err)
	}
	return candidates, nil
}

// CountLiveApplications counts pending and approved applications
func CountLiveApplications(ctx context.Context, q db.Querier, electionID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM candidates WHERE election_id = $1 AND status <> $2
	`, electionID, string(models.StatusRejected)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count applications: %w", err)
	}
	return n, nil
}

// HasLiveApplication reports whether the user has a pending or approved
// application in the election
func HasLiveApplication(ctx context.Context, q db.Querier, electionID, userID string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM candidates WHERE election_id = $1 AND user_id = $2 AND status <> $3
	`, electionID, userID, string(models.StatusRejected)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query applications: %w", err)
	}
	return n > 0, nil
}

// UpdateDecision writes the status, reason and decider of c
func UpdateDecision(ctx context.Context, q db.Querier, c *models.Candidate) error {
	result, err := q.ExecContext(ctx, `
		UPDATE candidates
		SET status = $1, rejection_reason = $2, decided_by = $3, decided_at = $4, updated_at = $5
		WHERE id = $6
	`, string(c.Status), c.RejectionReason, c.DecidedBy, nullMillis(c.DecidedAt), Millis(c.UpdatedAt), c.ID)
	if db.IsUniqueViolation(err) {
		return ErrLiveApplication
	}
	if err != nil {
		return fmt.Errorf("failed to update candidate decision: %w", err)
	}
	return requireRow(result, "candidate", c.ID)
}

// IncrementVoteCount bumps the cached per-candidate count
func IncrementVoteCount(ctx context.Context, q db.Querier, candidateID string, now time.Time) error {
	result, err := q.ExecContext(ctx, `
		UPDATE candidates SET vote_count = vote_count + 1, updated_at = $1 WHERE id = $2
	`, Millis(now), candidateID)
	if err != nil {
		return fmt.Errorf("failed to increment vote count: %w", err)
	}
	return requireRow(result, "candidate", candidateID)
}

func scanCandidate(row scanner) (*models.Candidate, error) {
	var c models.Candidate
	var docs, status string
	var decidedAt sql.NullInt64
	var created, updated int64

	err := row.Scan(&c.ID, &c.ElectionID, &c.UserID, &c.Position, &c.DisplayName, &c.Age, &c.Phone, &c.Bio,
		&c.Manifesto, &c.ImageRef, &docs, &status, &c.RejectionReason, &c.VoteCount, &c.DecidedBy,
		&decidedAt, &created, &updated)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(docs), &c.DocumentRefs); err != nil {
		return nil, fmt.Errorf("failed to decode document refs: %w", err)
	}
	if c.DocumentRefs == nil {
		c.DocumentRefs = []string{}
	}

	c.Status = models.CandidateStatus(status)
	c.DecidedAt = timePtr(decidedAt)
	c.CreatedAt = FromMillis(created)
	c.UpdatedAt = FromMillis(updated)
	return &c, nil
}
