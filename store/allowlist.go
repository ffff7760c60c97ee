// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/danielhkuo/ballotbridge/db"
	"github.com/danielhkuo/ballotbridge/models"
)

// AddAllowlistEntry inserts one member. It reports false if the member was
// already present; concurrent adds of different members never collide.
func AddAllowlistEntry(ctx context.Context, q db.Querier, electionID string, role models.Role, userID string, now time.Time) (bool, error) {
	result, err := q.ExecContext(ctx, `
		INSERT INTO election_allowlist (election_id, role, user_id, added_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (election_id, role, user_id) DO NOTHING
	`, electionID, string(role), userID, Millis(now))
	if err != nil {
		return false, fmt.Errorf("failed to add allowlist entry: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// RemoveAllowlistEntry deletes one member, reporting whether it existed
func RemoveAllowlistEntry(ctx context.Context, q db.Querier, electionID string, role models.Role, userID string) (bool, error) {
	result, err := q.ExecContext(ctx, `
		DELETE FROM election_allowlist WHERE election_id = $1 AND role = $2 AND user_id = $3
	`, electionID, string(role), userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove allowlist entry: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// ListAllowlist returns the members for one role, sorted
func ListAllowlist(ctx context.Context, q db.Querier, electionID string, role models.Role) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT user_id FROM election_allowlist WHERE election_id = $1 AND role = $2 ORDER BY user_id
	`, electionID, string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to query allowlist: %w", err)
	}
	defer rows.Close()

	users := []string{}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan allowlist entry: %w", err)
		}
		users = append(users, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate allowlist: %w", err)
	}
	return users, nil
}
