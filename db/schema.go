// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// The same DDL runs on PostgreSQL and SQLite. Timestamps are unix
// milliseconds and every value is written by the application, never by a
// column default that differs between dialects.
const schema = `
-- Elections
CREATE TABLE IF NOT EXISTS elections (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    start_at BIGINT NOT NULL,
    end_at BIGINT NOT NULL,
    cancelled BOOLEAN NOT NULL DEFAULT FALSE,
    phase TEXT NOT NULL CHECK (phase IN ('upcoming', 'active', 'completed', 'cancelled')),
    positions TEXT NOT NULL,
    max_candidates INTEGER CHECK (max_candidates > 0),
    max_voters INTEGER CHECK (max_voters > 0),
    email_keyword TEXT NOT NULL DEFAULT '',
    owner_id TEXT NOT NULL,
    revision BIGINT NOT NULL DEFAULT 0,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    CHECK (end_at > start_at)
);

CREATE INDEX IF NOT EXISTS idx_elections_owner ON elections(owner_id);

-- Allowlists, one row per member so concurrent adds never overwrite each other
CREATE TABLE IF NOT EXISTS election_allowlist (
    election_id TEXT NOT NULL REFERENCES elections(id) ON DELETE CASCADE,
    role TEXT NOT NULL CHECK (role IN ('voter', 'candidate')),
    user_id TEXT NOT NULL,
    added_at BIGINT NOT NULL,
    PRIMARY KEY (election_id, role, user_id)
);

-- Candidate applications
CREATE TABLE IF NOT EXISTS candidates (
    id TEXT PRIMARY KEY,
    election_id TEXT NOT NULL REFERENCES elections(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    position TEXT NOT NULL,
    display_name TEXT NOT NULL,
    age INTEGER NOT NULL DEFAULT 0,
    phone TEXT NOT NULL DEFAULT '',
    bio TEXT NOT NULL DEFAULT '',
    manifesto TEXT NOT NULL DEFAULT '',
    image_ref TEXT NOT NULL DEFAULT '',
    document_refs TEXT NOT NULL DEFAULT '[]',
    status TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected')),
    rejection_reason TEXT NOT NULL DEFAULT '',
    vote_count INTEGER NOT NULL DEFAULT 0,
    decided_by TEXT NOT NULL DEFAULT '',
    decided_at BIGINT,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_candidates_election ON candidates(election_id);
CREATE INDEX IF NOT EXISTS idx_candidates_user ON candidates(user_id);
CREATE INDEX IF NOT EXISTS idx_candidates_status ON candidates(status);

-- At most one live (pending or approved) application per user per election
CREATE UNIQUE INDEX IF NOT EXISTS idx_candidates_live_application
    ON candidates(election_id, user_id) WHERE status <> 'rejected';

-- Votes, exactly one per voter per election
CREATE TABLE IF NOT EXISTS votes (
    id TEXT PRIMARY KEY,
    election_id TEXT NOT NULL REFERENCES elections(id),
    candidate_id TEXT NOT NULL REFERENCES candidates(id),
    voter_id TEXT NOT NULL,
    cast_at BIGINT NOT NULL,
    UNIQUE (election_id, voter_id)
);

CREATE INDEX IF NOT EXISTS idx_votes_candidate ON votes(candidate_id);

-- Voter participation
CREATE TABLE IF NOT EXISTS voter_records (
    election_id TEXT NOT NULL REFERENCES elections(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    has_voted BOOLEAN NOT NULL DEFAULT FALSE,
    voted_at BIGINT,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    PRIMARY KEY (election_id, user_id)
);
`
