// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles connections, schema creation, transactions and retries.

# Connecting

Open accepts "postgres" (lib/pq) or "sqlite" (modernc.org/sqlite):

	conn, err := db.Open(ctx, db.TypePostgres, cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}

SQLite connections are capped at one so that writers serialize in the pool.

# Schema Creation

CreateSchema initializes all required tables. Safe to call multiple times -
uses IF NOT EXISTS for all tables and indexes. The DDL is shared by both
dialects: timestamps are BIGINT unix milliseconds and nothing relies on
dialect-specific defaults.

# Tables

  - elections: schedule, positions, limits, cached phase
  - election_allowlist: one row per (election, role, user)
  - candidates: applications, with a partial unique index allowing one live
    application per user per election
  - votes: UNIQUE (election_id, voter_id) is the exactly-once guarantee
  - voter_records: per-voter has_voted flag

# Errors

IsUniqueViolation and IsTransient classify driver errors from both drivers.
RetryPolicy.Do retries transient failures with bounded exponential backoff
(go-retry) and sleeps on an injectable clock (go-clocks).
*/
package db
