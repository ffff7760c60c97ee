// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the ballotbridge command.

BallotBridge runs online elections end to end: admins schedule elections
and review candidate applications, eligible voters cast exactly one vote
each, and everyone reads the tally once voting closes.

# Commands

	ballotbridge serve      # HTTP API
	ballotbridge reconcile  # store recomputed phases, for cron
	ballotbridge migrate    # create the schema
	ballotbridge status     # print elections and their phase

# Configuration

Settings are layered, later sources winning: built-in defaults, a YAML
file (-c), a .env file, the environment, then flags.

Required settings:

  - DATABASE_URL (-d): PostgreSQL URL or SQLite path
  - IDENTITY_SECRET (--identity-secret): HMAC key shared with the gateway (serve only)

Optional settings:

  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - PORT (-p): Server port (default: 3318)
  - RETRY_ATTEMPTS: tries for transient storage failures (default: 3)
  - DEBUG (--debug): debug logging with source locations

# Architecture

  - status: phase resolution from the schedule
  - eligibility: who may vote or apply, and allowlist edits
  - elections, candidates, ledger: the registries
  - service: role checks over the registries
  - store, db: SQL for SQLite and PostgreSQL
  - events, metrics: in-process notifications and Prometheus counters
  - handlers, router, middleware, auth: the HTTP API
  - cliparse: configuration parsing

See package documentation for each component.
*/
package main
