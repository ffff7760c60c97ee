// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package elections owns the election lifecycle: create, read, edit, cancel,
delete and phase reconciliation.

Phase is computed from the clock on every read, so a caller never sees a
phase older than the moment of its call. The phase column in the database
is a cache for external readers. ReconcileAll rewrites it with a
compare-and-set per election and is safe to run from several processes at
once; `ballotbridge reconcile` runs it once and is meant to be scheduled by
cron or similar.

Only the owning admin may edit, cancel or delete an election. Editing is
limited to upcoming elections, and an election that has recorded votes
cannot be deleted, only cancelled.
*/
package elections
