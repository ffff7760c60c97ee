// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package eligibility decides who may vote in or apply to an election.

# Rules

A voter may vote when both hold:

  - the voter allowlist is empty, or contains the voter's id
  - the email keyword is empty, or is a case-insensitive substring of the
    voter's email

Candidates follow the same two rules against the candidate allowlist, plus
max_candidates: pending and approved applications count against the limit,
rejected ones do not.

CheckVote and CheckApply return an IneligibleError naming the failed rule.
Neither looks at phase or prior votes; those belong to the callers.

# Allowlists

Store.Add and Store.Remove change one member at a time. Every member is its
own row, so concurrent edits never lose each other's changes. Adding a voter
also puts them on the roster used for turnout.
*/
package eligibility
