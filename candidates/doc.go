// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package candidates handles candidate applications and their review.

An application starts pending and an admin approves or rejects it.
Rejection needs a reason. A user holds at most one pending or approved
application per election; after a rejection they may apply again. An
approval cannot be withdrawn once the candidate has received votes.

Vote counts shown on a candidate are a cache maintained by the ledger.
VoteCount asks the ledger directly.
*/
package candidates
