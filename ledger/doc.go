// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ledger records votes and answers questions about them.

# Casting

CastVote runs one transaction that checks, in order:

 1. the election exists and is active right now (PhaseError otherwise)
 2. the voter passes the allowlist and email rules (IneligibleError)
 3. the candidate is approved and stands in this election
    (InvalidCandidateError)
 4. the voter has not voted here before (AlreadyVotedError)
 5. max_voters, when set, is not yet reached (IneligibleError)

and then writes the vote, marks the voter record and bumps the candidate's
cached count. All of it commits or none of it does. The unique index on
votes(election_id, voter_id) guarantees one vote per voter even when two
requests pass check 4 at the same moment; the loser gets AlreadyVotedError.

# Reading

Tally and CountForCandidate count the votes table itself; the cached
vote_count on candidates is for display only. Tally orders by votes
descending and breaks ties by candidate id. Percentages are rounded to two
decimals.

Committed votes are published on the event bus as events.VoteRecorded;
OnVoteRecorded is a convenience subscription for them.
*/
package ledger
