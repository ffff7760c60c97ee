// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vimeo/go-clocks/fake"

	"github.com/danielhkuo/ballotbridge/apperr"
	"github.com/danielhkuo/ballotbridge/events"
	"github.com/danielhkuo/ballotbridge/metrics"
	"github.com/danielhkuo/ballotbridge/models"
	"github.com/danielhkuo/ballotbridge/testutil"
)

func setup(t *testing.T) (*Service, *sql.DB, *fake.Clock) {
	t.Helper()
	conn := testutil.SetupTestDB(t)
	clock := testutil.NewClock()
	bus := events.NewBus(nil, nil)
	t.Cleanup(bus.Stop)
	svc := New(conn, clock, bus, metrics.New(prometheus.NewRegistry()), testutil.TestRetryPolicy())
	return svc, conn, clock
}

func TestRoleChecks(t *testing.T) {
	svc, conn, _ := setup(t)
	ctx := context.Background()
	e := testutil.CreateTestElection(t, conn)

	admin := testutil.Admin("admin-1")
	voter := testutil.Voter("v1", "")
	candidate := testutil.Candidate("c1", "")

	tests := []struct {
		name string
		run  func() error
	}{
		{"voter creates election", func() error { _, err := svc.CreateElection(ctx, voter, models.ElectionFields{}); return err }},
		{"candidate deletes election", func() error { return svc.DeleteElection(ctx, candidate, e.ID) }},
		{"voter edits allowlist", func() error { _, err := svc.AddToAllowlist(ctx, voter, e.ID, models.RoleVoter, "v1"); return err }},
		{"candidate decides", func() error {
			_, err := svc.DecideCandidate(ctx, candidate, "x", models.DecisionRequest{Outcome: models.StatusApproved})
			return err
		}},
		{"voter reads turnout", func() error { _, err := svc.Turnout(ctx, voter, e.ID); return err }},
		{"voter reconciles", func() error { _, err := svc.Reconcile(ctx, voter); return err }},
		{"voter applies", func() error { _, err := svc.Apply(ctx, voter, e.ID, models.CandidateApplication{}); return err }},
		{"admin votes", func() error { _, err := svc.CastVote(ctx, admin, e.ID, "x"); return err }},
		{"candidate checks vote", func() error { _, err := svc.HasVoted(ctx, candidate, e.ID); return err }},
		{"voter lists pending", func() error { _, err := svc.ListCandidates(ctx, voter, e.ID, models.StatusPending); return err }},
		{"anonymous read", func() error { _, err := svc.GetElection(ctx, models.User{}, e.ID); return err }},
		{"unknown role", func() error {
			_, err := svc.ListElections(ctx, models.User{ID: "x", Role: "auditor"}, "")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, apperr.ErrAuthorization) {
				t.Errorf("got %v, want ErrAuthorization", err)
			}
		})
	}
}

func TestElectionLifecycle(t *testing.T) {
	svc, _, clock := setup(t)
	ctx := context.Background()
	admin := testutil.Admin("admin-1")
	cand := testutil.Candidate("c1", "c1@uni.edu")
	voterA := testutil.Voter("A", "a@uni.edu")
	voterB := testutil.Voter("B", "b@uni.edu")

	e, err := svc.CreateElection(ctx, admin, models.ElectionFields{
		Title:          "Club chair",
		Description:    "Pick the next chair",
		StartTime:      testutil.BaseTime.Add(time.Hour),
		EndTime:        testutil.BaseTime.Add(3 * time.Hour),
		Positions:      []string{"Chair"},
		VoterAllowlist: []string{"A", "B"},
	})
	if err != nil {
		t.Fatalf("CreateElection() error: %v", err)
	}

	c, err := svc.Apply(ctx, cand, e.ID, models.CandidateApplication{Position: "Chair", DisplayName: "Casey"})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if _, err := svc.DecideCandidate(ctx, admin, c.ID, models.DecisionRequest{Outcome: models.StatusApproved}); err != nil {
		t.Fatal(err)
	}

	// Before the window opens
	if _, err := svc.CastVote(ctx, voterA, e.ID, c.ID); !errors.Is(err, apperr.ErrPhase) {
		t.Errorf("early vote: got %v, want ErrPhase", err)
	}

	clock.Advance(90 * time.Minute)
	if n, _ := svc.ReconcileAll(ctx); n != 1 {
		t.Errorf("ReconcileAll() = %d, want 1", n)
	}

	eligible, err := svc.EligibleElections(ctx, voterA)
	if err != nil || len(eligible) != 1 {
		t.Fatalf("EligibleElections() = %v, %v", eligible, err)
	}
	if others, _ := svc.EligibleElections(ctx, testutil.Voter("C", "c@uni.edu")); len(others) != 0 {
		t.Errorf("unlisted voter sees %d elections", len(others))
	}

	if _, err := svc.CastVote(ctx, voterA, e.ID, c.ID); err != nil {
		t.Fatalf("CastVote() error: %v", err)
	}
	voted, _ := svc.HasVoted(ctx, voterA, e.ID)
	notVoted, _ := svc.HasVoted(ctx, voterB, e.ID)
	if !voted || notVoted {
		t.Errorf("HasVoted() A=%v B=%v", voted, notVoted)
	}

	// Results stay hidden from voters while voting is open
	if _, err := svc.Results(ctx, voterB, e.ID); !errors.Is(err, apperr.ErrPhase) {
		t.Errorf("voter results while active: got %v, want ErrPhase", err)
	}
	live, err := svc.Results(ctx, admin, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if live.Turnout != (models.Turnout{TotalVoters: 2, TotalVotes: 1, Pending: 1}) {
		t.Errorf("Turnout = %+v", live.Turnout)
	}

	clock.Advance(2 * time.Hour)
	final, err := svc.Results(ctx, voterB, e.ID)
	if err != nil {
		t.Fatalf("Results() after close: %v", err)
	}
	if final.Phase != models.PhaseCompleted || len(final.Results) != 1 {
		t.Fatalf("Results() = %+v", final)
	}
	if final.Results[0].DisplayName != "Casey" || final.Results[0].Votes != 1 || final.Results[0].Percentage != 100 {
		t.Errorf("result = %+v", final.Results[0])
	}

	if err := svc.DeleteElection(ctx, admin, e.ID); !errors.Is(err, apperr.ErrPhase) {
		t.Errorf("delete with votes: got %v, want ErrPhase", err)
	}
}

func TestListCandidates_Visibility(t *testing.T) {
	svc, conn, _ := setup(t)
	ctx := context.Background()
	e := testutil.CreateTestElection(t, conn)
	testutil.CreateTestCandidate(t, conn, e.ID, "c1", "President", models.StatusApproved)
	testutil.CreateTestCandidate(t, conn, e.ID, "c2", "President", models.StatusPending)
	testutil.CreateTestCandidate(t, conn, e.ID, "c3", "President", models.StatusRejected)

	all, err := svc.ListCandidates(ctx, testutil.Admin("admin-1"), e.ID, "")
	if err != nil || len(all) != 3 {
		t.Errorf("admin sees %d, %v; want 3", len(all), err)
	}
	public, err := svc.ListCandidates(ctx, testutil.Voter("v1", ""), e.ID, "")
	if err != nil || len(public) != 1 || public[0].UserID != "c1" {
		t.Errorf("voter sees %v, %v; want only c1", public, err)
	}
}

func TestMyApplications(t *testing.T) {
	svc, conn, _ := setup(t)
	ctx := context.Background()
	e1 := testutil.CreateTestElection(t, conn)
	e2 := testutil.CreateTestElection(t, conn)
	testutil.CreateTestCandidate(t, conn, e1.ID, "c1", "President", models.StatusRejected)
	testutil.CreateTestCandidate(t, conn, e2.ID, "c1", "President", models.StatusPending)
	testutil.CreateTestCandidate(t, conn, e2.ID, "c2", "President", models.StatusPending)

	mine, err := svc.MyApplications(ctx, testutil.Candidate("c1", ""))
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 {
		t.Errorf("MyApplications() returned %d, want 2", len(mine))
	}
}

func TestAllowlistManagement(t *testing.T) {
	svc, conn, _ := setup(t)
	ctx := context.Background()
	admin := testutil.Admin("admin-1")
	e := testutil.CreateTestElection(t, conn, testutil.Active())

	for _, id := range []string{"v1", "v2", "v1"} {
		if _, err := svc.AddToAllowlist(ctx, admin, e.ID, models.RoleVoter, id); err != nil {
			t.Fatal(err)
		}
	}
	users, err := svc.ListAllowlist(ctx, admin, e.ID, models.RoleVoter)
	if err != nil || len(users) != 2 {
		t.Fatalf("ListAllowlist() = %v, %v", users, err)
	}

	c := testutil.CreateTestCandidate(t, conn, e.ID, "c1", "President", models.StatusApproved)
	if _, err := svc.CastVote(ctx, testutil.Voter("v3", ""), e.ID, c.ID); !errors.Is(err, apperr.ErrIneligible) {
		t.Errorf("unlisted voter: got %v, want ErrIneligible", err)
	}

	removed, err := svc.RemoveFromAllowlist(ctx, admin, e.ID, models.RoleVoter, "v2")
	if err != nil || !removed {
		t.Errorf("RemoveFromAllowlist() = %v, %v", removed, err)
	}
	turnout, _ := svc.Turnout(ctx, admin, e.ID)
	if turnout.TotalVoters != 1 {
		t.Errorf("TotalVoters = %d, want 1", turnout.TotalVoters)
	}
}
