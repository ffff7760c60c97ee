// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vimeo/go-clocks/fake"

	"github.com/danielhkuo/ballotbridge/events"
	"github.com/danielhkuo/ballotbridge/metrics"
	"github.com/danielhkuo/ballotbridge/models"
	"github.com/danielhkuo/ballotbridge/service"
	"github.com/danielhkuo/ballotbridge/testutil"
)

func newTestRouter(t *testing.T) (*http.ServeMux, *fake.Clock) {
	t.Helper()
	conn := testutil.SetupTestDB(t)
	clock := testutil.NewClock()
	reg := prometheus.NewRegistry()
	bus := events.NewBus(reg, nil)
	t.Cleanup(bus.Stop)
	svc := service.New(conn, clock, bus, metrics.New(reg), testutil.TestRetryPolicy())
	return NewRouter(svc, testutil.GetTestConfig(), reg), clock
}

func TestHealthEndpoint(t *testing.T) {
	mux, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestRootEndpoint(t *testing.T) {
	mux, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	expected := "ballotbridge API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux, _ := newTestRouter(t)

	admin := testutil.Admin("admin-1")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/admin/reconcile", nil, &admin))
	testutil.AssertStatus(t, w, http.StatusOK)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	testutil.AssertStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "ballotbridge_reconcile_runs_total 1") {
		t.Errorf("Expected reconcile counter in metrics output:\n%s", w.Body.String())
	}
}

func TestIdentityRequired(t *testing.T) {
	mux, _ := newTestRouter(t)

	t.Run("missing identity", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("GET", "/elections", nil))
		testutil.AssertStatus(t, w, http.StatusUnauthorized)
	})

	t.Run("escalated role", func(t *testing.T) {
		voter := testutil.Voter("v1", "")
		req := testutil.MakeRequest("POST", "/admin/reconcile", nil, &voter)
		req.Header.Set("X-User-Role", string(models.RoleAdmin))
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		testutil.AssertStatus(t, w, http.StatusUnauthorized)
	})
}

func TestRouteExistence(t *testing.T) {
	mux, _ := newTestRouter(t)
	admin := testutil.Admin("admin-1")

	// Every route should reach its handler. 400, 403 and 404 are valid
	// responses depending on handler logic; 405 means the route is missing.
	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/elections"},
		{"GET", "/elections"},
		{"GET", "/elections/test-id"},
		{"PATCH", "/elections/test-id"},
		{"DELETE", "/elections/test-id"},
		{"POST", "/elections/test-id/cancel"},
		{"GET", "/elections/test-id/allowlist/voter"},
		{"POST", "/elections/test-id/allowlist/voter"},
		{"DELETE", "/elections/test-id/allowlist/voter/v1"},
		{"POST", "/elections/test-id/candidates"},
		{"GET", "/elections/test-id/candidates"},
		{"POST", "/candidates/test-id/decision"},
		{"GET", "/me/applications"},
		{"GET", "/admin/candidates/pending"},
		{"POST", "/elections/test-id/votes"},
		{"GET", "/elections/test-id/my-vote"},
		{"GET", "/me/elections"},
		{"GET", "/elections/test-id/eligibility"},
		{"GET", "/elections/test-id/results"},
		{"GET", "/elections/test-id/turnout"},
		{"POST", "/admin/reconcile"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := testutil.MakeRequest(tc.method, tc.path, nil, &admin)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code == http.StatusMethodNotAllowed || w.Code == http.StatusUnauthorized {
				t.Errorf("Route %s %s returned %d, expected route handler to run", tc.method, tc.path, w.Code)
			}
			if w.Header().Get("Content-Type") != "application/json" && w.Code != http.StatusNoContent {
				t.Errorf("Route %s %s did not answer with JSON", tc.method, tc.path)
			}
		})
	}
}

func TestSpecificMethodRouting(t *testing.T) {
	mux, _ := newTestRouter(t)

	testCases := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{"POST to health endpoint", "POST", "/health", http.StatusMethodNotAllowed},
		{"PUT to election", "PUT", "/elections/test-id", http.StatusMethodNotAllowed},
		{"GET to reconcile", "GET", "/admin/reconcile", http.StatusMethodNotAllowed},
		{"unknown path", "GET", "/ballots", http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != tc.expectedStatus {
				t.Errorf("Expected %d for %s %s, got %d", tc.expectedStatus, tc.method, tc.path, w.Code)
			}
		})
	}
}

// TestVotingOverHTTP drives one election through the mux so path values
// and identity headers are exercised together
func TestVotingOverHTTP(t *testing.T) {
	mux, clock := newTestRouter(t)
	admin := testutil.Admin("admin-1")
	cand := testutil.Candidate("c1", "c1@uni.edu")
	voter := testutil.Voter("v1", "v1@uni.edu")

	do := func(method, path string, body interface{}, u models.User) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, testutil.MakeRequest(method, path, body, &u))
		return w
	}

	w := do("POST", "/elections", models.ElectionFields{
		Title:       "Dorm rep",
		Description: "Floor representative",
		StartTime:   testutil.BaseTime.Add(time.Hour),
		EndTime:     testutil.BaseTime.Add(2 * time.Hour),
		Positions:   []string{"Rep"},
	}, admin)
	testutil.AssertStatus(t, w, http.StatusCreated)
	var e models.Election
	testutil.AssertJSON(t, w, &e)

	w = do("POST", "/elections/"+e.ID+"/candidates", models.CandidateApplication{Position: "Rep", DisplayName: "Cam"}, cand)
	testutil.AssertStatus(t, w, http.StatusCreated)
	var c models.Candidate
	testutil.AssertJSON(t, w, &c)

	w = do("POST", "/candidates/"+c.ID+"/decision", models.DecisionRequest{Outcome: models.StatusApproved}, admin)
	testutil.AssertStatus(t, w, http.StatusOK)

	clock.Advance(time.Hour)

	w = do("POST", "/elections/"+e.ID+"/votes", models.CastVoteRequest{CandidateID: c.ID}, voter)
	testutil.AssertStatus(t, w, http.StatusCreated)
	w = do("POST", "/elections/"+e.ID+"/votes", models.CastVoteRequest{CandidateID: c.ID}, voter)
	testutil.AssertStatus(t, w, http.StatusConflict)

	w = do("GET", "/elections/"+e.ID+"/my-vote", nil, voter)
	testutil.AssertStatus(t, w, http.StatusOK)
	var mine models.HasVotedResponse
	testutil.AssertJSON(t, w, &mine)
	if !mine.HasVoted {
		t.Error("Expected has_voted true")
	}

	clock.Advance(time.Hour + time.Second)
	w = do("GET", "/elections/"+e.ID+"/results", nil, voter)
	testutil.AssertStatus(t, w, http.StatusOK)
	var results models.ResultsResponse
	testutil.AssertJSON(t, w, &results)
	if len(results.Results) != 1 || results.Results[0].Votes != 1 {
		t.Errorf("Unexpected results: %+v", results)
	}
}
