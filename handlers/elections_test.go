// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
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

func newTestService(t *testing.T) (*service.Service, *sql.DB, *fake.Clock) {
	t.Helper()
	conn := testutil.SetupTestDB(t)
	clock := testutil.NewClock()
	bus := events.NewBus(nil, nil)
	t.Cleanup(bus.Stop)
	svc := service.New(conn, clock, bus, metrics.New(prometheus.NewRegistry()), testutil.TestRetryPolicy())
	return svc, conn, clock
}

func TestCreateElection(t *testing.T) {
	svc, _, _ := newTestService(t)
	handler := NewElectionHandler(svc)
	admin := testutil.Admin("admin-1")

	valid := models.ElectionFields{
		Title:       "Student council",
		Description: "Annual council election",
		StartTime:   testutil.BaseTime.Add(time.Hour),
		EndTime:     testutil.BaseTime.Add(48 * time.Hour),
		Positions:   []string{"President", "Treasurer"},
	}

	tests := []struct {
		name           string
		user           models.User
		body           interface{}
		expectedStatus int
		checkResponse  func(t *testing.T, w *httptest.ResponseRecorder)
	}{
		{
			name:           "valid election",
			user:           admin,
			body:           valid,
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				var e models.Election
				testutil.AssertJSON(t, w, &e)
				if e.ID == "" {
					t.Error("Expected election id")
				}
				if e.Phase != models.PhaseUpcoming {
					t.Errorf("Expected phase upcoming, got %s", e.Phase)
				}
				if e.OwnerID != admin.ID {
					t.Errorf("Expected owner %s, got %s", admin.ID, e.OwnerID)
				}
			},
		},
		{
			name: "end before start",
			user: admin,
			body: models.ElectionFields{
				Title:       "Backwards",
				Description: "d",
				StartTime:   testutil.BaseTime.Add(2 * time.Hour),
				EndTime:     testutil.BaseTime.Add(time.Hour),
				Positions:   []string{"President"},
			},
			expectedStatus: http.StatusBadRequest,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp models.ErrorResponse
				testutil.AssertJSON(t, w, &resp)
				if resp.Kind != "validation" {
					t.Errorf("Expected kind validation, got %s", resp.Kind)
				}
			},
		},
		{
			name:           "invalid JSON",
			user:           admin,
			body:           "not-an-object",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "voter forbidden",
			user:           testutil.Voter("v1", "v1@uni.edu"),
			body:           valid,
			expectedStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("POST", "/elections", tt.body, &tt.user)
			w := httptest.NewRecorder()

			handler.CreateElection(w, req, tt.user)

			testutil.AssertStatus(t, w, tt.expectedStatus)
			if tt.checkResponse != nil {
				tt.checkResponse(t, w)
			}
		})
	}
}

func TestListElections(t *testing.T) {
	svc, conn, _ := newTestService(t)
	handler := NewElectionHandler(svc)
	voter := testutil.Voter("v1", "v1@uni.edu")

	testutil.CreateTestElection(t, conn)
	testutil.CreateTestElection(t, conn, testutil.Active())
	testutil.CreateTestElection(t, conn, testutil.Completed())

	tests := []struct {
		query          string
		expectedStatus int
		expectedCount  int
	}{
		{"", http.StatusOK, 3},
		{"?phase=active", http.StatusOK, 1},
		{"?phase=upcoming", http.StatusOK, 1},
		{"?phase=cancelled", http.StatusOK, 0},
		{"?phase=later", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run("query"+tt.query, func(t *testing.T) {
			req := testutil.MakeRequest("GET", "/elections"+tt.query, nil, &voter)
			w := httptest.NewRecorder()

			handler.ListElections(w, req, voter)

			testutil.AssertStatus(t, w, tt.expectedStatus)
			if tt.expectedStatus != http.StatusOK {
				return
			}
			var list []models.Election
			testutil.AssertJSON(t, w, &list)
			if len(list) != tt.expectedCount {
				t.Errorf("Expected %d elections, got %d", tt.expectedCount, len(list))
			}
		})
	}
}

func TestGetElection(t *testing.T) {
	svc, conn, clock := newTestService(t)
	handler := NewElectionHandler(svc)
	voter := testutil.Voter("v1", "")
	e := testutil.CreateTestElection(t, conn)

	t.Run("phase is computed on read", func(t *testing.T) {
		clock.Advance(2 * time.Hour)
		defer clock.SetClock(testutil.BaseTime)

		req := testutil.MakeRequest("GET", "/elections/"+e.ID, nil, &voter)
		req.SetPathValue("id", e.ID)
		w := httptest.NewRecorder()

		handler.GetElection(w, req, voter)

		testutil.AssertStatus(t, w, http.StatusOK)
		var got models.Election
		testutil.AssertJSON(t, w, &got)
		if got.Phase != models.PhaseActive {
			t.Errorf("Expected phase active, got %s", got.Phase)
		}
	})

	t.Run("not found", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/elections/missing", nil, &voter)
		req.SetPathValue("id", "missing")
		w := httptest.NewRecorder()

		handler.GetElection(w, req, voter)

		testutil.AssertStatus(t, w, http.StatusNotFound)
	})
}

func TestUpdateElection(t *testing.T) {
	svc, conn, _ := newTestService(t)
	handler := NewElectionHandler(svc)
	owner := testutil.Admin("admin-1")
	other := testutil.Admin("admin-2")

	upcoming := testutil.CreateTestElection(t, conn)
	active := testutil.CreateTestElection(t, conn, testutil.Active())
	title := "Renamed"

	tests := []struct {
		name           string
		user           models.User
		electionID     string
		expectedStatus int
	}{
		{"owner edits upcoming", owner, upcoming.ID, http.StatusOK},
		{"another admin", other, upcoming.ID, http.StatusForbidden},
		{"active election", owner, active.ID, http.StatusConflict},
		{"missing election", owner, "missing", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("PATCH", "/elections/"+tt.electionID, models.ElectionUpdate{Title: &title}, &tt.user)
			req.SetPathValue("id", tt.electionID)
			w := httptest.NewRecorder()

			handler.UpdateElection(w, req, tt.user)

			testutil.AssertStatus(t, w, tt.expectedStatus)
			if tt.expectedStatus == http.StatusOK {
				var e models.Election
				testutil.AssertJSON(t, w, &e)
				if e.Title != title {
					t.Errorf("Expected title %s, got %s", title, e.Title)
				}
			}
		})
	}
}

func TestCancelAndDeleteElection(t *testing.T) {
	svc, conn, _ := newTestService(t)
	handler := NewElectionHandler(svc)
	owner := testutil.Admin("admin-1")
	e := testutil.CreateTestElection(t, conn, testutil.Active())

	req := testutil.MakeRequest("POST", "/elections/"+e.ID+"/cancel", nil, &owner)
	req.SetPathValue("id", e.ID)
	w := httptest.NewRecorder()
	handler.CancelElection(w, req, owner)

	testutil.AssertStatus(t, w, http.StatusOK)
	var cancelled models.Election
	testutil.AssertJSON(t, w, &cancelled)
	if cancelled.Phase != models.PhaseCancelled {
		t.Errorf("Expected phase cancelled, got %s", cancelled.Phase)
	}

	req = testutil.MakeRequest("DELETE", "/elections/"+e.ID, nil, &owner)
	req.SetPathValue("id", e.ID)
	w = httptest.NewRecorder()
	handler.DeleteElection(w, req, owner)
	testutil.AssertStatus(t, w, http.StatusNoContent)

	req = testutil.MakeRequest("GET", "/elections/"+e.ID, nil, &owner)
	req.SetPathValue("id", e.ID)
	w = httptest.NewRecorder()
	handler.GetElection(w, req, owner)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestAllowlistEndpoints(t *testing.T) {
	svc, conn, _ := newTestService(t)
	handler := NewElectionHandler(svc)
	admin := testutil.Admin("admin-1")
	e := testutil.CreateTestElection(t, conn)

	add := func(userID string) *httptest.ResponseRecorder {
		req := testutil.MakeRequest("POST", "/elections/"+e.ID+"/allowlist/voter", models.AllowlistRequest{UserID: userID}, &admin)
		req.SetPathValue("id", e.ID)
		req.SetPathValue("role", "voter")
		w := httptest.NewRecorder()
		handler.AddToAllowlist(w, req, admin)
		return w
	}

	testutil.AssertStatus(t, add("v1"), http.StatusCreated)
	testutil.AssertStatus(t, add("v2"), http.StatusCreated)

	w := add("v1")
	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.AllowlistResponse
	testutil.AssertJSON(t, w, &resp)
	if len(resp.Users) != 2 {
		t.Errorf("Expected 2 users, got %v", resp.Users)
	}

	t.Run("unknown role", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/elections/"+e.ID+"/allowlist/admin", nil, &admin)
		req.SetPathValue("id", e.ID)
		req.SetPathValue("role", "admin")
		w := httptest.NewRecorder()
		handler.ListAllowlist(w, req, admin)
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})

	t.Run("remove", func(t *testing.T) {
		req := testutil.MakeRequest("DELETE", "/elections/"+e.ID+"/allowlist/voter/v2", nil, &admin)
		req.SetPathValue("id", e.ID)
		req.SetPathValue("role", "voter")
		req.SetPathValue("user", "v2")
		w := httptest.NewRecorder()
		handler.RemoveFromAllowlist(w, req, admin)
		testutil.AssertStatus(t, w, http.StatusNoContent)

		req = testutil.MakeRequest("GET", "/elections/"+e.ID+"/allowlist/voter", nil, &admin)
		req.SetPathValue("id", e.ID)
		req.SetPathValue("role", "voter")
		w = httptest.NewRecorder()
		handler.ListAllowlist(w, req, admin)

		testutil.AssertStatus(t, w, http.StatusOK)
		var resp models.AllowlistResponse
		testutil.AssertJSON(t, w, &resp)
		if len(resp.Users) != 1 || resp.Users[0] != "v1" {
			t.Errorf("Expected [v1], got %v", resp.Users)
		}
	})
}

func TestAllowlistsHiddenFromNonAdmins(t *testing.T) {
	svc, conn, _ := newTestService(t)
	electionHandler := NewElectionHandler(svc)
	votingHandler := NewVotingHandler(svc)
	e := testutil.CreateTestElection(t, conn, testutil.Active(),
		testutil.WithVoterAllowlist("member-a", "member-b"),
		testutil.WithCandidateAllowlist("runner-a"))

	admin := testutil.Admin("admin-1")
	voter := testutil.Voter("member-a", "")

	tests := []struct {
		name   string
		user   models.User
		path   string
		call   func(w http.ResponseWriter, r *http.Request, u models.User)
		leaked bool
	}{
		{"voter gets election", voter, "/elections/" + e.ID, electionHandler.GetElection, false},
		{"voter lists elections", voter, "/elections", electionHandler.ListElections, false},
		{"voter lists eligible elections", voter, "/me/elections", votingHandler.EligibleElections, false},
		{"candidate gets election", testutil.Candidate("runner-a", ""), "/elections/" + e.ID, electionHandler.GetElection, false},
		{"admin gets election", admin, "/elections/" + e.ID, electionHandler.GetElection, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("GET", tt.path, nil, &tt.user)
			req.SetPathValue("id", e.ID)
			w := httptest.NewRecorder()

			tt.call(w, req, tt.user)

			testutil.AssertStatus(t, w, http.StatusOK)
			body := w.Body.String()
			if !strings.Contains(body, e.ID) {
				t.Fatalf("Expected election %s in response: %s", e.ID, body)
			}
			for _, id := range []string{"member-b", "runner-a"} {
				if got := strings.Contains(body, id); got != tt.leaked {
					t.Errorf("Allowlisted id %s in response = %v, want %v", id, got, tt.leaked)
				}
			}
		})
	}
}
