// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vimeo/go-clocks/fake"

	"github.com/danielhkuo/ballotbridge/auth"
	"github.com/danielhkuo/ballotbridge/cliparse"
	"github.com/danielhkuo/ballotbridge/db"
	"github.com/danielhkuo/ballotbridge/models"
	"github.com/danielhkuo/ballotbridge/status"
	"github.com/danielhkuo/ballotbridge/store"
)

// TestIdentitySecret signs identity headers in handler tests
const TestIdentitySecret = "test-identity-secret"

// BaseTime is the fake clock's starting instant. Elections created with
// default options are upcoming at BaseTime.
var BaseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// SetupTestDB creates a fresh in-memory database with the full schema
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(context.Background(), db.TypeSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(context.Background(), conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	cfg := cliparse.Defaults()
	cfg.DatabaseURL = ":memory:"
	cfg.IdentitySecret = TestIdentitySecret
	return cfg
}

// NewClock returns a fake clock at BaseTime
func NewClock() *fake.Clock {
	return fake.NewClock(BaseTime)
}

// TestRetryPolicy retries quickly so failing tests fail fast
func TestRetryPolicy() db.RetryPolicy {
	return db.RetryPolicy{Attempts: 3, MinBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func Admin(id string) models.User {
	return models.User{ID: id, Email: id + "@admin.example.com", Role: models.RoleAdmin}
}

func Voter(id, email string) models.User {
	return models.User{ID: id, Email: email, Role: models.RoleVoter}
}

func Candidate(id, email string) models.User {
	return models.User{ID: id, Email: email, Role: models.RoleCandidate}
}

// ElectionOption customizes CreateTestElection
type ElectionOption func(*models.Election)

// WithSchedule sets the voting window
func WithSchedule(start, end time.Time) ElectionOption {
	return func(e *models.Election) {
		e.StartTime = start
		e.EndTime = end
	}
}

// Active puts BaseTime inside the voting window
func Active() ElectionOption {
	return WithSchedule(BaseTime.Add(-time.Hour), BaseTime.Add(time.Hour))
}

// Completed puts BaseTime after the voting window
func Completed() ElectionOption {
	return WithSchedule(BaseTime.Add(-2*time.Hour), BaseTime.Add(-time.Hour))
}

func WithPositions(positions ...string) ElectionOption {
	return func(e *models.Election) { e.Positions = positions }
}

func WithVoterAllowlist(users ...string) ElectionOption {
	return func(e *models.Election) { e.VoterAllowlist = users }
}

func WithCandidateAllowlist(users ...string) ElectionOption {
	return func(e *models.Election) { e.CandidateAllowlist = users }
}

func WithKeyword(keyword string) ElectionOption {
	return func(e *models.Election) { e.EmailKeyword = keyword }
}

func WithMaxVoters(n int) ElectionOption {
	return func(e *models.Election) { e.MaxVoters = &n }
}

func WithMaxCandidates(n int) ElectionOption {
	return func(e *models.Election) { e.MaxCandidates = &n }
}

func WithOwner(ownerID string) ElectionOption {
	return func(e *models.Election) { e.OwnerID = ownerID }
}

// CreateTestElection inserts an election directly, bypassing validation.
// By default it is owned by "admin-1", has one position "President" and
// opens an hour after BaseTime.
func CreateTestElection(t *testing.T, conn *sql.DB, opts ...ElectionOption) *models.Election {
	t.Helper()

	e := &models.Election{
		ID:                 uuid.NewString(),
		Title:              "Test Election",
		Description:        "A test election",
		StartTime:          BaseTime.Add(time.Hour),
		EndTime:            BaseTime.Add(25 * time.Hour),
		Positions:          []string{"President"},
		VoterAllowlist:     []string{},
		CandidateAllowlist: []string{},
		OwnerID:            "admin-1",
		CreatedAt:          BaseTime,
		UpdatedAt:          BaseTime,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.Phase = status.Of(e, BaseTime)

	if err := store.InsertElection(context.Background(), conn, e); err != nil {
		t.Fatalf("Failed to create test election: %v", err)
	}
	return e
}

// CreateTestCandidate inserts an application with the given status
func CreateTestCandidate(t *testing.T, conn *sql.DB, electionID, userID, position string, st models.CandidateStatus) *models.Candidate {
	t.Helper()

	c := &models.Candidate{
		ID:           uuid.NewString(),
		ElectionID:   electionID,
		UserID:       userID,
		Position:     position,
		DisplayName:  "Candidate " + userID,
		DocumentRefs: []string{},
		Status:       st,
		CreatedAt:    BaseTime,
		UpdatedAt:    BaseTime,
	}
	if st != models.StatusPending {
		decided := BaseTime
		c.DecidedAt = &decided
		c.DecidedBy = "admin-1"
	}
	if st == models.StatusRejected {
		c.RejectionReason = "incomplete documents"
	}

	if err := store.InsertCandidate(context.Background(), conn, c); err != nil {
		t.Fatalf("Failed to create test candidate: %v", err)
	}
	return c
}

// MakeRequest creates an HTTP test request. A non-nil user is attached as
// signed identity headers.
func MakeRequest(method, path string, body interface{}, user *models.User) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	if user != nil {
		auth.SetIdentity(req, *user, TestIdentitySecret)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
