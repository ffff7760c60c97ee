// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := Open(context.Background(), TypeSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := CreateSchema(context.Background(), conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return conn
}

func TestCreateSchema_Idempotent(t *testing.T) {
	conn := openTestDB(t)

	if err := CreateSchema(context.Background(), conn); err != nil {
		t.Fatalf("Second CreateSchema failed: %v", err)
	}
}

func TestOpen_UnsupportedType(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "whatever")
	if err == nil {
		t.Fatal("Expected error for unsupported database type")
	}
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	insertElection := `
		INSERT INTO elections (id, title, start_at, end_at, phase, positions, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := conn.ExecContext(ctx, insertElection, "e1", "Board", 1000, 2000, "upcoming", `["Chair"]`, "admin", 1, 1); err != nil {
		t.Fatalf("Failed to insert election: %v", err)
	}

	_, err := conn.ExecContext(ctx, insertElection, "e1", "Board", 1000, 2000, "upcoming", `["Chair"]`, "admin", 1, 1)
	if err == nil {
		t.Fatal("Expected primary key violation")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("Expected IsUniqueViolation for %v", err)
	}

	// A CHECK failure is a constraint error but not a uniqueness one
	_, err = conn.ExecContext(ctx, insertElection, "e2", "Board", 2000, 1000, "upcoming", `["Chair"]`, "admin", 1, 1)
	if err == nil {
		t.Fatal("Expected check constraint violation")
	}
	if IsUniqueViolation(err) {
		t.Errorf("Did not expect IsUniqueViolation for %v", err)
	}
}

func TestIsUniqueViolation_Postgres(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unique", &pq.Error{Code: "23505"}, true},
		{"wrapped unique", fmt.Errorf("insert vote: %w", &pq.Error{Code: "23505"}), true},
		{"foreign key", &pq.Error{Code: "23503"}, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err); got != tt.want {
				t.Errorf("IsUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"bad conn", driver.ErrBadConn, true},
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"deadlock", &pq.Error{Code: "40P01"}, true},
		{"connection failure", &pq.Error{Code: "08006"}, true},
		{"lock not available", &pq.Error{Code: "55P03"}, true},
		{"unique violation", &pq.Error{Code: "23505"}, false},
		{"no rows", sql.ErrNoRows, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func testPolicy(attempts int) RetryPolicy {
	return RetryPolicy{Attempts: attempts, MinBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestRetryPolicy_RetriesTransient(t *testing.T) {
	calls := 0
	err := testPolicy(3).Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return driver.ErrBadConn
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestRetryPolicy_GivesUp(t *testing.T) {
	calls := 0
	err := testPolicy(3).Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return driver.ErrBadConn
	})

	if !errors.Is(err, driver.ErrBadConn) {
		t.Fatalf("Expected ErrBadConn, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestRetryPolicy_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	permanent := errors.New("permanent")
	err := testPolicy(5).Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return permanent
	})

	if !errors.Is(err, permanent) {
		t.Fatalf("Expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestRetryPolicy_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := RetryPolicy{Attempts: 5, MinBackoff: time.Hour, MaxBackoff: time.Hour}
	err := p.Do(ctx, "test", func(ctx context.Context) error {
		return driver.ErrBadConn
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestInTx_RollsBackOnError(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	failure := errors.New("abort")
	err := InTx(ctx, conn, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO elections (id, title, start_at, end_at, phase, positions, owner_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, "e1", "Board", 1000, 2000, "upcoming", `["Chair"]`, "admin", 1, 1)
		if err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("Expected abort error, got %v", err)
	}

	var count int
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM elections").Scan(&count); err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected rollback to leave 0 elections, got %d", count)
	}
}
