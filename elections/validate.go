// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package elections

import (
	"context"
	"strings"

	"github.com/danielhkuo/ballotbridge/apperr"
	"github.com/danielhkuo/ballotbridge/db"
	"github.com/danielhkuo/ballotbridge/models"
	"github.com/danielhkuo/ballotbridge/store"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 5000
	maxPositions         = 50
)

func validate(e *models.Election) error {
	if e.Title == "" {
		return apperr.New(apperr.ErrValidation, "title is required")
	}
	if len(e.Title) > maxTitleLength {
		return apperr.New(apperr.ErrValidation, "title must be at most %d characters", maxTitleLength)
	}
	if e.Description == "" {
		return apperr.New(apperr.ErrValidation, "description is required")
	}
	if len(e.Description) > maxDescriptionLength {
		return apperr.New(apperr.ErrValidation, "description must be at most %d characters", maxDescriptionLength)
	}
	if e.StartTime.IsZero() || e.EndTime.IsZero() {
		return apperr.New(apperr.ErrValidation, "start_time and end_time are required")
	}
	if !e.EndTime.After(e.StartTime) {
		return apperr.New(apperr.ErrValidation, "end_time must be after start_time")
	}
	if len(e.Positions) == 0 {
		return apperr.New(apperr.ErrValidation, "at least one position is required")
	}
	if e.MaxCandidates != nil && *e.MaxCandidates <= 0 {
		return apperr.New(apperr.ErrValidation, "max_candidates must be positive")
	}
	if e.MaxVoters != nil && *e.MaxVoters <= 0 {
		return apperr.New(apperr.ErrValidation, "max_voters must be positive")
	}
	return nil
}

// normalizePositions trims names and rejects blanks and duplicates
func normalizePositions(in []string) ([]string, error) {
	if len(in) > maxPositions {
		return nil, apperr.New(apperr.ErrValidation, "at most %d positions are allowed", maxPositions)
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, apperr.New(apperr.ErrValidation, "position names cannot be empty")
		}
		key := strings.ToLower(p)
		if seen[key] {
			return nil, apperr.New(apperr.ErrValidation, "duplicate position %q", p)
		}
		seen[key] = true
		out = append(out, p)
	}
	return out, nil
}

// normalizeUsers trims ids and drops repeats, keeping first-seen order
func normalizeUsers(field string, in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, id := range in {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, apperr.New(apperr.ErrValidation, "%s cannot contain empty user ids", field)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

// applyUpdate copies the set fields of u onto e. A limit of zero clears it.
func applyUpdate(e *models.Election, u models.ElectionUpdate) error {
	if u.Title != nil {
		e.Title = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		e.Description = strings.TrimSpace(*u.Description)
	}
	if u.StartTime != nil {
		e.StartTime = u.StartTime.UTC()
	}
	if u.EndTime != nil {
		e.EndTime = u.EndTime.UTC()
	}
	if u.Positions != nil {
		positions, err := normalizePositions(u.Positions)
		if err != nil {
			return err
		}
		e.Positions = positions
	}
	if u.MaxCandidates != nil {
		e.MaxCandidates = clearable(*u.MaxCandidates)
	}
	if u.MaxVoters != nil {
		e.MaxVoters = clearable(*u.MaxVoters)
	}
	if u.EmailKeyword != nil {
		e.EmailKeyword = strings.TrimSpace(*u.EmailKeyword)
	}
	return nil
}

func clearable(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

// checkPositionsInUse refuses to drop a position that still has pending or
// approved applications
func checkPositionsInUse(ctx context.Context, q db.Querier, e *models.Election) error {
	candidates, err := store.ListCandidates(ctx, q, store.CandidateFilter{ElectionID: e.ID})
	if err != nil {
		return err
	}
	for _, c := range candidates {
		if c.Status == models.StatusRejected {
			continue
		}
		if !e.HasPosition(c.Position) {
			return apperr.New(apperr.ErrValidation, "position %q has live applications and cannot be removed", c.Position)
		}
	}
	return nil
}
