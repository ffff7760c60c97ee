// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package status

import (
	"time"

	"github.com/danielhkuo/ballotbridge/models"
)

// Clock supplies the current instant. clocks.Clock from go-clocks satisfies
// it, as does its fake for tests.
type Clock interface {
	Now() time.Time
}

// Resolve computes an election's phase from its schedule. Cancellation wins
// over everything else, and the window is [start, end]: both the start and
// the end instant are active.
func Resolve(now, start, end time.Time, cancelled bool) models.Phase {
	switch {
	case cancelled:
		return models.PhaseCancelled
	case now.Before(start):
		return models.PhaseUpcoming
	case !now.After(end):
		return models.PhaseActive
	default:
		return models.PhaseCompleted
	}
}

// Of resolves the phase of e at now
func Of(e *models.Election, now time.Time) models.Phase {
	return Resolve(now, e.StartTime, e.EndTime, e.Cancelled)
}
