// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics exposes prometheus collectors for the election core. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	votesCast          prometheus.Counter
	voteRejections     *prometheus.CounterVec
	applications       prometheus.Counter
	candidateDecisions *prometheus.CounterVec
	phaseTransitions   *prometheus.CounterVec
	reconcileRuns      prometheus.Counter
}

// New registers all collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		votesCast: factory.NewCounter(prometheus.CounterOpts{
			Name: "ballotbridge_votes_cast_total",
			Help: "number of votes recorded",
		}),
		voteRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ballotbridge_vote_rejections_total",
			Help: "number of cast_vote calls rejected, by failure kind",
		}, []string{"kind"}),
		applications: factory.NewCounter(prometheus.CounterOpts{
			Name: "ballotbridge_candidate_applications_total",
			Help: "number of candidate applications accepted",
		}),
		candidateDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ballotbridge_candidate_decisions_total",
			Help: "number of candidate status changes, by outcome",
		}, []string{"outcome"}),
		phaseTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ballotbridge_phase_transitions_total",
			Help: "number of cached phase transitions applied by reconciliation",
		}, []string{"to"}),
		reconcileRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "ballotbridge_reconcile_runs_total",
			Help: "number of reconciliation sweeps",
		}),
	}
}

func (m *Metrics) VoteCast() {
	if m == nil {
		return
	}
	m.votesCast.Inc()
}

func (m *Metrics) VoteRejected(kind string) {
	if m == nil {
		return
	}
	m.voteRejections.WithLabelValues(kind).Inc()
}

func (m *Metrics) ApplicationAccepted() {
	if m == nil {
		return
	}
	m.applications.Inc()
}

func (m *Metrics) CandidateDecided(outcome string) {
	if m == nil {
		return
	}
	m.candidateDecisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PhaseTransition(to string) {
	if m == nil {
		return
	}
	m.phaseTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) ReconcileRun() {
	if m == nil {
		return
	}
	m.reconcileRuns.Inc()
}
