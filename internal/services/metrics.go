package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// reseedRuns counts reseed passes by outcome (ok|failed|replayed).
	reseedRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prayer_reseed_runs_total",
			Help: "Reseed passes by outcome.",
		},
		[]string{"outcome"},
	)

	// reseedCandidates counts roster rows handled by reseed, by result
	// (inserted|skipped|already_prayed|missing_name).
	reseedCandidates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prayer_reseed_candidates_total",
			Help: "Roster rows processed by reseed, by result.",
		},
		[]string{"result"},
	)

	// transitions counts MarkPrayed/PutBack calls by result (changed|noop|error).
	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prayer_transitions_total",
			Help: "Status transitions by kind and result.",
		},
		[]string{"transition", "result"},
	)

	// hexExhausted counts candidates left without a hex cell.
	hexExhausted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prayer_hex_exhausted_total",
			Help: "Candidates that could not be given a map cell, by country.",
		},
		[]string{"country"},
	)
)

func init() {
	prometheus.MustRegister(reseedRuns, reseedCandidates, transitions, hexExhausted)
}

func observeTransition(kind string, changed bool, err error) {
	switch {
	case err != nil:
		transitions.WithLabelValues(kind, "error").Inc()
	case changed:
		transitions.WithLabelValues(kind, "changed").Inc()
	default:
		transitions.WithLabelValues(kind, "noop").Inc()
	}
}
