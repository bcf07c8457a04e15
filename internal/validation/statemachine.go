package validation

import "github.com/abtest/experiment-core/internal/models"

// transitions enumerates every legal (from, to) edge of the experiment state
// graph (spec §4.7). No self-transitions; DELETED is terminal.
var transitions = map[models.State]map[models.State]bool{
	models.StateDraft: {
		models.StateRunning: true,
		models.StateDeleted: true,
	},
	models.StateRunning: {
		models.StatePaused:     true,
		models.StateTerminated: true,
	},
	models.StatePaused: {
		models.StateRunning:    true,
		models.StateTerminated: true,
	},
	models.StateTerminated: {
		models.StateDeleted: true,
	},
	models.StateDeleted: {},
}

// IsLegalTransition reports whether from->to is an edge of the state graph.
func IsLegalTransition(from, to models.State) bool {
	edges, ok := transitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// RequiresBucketCheck reports whether entering `to` from `from` requires
// validateExperimentBuckets to succeed (only DRAFT->RUNNING).
func RequiresBucketCheck(from, to models.State) bool {
	return from == models.StateDraft && to == models.StateRunning
}
