// Package lifecycle defines the task state machine: legal transitions,
// terminal states, and the error classification used to label a failed
// task's error_message. Grounded on the teacher's JobStatus constant set
// (internal/domain) generalized into an explicit transition graph, since
// spec.md names a graph the teacher's status constants alone do not
// enforce.
package lifecycle

import (
	"fmt"

	"github.com/fairyhunter13/quantum-tasks/internal/domain"
)

// legalTransitions enumerates the transition graph of spec.md §4.3.
var legalTransitions = map[domain.Status]map[domain.Status]bool{
	domain.StatusPending: {
		domain.StatusProcessing: true,
		domain.StatusFailed:     true,
	},
	domain.StatusProcessing: {
		domain.StatusCompleted: true,
		domain.StatusFailed:    true,
	},
	domain.StatusCompleted: {},
	domain.StatusFailed:    {},
}

// Notes for each transition edge, per the table in spec.md §4.3.
const (
	NoteWorkerStarted   = "Worker started processing"
	NoteTaskCompleted   = "Task completed successfully"
	NoteTaskCreated     = "Task created"
)

// CanTransition reports whether moving from -> to is a legal edge in the
// task lifecycle graph.
func CanTransition(from, to domain.Status) bool {
	edges, ok := legalTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// ValidateHistory checks that a chronologically ordered sequence of
// statuses (as recorded in status_history) only takes legal edges between
// consecutive differing entries; repeated equal statuses are accepted.
// Timestamps are not part of the input and are not checked.
func ValidateHistory(statuses []domain.Status) error {
	for i := 1; i < len(statuses); i++ {
		prev, cur := statuses[i-1], statuses[i]
		if prev == cur {
			continue
		}
		if !CanTransition(prev, cur) {
			return fmt.Errorf("illegal transition %s -> %s at history index %d", prev, cur, i)
		}
	}
	return nil
}

// ClassifyError formats a failed task's error_message as
// "{category}: {type}: {detail}" from a category the caller has already
// chosen (one of the three domain.ErrCategory* strings), following the original
// ResultFormatter.format_error layout (api/execution/result_formatter.py
// in the retrieved Python source) since spec.md names the categories but
// not the exact string layout.
func ClassifyError(category string, errType string, detail string) string {
	return fmt.Sprintf("%s: %s: %s", category, errType, detail)
}

// ValidateCounts enforces spec.md §4.5's pre-commit check: every key must
// be a nonempty bitstring over {'0','1'} and every value must be a
// nonnegative count. An empty map is permitted. Called by the worker
// before committing a COMPLETED transition so a malformed simulator result
// never lands in tasks.result.
func ValidateCounts(counts domain.Counts) error {
	for bits, n := range counts {
		if bits == "" {
			return fmt.Errorf("counts key must be a nonempty bitstring")
		}
		for _, c := range bits {
			if c != '0' && c != '1' {
				return fmt.Errorf("counts key %q is not a bitstring over {'0','1'}", bits)
			}
		}
		if n < 0 {
			return fmt.Errorf("counts[%q] = %d must be nonnegative", bits, n)
		}
	}
	return nil
}
