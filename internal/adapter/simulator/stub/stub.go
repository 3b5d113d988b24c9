// Package stub provides a deterministic, in-process implementation of
// domain.Simulator, standing in for the opaque quantum-circuit backend
// spec.md explicitly keeps out of scope. It follows the teacher's
// swappable-backend pattern (internal/adapter/ai/freemodels.FreeModelWrapper
// implementing domain.AIClient behind a single entry point) generalized to
// a single deterministic executor instead of a multi-backend fallback
// chain, since spec.md names no alternate backend to fall back to.
package stub

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"

	"github.com/fairyhunter13/quantum-tasks/internal/domain"
)

// Simulator implements domain.Simulator with a deterministic pseudo-random
// measurement histogram seeded from the circuit text, so the same circuit
// always reports the same counts (useful for idempotent retries and for
// tests asserting stable output).
type Simulator struct{}

// New constructs a Simulator.
func New() Simulator { return Simulator{} }

var _ domain.Simulator = Simulator{}

// Execute validates the circuit is syntactically plausible and returns a
// measurement histogram summing to shots, distributed across the qubit
// count implied by the circuit text.
func (Simulator) Execute(ctx context.Context, circuit string, shots int) (domain.Counts, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	qubits, err := parseQubitCount(circuit)
	if err != nil {
		return nil, fmt.Errorf("op=simulator.execute: %w: %v", domain.ErrInvalidArgument, err)
	}

	rng := rand.New(rand.NewSource(seedFor(circuit)))
	counts := make(domain.Counts)
	for i := 0; i < shots; i++ {
		bits := make([]byte, qubits)
		for q := 0; q < qubits; q++ {
			if rng.Intn(2) == 1 {
				bits[q] = '1'
			} else {
				bits[q] = '0'
			}
		}
		counts[string(bits)]++
	}
	return counts, nil
}

// parseQubitCount derives a qubit count from the circuit description. The
// backend is opaque per spec, so this stub only enforces the minimal shape
// a real backend would reject outright: non-empty text naming at least one
// qubit line.
func parseQubitCount(circuit string) (int, error) {
	lines := strings.Split(strings.TrimSpace(circuit), "\n")
	qubits := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		qubits++
	}
	if qubits == 0 {
		return 0, fmt.Errorf("circuit has no gate lines")
	}
	if qubits > 32 {
		qubits = 32
	}
	return qubits, nil
}

func seedFor(circuit string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(circuit))
	return int64(h.Sum64())
}
