package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/fairyhunter13/quantum-tasks/internal/domain"
)

// encodeCounts serializes a measurement histogram for storage in the
// tasks.result jsonb column.
func encodeCounts(c domain.Counts) ([]byte, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("op=counts.encode: %w", err)
	}
	return b, nil
}

// decodeCounts parses a tasks.result jsonb column back into a Counts map.
func decodeCounts(b []byte) (domain.Counts, error) {
	var c domain.Counts
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("op=counts.decode: %w", err)
	}
	return c, nil
}
