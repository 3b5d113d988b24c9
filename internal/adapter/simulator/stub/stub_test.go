package stub_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/quantum-tasks/internal/adapter/simulator/stub"
	"github.com/fairyhunter13/quantum-tasks/internal/domain"
)

func TestSimulator_Execute_CountsSumToShots(t *testing.T) {
	t.Parallel()
	sim := stub.New()
	const shots = 256
	counts, err := sim.Execute(context.Background(), "H 0\nCX 0 1", shots)
	require.NoError(t, err)

	var total int64
	for _, n := range counts {
		total += n
	}
	assert.Equal(t, int64(shots), total)
}

func TestSimulator_Execute_Deterministic(t *testing.T) {
	t.Parallel()
	sim := stub.New()
	c1, err := sim.Execute(context.Background(), "H 0", 128)
	require.NoError(t, err)
	c2, err := sim.Execute(context.Background(), "H 0", 128)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
}

func TestSimulator_Execute_EmptyCircuitRejected(t *testing.T) {
	t.Parallel()
	sim := stub.New()
	_, err := sim.Execute(context.Background(), "   \n  ", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSimulator_Execute_ContextCancelled(t *testing.T) {
	t.Parallel()
	sim := stub.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sim.Execute(ctx, "H 0", 10)
	require.Error(t, err)
}
