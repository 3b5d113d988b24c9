package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/quantum-tasks/internal/adapter/simulator/stub"
	"github.com/fairyhunter13/quantum-tasks/internal/domain"
	"github.com/fairyhunter13/quantum-tasks/internal/worker"
)

type blockingConsumer struct{ consumeCalls chan struct{} }

func (c *blockingConsumer) Consume(ctx context.Context, handler func(context.Context, domain.Delivery) error) error {
	if c.consumeCalls != nil {
		c.consumeCalls <- struct{}{}
	}
	<-ctx.Done()
	return nil
}

type nopStore struct{}

func (nopStore) CreateTask(ctx domain.Context, circuit string, shots int) (domain.Task, error) {
	return domain.Task{}, nil
}
func (nopStore) GetTask(ctx domain.Context, taskID string) (domain.Task, error) {
	return domain.Task{}, domain.ErrNotFound
}
func (nopStore) GetTaskWithHistory(ctx domain.Context, taskID string) (domain.Task, []domain.StatusHistoryEntry, error) {
	return domain.Task{}, nil, domain.ErrNotFound
}
func (nopStore) Transition(ctx domain.Context, taskID string, from, to domain.Status, outcome domain.TransitionOutcome) (bool, error) {
	return true, nil
}
func (nopStore) Ping(ctx domain.Context) error { return nil }

func TestWorker_StartStop_GracefulShutdown(t *testing.T) {
	t.Parallel()
	calls := make(chan struct{}, 3)
	consumer := &blockingConsumer{consumeCalls: calls}
	w := worker.New(consumer, nopStore{}, stub.New(), worker.Config{PoolSize: 3, ShutdownTimeout: time.Second})

	w.Start(context.Background())
	for i := 0; i < 3; i++ {
		<-calls
	}

	done := make(chan struct{})
	go func() {
		w.Stop(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return in time")
	}
}

func TestWorker_New_DefaultsPoolSizeToOne(t *testing.T) {
	t.Parallel()
	w := worker.New(&blockingConsumer{}, nopStore{}, stub.New(), worker.Config{})
	assert.NotNil(t, w)
	assert.Equal(t, 1, w.Config.PoolSize)
}
