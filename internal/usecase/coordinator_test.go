package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/quantum-tasks/internal/domain"
	"github.com/fairyhunter13/quantum-tasks/internal/usecase"
)

type stubStore struct {
	created domain.Task
	getErr  error
	history []domain.StatusHistoryEntry
}

func (s *stubStore) CreateTask(ctx domain.Context, circuit string, shots int) (domain.Task, error) {
	s.created = domain.Task{ID: "11111111-1111-4111-8111-111111111111", Circuit: circuit, Shots: shots, CurrentStatus: domain.StatusPending}
	return s.created, nil
}
func (s *stubStore) GetTask(ctx domain.Context, taskID string) (domain.Task, error) {
	if s.getErr != nil {
		return domain.Task{}, s.getErr
	}
	return domain.Task{ID: taskID, CurrentStatus: domain.StatusPending}, nil
}
func (s *stubStore) GetTaskWithHistory(ctx domain.Context, taskID string) (domain.Task, []domain.StatusHistoryEntry, error) {
	if s.getErr != nil {
		return domain.Task{}, nil, s.getErr
	}
	return domain.Task{ID: taskID, CurrentStatus: domain.StatusPending}, s.history, nil
}
func (s *stubStore) Transition(ctx domain.Context, taskID string, from, to domain.Status, outcome domain.TransitionOutcome) (bool, error) {
	return true, nil
}
func (s *stubStore) Ping(ctx domain.Context) error { return nil }

type stubBroker struct {
	publishErr     error
	published      []string
	correlationIDs []string
}

func (b *stubBroker) Publish(ctx domain.Context, taskID, circuit, correlationID string) error {
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published = append(b.published, taskID)
	b.correlationIDs = append(b.correlationIDs, correlationID)
	return nil
}
func (b *stubBroker) Health(ctx domain.Context) error { return nil }
func (b *stubBroker) Close() error                    { return nil }

func TestCoordinator_Submit_Success(t *testing.T) {
	t.Parallel()
	store := &stubStore{}
	broker := &stubBroker{}
	c := usecase.NewCoordinator(store, broker)

	task, err := c.Submit(context.Background(), "H 0", 0, "req-correlation-id")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultShots, task.Shots)
	assert.Equal(t, domain.StatusPending, task.CurrentStatus)
	require.Len(t, broker.published, 1)
	assert.Equal(t, task.ID, broker.published[0])
	require.Len(t, broker.correlationIDs, 1)
	assert.Equal(t, "req-correlation-id", broker.correlationIDs[0])
}

func TestCoordinator_Submit_GeneratesCorrelationIDWhenCallerOmitsOne(t *testing.T) {
	t.Parallel()
	store := &stubStore{}
	broker := &stubBroker{}
	c := usecase.NewCoordinator(store, broker)

	_, err := c.Submit(context.Background(), "H 0", 0, "")
	require.NoError(t, err)
	require.Len(t, broker.correlationIDs, 1)
	assert.NotEmpty(t, broker.correlationIDs[0])
}

func TestCoordinator_Submit_EmptyCircuitRejected(t *testing.T) {
	t.Parallel()
	c := usecase.NewCoordinator(&stubStore{}, &stubBroker{})
	_, err := c.Submit(context.Background(), "   ", 10, "corr-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestCoordinator_Submit_ShotsOutOfRangeRejected(t *testing.T) {
	t.Parallel()
	c := usecase.NewCoordinator(&stubStore{}, &stubBroker{})
	_, err := c.Submit(context.Background(), "H 0", domain.MaxShots+1, "corr-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestCoordinator_Submit_PublishFailureSurfacesBrokerUnavailable(t *testing.T) {
	t.Parallel()
	store := &stubStore{}
	broker := &stubBroker{publishErr: errors.New("dial tcp: connection refused")}
	broker.publishErr = errors.Join(domain.ErrBrokerUnavailable, broker.publishErr)
	c := usecase.NewCoordinator(store, broker)

	_, err := c.Submit(context.Background(), "H 0", 10, "corr-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBrokerUnavailable)
	assert.Equal(t, "11111111-1111-4111-8111-111111111111", store.created.ID)
}

func TestCoordinator_Get_InvalidUUID(t *testing.T) {
	t.Parallel()
	c := usecase.NewCoordinator(&stubStore{}, &stubBroker{})
	_, err := c.Get(context.Background(), "not-a-uuid")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestCoordinator_GetWithHistory_NotFound(t *testing.T) {
	t.Parallel()
	c := usecase.NewCoordinator(&stubStore{getErr: domain.ErrNotFound}, &stubBroker{})
	_, _, err := c.GetWithHistory(context.Background(), "11111111-1111-4111-8111-111111111111")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
