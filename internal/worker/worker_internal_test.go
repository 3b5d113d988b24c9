package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/quantum-tasks/internal/domain"
)

type fakeStore struct {
	tasks       map[string]domain.Task
	transitions []domain.Status
	transErr    error
	claimOK     bool
}

func newFakeStore(t domain.Task) *fakeStore {
	return &fakeStore{tasks: map[string]domain.Task{t.ID: t}, claimOK: true}
}

func (f *fakeStore) CreateTask(ctx domain.Context, circuit string, shots int) (domain.Task, error) {
	return domain.Task{}, nil
}
func (f *fakeStore) GetTask(ctx domain.Context, taskID string) (domain.Task, error) {
	t, ok := f.tasks[taskID]
	if !ok {
		return domain.Task{}, domain.ErrNotFound
	}
	return t, nil
}
func (f *fakeStore) GetTaskWithHistory(ctx domain.Context, taskID string) (domain.Task, []domain.StatusHistoryEntry, error) {
	t, err := f.GetTask(ctx, taskID)
	return t, nil, err
}
func (f *fakeStore) Transition(ctx domain.Context, taskID string, from, to domain.Status, outcome domain.TransitionOutcome) (bool, error) {
	if f.transErr != nil {
		return false, f.transErr
	}
	f.transitions = append(f.transitions, to)
	if !f.claimOK {
		return false, nil
	}
	t := f.tasks[taskID]
	t.CurrentStatus = to
	f.tasks[taskID] = t
	return true, nil
}
func (f *fakeStore) Ping(ctx domain.Context) error { return nil }

type fakeSimulator struct {
	counts domain.Counts
	err    error
}

func (s fakeSimulator) Execute(ctx context.Context, circuit string, shots int) (domain.Counts, error) {
	return s.counts, s.err
}

func newDelivery(t *testing.T, taskID string) domain.Delivery {
	t.Helper()
	body, err := json.Marshal(domain.TaskMessage{TaskID: taskID, Circuit: "H 0"})
	require.NoError(t, err)
	return domain.Delivery{Body: body, MessageID: "m1", CorrelationID: "c1"}
}

func TestHandleDelivery_MalformedJSON(t *testing.T) {
	w := &Worker{Store: newFakeStore(domain.Task{}), Simulator: fakeSimulator{}}
	err := w.handleDelivery(context.Background(), domain.Delivery{Body: []byte("not json")})
	assert.NoError(t, err)
}

func TestHandleDelivery_InvalidTaskIDUUID(t *testing.T) {
	w := &Worker{Store: newFakeStore(domain.Task{}), Simulator: fakeSimulator{}}
	body, _ := json.Marshal(domain.TaskMessage{TaskID: "not-a-uuid", Circuit: "H 0"})
	err := w.handleDelivery(context.Background(), domain.Delivery{Body: body})
	assert.NoError(t, err)
}

func TestHandleDelivery_OrphanTaskDropped(t *testing.T) {
	store := &fakeStore{tasks: map[string]domain.Task{}}
	w := &Worker{Store: store, Simulator: fakeSimulator{}}
	id := "11111111-1111-4111-8111-111111111111"
	err := w.handleDelivery(context.Background(), newDelivery(t, id))
	assert.NoError(t, err)
	assert.Empty(t, store.transitions)
}

func TestHandleDelivery_AlreadyProcessingIsNoOp(t *testing.T) {
	id := "11111111-1111-4111-8111-111111111111"
	store := newFakeStore(domain.Task{ID: id, Circuit: "H 0", Shots: 10, CurrentStatus: domain.StatusProcessing})
	w := &Worker{Store: store, Simulator: fakeSimulator{}}
	err := w.handleDelivery(context.Background(), newDelivery(t, id))
	assert.NoError(t, err)
	assert.Empty(t, store.transitions)
}

func TestHandleDelivery_EmptyCircuitPreExecutionRejection(t *testing.T) {
	id := "11111111-1111-4111-8111-111111111111"
	store := newFakeStore(domain.Task{ID: id, Circuit: "   ", Shots: 10, CurrentStatus: domain.StatusPending})
	w := &Worker{Store: store, Simulator: fakeSimulator{}}
	err := w.handleDelivery(context.Background(), newDelivery(t, id))
	require.NoError(t, err)
	require.Len(t, store.transitions, 1)
	assert.Equal(t, domain.StatusFailed, store.transitions[0])
}

func TestHandleDelivery_ClaimContentionIsNoOp(t *testing.T) {
	id := "11111111-1111-4111-8111-111111111111"
	store := newFakeStore(domain.Task{ID: id, Circuit: "H 0", Shots: 10, CurrentStatus: domain.StatusPending})
	store.claimOK = false
	w := &Worker{Store: store, Simulator: fakeSimulator{}}
	err := w.handleDelivery(context.Background(), newDelivery(t, id))
	assert.NoError(t, err)
	require.Len(t, store.transitions, 1)
	assert.Equal(t, domain.StatusProcessing, store.transitions[0])
}

func TestHandleDelivery_SuccessCompletesTask(t *testing.T) {
	id := "11111111-1111-4111-8111-111111111111"
	store := newFakeStore(domain.Task{ID: id, Circuit: "H 0", Shots: 10, CurrentStatus: domain.StatusPending})
	sim := fakeSimulator{counts: domain.Counts{"0": 5, "1": 5}}
	w := &Worker{Store: store, Simulator: sim}
	err := w.handleDelivery(context.Background(), newDelivery(t, id))
	require.NoError(t, err)
	require.Len(t, store.transitions, 2)
	assert.Equal(t, domain.StatusProcessing, store.transitions[0])
	assert.Equal(t, domain.StatusCompleted, store.transitions[1])
}

func TestHandleDelivery_SimulatorErrorFailsTask(t *testing.T) {
	id := "11111111-1111-4111-8111-111111111111"
	store := newFakeStore(domain.Task{ID: id, Circuit: "H 0", Shots: 10, CurrentStatus: domain.StatusPending})
	sim := fakeSimulator{err: errors.New("boom")}
	w := &Worker{Store: store, Simulator: sim}
	err := w.handleDelivery(context.Background(), newDelivery(t, id))
	require.NoError(t, err)
	require.Len(t, store.transitions, 2)
	assert.Equal(t, domain.StatusProcessing, store.transitions[0])
	assert.Equal(t, domain.StatusFailed, store.transitions[1])
}

func TestHandleDelivery_MalformedCountsFailsTaskInsteadOfCompleting(t *testing.T) {
	id := "11111111-1111-4111-8111-111111111111"
	store := newFakeStore(domain.Task{ID: id, Circuit: "H 0", Shots: 10, CurrentStatus: domain.StatusPending})
	sim := fakeSimulator{counts: domain.Counts{"02": 5, "1": -3}}
	w := &Worker{Store: store, Simulator: sim}
	err := w.handleDelivery(context.Background(), newDelivery(t, id))
	require.NoError(t, err)
	require.Len(t, store.transitions, 2)
	assert.Equal(t, domain.StatusProcessing, store.transitions[0])
	assert.Equal(t, domain.StatusFailed, store.transitions[1])
}

func TestHandleDelivery_StorageUnavailableOnLoadIsReturnedForRequeue(t *testing.T) {
	id := "11111111-1111-4111-8111-111111111111"
	w := &Worker{Store: &alwaysStorageErrStore{}, Simulator: fakeSimulator{}}
	err := w.handleDelivery(context.Background(), newDelivery(t, id))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

type alwaysStorageErrStore struct{ fakeStore }

func (a *alwaysStorageErrStore) GetTask(ctx domain.Context, taskID string) (domain.Task, error) {
	return domain.Task{}, domain.ErrStorageUnavailable
}
