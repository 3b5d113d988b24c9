// Package usecase holds application services that sit between the HTTP
// surface and the domain ports, mirroring the teacher's internal/usecase
// package shape (thin services wrapping a repo/broker port, validating
// input and translating domain errors).
package usecase

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fairyhunter13/quantum-tasks/internal/adapter/observability"
	"github.com/fairyhunter13/quantum-tasks/internal/domain"
)

// Coordinator implements the submission path of spec.md §4.4: validate,
// persist as PENDING, publish for background execution.
type Coordinator struct {
	Store  domain.TaskStore
	Broker domain.Broker
}

// NewCoordinator constructs a Coordinator with the given store and broker.
func NewCoordinator(store domain.TaskStore, broker domain.Broker) Coordinator {
	return Coordinator{Store: store, Broker: broker}
}

// Submit validates the request, persists the task as PENDING, and publishes
// it to the broker under the caller's correlationID (spec.md §4.4:
// submit(circuit, shots, correlation_id) → Task), so the id a client sees
// on the HTTP response is the same one carried on the queue message and in
// every downstream worker log line. A publish failure is surfaced to the
// caller as ErrBrokerUnavailable without rolling back the already-created
// task row — the task remains durably PENDING and can be recovered by a
// future retry or reconciliation pass (spec.md §4.4, Open Questions).
func (c Coordinator) Submit(ctx domain.Context, circuit string, shots int, correlationID string) (domain.Task, error) {
	circuit, shots, err := validateSubmission(circuit, shots)
	if err != nil {
		return domain.Task{}, err
	}

	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	task, err := c.Store.CreateTask(ctx, circuit, shots)
	if err != nil {
		return domain.Task{}, fmt.Errorf("op=coordinator.submit.create: %w", err)
	}

	if err := c.Broker.Publish(ctx, task.ID, task.Circuit, correlationID); err != nil {
		observability.RecordBrokerPublishFailure()
		return domain.Task{}, fmt.Errorf("op=coordinator.submit.publish: %w", err)
	}

	observability.SubmitTask()
	return task, nil
}

// Get returns a task by id without history, for a lightweight status check.
func (c Coordinator) Get(ctx domain.Context, taskID string) (domain.Task, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return domain.Task{}, fmt.Errorf("op=coordinator.get: %w: task_id must be a UUID", domain.ErrInvalidArgument)
	}
	task, err := c.Store.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, fmt.Errorf("op=coordinator.get: %w", err)
	}
	return task, nil
}

// GetWithHistory returns a task plus its status history for the result
// endpoint (spec.md §4.6).
func (c Coordinator) GetWithHistory(ctx domain.Context, taskID string) (domain.Task, []domain.StatusHistoryEntry, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return domain.Task{}, nil, fmt.Errorf("op=coordinator.get_with_history: %w: task_id must be a UUID", domain.ErrInvalidArgument)
	}
	task, history, err := c.Store.GetTaskWithHistory(ctx, taskID)
	if err != nil {
		return domain.Task{}, nil, fmt.Errorf("op=coordinator.get_with_history: %w", err)
	}
	return task, history, nil
}

// validateSubmission enforces spec.md §4.4's acceptance rules: circuit must
// be non-empty after trimming, shots defaults to domain.DefaultShots when
// omitted (zero), and must fall within [MinShots, MaxShots] otherwise.
func validateSubmission(circuit string, shots int) (string, int, error) {
	trimmed := strings.TrimSpace(circuit)
	if trimmed == "" {
		return "", 0, fmt.Errorf("op=coordinator.validate: %w: circuit must not be empty", domain.ErrInvalidArgument)
	}
	if shots == 0 {
		shots = domain.DefaultShots
	}
	if shots < domain.MinShots || shots > domain.MaxShots {
		return "", 0, fmt.Errorf("op=coordinator.validate: %w: shots must be between %d and %d", domain.ErrInvalidArgument, domain.MinShots, domain.MaxShots)
	}
	return trimmed, shots, nil
}
