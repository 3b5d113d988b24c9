// Package domain defines core entities, ports, and domain-specific errors
// for the task lifecycle shared by the HTTP surface, the store, the broker
// client and the worker.
package domain

import (
	"context"
	"time"
)

// Context is a type alias to stdlib context.Context for convenience across layers.
type Context = context.Context

// Status captures the lifecycle state of a submitted task.
type Status string

// Task status values. Wire representations are lowercase per the HTTP contract.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether s is one of the lifecycle's terminal states.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// DefaultShots is used when a submission omits the shots field.
const DefaultShots = 1024

// MinShots and MaxShots bound the accepted shots range (spec-frozen, see
// the Open Question in SPEC_FULL.md).
const (
	MinShots = 1
	MaxShots = 100_000
)

// Counts maps a measurement bitstring to its occurrence count.
type Counts map[string]int64

// Task is the domain model for a submitted circuit-execution request.
//
//go:generate mockery --name=TaskStore --with-expecter --filename=task_store_mock.go
//go:generate mockery --name=Broker --with-expecter --filename=broker_mock.go
//go:generate mockery --name=Simulator --with-expecter --filename=simulator_mock.go
type Task struct {
	ID            string
	Circuit       string
	Shots         int
	SubmittedAt   time.Time
	CurrentStatus Status
	CompletedAt   *time.Time
	Result        Counts
	ErrorMessage  string
}

// StatusHistoryEntry is one append-only row in a task's audit trail.
type StatusHistoryEntry struct {
	TaskID         string
	Status         Status
	TransitionedAt time.Time
	Notes          string
}

// TransitionOutcome carries the optional payload for a guarded transition.
type TransitionOutcome struct {
	Result       Counts
	ErrorMessage string
	Notes        string
}

// TaskStore owns all persistence for tasks and their status history.
type TaskStore interface {
	// CreateTask inserts a task row as PENDING and its first history entry
	// in a single transaction.
	CreateTask(ctx Context, circuit string, shots int) (Task, error)
	// GetTask performs a point read. Returns ErrNotFound if absent.
	GetTask(ctx Context, taskID string) (Task, error)
	// GetTaskWithHistory returns the task plus its history ordered ascending
	// by TransitionedAt.
	GetTaskWithHistory(ctx Context, taskID string) (Task, []StatusHistoryEntry, error)
	// Transition performs a guarded compare-and-set on CurrentStatus: it
	// updates the row and appends a history entry only if the row's
	// CurrentStatus still equals expectedFrom. Returns true iff the update
	// applied.
	Transition(ctx Context, taskID string, expectedFrom, to Status, outcome TransitionOutcome) (bool, error)
	// Ping is a cheap liveness query.
	Ping(ctx Context) error
}

// Broker publishes and consumes task-execution messages.
type Broker interface {
	// Publish enqueues a task for background execution.
	Publish(ctx Context, taskID, circuit, correlationID string) error
	// Health reports whether the broker connection (and a throwaway
	// channel) is usable.
	Health(ctx Context) error
	// Close releases the connection and any channels.
	Close() error
}

// Delivery is one message handed to a Broker consumer.
type Delivery struct {
	Body          []byte
	MessageID     string
	CorrelationID string
}

// Consumer is the subset of Broker used by the worker to pull deliveries.
// Kept separate from Broker so the HTTP-side coordinator only depends on
// the publish/health surface.
type Consumer interface {
	// Consume starts delivering messages to handler with prefetch-based
	// fair dispatch. Blocks until ctx is cancelled or an unrecoverable
	// broker error occurs.
	Consume(ctx Context, handler func(Context, Delivery) error) error
}

// Simulator is the opaque, synchronous quantum-circuit execution backend.
// Out of scope per the spec: callers must run it off the consume loop.
type Simulator interface {
	Execute(ctx Context, circuit string, shots int) (Counts, error)
}

// TaskMessage is the JSON wire body published to and consumed from the queue.
type TaskMessage struct {
	TaskID  string `json:"task_id"`
	Circuit string `json:"circuit"`
}
