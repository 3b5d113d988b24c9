// Package worker implements the long-lived consumer described in spec.md
// §4.5: parse, idempotency-guard, claim, execute, commit, acknowledge. The
// concurrency shape (N independent consumer loops bounded by a
// sync.WaitGroup, a stop signal, and a timed graceful Stop) follows the
// teacher's worker-pool reference (other_examples
// maumercado-task-queue-go/internal/worker/pool.go: State/stopCh/wg,
// Stop() racing wg.Wait() against a shutdown timeout and ctx.Done()),
// generalized from a single Redis-backed pool to N competing AMQP
// consumers. Structured log event names (message_received,
// message_acknowledged, message_rejected_json_error) are carried over from
// the Python original's queue consumer (original_source/api/src/queue/
// consumer.py) since spec.md names the behavior but not the event names.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/quantum-tasks/internal/adapter/observability"
	"github.com/fairyhunter13/quantum-tasks/internal/domain"
	"github.com/fairyhunter13/quantum-tasks/internal/lifecycle"
)

// Config sizes the consumer pool and bounds graceful shutdown.
type Config struct {
	PoolSize        int
	ShutdownTimeout time.Duration
}

// Worker wires a Consumer, a TaskStore and a Simulator together to drive the
// task lifecycle described in spec.md §4.5.
type Worker struct {
	Consumer  domain.Consumer
	Store     domain.TaskStore
	Simulator domain.Simulator
	Config    Config

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New constructs a Worker.
func New(consumer domain.Consumer, store domain.TaskStore, sim domain.Simulator, cfg Config) *Worker {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 1
	}
	return &Worker{Consumer: consumer, Store: store, Simulator: sim, Config: cfg}
}

// Start spawns Config.PoolSize competing consumer loops, each an
// independent domain.Consumer.Consume call sharing the same queue (fair
// dispatch via the broker's prefetch setting handles load balancing across
// them). Start returns immediately; call Stop to shut down gracefully.
func (w *Worker) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	w.cancel = cancel
	for i := 0; i < w.Config.PoolSize; i++ {
		w.wg.Add(1)
		go func(id int) {
			defer w.wg.Done()
			if err := w.Consumer.Consume(ctx, w.handleDelivery); err != nil {
				slog.Error("consumer loop exited", slog.Int("worker", id), slog.Any("error", err))
			}
		}(i)
	}
	slog.Info("worker pool started", slog.Int("pool_size", w.Config.PoolSize))
}

// Stop signals every consumer loop to stop and waits for in-flight
// deliveries to finish committing, up to Config.ShutdownTimeout.
func (w *Worker) Stop(ctx context.Context) {
	if w.cancel == nil {
		return
	}
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("worker pool stopped gracefully")
	case <-time.After(w.Config.ShutdownTimeout):
		slog.Warn("worker pool shutdown timed out")
	case <-ctx.Done():
		slog.Warn("worker pool shutdown canceled")
	}
}

// handleDelivery implements one iteration of the consume loop (spec.md
// §4.5.2). A nil return means the broker should ack; a non-nil return
// wrapping domain.ErrStorageUnavailable means the broker should nack and
// requeue; any other non-nil return is still acked by the broker (poison
// safe) but is returned here only for logging by the caller's loop — the
// broker client acks unconditionally on every branch below that returns
// nil, which is every branch except a genuine storage outage.
func (w *Worker) handleDelivery(ctx context.Context, d domain.Delivery) error {
	// Stop cancels the consume loop's context; a delivery already received
	// still runs its simulator call and status commit to completion.
	ctx = context.WithoutCancel(ctx)

	var msg domain.TaskMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		slog.Warn("message_rejected_json_error",
			slog.String("message_id", d.MessageID),
			slog.String("correlation_id", d.CorrelationID),
			slog.Any("error", err))
		return nil
	}
	if _, err := uuid.Parse(msg.TaskID); err != nil {
		slog.Warn("message_rejected_json_error",
			slog.String("message_id", d.MessageID),
			slog.String("correlation_id", d.CorrelationID),
			slog.String("reason", "task_id is not a valid UUID"))
		return nil
	}

	slog.Info("message_received",
		slog.String("task_id", msg.TaskID),
		slog.String("message_id", d.MessageID),
		slog.String("correlation_id", d.CorrelationID))

	task, err := w.Store.GetTask(ctx, msg.TaskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Warn("task not found for delivery, dropping", slog.String("task_id", msg.TaskID))
			return nil
		}
		return fmt.Errorf("op=worker.load: %w", err)
	}

	if task.CurrentStatus != domain.StatusPending {
		slog.Info("message_acknowledged",
			slog.String("task_id", msg.TaskID),
			slog.String("reason", "already "+string(task.CurrentStatus)))
		return nil
	}

	if err := precheckCircuit(task.Circuit); err != nil {
		errMsg := lifecycle.ClassifyError(domain.ErrCategoryParse, fmt.Sprintf("%T", err), err.Error())
		ok, terr := w.Store.Transition(ctx, task.ID, domain.StatusPending, domain.StatusFailed, domain.TransitionOutcome{
			ErrorMessage: errMsg,
			Notes:        "pre-execution rejection",
		})
		if terr != nil {
			return fmt.Errorf("op=worker.precheck_commit: %w", terr)
		}
		if ok {
			// The task was never claimed, so the processing gauge is left as is.
			observability.TasksFailedTotal.WithLabelValues(domain.ErrCategoryParse).Inc()
		}
		slog.Info("message_acknowledged", slog.String("task_id", task.ID), slog.String("reason", "pre-execution rejection"))
		return nil
	}

	claimed, err := w.Store.Transition(ctx, task.ID, domain.StatusPending, domain.StatusProcessing, domain.TransitionOutcome{
		Notes: lifecycle.NoteWorkerStarted,
	})
	if err != nil {
		return fmt.Errorf("op=worker.claim: %w", err)
	}
	if !claimed {
		slog.Info("message_acknowledged", slog.String("task_id", task.ID), slog.String("reason", "claim contention"))
		return nil
	}
	observability.StartProcessingTask()

	start := time.Now()
	counts, execErr := w.Simulator.Execute(ctx, task.Circuit, task.Shots)
	observability.ObserveTaskExecution(time.Since(start))

	var countsErr error
	if execErr == nil {
		countsErr = lifecycle.ValidateCounts(counts)
	}

	category := ""
	var errMsg string
	switch {
	case execErr != nil:
		category = classify(execErr)
		errMsg = lifecycle.ClassifyError(category, fmt.Sprintf("%T", execErr), execErr.Error())
	case countsErr != nil:
		// The simulator returned nil error but a malformed histogram
		// (non-binary key or negative count); spec.md §4.5 forbids
		// committing that to tasks.result, so this is treated as a failed
		// task rather than a completed one.
		category = domain.ErrCategoryUnexpected
		errMsg = lifecycle.ClassifyError(category, "InvalidCounts", countsErr.Error())
	}

	if errMsg != "" {
		ok, terr := w.Store.Transition(ctx, task.ID, domain.StatusProcessing, domain.StatusFailed, domain.TransitionOutcome{
			ErrorMessage: errMsg,
			Notes:        errMsg,
		})
		if terr != nil {
			return fmt.Errorf("op=worker.fail_commit: %w", terr)
		}
		if !ok {
			slog.Warn("status diverged before failure commit", slog.String("task_id", task.ID))
		} else {
			observability.FailTask(category)
		}
		slog.Info("message_acknowledged", slog.String("task_id", task.ID), slog.String("reason", "task failed"))
		return nil
	}

	ok, terr := w.Store.Transition(ctx, task.ID, domain.StatusProcessing, domain.StatusCompleted, domain.TransitionOutcome{
		Result: counts,
		Notes:  lifecycle.NoteTaskCompleted,
	})
	if terr != nil {
		return fmt.Errorf("op=worker.complete_commit: %w", terr)
	}
	if !ok {
		slog.Warn("status diverged before completion commit", slog.String("task_id", task.ID))
	} else {
		observability.CompleteTask()
	}
	slog.Info("message_acknowledged", slog.String("task_id", task.ID), slog.String("reason", "task completed"))
	return nil
}

// precheckCircuit performs the cheap, pre-execution validation spec.md §4.3
// calls out for the direct PENDING->FAILED edge ("impossible circuit text
// caught during claim"), distinct from a classified failure raised by the
// simulator itself during execution.
func precheckCircuit(circuit string) error {
	if strings.TrimSpace(circuit) == "" {
		return errors.New("circuit is empty")
	}
	return nil
}

// classify maps a simulator error to one of the three category strings
// named in spec.md §4.3.
func classify(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return domain.ErrCategoryParse
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return domain.ErrCategoryExecution
	default:
		return domain.ErrCategoryUnexpected
	}
}
