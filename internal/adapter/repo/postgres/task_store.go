// Package postgres provides PostgreSQL persistence adapters: the pgx
// connection pool (conn.go) and the task/status-history store (this file),
// following the teacher's internal/adapter/repo/postgres package shape
// (a PgxPool interface narrow enough to mock, repo methods tagged with
// otel spans and "op=..." wrapped errors).
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/quantum-tasks/internal/domain"
	"github.com/fairyhunter13/quantum-tasks/internal/lifecycle"
)

// PgxPool is the minimal surface of *pgxpool.Pool the task store needs,
// narrow enough to be satisfied by pgxmock in unit tests, mirroring the
// teacher's uploads_repo.go PgxPool interface.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// TaskStore implements domain.TaskStore against PostgreSQL, per spec.md
// §4.1: create_task, get_task, get_task_with_history, transition, ping.
type TaskStore struct{ Pool PgxPool }

// NewTaskStore constructs a TaskStore with the given pool.
func NewTaskStore(p PgxPool) *TaskStore { return &TaskStore{Pool: p} }

var _ domain.TaskStore = (*TaskStore)(nil)

// CreateTask inserts the task row as PENDING and its first history entry in
// a single transaction (spec.md §3 invariant 1, §4.1).
func (r *TaskStore) CreateTask(ctx context.Context, circuit string, shots int) (domain.Task, error) {
	tracer := otel.Tracer("repo.tasks")
	ctx, span := tracer.Start(ctx, "tasks.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "tasks"),
	)

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return domain.Task{}, fmt.Errorf("op=task.create.begin_tx: %w: %v", domain.ErrStorageUnavailable, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	id := uuid.New().String()
	now := time.Now().UTC()

	const insertTask = `INSERT INTO tasks (task_id, circuit, shots, submitted_at, current_status)
		VALUES ($1,$2,$3,$4,$5)`
	if _, err := tx.Exec(ctx, insertTask, id, circuit, shots, now, domain.StatusPending); err != nil {
		return domain.Task{}, fmt.Errorf("op=task.create.insert_task: %w: %v", domain.ErrStorageUnavailable, err)
	}

	const insertHistory = `INSERT INTO status_history (task_id, status, transitioned_at, notes)
		VALUES ($1,$2,$3,$4)`
	if _, err := tx.Exec(ctx, insertHistory, id, domain.StatusPending, now, lifecycle.NoteTaskCreated); err != nil {
		return domain.Task{}, fmt.Errorf("op=task.create.insert_history: %w: %v", domain.ErrStorageUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Task{}, fmt.Errorf("op=task.create.commit: %w: %v", domain.ErrStorageUnavailable, err)
	}
	committed = true

	return domain.Task{
		ID:            id,
		Circuit:       circuit,
		Shots:         shots,
		SubmittedAt:   now,
		CurrentStatus: domain.StatusPending,
	}, nil
}

const selectTask = `SELECT task_id, circuit, shots, submitted_at, current_status, completed_at, result, error_message
	FROM tasks WHERE task_id=$1`

func scanTask(row pgx.Row) (domain.Task, error) {
	var t domain.Task
	var resultJSON []byte
	var errMsg *string
	if err := row.Scan(&t.ID, &t.Circuit, &t.Shots, &t.SubmittedAt, &t.CurrentStatus, &t.CompletedAt, &resultJSON, &errMsg); err != nil {
		return domain.Task{}, err
	}
	if errMsg != nil {
		t.ErrorMessage = *errMsg
	}
	if len(resultJSON) > 0 {
		counts, err := decodeCounts(resultJSON)
		if err != nil {
			return domain.Task{}, fmt.Errorf("op=task.scan.decode_result: %w", err)
		}
		t.Result = counts
	}
	return t, nil
}

// GetTask performs a point read.
func (r *TaskStore) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	tracer := otel.Tracer("repo.tasks")
	ctx, span := tracer.Start(ctx, "tasks.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "tasks"),
	)

	row := r.Pool.QueryRow(ctx, selectTask, taskID)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Task{}, fmt.Errorf("op=task.get: %w", domain.ErrNotFound)
		}
		return domain.Task{}, fmt.Errorf("op=task.get: %w: %v", domain.ErrStorageUnavailable, err)
	}
	return t, nil
}

// GetTaskWithHistory returns the task plus its history ordered ascending by
// transitioned_at (spec.md §4.1).
func (r *TaskStore) GetTaskWithHistory(ctx context.Context, taskID string) (domain.Task, []domain.StatusHistoryEntry, error) {
	tracer := otel.Tracer("repo.tasks")
	ctx, span := tracer.Start(ctx, "tasks.GetWithHistory")
	defer span.End()

	task, err := r.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, nil, err
	}

	const q = `SELECT task_id, status, transitioned_at, COALESCE(notes,'') FROM status_history
		WHERE task_id=$1 ORDER BY transitioned_at ASC, id ASC`
	rows, err := r.Pool.Query(ctx, q, taskID)
	if err != nil {
		return domain.Task{}, nil, fmt.Errorf("op=task.history.query: %w: %v", domain.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var history []domain.StatusHistoryEntry
	for rows.Next() {
		var h domain.StatusHistoryEntry
		if err := rows.Scan(&h.TaskID, &h.Status, &h.TransitionedAt, &h.Notes); err != nil {
			return domain.Task{}, nil, fmt.Errorf("op=task.history.scan: %w: %v", domain.ErrStorageUnavailable, err)
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return domain.Task{}, nil, fmt.Errorf("op=task.history.rows: %w: %v", domain.ErrStorageUnavailable, err)
	}
	return task, history, nil
}

// Transition performs the guarded compare-and-set on current_status described
// in spec.md §4.1: the UPDATE only applies WHERE current_status still equals
// expectedFrom, and the history insert lands in the same transaction. The
// returned bool mirrors RowsAffected() on the guarded UPDATE, following the
// teacher's JobRepo.UpdateStatus explicit-transaction shape, generalized to a
// conditional predicate instead of an unconditional one.
func (r *TaskStore) Transition(ctx context.Context, taskID string, expectedFrom, to domain.Status, outcome domain.TransitionOutcome) (bool, error) {
	tracer := otel.Tracer("repo.tasks")
	ctx, span := tracer.Start(ctx, "tasks.Transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "tasks"),
		attribute.String("task.transition.from", string(expectedFrom)),
		attribute.String("task.transition.to", string(to)),
	)

	if !lifecycle.CanTransition(expectedFrom, to) {
		return false, fmt.Errorf("op=task.transition: %w: illegal edge %s->%s", domain.ErrInvalidArgument, expectedFrom, to)
	}

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return false, fmt.Errorf("op=task.transition.begin_tx: %w: %v", domain.ErrStorageUnavailable, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	now := time.Now().UTC()

	var resultJSON []byte
	if outcome.Result != nil {
		resultJSON, err = encodeCounts(outcome.Result)
		if err != nil {
			return false, fmt.Errorf("op=task.transition.encode_result: %w", err)
		}
	}
	var errMsg *string
	if outcome.ErrorMessage != "" {
		errMsg = &outcome.ErrorMessage
	}
	var completedAt *time.Time
	if to.Terminal() {
		completedAt = &now
	}

	const update = `UPDATE tasks SET current_status=$1, completed_at=$2, result=$3, error_message=$4
		WHERE task_id=$5 AND current_status=$6`
	tag, err := tx.Exec(ctx, update, to, completedAt, resultJSON, errMsg, taskID, expectedFrom)
	if err != nil {
		return false, fmt.Errorf("op=task.transition.update: %w: %v", domain.ErrStorageUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		// Another worker already moved the row (ClaimContention), or the
		// task doesn't exist. Either way the rollback above is sufficient;
		// no history entry is written for a transition that didn't apply.
		return false, nil
	}

	const insertHistory = `INSERT INTO status_history (task_id, status, transitioned_at, notes) VALUES ($1,$2,$3,$4)`
	if _, err := tx.Exec(ctx, insertHistory, taskID, to, now, outcome.Notes); err != nil {
		return false, fmt.Errorf("op=task.transition.insert_history: %w: %v", domain.ErrStorageUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("op=task.transition.commit: %w: %v", domain.ErrStorageUnavailable, err)
	}
	committed = true
	return true, nil
}

// Ping is a cheap liveness query used by the /health handler.
func (r *TaskStore) Ping(ctx context.Context) error {
	row := r.Pool.QueryRow(ctx, "SELECT 1")
	var one int
	if err := row.Scan(&one); err != nil {
		return fmt.Errorf("op=task.ping: %w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}
