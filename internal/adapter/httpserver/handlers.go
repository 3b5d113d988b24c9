// Package httpserver contains the HTTP handlers and middleware for the
// task submission and retrieval surface named in spec.md §4.6/§6: thin
// wrappers around usecase.Coordinator, following the teacher's
// internal/adapter/httpserver package shape (a Server struct aggregating
// handler dependencies, one handler method per route, a shared
// writeJSON/writeError response helper).
package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/quantum-tasks/internal/domain"
	obsctx "github.com/fairyhunter13/quantum-tasks/internal/observability"
	"github.com/fairyhunter13/quantum-tasks/internal/usecase"
)

// correlationIDHeader is the header spec.md §6 names for correlation-id
// propagation in both directions.
const correlationIDHeader = "X-Correlation-ID"

// Server aggregates the HTTP handlers' dependencies: the submission
// coordinator plus the two health probes spec.md §4.6/§6 requires.
type Server struct {
	Coordinator   usecase.Coordinator
	DatabasePing  func(ctx domain.Context) error
	BrokerHealth  func(ctx domain.Context) error
	HealthTimeout time.Duration
}

// NewServer constructs an HTTP server with its handler dependencies wired.
func NewServer(coordinator usecase.Coordinator, databasePing, brokerHealth func(domain.Context) error) *Server {
	return &Server{
		Coordinator:   coordinator,
		DatabasePing:  databasePing,
		BrokerHealth:  brokerHealth,
		HealthTimeout: 2 * time.Second,
	}
}

// submitRequest is the POST /tasks request body (spec.md §6): circuit
// required nonempty, shots optional and bounded when present. The
// business-rule bounds ([1, 100_000], default 1024) are enforced again by
// usecase.Coordinator.Submit, which is also called directly by tests and
// must not trust the HTTP layer alone.
type submitRequest struct {
	Circuit string `json:"circuit" validate:"required"`
	Shots   int    `json:"shots" validate:"omitempty,min=1,max=100000"`
}

// submitResponse is the 201 body for POST /tasks (spec.md §6).
type submitResponse struct {
	TaskID        string    `json:"task_id"`
	Message       string    `json:"message"`
	SubmittedAt   time.Time `json:"submitted_at"`
	CorrelationID string    `json:"correlation_id"`
}

// statusHistoryEntryDTO is one entry in GET /tasks/{task_id}'s status_history.
type statusHistoryEntryDTO struct {
	Status         domain.Status `json:"status"`
	TransitionedAt time.Time     `json:"transitioned_at"`
	Notes          string        `json:"notes"`
}

// taskResponse is the 200 body for GET /tasks/{task_id} (spec.md §6).
type taskResponse struct {
	TaskID        string                  `json:"task_id"`
	Status        domain.Status           `json:"status"`
	SubmittedAt   time.Time               `json:"submitted_at"`
	Message       string                  `json:"message"`
	Result        domain.Counts           `json:"result,omitempty"`
	ErrorMessage  string                  `json:"error_message,omitempty"`
	StatusHistory []statusHistoryEntryDTO `json:"status_history"`
	CorrelationID string                  `json:"correlation_id"`
}

// healthResponse is the GET /health body (spec.md §6).
type healthResponse struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	DatabaseStatus string    `json:"database_status"`
	QueueStatus    string    `json:"queue_status"`
}

// correlationID extracts the inbound X-Correlation-ID header or generates
// a fresh UUID (spec.md §6).
func correlationID(r *http.Request) string {
	if id := r.Header.Get(correlationIDHeader); id != "" {
		return id
	}
	return uuid.New().String()
}

// SubmitHandler implements POST /tasks.
func (s *Server) SubmitHandler() http.HandlerFunc {
	v := validator.New()
	return func(w http.ResponseWriter, r *http.Request) {
		corrID := correlationID(r)
		w.Header().Set(correlationIDHeader, corrID)

		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, domain.ErrInvalidArgument, map[string]string{"body": "malformed JSON"}, corrID)
			return
		}
		if err := v.Struct(req); err != nil {
			details := map[string]string{}
			if verrs, ok := err.(validator.ValidationErrors); ok {
				for _, fe := range verrs {
					details[jsonFieldName(fe.Field())] = fe.Tag()
				}
			}
			writeError(w, r, domain.ErrInvalidArgument, details, corrID)
			return
		}

		ctx := obsctx.ContextWithRequestID(r.Context(), corrID)
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("correlation_id", corrID))
		task, err := s.Coordinator.Submit(ctx, req.Circuit, req.Shots, corrID)
		if err != nil {
			writeError(w, r, err, submissionErrorDetails(err), corrID)
			return
		}
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("task_id", task.ID))

		writeJSON(w, http.StatusCreated, submitResponse{
			TaskID:        task.ID,
			Message:       "Task submitted",
			SubmittedAt:   task.SubmittedAt,
			CorrelationID: corrID,
		})
	}
}

// submissionErrorDetails best-effort classifies a coordinator validation
// error to the field it concerns, for the {field:msg} details shape
// spec.md §6 names.
func submissionErrorDetails(err error) map[string]string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "circuit"):
		return map[string]string{"circuit": msg}
	case strings.Contains(msg, "shots"):
		return map[string]string{"shots": msg}
	default:
		return nil
	}
}

// jsonFieldName lowercases a validator-reported Go struct field name to
// match the JSON tag convention used in submitRequest.
func jsonFieldName(field string) string {
	if field == "" {
		return field
	}
	b := []byte(field)
	b[0] = b[0] + ('a' - 'A')
	return string(b)
}

// GetHandler implements GET /tasks/{task_id}.
func (s *Server) GetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		corrID := correlationID(r)
		w.Header().Set(correlationIDHeader, corrID)

		taskID := chi.URLParam(r, "task_id")
		ctx := obsctx.ContextWithRequestID(r.Context(), corrID)
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.String("task_id", taskID),
			attribute.String("correlation_id", corrID),
		)
		task, history, err := s.Coordinator.GetWithHistory(ctx, taskID)
		if err != nil {
			writeError(w, r, err, nil, corrID)
			return
		}

		entries := make([]statusHistoryEntryDTO, 0, len(history))
		for _, h := range history {
			entries = append(entries, statusHistoryEntryDTO{
				Status:         h.Status,
				TransitionedAt: h.TransitionedAt,
				Notes:          h.Notes,
			})
		}

		writeJSON(w, http.StatusOK, taskResponse{
			TaskID:        task.ID,
			Status:        task.CurrentStatus,
			SubmittedAt:   task.SubmittedAt,
			Message:       statusMessage(task.CurrentStatus),
			Result:        task.Result,
			ErrorMessage:  task.ErrorMessage,
			StatusHistory: entries,
			CorrelationID: corrID,
		})
	}
}

func statusMessage(s domain.Status) string {
	switch s {
	case domain.StatusPending:
		return "Task is queued for execution"
	case domain.StatusProcessing:
		return "Task is being executed"
	case domain.StatusCompleted:
		return "Task completed successfully"
	case domain.StatusFailed:
		return "Task failed"
	default:
		return ""
	}
}

// HealthHandler implements GET /health (spec.md §6): healthy iff both the
// store and broker respond within HealthTimeout; the response status
// remains 200 either way, per spec.md's explicit note that readiness is
// not surfaced via this route's status code.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.HealthTimeout)
		defer cancel()

		dbStatus := "disconnected"
		if s.DatabasePing != nil && s.DatabasePing(ctx) == nil {
			dbStatus = "connected"
		}
		queueStatus := "disconnected"
		if s.BrokerHealth != nil && s.BrokerHealth(ctx) == nil {
			queueStatus = "connected"
		}

		status := "unhealthy"
		if dbStatus == "connected" && queueStatus == "connected" {
			status = "healthy"
		}

		writeJSON(w, http.StatusOK, healthResponse{
			Status:         status,
			Timestamp:      time.Now().UTC(),
			DatabaseStatus: dbStatus,
			QueueStatus:    queueStatus,
		})
	}
}
