// Package app wires application components and startup helpers.
package app

import (
	"context"

	"github.com/fairyhunter13/quantum-tasks/internal/domain"
)

// BuildReadinessChecks returns the two probes GET /health composes
// (spec.md §6): a store ping and a broker health check, each a thin
// adapter over the domain.TaskStore/domain.Broker ports so the HTTP layer
// never imports postgres or amqp directly.
func BuildReadinessChecks(store domain.TaskStore, broker domain.Broker) (
	func(ctx context.Context) error,
	func(ctx context.Context) error,
) {
	dbCheck := func(ctx context.Context) error {
		return store.Ping(ctx)
	}
	brokerCheck := func(ctx context.Context) error {
		return broker.Health(ctx)
	}
	return dbCheck, brokerCheck
}
