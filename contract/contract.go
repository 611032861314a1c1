//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"interview-lab/domain/event"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself.
// Supervision, restarts and panic recovery belong to the supervisor.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, avoiding a manual naming method on
// every worker.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink consumes domain events published by the engine.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Publisher is the engine-facing side of the event pipeline. Publishing is
// fire-and-forget: a full pipeline drops the event rather than blocking the
// request path.
type Publisher interface {
	Publish(e event.DomainEvent)
}
