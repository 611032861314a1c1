package workers

import (
	"context"
	"log/slog"

	"interview-lab/contract"
	"interview-lab/domain/event"
)

// EventFanout broadcasts domain events to multiple in-process consumers.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// ordering, durability, or retries. EventFanout is not a message broker.
//
// It is intended for observability and side effects (indexing, logs,
// metrics), never for core interview logic: the engine must behave the same
// if every event is lost.
//
// EventFanout is safe for concurrent use by multiple goroutines.
type EventFanout struct {
	Log            *slog.Logger
	DomainEvent    chan event.DomainEvent
	TelemetryEvent chan event.DomainEvent
	sinks          []contract.EventSink
}

func NewEventFanout(log *slog.Logger, domainEvent, telemetryEvent chan event.DomainEvent) *EventFanout {
	return &EventFanout{Log: log, DomainEvent: domainEvent, TelemetryEvent: telemetryEvent}
}

func (w *EventFanout) Add(sinks ...contract.EventSink) *EventFanout {
	w.sinks = append(w.sinks, sinks...)
	return w
}

// Publish implements contract.Publisher. A full pipeline drops the event
// rather than blocking the request path.
func (w *EventFanout) Publish(e event.DomainEvent) {
	select {
	case w.DomainEvent <- e:
	default:
		w.Log.Debug("Domain event pipeline full, event lost")
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.DomainEvent:
			w.Fanout(ctx, evt)
			select {
			case w.TelemetryEvent <- evt:
			default:
				w.Log.Debug("Observability telemetry event lost")
			}
		case <-ctx.Done():
			w.Log.Debug("Context done, stopping domainEvent send")
			return nil
		}
	}
}

// Fanout delivers one event to each sink. A failing sink is logged and never
// interrupts delivery to the others.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range w.sinks {
		if err := sink.Consume(ctx, evt); err != nil {
			w.Log.Warn("Event sink failed", "error", err)
		}
	}
}
