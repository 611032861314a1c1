package workers

import (
	"context"

	"interview-lab/domain/event"
	"interview-lab/search"
)

// TranscriptIndexerSink feeds recorded turns into the full-text index. It
// runs off the event pipeline so indexing latency never touches the
// response path; a lost event only means a turn missing from search until
// the next reindex.
type TranscriptIndexerSink struct {
	index *search.TranscriptIndex
}

func NewTranscriptIndexerSink(index *search.TranscriptIndex) *TranscriptIndexerSink {
	return &TranscriptIndexerSink{index: index}
}

func (s *TranscriptIndexerSink) Consume(_ context.Context, e event.DomainEvent) error {
	recorded, ok := e.(event.TurnRecorded)
	if !ok {
		return nil
	}
	return s.index.IndexTurn(recorded.Turn)
}
