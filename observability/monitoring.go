// Package observability exposes in-process counters for the engine.
// Counters are best-effort operational signals, not domain state.
package observability

import "sync/atomic"

type Monitoring struct {
	turnsRecorded      atomic.Int64
	generations        atomic.Int64
	generationFailures atomic.Int64
	persistFailures    atomic.Int64
	completions        atomic.Int64
	activeStreams      atomic.Int64
}

func NewMonitoring() *Monitoring {
	return &Monitoring{}
}

func (m *Monitoring) TurnRecorded()      { m.turnsRecorded.Add(1) }
func (m *Monitoring) GenerationStarted() { m.generations.Add(1) }
func (m *Monitoring) GenerationFailed()  { m.generationFailures.Add(1) }
func (m *Monitoring) PersistFailed()     { m.persistFailures.Add(1) }
func (m *Monitoring) Completed()         { m.completions.Add(1) }
func (m *Monitoring) StreamOpened()      { m.activeStreams.Add(1) }
func (m *Monitoring) StreamClosed()      { m.activeStreams.Add(-1) }

// Snapshot returns the current counter values for health reporting.
func (m *Monitoring) Snapshot() map[string]int64 {
	return map[string]int64{
		"turns_recorded":      m.turnsRecorded.Load(),
		"generations":         m.generations.Load(),
		"generation_failures": m.generationFailures.Load(),
		"persist_failures":    m.persistFailures.Load(),
		"completions":         m.completions.Load(),
		"active_streams":      m.activeStreams.Load(),
	}
}
