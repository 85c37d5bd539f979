package domain

import "time"

// ProgressionEntry is one append-only record in a persona's progression
// log, written by the Evolution Engine after every rule application. It
// is a separate durable document from Persona.EvolutionLog: this is what
// internal/evolution/progressionlog persists file-per-persona.
type ProgressionEntry struct {
	ID                 string    `json:"id"`
	PersonaID          string    `json:"persona_id"`
	EventTimestamp     time.Time `json:"event_timestamp"`
	Description        string    `json:"description"`
	PerformanceSummary string    `json:"performance_summary,omitempty"`
	PersonaSnapshot    *Persona  `json:"persona_snapshot,omitempty"`
	Archived           bool      `json:"archived,omitempty"`
}
