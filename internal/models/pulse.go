package models

// Severity orders pulse events from routine to alarming.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// PulseEvent is one entry in the append-only activity feed. Events live
// in a bounded in-memory ring; they are observational and never persisted
// remotely.
type PulseEvent struct {
	ID        string   `json:"id"`
	Sport     string   `json:"sport"`
	Message   string   `json:"message"`
	Timestamp int64    `json:"timestamp"`
	Severity  Severity `json:"severity"`
}
