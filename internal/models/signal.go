package models

import "time"

// Signal is a freshly generated, not-yet-persisted prediction produced by
// a module scan. The state manager turns signals into tickets.
type Signal struct {
	HomeTeam         string   `json:"homeTeam"`
	AwayTeam         string   `json:"awayTeam"`
	LeagueName       string   `json:"leagueName"`
	WinProbability   float64  `json:"winProbability"`
	Prediction       string   `json:"prediction"`
	Edge             float64  `json:"edge"`
	Stake            int      `json:"stake"`
	Summary          string   `json:"summary"`
	RecommendedProps []string `json:"recommendedProps"`
	IsFireSignal     bool     `json:"isFireSignal"`
	NeuralAnchor     string   `json:"neuralAnchor"`

	CapturedAt time.Time `json:"capturedAt"`
}

// DebateVerdict is the consensus output of the four-agent debate for a
// single match. A verdict with FinalDecision=false and zero confidence is
// the canonical "discarded" outcome, used when the model reports temporal
// invalidity; discarding is an expected result, not a failure.
type DebateVerdict struct {
	ValidatorView string  `json:"validatorView"`
	RiskView      string  `json:"riskView"`
	ValueView     string  `json:"valueView"`
	ArbiterView   string  `json:"arbiterView"`
	FinalDecision bool    `json:"finalDecision"`
	Confidence    float64 `json:"confidence"`
	Entropy       float64 `json:"entropy"`
	BlackSwan     float64 `json:"blackSwan"`
	NeuralAnchor  string  `json:"neuralAnchor"`
	Rationale     string  `json:"rationale"`
}
