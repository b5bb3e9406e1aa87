package models

import (
	"time"

	"gorm.io/datatypes"
)

// LearnedRule is an advisory instruction accumulated by prior runs and
// injected verbatim into scan prompts.
type LearnedRule struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Content string `gorm:"type:text;not null" json:"content"`
}

func (LearnedRule) TableName() string {
	return "rules"
}

// AIMemory is one row of accumulated pattern intelligence. The post-mortem
// appends to it; scans read the highest-impact rows as prompt context.
type AIMemory struct {
	ID                 uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	PatternDescription string         `gorm:"type:text;not null;uniqueIndex" json:"pattern_description"`
	Category           string         `gorm:"type:varchar(50);index" json:"category"`
	Sport              string         `gorm:"type:varchar(50)" json:"sport"`
	League             string         `gorm:"type:varchar(80)" json:"league"`
	ImpactScore        float64        `gorm:"not null;default:0" json:"impact_score"`
	Payload            datatypes.JSON `gorm:"type:jsonb" json:"payload,omitempty"`
	LastUpdated        time.Time      `gorm:"type:timestamptz;autoUpdateTime" json:"last_updated"`
}

func (AIMemory) TableName() string {
	return "ai_memory"
}

// SystemHealth is the single-row heartbeat other deployments of the stack
// write into; the dashboard surfaces it as the global summary.
type SystemHealth struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Status    string    `gorm:"type:varchar(40)" json:"status"`
	LastPulse time.Time `gorm:"type:timestamptz" json:"last_pulse"`
}

func (SystemHealth) TableName() string {
	return "system_health"
}

// GlobalIntelligence is the prompt-facing projection of an AIMemory row.
type GlobalIntelligence struct {
	Sport         string  `json:"sport"`
	League        string  `json:"league"`
	AvgEfficiency float64 `json:"avg_efficiency"`
	SampleSize    int     `json:"sample_size"`
}

// GlobalSummary is the prompt- and UI-facing projection of system health.
type GlobalSummary struct {
	TotalAnalyses int     `json:"total_analyses"`
	SuccessRate   float64 `json:"success_rate"`
	SystemStatus  string  `json:"system_status"`
}
