package models

import (
	"regexp"
	"strings"
	"time"
)

// BetStatus is the lifecycle status of a persisted ticket.
type BetStatus string

const (
	StatusPending   BetStatus = "PENDING"
	StatusWon       BetStatus = "WON"
	StatusLost      BetStatus = "LOST"
	StatusQueued    BetStatus = "QUEUED"
	StatusCancelled BetStatus = "CANCELLED"
	StatusVoid      BetStatus = "VOID"
)

func (s BetStatus) Valid() bool {
	switch s {
	case StatusPending, StatusWon, StatusLost, StatusQueued, StatusCancelled, StatusVoid:
		return true
	}
	return false
}

// Ticket is one AI-generated prediction for one match, keyed by GameID.
// Tickets are never hard-deleted; the post-mortem and the audit UI move
// them through status transitions only.
type Ticket struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	GameID       string    `gorm:"type:varchar(200);not null;uniqueIndex" json:"id"`
	Module       string    `gorm:"type:varchar(30);not null;index" json:"module"`
	HomeTeam     string    `gorm:"type:varchar(120);not null" json:"homeTeam"`
	AwayTeam     string    `gorm:"type:varchar(120);not null" json:"awayTeam"`
	Prediction   string    `gorm:"type:text;not null" json:"prediction"`
	Edge         float64   `gorm:"not null" json:"edge"`
	Stake        int       `gorm:"not null" json:"stake"`
	Summary      string    `gorm:"type:text" json:"summary"`
	Status       BetStatus `gorm:"type:varchar(20);not null;index;default:'PENDING'" json:"status"`
	IsFireSignal bool      `gorm:"not null;default:false" json:"isFireSignal"`
	TopProp      string    `gorm:"type:text" json:"topProp"`
	NeuralAnchor string    `gorm:"type:varchar(100)" json:"neuralAnchor"`
	CreatedAt    time.Time `gorm:"type:timestamptz;autoCreateTime;index" json:"timestamp"`
}

func (Ticket) TableName() string {
	return "tickets"
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// GameKey derives the natural key for a (module, home, away) tuple.
// It is deterministic across scans so repeated signals for the same
// match upsert instead of duplicating.
func GameKey(module, homeTeam, awayTeam string) string {
	joined := module + "-" + homeTeam + "-" + awayTeam
	return strings.ToLower(whitespaceRun.ReplaceAllString(strings.TrimSpace(joined), "-"))
}
