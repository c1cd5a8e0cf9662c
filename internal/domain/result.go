package domain

import (
	"time"

	"github.com/google/uuid"
)

type ResultOutcome string

const (
	ResultWon     ResultOutcome = "won"
	ResultLost    ResultOutcome = "lost"
	ResultPending ResultOutcome = "pending"
)

// IsValid checks if an outcome is valid
func (r ResultOutcome) IsValid() bool {
	switch r {
	case ResultWon, ResultLost, ResultPending:
		return true
	}
	return false
}

// TournamentResult is a single (team, round) outcome entered by a session's
// commissioner. Results belong to the session they were entered for.
type TournamentResult struct {
	ID        uuid.UUID     `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SessionID uuid.UUID     `json:"sessionId" gorm:"type:uuid;not null;uniqueIndex:idx_results_session_team_round"`
	TeamID    string        `json:"teamId" gorm:"type:varchar(50);not null;uniqueIndex:idx_results_session_team_round"`
	RoundKey  string        `json:"roundKey" gorm:"type:varchar(20);not null;uniqueIndex:idx_results_session_team_round"`
	Result    ResultOutcome `json:"result" gorm:"type:varchar(10);not null;default:'pending'"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// TableName returns the table name for GORM
func (TournamentResult) TableName() string {
	return "tournament_results"
}
