package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DevigStructure names how a tournament groups teams when removing bookmaker margin.
type DevigStructure string

const (
	StructureBracket     DevigStructure = "bracket"
	StructureGlobal      DevigStructure = "global"
	StructurePerGroup    DevigStructure = "per_group"
	StructurePassThrough DevigStructure = "pass_through"
)

// IsValid checks if a structure is one of the known kinds
func (s DevigStructure) IsValid() bool {
	switch s {
	case StructureBracket, StructureGlobal, StructurePerGroup, StructurePassThrough:
		return true
	}
	return false
}

// Tournament is static reference data describing the event the teams play in.
type Tournament struct {
	ID          string                          `json:"id" gorm:"primaryKey;type:varchar(50)"`
	Name        string                          `json:"name" gorm:"not null"`
	Structure   DevigStructure                  `json:"structure" gorm:"type:varchar(20);not null"`
	Regions     datatypes.JSONSlice[string]     `json:"regions" gorm:"type:jsonb"`
	Rounds      datatypes.JSONSlice[string]     `json:"rounds" gorm:"type:jsonb;not null"`
	PayoutRules datatypes.JSONSlice[PayoutRule] `json:"payoutRules" gorm:"type:jsonb"`
}

// BaseTeam is an item up for auction. Immutable after load.
type BaseTeam struct {
	ID           string                             `json:"id" gorm:"primaryKey;type:varchar(50)"` // e.g., "ncaa26-duke"
	TournamentID string                             `json:"tournamentId" gorm:"type:varchar(50);not null;index"`
	Name         string                             `json:"name" gorm:"not null"`
	Seed         int                                `json:"seed" gorm:"not null"`
	Region       string                             `json:"region" gorm:"type:varchar(50)"`
	Odds         datatypes.JSONType[map[string]int] `json:"odds" gorm:"type:jsonb"` // round -> American odds
}

// OddsFor returns the American odds for round and whether a line exists.
func (t *BaseTeam) OddsFor(round string) (int, bool) {
	odds, ok := t.Odds.Data()[round]
	return odds, ok
}

// TeamOwnership is the synced record of who owns a team within a session.
type TeamOwnership struct {
	ID            uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SessionID     uuid.UUID       `json:"sessionId" gorm:"type:uuid;not null;uniqueIndex:idx_ownership_session_team"`
	TeamID        string          `json:"teamId" gorm:"type:varchar(50);not null;uniqueIndex:idx_ownership_session_team"`
	OwnerID       *uuid.UUID      `json:"ownerId" gorm:"type:uuid"`
	PurchasePrice decimal.Decimal `json:"purchasePrice" gorm:"type:numeric(12,2);not null;default:0"`
	PurchasedAt   *time.Time      `json:"purchasedAt"`

	// Relations
	Session *AuctionSession `json:"-" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (TeamOwnership) TableName() string {
	return "team_ownerships"
}

// IsOwned reports whether the team has been sold in this session.
func (o *TeamOwnership) IsOwned() bool {
	return o.OwnerID != nil
}
