package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bid is an immutable ledger entry. Only IsWinningBid ever changes, and a
// correction unsets it rather than deleting the row.
type Bid struct {
	ID           uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SessionID    uuid.UUID       `json:"sessionId" gorm:"type:uuid;not null;index:idx_bids_session_team"`
	TeamID       string          `json:"teamId" gorm:"type:varchar(50);not null;index:idx_bids_session_team"`
	BidderID     uuid.UUID       `json:"bidderId" gorm:"type:uuid;not null"`
	Amount       decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	IsWinningBid bool            `json:"isWinningBid" gorm:"not null;default:false"`
	CreatedAt    time.Time       `json:"createdAt"`

	// Relations
	Session *AuctionSession `json:"-" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (Bid) TableName() string {
	return "bids"
}
