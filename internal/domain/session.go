package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type SessionStatus string

const (
	SessionStatusLobby     SessionStatus = "lobby"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusCompleted SessionStatus = "completed"
)

type BiddingStatus string

const (
	BiddingStatusWaiting BiddingStatus = "waiting"
	BiddingStatusOpen    BiddingStatus = "open"
	BiddingStatusClosed  BiddingStatus = "closed"
)

// Default values applied to new sessions when the creator leaves them unset.
const (
	DefaultTimerDurationSeconds = 30
	DefaultTimerResetSeconds    = 10
)

// SessionSettings holds the commissioner-tunable knobs of an auction.
type SessionSettings struct {
	AutoMode             bool      `json:"autoMode"`
	TimerEnabled         bool      `json:"timerEnabled"`
	TimerDurationSeconds int       `json:"timerDurationSeconds"`
	TimerResetSeconds    int       `json:"timerResetSeconds"`
	BidIncrements        []float64 `json:"bidIncrements"`
	DevigCap             bool      `json:"devigCap"`
}

// DefaultSessionSettings returns the settings used when none are supplied.
func DefaultSessionSettings() SessionSettings {
	return SessionSettings{
		TimerEnabled:         true,
		TimerDurationSeconds: DefaultTimerDurationSeconds,
		TimerResetSeconds:    DefaultTimerResetSeconds,
		BidIncrements:        []float64{5, 10, 25, 50, 100},
		DevigCap:             true,
	}
}

// TimerDuration returns the bidding window, or zero when the timer is off.
func (s SessionSettings) TimerDuration() time.Duration {
	if !s.TimerEnabled || s.TimerDurationSeconds <= 0 {
		return 0
	}
	return time.Duration(s.TimerDurationSeconds) * time.Second
}

// ResetWindow returns the anti-sniping window.
func (s SessionSettings) ResetWindow() time.Duration {
	if s.TimerResetSeconds <= 0 {
		return 0
	}
	return time.Duration(s.TimerResetSeconds) * time.Second
}

// AuctionSession is the single authoritative record of one auction.
type AuctionSession struct {
	ID                     uuid.UUID                           `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name                   string                              `json:"name" gorm:"type:varchar(100);not null"`
	JoinCode               string                              `json:"joinCode" gorm:"size:10;not null;uniqueIndex:idx_sessions_live_join_code,where:status <> 'completed'"`
	CommissionerID         uuid.UUID                           `json:"commissionerId" gorm:"type:uuid;not null;index"`
	TournamentID           string                              `json:"tournamentId" gorm:"type:varchar(50);not null"`
	Status                 SessionStatus                       `json:"status" gorm:"type:varchar(20);not null;default:'lobby'"`
	TeamOrder              datatypes.JSONSlice[string]         `json:"teamOrder" gorm:"type:jsonb;not null"`
	CurrentItemIndex       int                                 `json:"currentItemIndex" gorm:"not null;default:0"`
	BiddingStatus          BiddingStatus                       `json:"biddingStatus" gorm:"type:varchar(20);not null;default:'waiting'"`
	CurrentHighestBid      decimal.Decimal                     `json:"currentHighestBid" gorm:"type:numeric(12,2);not null;default:0"`
	CurrentHighestBidderID *uuid.UUID                          `json:"currentHighestBidderId" gorm:"type:uuid"`
	TimerEndsAt            *time.Time                          `json:"timerEndsAt"`
	TimerDurationMs        *int                                `json:"timerDurationMs"`
	Settings               datatypes.JSONType[SessionSettings] `json:"settings" gorm:"type:jsonb;not null"`
	PayoutRules            datatypes.JSONSlice[PayoutRule]     `json:"payoutRules" gorm:"type:jsonb;not null"`
	EstimatedPotSize       decimal.Decimal                     `json:"estimatedPotSize" gorm:"type:numeric(12,2);not null;default:0"`
	CreatedAt              time.Time                           `json:"createdAt"`
	UpdatedAt              time.Time                           `json:"updatedAt"`
	CompletedAt            *time.Time                          `json:"completedAt"`

	// Relations
	Participants []Participant `json:"participants,omitempty" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (AuctionSession) TableName() string {
	return "auction_sessions"
}

// CurrentTeamID returns the team under the pointer, or "" when out of range.
func (s *AuctionSession) CurrentTeamID() string {
	if s.CurrentItemIndex < 0 || s.CurrentItemIndex >= len(s.TeamOrder) {
		return ""
	}
	return s.TeamOrder[s.CurrentItemIndex]
}

// IsLastItem reports whether the pointer is on the final team of the order.
func (s *AuctionSession) IsLastItem() bool {
	return s.CurrentItemIndex >= len(s.TeamOrder)-1
}

// IndexOf returns the position of teamID in the order, or -1.
func (s *AuctionSession) IndexOf(teamID string) int {
	for i, id := range s.TeamOrder {
		if id == teamID {
			return i
		}
	}
	return -1
}

// HasHighBid reports whether a bid has been accepted for the current item.
func (s *AuctionSession) HasHighBid() bool {
	return s.CurrentHighestBid.IsPositive() && s.CurrentHighestBidderID != nil
}

// TimerRemaining returns how long is left before the stored deadline.
func (s *AuctionSession) TimerRemaining(now time.Time) time.Duration {
	if s.TimerEndsAt == nil {
		return 0
	}
	remaining := s.TimerEndsAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsLive reports whether the session still holds its join code.
func (s *AuctionSession) IsLive() bool {
	return s.Status != SessionStatusCompleted
}

// Validate checks the structural invariants of a session record.
func (s *AuctionSession) Validate() error {
	if len(s.TeamOrder) == 0 {
		return ErrInvalidTeamOrder
	}
	if s.CurrentItemIndex < 0 || s.CurrentItemIndex >= len(s.TeamOrder) {
		return ErrInvalidItemIndex
	}
	if s.CurrentHighestBid.IsZero() != (s.CurrentHighestBidderID == nil) {
		return ErrInconsistentHighBid
	}
	if (s.TimerEndsAt == nil) != (s.TimerDurationMs == nil) {
		return ErrInconsistentTimer
	}
	return nil
}
