// Package events defines the notifications an auction emits after each
// confirmed state write, and the channel that carries them to clients.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Type string

const (
	AuctionStarted   Type = "AUCTION_STARTED"
	TeamPresented    Type = "TEAM_PRESENTED"
	BiddingOpen      Type = "BIDDING_OPEN"
	NewBid           Type = "NEW_BID"
	BiddingClosed    Type = "BIDDING_CLOSED"
	TeamSold         Type = "TEAM_SOLD"
	TeamSkipped      Type = "TEAM_SKIPPED"
	SaleUndone       Type = "SALE_UNDONE"
	AuctionPaused    Type = "AUCTION_PAUSED"
	AuctionCompleted Type = "AUCTION_COMPLETED"
	TeamOrderUpdated Type = "TEAM_ORDER_UPDATED"
	TimerStart       Type = "TIMER_START"
	TimerReset       Type = "TIMER_RESET"
	TimerStop        Type = "TIMER_STOP"
	AutoModeToggled  Type = "AUTO_MODE_TOGGLED"
)

// Event is one notification on a session's channel.
type Event struct {
	Type      Type            `json:"type"`
	SessionID uuid.UUID       `json:"sessionId"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// New builds an event stamped with the current time.
func New(sessionID uuid.UUID, t Type, payload interface{}) (*Event, error) {
	if payload == nil {
		payload = struct{}{}
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      t,
		SessionID: sessionID,
		Payload:   payloadBytes,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

//go:generate mockgen -package=mocks -destination=mocks/mock_publisher.go github.com/dom/calcutta-auction/internal/events Publisher
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// Payloads

type ItemIndexPayload struct {
	ItemIndex int `json:"itemIndex"`
}

type NewBidPayload struct {
	TeamID     string          `json:"teamId"`
	BidderID   uuid.UUID       `json:"bidderId"`
	BidderName string          `json:"bidderName"`
	Amount     decimal.Decimal `json:"amount"`
}

type TeamSoldPayload struct {
	ItemID     string          `json:"itemId"`
	WinnerID   uuid.UUID       `json:"winnerId"`
	WinnerName string          `json:"winnerName"`
	Amount     decimal.Decimal `json:"amount"`
	NextIndex  *int            `json:"nextIndex"`
	IsComplete bool            `json:"isComplete"`
}

type TeamSkippedPayload struct {
	ItemID    string `json:"itemId"`
	NextIndex *int   `json:"nextIndex"`
}

type SaleUndonePayload struct {
	ItemID    string `json:"itemId"`
	ItemIndex int    `json:"itemIndex"`
}

type TeamOrderPayload struct {
	Order []string `json:"order"`
}

type TimerPayload struct {
	EndsAt     time.Time `json:"endsAt"`
	DurationMs int       `json:"durationMs"`
}

type AutoModePayload struct {
	Enabled bool `json:"enabled"`
}
