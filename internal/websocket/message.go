package websocket

import (
	"encoding/json"
	"time"

	"github.com/dom/calcutta-auction/internal/events"
	"github.com/shopspring/decimal"
)

type MessageType string

const (
	// Client to Server
	MessageTypeJoinSession MessageType = "JOIN_SESSION"
	MessageTypeSyncState   MessageType = "SYNC_STATE"
	MessageTypePlaceBid    MessageType = "PLACE_BID"

	// Server to Client. Auction events are relayed under their event type.
	MessageTypeStateSync MessageType = "STATE_SYNC"
	MessageTypeError     MessageType = "ERROR"
)

// Error codes carried in ErrorPayload.Code
const (
	ErrCodeInvalidPayload = "INVALID_PAYLOAD"
	ErrCodeUnknownType    = "UNKNOWN_MESSAGE_TYPE"
	ErrCodeNotInSession   = "NOT_IN_SESSION"
	ErrCodeForbidden      = "FORBIDDEN"
	ErrCodeStateViolation = "STATE_VIOLATION"
	ErrCodeBidTooLow      = "BID_TOO_LOW"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
	Seq       int             `json:"seq,omitempty"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		Payload:   payloadBytes,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// messageFromEvent relays an auction event unchanged.
func messageFromEvent(evt *events.Event) *Message {
	return &Message{
		Type:      MessageType(evt.Type),
		Payload:   evt.Payload,
		Timestamp: evt.Timestamp,
	}
}

// Client to Server payloads

type JoinSessionPayload struct {
	// SessionID accepts either the session id or its join code.
	SessionID string `json:"sessionId"`
}

type PlaceBidPayload struct {
	Amount decimal.Decimal `json:"amount"`
}

// Server to Client payloads

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
