package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/dom/calcutta-auction/internal/service"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	requestTimeout = 10 * time.Second
)

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uuid.UUID

	// room is owned by the hub goroutine.
	room *Room
	// sessionID is owned by the read pump.
	sessionID uuid.UUID

	closed bool
	mu     sync.Mutex
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: userID,
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError(ErrCodeInvalidPayload, "Invalid message")
			continue
		}

		c.handleMessage(&msg)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg *Message) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	switch msg.Type {
	case MessageTypeJoinSession:
		var payload JoinSessionPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.SessionID == "" {
			c.sendError(ErrCodeInvalidPayload, "Invalid join session payload")
			return
		}
		c.handleJoin(ctx, payload.SessionID)

	case MessageTypeSyncState:
		if c.sessionID == uuid.Nil {
			c.sendError(ErrCodeNotInSession, "Join a session first")
			return
		}
		snapshot, err := c.hub.sessionReader().Snapshot(ctx, c.sessionID, c.userID)
		if err != nil {
			c.sendServiceError("SyncState", err)
			return
		}
		reply, err := NewMessage(MessageTypeStateSync, snapshot)
		if err != nil {
			c.sendServiceError("SyncState", err)
			return
		}
		c.Send(reply)

	case MessageTypePlaceBid:
		if c.sessionID == uuid.Nil {
			c.sendError(ErrCodeNotInSession, "Join a session first")
			return
		}
		var payload PlaceBidPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.sendError(ErrCodeInvalidPayload, "Invalid place bid payload")
			return
		}
		// Acceptance is announced to everyone, the bidder included, by NEW_BID.
		if _, err := c.hub.bidService().PlaceBid(ctx, c.sessionID, c.userID, payload.Amount); err != nil {
			c.sendServiceError("PlaceBid", err)
		}

	default:
		c.sendError(ErrCodeUnknownType, "Unknown message type: "+string(msg.Type))
	}
}

func (c *Client) handleJoin(ctx context.Context, idOrCode string) {
	sessions := c.hub.sessionReader()
	session, err := sessions.Get(ctx, idOrCode, c.userID)
	if err != nil {
		c.sendServiceError("JoinSession", err)
		return
	}
	snapshot, err := sessions.Snapshot(ctx, session.ID, c.userID)
	if err != nil {
		c.sendServiceError("JoinSession", err)
		return
	}

	c.sessionID = session.ID
	select {
	case c.hub.joinSession <- &JoinSessionRequest{Client: c, SessionID: session.ID, Snapshot: snapshot}:
	case <-c.hub.done:
	}
}

func (c *Client) sendServiceError(origin string, err error) {
	code, message := errorCode(err)
	if code == ErrCodeInternal {
		log.Printf("ERROR [websocket.%s] user=%s session=%s: %v", origin, c.userID, c.sessionID, err)
	}
	c.sendError(code, message)
}

// errorCode classifies a service error for the client. Internal failures are
// not described to the client.
func errorCode(err error) (string, string) {
	switch {
	case domain.IsAuthorization(err):
		return ErrCodeForbidden, err.Error()
	case domain.IsBidTooLow(err):
		return ErrCodeBidTooLow, err.Error()
	case domain.IsStateViolation(err), errors.Is(err, domain.ErrSessionLive):
		return ErrCodeStateViolation, err.Error()
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrTeamNotFound):
		return ErrCodeNotFound, err.Error()
	case errors.Is(err, domain.ErrInvalidBidAmount), errors.Is(err, service.ErrInvalidInput):
		return ErrCodeInvalidInput, err.Error()
	default:
		return ErrCodeInternal, "Internal server error"
	}
}

func (c *Client) sendError(code, message string) {
	msg, _ := NewMessage(MessageTypeError, ErrorPayload{
		Code:    code,
		Message: message,
	})
	c.Send(msg)
}

// Send queues a message without blocking. A client too slow to drain its
// buffer misses the message and is expected to resync.
func (c *Client) Send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("failed to marshal message: %v", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("ERROR [websocket.Client] send buffer full user=%s, dropping %s", c.userID, msg.Type)
	}
}

// Close closes the send channel once, which ends the write pump.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
