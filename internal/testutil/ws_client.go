package testutil

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dom/calcutta-auction/internal/events"
	"github.com/dom/calcutta-auction/internal/service"
	"github.com/dom/calcutta-auction/internal/websocket"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// WSClient is a test WebSocket client
type WSClient struct {
	t        *testing.T
	conn     *gorillaWS.Conn
	messages chan *websocket.Message
	errors   chan error
	done     chan struct{}
	mu       sync.Mutex
}

// NewWSClient creates a new WebSocket test client
func NewWSClient(t *testing.T, url string) *WSClient {
	t.Helper()

	dialer := gorillaWS.DefaultDialer
	dialer.HandshakeTimeout = 5 * time.Second

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect to websocket: %v", err)
	}

	client := &WSClient{
		t:        t,
		conn:     conn,
		messages: make(chan *websocket.Message, 100),
		errors:   make(chan error, 10),
		done:     make(chan struct{}),
	}

	go client.readPump()

	t.Cleanup(func() {
		client.Close()
	})

	return client
}

// readPump reads messages from the WebSocket connection
func (c *WSClient) readPump() {
	defer close(c.messages)
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				select {
				case <-c.done:
					return
				case c.errors <- err:
				}
				return
			}

			var msg websocket.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				c.errors <- err
				continue
			}

			select {
			case c.messages <- &msg:
			case <-c.done:
				return
			}
		}
	}
}

// Close closes the WebSocket connection gracefully
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
		close(c.done)
		c.conn.WriteMessage(gorillaWS.CloseMessage, gorillaWS.FormatCloseMessage(gorillaWS.CloseNormalClosure, ""))
		c.conn.Close()
	}
}

// send writes one client message to the server
func (c *WSClient) send(msgType websocket.MessageType, payload interface{}) {
	c.t.Helper()

	msg, err := websocket.NewMessage(msgType, payload)
	if err != nil {
		c.t.Fatalf("failed to build %s message: %v", msgType, err)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		c.t.Fatalf("failed to marshal message: %v", err)
	}

	c.mu.Lock()
	err = c.conn.WriteMessage(gorillaWS.TextMessage, data)
	c.mu.Unlock()

	if err != nil {
		c.t.Fatalf("failed to send %s: %v", msgType, err)
	}
}

// SendRaw writes an arbitrary text frame
func (c *WSClient) SendRaw(data []byte) {
	c.t.Helper()

	c.mu.Lock()
	err := c.conn.WriteMessage(gorillaWS.TextMessage, data)
	c.mu.Unlock()

	if err != nil {
		c.t.Fatalf("failed to send raw frame: %v", err)
	}
}

// JoinSession sends JOIN_SESSION with a session id or join code
func (c *WSClient) JoinSession(idOrCode string) {
	c.send(websocket.MessageTypeJoinSession, websocket.JoinSessionPayload{SessionID: idOrCode})
}

// SyncState sends SYNC_STATE
func (c *WSClient) SyncState() {
	c.send(websocket.MessageTypeSyncState, struct{}{})
}

// PlaceBid sends PLACE_BID
func (c *WSClient) PlaceBid(amount decimal.Decimal) {
	c.send(websocket.MessageTypePlaceBid, websocket.PlaceBidPayload{Amount: amount})
}

// ExpectMessage waits for a message of the specified type
func (c *WSClient) ExpectMessage(msgType websocket.MessageType, timeout time.Duration) *websocket.Message {
	c.t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case msg := <-c.messages:
			if msg == nil {
				c.t.Fatalf("connection closed while waiting for %s", msgType)
			}
			if msg.Type == msgType {
				return msg
			}
			// Skip other message types
		case err := <-c.errors:
			c.t.Fatalf("error while waiting for %s: %v", msgType, err)
		case <-deadline:
			c.t.Fatalf("timeout waiting for message type %s", msgType)
		}
	}
}

// ExpectEvent waits for a relayed auction event and decodes its payload into v.
// v may be nil for events without a payload.
func (c *WSClient) ExpectEvent(eventType events.Type, v interface{}, timeout time.Duration) *websocket.Message {
	c.t.Helper()

	msg := c.ExpectMessage(websocket.MessageType(eventType), timeout)
	if v != nil {
		if err := json.Unmarshal(msg.Payload, v); err != nil {
			c.t.Fatalf("failed to decode %s payload: %v", eventType, err)
		}
	}
	return msg
}

// ExpectStateSync waits for and decodes a STATE_SYNC message
func (c *WSClient) ExpectStateSync(timeout time.Duration) *service.Snapshot {
	c.t.Helper()

	msg := c.ExpectMessage(websocket.MessageTypeStateSync, timeout)

	var payload service.Snapshot
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.t.Fatalf("failed to decode state sync payload: %v", err)
	}

	return &payload
}

// ExpectError waits for and decodes an ERROR message
func (c *WSClient) ExpectError(timeout time.Duration) *websocket.ErrorPayload {
	c.t.Helper()

	msg := c.ExpectMessage(websocket.MessageTypeError, timeout)

	var payload websocket.ErrorPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.t.Fatalf("failed to decode error payload: %v", err)
	}

	return &payload
}

// ExpectErrorWithCode waits for an error with a specific code
func (c *WSClient) ExpectErrorWithCode(code string, timeout time.Duration) *websocket.ErrorPayload {
	c.t.Helper()

	payload := c.ExpectError(timeout)
	if payload.Code != code {
		c.t.Fatalf("expected error code %s, got %s: %s", code, payload.Code, payload.Message)
	}

	return payload
}

// ExpectNoMessage verifies no messages are received within timeout
func (c *WSClient) ExpectNoMessage(timeout time.Duration) {
	c.t.Helper()

	select {
	case msg := <-c.messages:
		if msg != nil {
			c.t.Fatalf("unexpected message received: %s", msg.Type)
		}
	case <-time.After(timeout):
		// Expected - no message received
	}
}

// DrainMessages discards pending messages until the connection has been quiet
// for a short while.
func (c *WSClient) DrainMessages() {
	deadline := time.After(100 * time.Millisecond)
	for {
		select {
		case msg := <-c.messages:
			if msg == nil {
				return
			}
			deadline = time.After(50 * time.Millisecond)
		case <-deadline:
			return
		case <-c.done:
			return
		}
	}
}

// WaitForMessageCount waits until at least count messages have been received.
// It drains those messages and returns them.
func (c *WSClient) WaitForMessageCount(count int, timeout time.Duration) []*websocket.Message {
	c.t.Helper()

	messages := make([]*websocket.Message, 0, count)
	deadline := time.After(timeout)

	for len(messages) < count {
		select {
		case msg := <-c.messages:
			if msg == nil {
				c.t.Fatalf("connection closed after receiving %d/%d messages", len(messages), count)
			}
			messages = append(messages, msg)
		case err := <-c.errors:
			c.t.Fatalf("error after receiving %d/%d messages: %v", len(messages), count, err)
		case <-deadline:
			c.t.Fatalf("timeout waiting for messages: got %d/%d", len(messages), count)
		}
	}

	return messages
}

// ExpectMessagesOfTypes waits for messages of the specified types in any order.
// Returns a map of message type to the received message.
func (c *WSClient) ExpectMessagesOfTypes(types []websocket.MessageType, timeout time.Duration) map[websocket.MessageType]*websocket.Message {
	c.t.Helper()

	needed := make(map[websocket.MessageType]bool)
	for _, t := range types {
		needed[t] = true
	}

	result := make(map[websocket.MessageType]*websocket.Message)
	deadline := time.After(timeout)

	for len(result) < len(types) {
		select {
		case msg := <-c.messages:
			if msg == nil {
				c.t.Fatalf("connection closed while waiting for messages, got %d/%d", len(result), len(types))
			}
			if needed[msg.Type] && result[msg.Type] == nil {
				result[msg.Type] = msg
			}
		case err := <-c.errors:
			c.t.Fatalf("error while waiting for messages: %v", err)
		case <-deadline:
			missing := []websocket.MessageType{}
			for _, t := range types {
				if result[t] == nil {
					missing = append(missing, t)
				}
			}
			c.t.Fatalf("timeout waiting for messages, missing: %v", missing)
		}
	}

	return result
}
