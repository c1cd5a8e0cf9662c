package websocket

import (
	"context"
	"log"
	"sync"

	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/dom/calcutta-auction/internal/events"
	"github.com/dom/calcutta-auction/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const eventBufferSize = 256

// SessionReader is the part of the session service clients read through.
type SessionReader interface {
	Get(ctx context.Context, idOrCode string, userID uuid.UUID) (*domain.AuctionSession, error)
	Snapshot(ctx context.Context, sessionID, userID uuid.UUID) (*service.Snapshot, error)
}

// Bidder is the part of the auction service clients act through.
type Bidder interface {
	PlaceBid(ctx context.Context, sessionID, bidderID uuid.UUID, amount decimal.Decimal) (*domain.Bid, error)
}

// Hub owns the websocket clients and the per-session rooms, and relays
// auction events to them. It implements events.Publisher so services can
// publish to it directly on a single instance.
type Hub struct {
	rooms       map[uuid.UUID]*Room
	clients     map[*Client]bool
	register    chan *Client
	unregister  chan *Client
	joinSession chan *JoinSessionRequest
	events      chan *events.Event
	stop        chan struct{}
	done        chan struct{} // closed when Run() exits
	stopped     bool
	sessions    SessionReader
	bidder      Bidder
	timers      *TimerManager
	mu          sync.RWMutex
}

type JoinSessionRequest struct {
	Client    *Client
	SessionID uuid.UUID
	Snapshot  *service.Snapshot
}

func NewHub() *Hub {
	return &Hub{
		rooms:       make(map[uuid.UUID]*Room),
		clients:     make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		joinSession: make(chan *JoinSessionRequest),
		events:      make(chan *events.Event, eventBufferSize),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Bind connects the hub to the services clients act through. The services
// are built with the hub as their publisher, so this happens after both exist.
func (h *Hub) Bind(sessions SessionReader, bidder Bidder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions = sessions
	h.bidder = bidder
}

// EnableTimers turns on the server-side deadline watcher.
func (h *Hub) EnableTimers(timers *TimerManager) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.timers = timers
}

func (h *Hub) Run() {
	defer close(h.done) // Signal that Run() has exited

	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			h.stopped = true
			rooms := make([]*Room, 0, len(h.rooms))
			for _, room := range h.rooms {
				room.Stop()
				rooms = append(rooms, room)
			}
			timers := h.timers
			h.mu.Unlock()

			// Wait for all rooms to actually exit (without holding the lock)
			for _, room := range rooms {
				room.Wait()
			}
			if timers != nil {
				timers.Stop()
			}

			h.mu.Lock()
			for client := range h.clients {
				client.Close()
			}
			h.clients = make(map[*Client]bool)
			h.rooms = make(map[uuid.UUID]*Room)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if !h.stopped {
				h.clients[client] = true
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				if client.room != nil {
					client.room.Leave(client)
					client.room = nil
				}
				client.Close()
			}
			h.mu.Unlock()

		case req := <-h.joinSession:
			h.handleJoinSession(req)

		case evt := <-h.events:
			h.dispatch(evt)
		}
	}
}

// Stop gracefully shuts down the hub and all its rooms.
// It blocks until all rooms have stopped and the hub has fully shut down.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	close(h.stop)
	<-h.done // Wait for Run() to finish
}

// Publish queues an event for delivery. Delivery is best effort: when the
// buffer is full the event is dropped and clients catch up on their next
// resync.
func (h *Hub) Publish(_ context.Context, evt *events.Event) error {
	h.Dispatch(evt)
	return nil
}

// Dispatch queues an event received from the notification channel.
func (h *Hub) Dispatch(evt *events.Event) {
	select {
	case h.events <- evt:
	case <-h.done:
	default:
		log.Printf("ERROR [websocket.Hub] event buffer full, dropping %s session=%s", evt.Type, evt.SessionID)
	}
}

func (h *Hub) dispatch(evt *events.Event) {
	h.mu.RLock()
	room := h.rooms[evt.SessionID]
	timers := h.timers
	h.mu.RUnlock()

	if timers != nil {
		timers.Observe(evt)
	}
	if room != nil {
		room.Broadcast(messageFromEvent(evt))
	}
}

func (h *Hub) handleJoinSession(req *JoinSessionRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return
	}
	if _, ok := h.clients[req.Client]; !ok {
		return
	}

	room, exists := h.rooms[req.SessionID]
	if !exists {
		room = NewRoom(req.SessionID)
		h.rooms[req.SessionID] = room
		go room.Run()
		log.Printf("Created room for session %s", req.SessionID)
	}

	// Leave current room if in one
	if req.Client.room != nil && req.Client.room != room {
		req.Client.room.Leave(req.Client)
	}
	req.Client.room = room
	room.Join(req.Client, req.Snapshot)
}

// GetRoom returns the room of a session, or nil when nobody has joined it.
func (h *Hub) GetRoom(sessionID uuid.UUID) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[sessionID]
}

// DeleteRoom stops the room of a deleted session.
func (h *Hub) DeleteRoom(sessionID uuid.UUID) {
	h.mu.Lock()
	room, ok := h.rooms[sessionID]
	delete(h.rooms, sessionID)
	timers := h.timers
	h.mu.Unlock()

	if ok {
		room.Stop()
	}
	if timers != nil {
		timers.Cancel(sessionID)
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister safely unregisters a client, handling the case where the hub may be stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		// Hub stopped; Run already closed every client
	}
}

func (h *Hub) sessionReader() SessionReader {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions
}

func (h *Hub) bidService() Bidder {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.bidder
}
