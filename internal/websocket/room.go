package websocket

import (
	"log"

	"github.com/dom/calcutta-auction/internal/service"
	"github.com/google/uuid"
)

// Room fans auction messages out to every client watching one session.
type Room struct {
	sessionID uuid.UUID
	clients   map[*Client]bool
	seq       int

	join      chan *roomJoin
	leave     chan *Client
	broadcast chan *Message
	count     chan chan int
	stop      chan struct{}
	done      chan struct{}
}

type roomJoin struct {
	client   *Client
	snapshot *service.Snapshot
}

func NewRoom(sessionID uuid.UUID) *Room {
	return &Room{
		sessionID: sessionID,
		clients:   make(map[*Client]bool),
		join:      make(chan *roomJoin),
		leave:     make(chan *Client),
		broadcast: make(chan *Message, 64),
		count:     make(chan chan int),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (r *Room) Run() {
	defer close(r.done)

	for {
		select {
		case <-r.stop:
			return

		case req := <-r.join:
			r.handleJoin(req)

		case client := <-r.leave:
			delete(r.clients, client)

		case msg := <-r.broadcast:
			r.broadcastMessage(msg)

		case reply := <-r.count:
			reply <- len(r.clients)
		}
	}
}

// Stop signals the room to exit without waiting.
func (r *Room) Stop() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
}

// Wait blocks until Run has returned.
func (r *Room) Wait() {
	<-r.done
}

// Join adds a client and sends it the snapshot. It is a no-op once the room
// has stopped.
func (r *Room) Join(client *Client, snapshot *service.Snapshot) {
	select {
	case r.join <- &roomJoin{client: client, snapshot: snapshot}:
	case <-r.done:
	}
}

func (r *Room) Leave(client *Client) {
	select {
	case r.leave <- client:
	case <-r.done:
	}
}

func (r *Room) Broadcast(msg *Message) {
	select {
	case r.broadcast <- msg:
	case <-r.done:
	}
}

// ClientCount reports how many clients are watching the session.
func (r *Room) ClientCount() int {
	reply := make(chan int, 1)
	select {
	case r.count <- reply:
		return <-reply
	case <-r.done:
		return 0
	}
}

// handleJoin sends the joining client its snapshot before any later event so
// it never applies an event to a stale view.
func (r *Room) handleJoin(req *roomJoin) {
	msg, err := NewMessage(MessageTypeStateSync, req.snapshot)
	if err != nil {
		log.Printf("ERROR [websocket.Room] marshal snapshot session=%s: %v", r.sessionID, err)
		return
	}
	msg.Seq = r.seq
	req.client.Send(msg)
	r.clients[req.client] = true
}

func (r *Room) broadcastMessage(msg *Message) {
	r.seq++
	msg.Seq = r.seq
	for client := range r.clients {
		client.Send(msg)
	}
}
