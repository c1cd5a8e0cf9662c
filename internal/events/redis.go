package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const channelPrefix = "auction:"

// Channel returns the pub/sub channel name for a session.
func Channel(sessionID uuid.UUID) string {
	return channelPrefix + sessionID.String()
}

// RedisBroker publishes events over Redis pub/sub so any server instance
// can fan them out to its own websocket clients.
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker checks the connection and returns a broker.
func NewRedisBroker(ctx context.Context, client *redis.Client) (*RedisBroker, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisBroker{client: client}, nil
}

// Publish sends the event on its session channel.
func (b *RedisBroker) Publish(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, Channel(event.SessionID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

// Start runs Listen in the background and returns once the subscription is
// confirmed. A subscription failure is returned instead of blocking forever.
func (b *RedisBroker) Start(ctx context.Context, handle func(*Event)) error {
	ready := make(chan struct{})
	failed := make(chan error, 1)
	go func() {
		if err := b.Listen(ctx, ready, handle); err != nil {
			log.Printf("ERROR [events.Start] listener stopped: %v", err)
			failed <- err
		}
	}()

	select {
	case <-ready:
		return nil
	case err := <-failed:
		return err
	}
}

// Listen subscribes to every session channel and calls handle for each event
// until ctx is cancelled. ready, when non-nil, is closed once the
// subscription is confirmed.
func (b *RedisBroker) Listen(ctx context.Context, ready chan<- struct{}, handle func(*Event)) error {
	sub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("ERROR [events.Listen] bad payload on %s: %v", msg.Channel, err)
				continue
			}
			if event.SessionID == uuid.Nil {
				if id, err := uuid.Parse(strings.TrimPrefix(msg.Channel, channelPrefix)); err == nil {
					event.SessionID = id
				}
			}
			handle(&event)
		}
	}
}
