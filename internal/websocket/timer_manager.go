package websocket

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/dom/calcutta-auction/internal/common/clock"
	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/dom/calcutta-auction/internal/events"
	"github.com/google/uuid"
)

const (
	// expiryBuffer delays the server-side advance slightly past the deadline
	// so a client-driven advance usually lands first.
	expiryBuffer   = 250 * time.Millisecond
	advanceTimeout = 10 * time.Second
)

// AdvanceFunc closes out the item whose deadline has passed.
type AdvanceFunc func(ctx context.Context, sessionID uuid.UUID) error

// TimerManager mirrors the stored bidding deadlines of every session and
// advances a session when its deadline passes. It follows the timer events,
// so it holds no authoritative state: a stale firing is rejected by the
// conditional close inside the advance.
type TimerManager struct {
	clock   clock.Clock
	advance AdvanceFunc
	timers  map[uuid.UUID]*time.Timer
	stopped bool
	wg      sync.WaitGroup

	mu sync.Mutex
}

func NewTimerManager(clk clock.Clock, advance AdvanceFunc) *TimerManager {
	return &TimerManager{
		clock:   clk,
		advance: advance,
		timers:  make(map[uuid.UUID]*time.Timer),
	}
}

// Observe updates the schedule from one auction event.
func (tm *TimerManager) Observe(evt *events.Event) {
	switch evt.Type {
	case events.TimerStart, events.TimerReset:
		var payload events.TimerPayload
		if err := evt.Decode(&payload); err != nil {
			log.Printf("ERROR [websocket.TimerManager] decode %s session=%s: %v", evt.Type, evt.SessionID, err)
			return
		}
		tm.Schedule(evt.SessionID, payload.EndsAt)

	case events.TimerStop, events.AuctionPaused, events.AuctionCompleted:
		tm.Cancel(evt.SessionID)
	}
}

// Schedule replaces any pending advance for the session with one at endsAt.
func (tm *TimerManager) Schedule(sessionID uuid.UUID, endsAt time.Time) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.stopped {
		return
	}
	if existing, ok := tm.timers[sessionID]; ok {
		existing.Stop()
	}

	delay := endsAt.Sub(tm.clock.Now()) + expiryBuffer
	if delay < 0 {
		delay = 0
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		tm.fire(sessionID, &timer)
	})
	tm.timers[sessionID] = timer
}

// Cancel drops the pending advance for the session, if any.
func (tm *TimerManager) Cancel(sessionID uuid.UUID) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if timer, ok := tm.timers[sessionID]; ok {
		timer.Stop()
		delete(tm.timers, sessionID)
	}
}

// Pending reports whether an advance is scheduled for the session.
func (tm *TimerManager) Pending(sessionID uuid.UUID) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	_, ok := tm.timers[sessionID]
	return ok
}

// Stop cancels every pending advance and waits for in-flight ones.
func (tm *TimerManager) Stop() {
	tm.mu.Lock()
	tm.stopped = true
	for id, timer := range tm.timers {
		timer.Stop()
		delete(tm.timers, id)
	}
	tm.mu.Unlock()

	tm.wg.Wait()
}

// fire receives the timer by reference because it is assigned under the lock
// after AfterFunc returns.
func (tm *TimerManager) fire(sessionID uuid.UUID, timer **time.Timer) {
	tm.mu.Lock()
	// A newer schedule replaced this timer after it had already fired.
	if tm.stopped || tm.timers[sessionID] != *timer {
		tm.mu.Unlock()
		return
	}
	delete(tm.timers, sessionID)
	tm.wg.Add(1)
	tm.mu.Unlock()
	defer tm.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), advanceTimeout)
	defer cancel()

	if err := tm.advance(ctx, sessionID); err != nil {
		if domain.IsStateViolation(err) {
			log.Printf("Timer: session %s already moved on: %v", sessionID, err)
			return
		}
		log.Printf("ERROR [websocket.TimerManager] auto advance session=%s: %v", sessionID, err)
	}
}
