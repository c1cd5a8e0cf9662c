package service

import (
	"context"
	"log"

	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/dom/calcutta-auction/internal/events"
	"github.com/dom/calcutta-auction/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlaceBid accepts a bid only through a conditional write on the high bid,
// so of any set of racing bids exactly the ones that were the true high at
// write time succeed. A lost race is reported as an ordinary low bid.
func (s *AuctionService) PlaceBid(ctx context.Context, sessionID, bidderID uuid.UUID, amount decimal.Decimal) (*domain.Bid, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidBidAmount
	}

	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	bidder, err := s.participants.Get(ctx, sessionID, bidderID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrNotParticipant
		}
		return nil, &domain.PersistenceError{Op: "load participant", Err: err}
	}

	if session.Status != domain.SessionStatusActive || session.BiddingStatus != domain.BiddingStatusOpen {
		return nil, domain.StateViolation("bidding is not open")
	}
	if amount.LessThanOrEqual(session.CurrentHighestBid) {
		return nil, &domain.BidTooLowError{Amount: amount, CurrentHigh: session.CurrentHighestBid}
	}

	index := session.CurrentItemIndex
	ok, err := s.sessions.UpdateIf(ctx, sessionID, repository.SessionCondition{
		Status:    []domain.SessionStatus{domain.SessionStatusActive},
		Bidding:   []domain.BiddingStatus{domain.BiddingStatusOpen},
		ItemIndex: &index,
		BidBelow:  &amount,
	}, map[string]interface{}{
		"current_highest_bid":       amount,
		"current_highest_bidder_id": bidderID,
	})
	if err != nil {
		return nil, &domain.PersistenceError{Op: "update high bid", Err: err}
	}
	if !ok {
		return nil, &domain.BidTooLowError{Amount: amount, CurrentHigh: session.CurrentHighestBid}
	}

	teamID := session.CurrentTeamID()
	bid := &domain.Bid{
		ID:        uuid.New(),
		SessionID: sessionID,
		TeamID:    teamID,
		BidderID:  bidderID,
		Amount:    amount,
		CreatedAt: s.clock.Now(),
	}
	if err := s.bids.Create(ctx, bid); err != nil {
		log.Printf("ERROR [service.PlaceBid] record bid session=%s team=%s amount=%s: %v", sessionID, teamID, amount, err)
		return nil, &domain.PersistenceError{Op: "record bid", Err: err}
	}

	s.emit(ctx, sessionID, events.NewBid, events.NewBidPayload{
		TeamID:     teamID,
		BidderID:   bidderID,
		BidderName: bidder.DisplayName,
		Amount:     amount,
	})

	s.extendTimer(ctx, session)
	return bid, nil
}

// extendTimer pushes the deadline out to the reset window when less than the
// window remains. The deadline only ever moves forward.
func (s *AuctionService) extendTimer(ctx context.Context, session *domain.AuctionSession) {
	if session.TimerEndsAt == nil {
		return
	}
	window := session.Settings.Data().ResetWindow()
	if window <= 0 {
		return
	}

	now := s.clock.Now()
	if session.TimerRemaining(now) >= window {
		return
	}

	endsAt := now.Add(window)
	durationMs := int(window.Milliseconds())
	index := session.CurrentItemIndex
	ok, err := s.sessions.UpdateIf(ctx, session.ID, repository.SessionCondition{
		Status:      []domain.SessionStatus{domain.SessionStatusActive},
		Bidding:     []domain.BiddingStatus{domain.BiddingStatusOpen},
		ItemIndex:   &index,
		TimerBefore: &endsAt,
	}, map[string]interface{}{
		"timer_ends_at":     endsAt,
		"timer_duration_ms": durationMs,
	})
	if err != nil {
		log.Printf("ERROR [service.PlaceBid] extend timer session=%s: %v", session.ID, err)
		return
	}
	if !ok {
		return
	}

	s.emit(ctx, session.ID, events.TimerReset, events.TimerPayload{
		EndsAt:     endsAt,
		DurationMs: durationMs,
	})
}

// AutoAdvance is the timer-expiry composite: close, then sell or skip, then
// reopen the next item when auto mode is on. It begins with a conditional
// open→closed write so of two concurrent calls only one proceeds.
func (s *AuctionService) AutoAdvance(ctx context.Context, sessionID, actorID uuid.UUID) (*domain.AuctionSession, error) {
	session, err := s.loadAsCommissioner(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.SessionStatusActive || session.BiddingStatus != domain.BiddingStatusOpen {
		return nil, domain.StateViolation("bidding is not open")
	}

	now := s.clock.Now()
	if session.TimerRemaining(now) > expiryGrace {
		return nil, domain.StateViolation("timer has not expired")
	}

	// A bid that extended the deadline after the read above makes this lose.
	cutoff := now.Add(expiryGrace)
	index := session.CurrentItemIndex
	ok, err := s.sessions.UpdateIf(ctx, sessionID, repository.SessionCondition{
		Status:      []domain.SessionStatus{domain.SessionStatusActive},
		Bidding:     []domain.BiddingStatus{domain.BiddingStatusOpen},
		ItemIndex:   &index,
		TimerBefore: &cutoff,
	}, map[string]interface{}{
		"bidding_status":    domain.BiddingStatusClosed,
		"timer_ends_at":     nil,
		"timer_duration_ms": nil,
	})
	if err != nil {
		return nil, &domain.PersistenceError{Op: "close bidding", Err: err}
	}
	if !ok {
		return nil, domain.StateViolation("auction state changed; refresh and try again")
	}

	s.emit(ctx, sessionID, events.BiddingClosed, nil)
	if session.TimerEndsAt != nil {
		s.emit(ctx, sessionID, events.TimerStop, nil)
	}

	// The high bid cannot change once bidding is closed, so re-read it.
	closed, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if closed.HasHighBid() {
		err = s.sell(ctx, closed)
	} else {
		err = s.skip(ctx, closed)
	}
	if err != nil {
		return nil, err
	}

	next, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if next.Status == domain.SessionStatusActive && next.Settings.Data().AutoMode {
		if err := s.open(ctx, next); err != nil {
			log.Printf("ERROR [service.AutoAdvance] reopen session=%s: %v", sessionID, err)
		}
		return s.load(ctx, sessionID)
	}
	return next, nil
}

// AdvanceExpired runs AutoAdvance on behalf of the session's commissioner.
// The server-side deadline watcher calls it when a stored deadline passes.
func (s *AuctionService) AdvanceExpired(ctx context.Context, sessionID uuid.UUID) (*domain.AuctionSession, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.AutoAdvance(ctx, sessionID, session.CommissionerID)
}

// Bids lists the ledger for one team, highest first. An empty teamID means the
// team currently on the block.
func (s *AuctionService) Bids(ctx context.Context, sessionID, userID uuid.UUID, teamID string) ([]*domain.Bid, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.participants.Get(ctx, sessionID, userID); err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrNotParticipant
		}
		return nil, &domain.PersistenceError{Op: "load participant", Err: err}
	}

	if teamID == "" {
		teamID = session.CurrentTeamID()
	} else if session.IndexOf(teamID) < 0 {
		return nil, domain.ErrTeamNotFound
	}

	bids, err := s.bids.ListForTeam(ctx, sessionID, teamID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list bids", Err: err}
	}
	return bids, nil
}
