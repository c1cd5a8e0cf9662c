package service

import (
	"context"
	"log"
	"time"

	"github.com/dom/calcutta-auction/internal/common/clock"
	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/dom/calcutta-auction/internal/events"
	"github.com/dom/calcutta-auction/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionService drives the session state machine. Every operation re-reads
// the session, checks the transition, writes with a conditional update keyed
// on the state it read, and only then publishes events.
type AuctionService struct {
	sessions     repository.SessionRepository
	participants repository.ParticipantRepository
	bids         repository.BidRepository
	ownerships   repository.OwnershipRepository
	publisher    events.Publisher
	clock        clock.Clock
}

func NewAuctionService(repos *repository.Repositories, publisher events.Publisher, clk clock.Clock) *AuctionService {
	return &AuctionService{
		sessions:     repos.Session,
		participants: repos.Participant,
		bids:         repos.Bid,
		ownerships:   repos.Ownership,
		publisher:    publisher,
		clock:        clk,
	}
}

// Start moves a lobby or paused session to active.
func (s *AuctionService) Start(ctx context.Context, sessionID, actorID uuid.UUID) (*domain.AuctionSession, error) {
	session, err := s.loadAsCommissioner(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}

	switch session.Status {
	case domain.SessionStatusLobby, domain.SessionStatusPaused:
	case domain.SessionStatusActive:
		return nil, domain.StateViolation("auction has already started")
	default:
		return nil, domain.StateViolation("auction is completed")
	}

	index := 0
	if session.Status == domain.SessionStatusPaused {
		index = session.CurrentItemIndex
	}

	changes := resetItemChanges()
	changes["status"] = domain.SessionStatusActive
	changes["current_item_index"] = index

	if err := s.transition(ctx, session, changes); err != nil {
		return nil, err
	}

	s.emit(ctx, sessionID, events.AuctionStarted, events.ItemIndexPayload{ItemIndex: index})
	return s.load(ctx, sessionID)
}

// Present jumps to an unsold item while bidding is not open.
func (s *AuctionService) Present(ctx context.Context, sessionID, actorID uuid.UUID, index int) (*domain.AuctionSession, error) {
	session, err := s.loadAsCommissioner(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}

	if session.Status != domain.SessionStatusActive {
		return nil, domain.StateViolation("auction is not active")
	}
	if session.BiddingStatus == domain.BiddingStatusOpen {
		return nil, domain.StateViolation("close bidding before presenting a new team")
	}
	if index < 0 || index >= len(session.TeamOrder) {
		return nil, domain.ErrInvalidItemIndex
	}

	sold, err := s.isSold(ctx, sessionID, session.TeamOrder[index])
	if err != nil {
		return nil, err
	}
	if sold {
		return nil, domain.StateViolation("team has already been sold")
	}

	changes := resetItemChanges()
	changes["current_item_index"] = index

	if err := s.transition(ctx, session, changes); err != nil {
		return nil, err
	}

	s.emit(ctx, sessionID, events.TeamPresented, events.ItemIndexPayload{ItemIndex: index})
	return s.load(ctx, sessionID)
}

// Open starts bidding on the current item and arms the timer when configured.
func (s *AuctionService) Open(ctx context.Context, sessionID, actorID uuid.UUID) (*domain.AuctionSession, error) {
	session, err := s.loadAsCommissioner(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.open(ctx, session); err != nil {
		return nil, err
	}
	return s.load(ctx, sessionID)
}

func (s *AuctionService) open(ctx context.Context, session *domain.AuctionSession) error {
	if session.Status != domain.SessionStatusActive {
		return domain.StateViolation("auction is not active")
	}
	switch session.BiddingStatus {
	case domain.BiddingStatusOpen:
		return domain.StateViolation("bidding already open")
	case domain.BiddingStatusClosed:
		return domain.StateViolation("sell or skip the current team before reopening bidding")
	}

	// A present jump can leave later items already sold.
	sold, err := s.isSold(ctx, session.ID, session.CurrentTeamID())
	if err != nil {
		return err
	}
	if sold {
		return domain.StateViolation("team has already been sold")
	}

	changes := map[string]interface{}{
		"bidding_status": domain.BiddingStatusOpen,
	}

	var timer *events.TimerPayload
	if d := session.Settings.Data().TimerDuration(); d > 0 {
		endsAt := s.clock.Now().Add(d)
		durationMs := int(d.Milliseconds())
		changes["timer_ends_at"] = endsAt
		changes["timer_duration_ms"] = durationMs
		timer = &events.TimerPayload{EndsAt: endsAt, DurationMs: durationMs}
	}

	if err := s.transition(ctx, session, changes); err != nil {
		return err
	}

	s.emit(ctx, session.ID, events.BiddingOpen, nil)
	if timer != nil {
		s.emit(ctx, session.ID, events.TimerStart, timer)
	}
	return nil
}

// Close ends bidding on the current item and stops the timer.
func (s *AuctionService) Close(ctx context.Context, sessionID, actorID uuid.UUID) (*domain.AuctionSession, error) {
	session, err := s.loadAsCommissioner(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.SessionStatusActive || session.BiddingStatus != domain.BiddingStatusOpen {
		return nil, domain.StateViolation("bidding is not open")
	}

	if err := s.transition(ctx, session, map[string]interface{}{
		"bidding_status":    domain.BiddingStatusClosed,
		"timer_ends_at":     nil,
		"timer_duration_ms": nil,
	}); err != nil {
		return nil, err
	}

	s.emit(ctx, sessionID, events.BiddingClosed, nil)
	if session.TimerEndsAt != nil {
		s.emit(ctx, sessionID, events.TimerStop, nil)
	}
	return s.load(ctx, sessionID)
}

// Sell awards the current item to the high bidder and advances.
func (s *AuctionService) Sell(ctx context.Context, sessionID, actorID uuid.UUID) (*domain.AuctionSession, error) {
	session, err := s.loadAsCommissioner(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.sell(ctx, session); err != nil {
		return nil, err
	}
	return s.load(ctx, sessionID)
}

func (s *AuctionService) sell(ctx context.Context, session *domain.AuctionSession) error {
	if session.Status != domain.SessionStatusActive || session.BiddingStatus != domain.BiddingStatusClosed {
		return domain.StateViolation("close bidding before selling")
	}
	if !session.HasHighBid() {
		return domain.StateViolation("no bids to sell")
	}

	teamID := session.CurrentTeamID()
	winnerID := *session.CurrentHighestBidderID
	amount := session.CurrentHighestBid
	now := s.clock.Now()

	nextIndex, complete := s.advance(session)
	changes := resetItemChanges()
	if complete {
		changes["status"] = domain.SessionStatusCompleted
		changes["completed_at"] = now
	} else {
		changes["current_item_index"] = *nextIndex
	}

	if err := s.transition(ctx, session, changes); err != nil {
		return err
	}

	// The state write above is authoritative. The follow-up writes are best
	// effort and a failure leaves the store partially updated.
	if _, err := s.bids.MarkWinning(ctx, session.ID, teamID, winnerID, amount); err != nil {
		log.Printf("ERROR [service.Sell] mark winning bid session=%s team=%s: %v", session.ID, teamID, err)
	}
	if err := s.ownerships.SetOwner(ctx, session.ID, teamID, winnerID, amount, now); err != nil {
		log.Printf("ERROR [service.Sell] set ownership session=%s team=%s: %v", session.ID, teamID, err)
	}

	s.emit(ctx, session.ID, events.TeamSold, events.TeamSoldPayload{
		ItemID:     teamID,
		WinnerID:   winnerID,
		WinnerName: s.displayName(ctx, session.ID, winnerID),
		Amount:     amount,
		NextIndex:  nextIndex,
		IsComplete: complete,
	})
	if complete {
		s.emit(ctx, session.ID, events.AuctionCompleted, nil)
	}
	return nil
}

// Skip passes on the current item without a sale.
func (s *AuctionService) Skip(ctx context.Context, sessionID, actorID uuid.UUID) (*domain.AuctionSession, error) {
	session, err := s.loadAsCommissioner(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.skip(ctx, session); err != nil {
		return nil, err
	}
	return s.load(ctx, sessionID)
}

func (s *AuctionService) skip(ctx context.Context, session *domain.AuctionSession) error {
	if session.Status != domain.SessionStatusActive {
		return domain.StateViolation("auction is not active")
	}
	if session.BiddingStatus == domain.BiddingStatusOpen {
		return domain.StateViolation("close bidding before skipping")
	}

	teamID := session.CurrentTeamID()
	nextIndex, complete := s.advance(session)
	changes := resetItemChanges()
	if complete {
		changes["status"] = domain.SessionStatusCompleted
		changes["completed_at"] = s.clock.Now()
	} else {
		changes["current_item_index"] = *nextIndex
	}

	if err := s.transition(ctx, session, changes); err != nil {
		return err
	}

	s.emit(ctx, session.ID, events.TeamSkipped, events.TeamSkippedPayload{
		ItemID:    teamID,
		NextIndex: nextIndex,
	})
	if complete {
		s.emit(ctx, session.ID, events.AuctionCompleted, nil)
	}
	return nil
}

// Undo reverses the most recent sale and puts the pointer back on that item.
func (s *AuctionService) Undo(ctx context.Context, sessionID, actorID uuid.UUID) (*domain.AuctionSession, error) {
	session, err := s.loadAsCommissioner(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}

	if session.Status == domain.SessionStatusLobby {
		return nil, domain.StateViolation("auction has not started")
	}
	if session.BiddingStatus == domain.BiddingStatusOpen {
		return nil, domain.StateViolation("close bidding before undoing a sale")
	}

	sale, err := s.ownerships.MostRecentSale(ctx, sessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.StateViolation("no sale to undo")
		}
		return nil, &domain.PersistenceError{Op: "load last sale", Err: err}
	}

	index := session.IndexOf(sale.TeamID)
	if index < 0 {
		return nil, domain.ErrTeamNotFound
	}

	changes := resetItemChanges()
	changes["current_item_index"] = index
	if session.Status == domain.SessionStatusCompleted {
		changes["status"] = domain.SessionStatusActive
		changes["completed_at"] = nil
	}

	if err := s.transition(ctx, session, changes); err != nil {
		return nil, err
	}

	if err := s.bids.UnmarkWinning(ctx, sessionID, sale.TeamID); err != nil {
		log.Printf("ERROR [service.Undo] unmark winning bid session=%s team=%s: %v", sessionID, sale.TeamID, err)
	}
	if err := s.ownerships.Clear(ctx, sessionID, sale.TeamID); err != nil {
		log.Printf("ERROR [service.Undo] clear ownership session=%s team=%s: %v", sessionID, sale.TeamID, err)
	}

	s.emit(ctx, sessionID, events.SaleUndone, events.SaleUndonePayload{
		ItemID:    sale.TeamID,
		ItemIndex: index,
	})
	return s.load(ctx, sessionID)
}

// Pause halts the bidding cycle and clears the timer.
func (s *AuctionService) Pause(ctx context.Context, sessionID, actorID uuid.UUID) (*domain.AuctionSession, error) {
	session, err := s.loadAsCommissioner(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.SessionStatusActive {
		return nil, domain.StateViolation("auction is not active")
	}

	if err := s.transition(ctx, session, map[string]interface{}{
		"status":            domain.SessionStatusPaused,
		"bidding_status":    domain.BiddingStatusWaiting,
		"timer_ends_at":     nil,
		"timer_duration_ms": nil,
	}); err != nil {
		return nil, err
	}

	s.emit(ctx, sessionID, events.AuctionPaused, nil)
	if session.TimerEndsAt != nil {
		s.emit(ctx, sessionID, events.TimerStop, nil)
	}
	return s.load(ctx, sessionID)
}

// CompleteAuction forces the terminal state.
func (s *AuctionService) CompleteAuction(ctx context.Context, sessionID, actorID uuid.UUID) (*domain.AuctionSession, error) {
	session, err := s.loadAsCommissioner(ctx, sessionID, actorID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case domain.SessionStatusLobby:
		return nil, domain.StateViolation("auction has not started")
	case domain.SessionStatusCompleted:
		return nil, domain.StateViolation("auction is completed")
	}

	changes := resetItemChanges()
	changes["status"] = domain.SessionStatusCompleted
	changes["completed_at"] = s.clock.Now()

	if err := s.transition(ctx, session, changes); err != nil {
		return nil, err
	}

	if session.TimerEndsAt != nil {
		s.emit(ctx, sessionID, events.TimerStop, nil)
	}
	s.emit(ctx, sessionID, events.AuctionCompleted, nil)
	return s.load(ctx, sessionID)
}

// advance returns the next index, or nil and true when the item was the last.
func (s *AuctionService) advance(session *domain.AuctionSession) (*int, bool) {
	if session.IsLastItem() {
		return nil, true
	}
	next := session.CurrentItemIndex + 1
	return &next, false
}

func (s *AuctionService) isSold(ctx context.Context, sessionID uuid.UUID, teamID string) (bool, error) {
	ownerships, err := s.ownerships.ListBySession(ctx, sessionID)
	if err != nil {
		return false, &domain.PersistenceError{Op: "load ownerships", Err: err}
	}
	for _, o := range ownerships {
		if o.TeamID == teamID {
			return o.IsOwned(), nil
		}
	}
	return false, nil
}

func (s *AuctionService) displayName(ctx context.Context, sessionID, userID uuid.UUID) string {
	p, err := s.participants.Get(ctx, sessionID, userID)
	if err != nil {
		return ""
	}
	return p.DisplayName
}

func (s *AuctionService) load(ctx context.Context, sessionID uuid.UUID) (*domain.AuctionSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, &domain.PersistenceError{Op: "load session", Err: err}
	}
	return session, nil
}

func (s *AuctionService) loadAsCommissioner(ctx context.Context, sessionID, actorID uuid.UUID) (*domain.AuctionSession, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CommissionerID != actorID {
		return nil, domain.ErrNotCommissioner
	}
	return session, nil
}

// transition writes changes only if the session still has the status,
// bidding status and item index that were read.
func (s *AuctionService) transition(ctx context.Context, session *domain.AuctionSession, changes map[string]interface{}) error {
	index := session.CurrentItemIndex
	ok, err := s.sessions.UpdateIf(ctx, session.ID, repository.SessionCondition{
		Status:    []domain.SessionStatus{session.Status},
		Bidding:   []domain.BiddingStatus{session.BiddingStatus},
		ItemIndex: &index,
	}, changes)
	if err != nil {
		return &domain.PersistenceError{Op: "update session", Err: err}
	}
	if !ok {
		return domain.StateViolation("auction state changed; refresh and try again")
	}
	return nil
}

func (s *AuctionService) emit(ctx context.Context, sessionID uuid.UUID, t events.Type, payload interface{}) {
	event, err := events.New(sessionID, t, payload)
	if err != nil {
		log.Printf("ERROR [service.emit] build %s: %v", t, err)
		return
	}
	event.Timestamp = s.clock.Now().UnixMilli()
	if err := s.publisher.Publish(ctx, event); err != nil {
		logPublishError("service.AuctionService", t, sessionID, err)
	}
}

// resetItemChanges clears the per-item bidding state.
func resetItemChanges() map[string]interface{} {
	return map[string]interface{}{
		"bidding_status":            domain.BiddingStatusWaiting,
		"current_highest_bid":       decimal.Zero,
		"current_highest_bidder_id": nil,
		"timer_ends_at":             nil,
		"timer_duration_ms":         nil,
	}
}

// expiryGrace absorbs clock skew between the deadline holder and the server.
const expiryGrace = 500 * time.Millisecond
