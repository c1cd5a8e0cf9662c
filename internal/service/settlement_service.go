package service

import (
	"context"
	"time"

	"github.com/dom/calcutta-auction/internal/common/clock"
	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/dom/calcutta-auction/internal/repository"
	"github.com/dom/calcutta-auction/internal/settlement"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SettlementService records tournament results and settles finished auctions.
type SettlementService struct {
	sessions     repository.SessionRepository
	participants repository.ParticipantRepository
	bids         repository.BidRepository
	tournaments  repository.TournamentRepository
	teams        repository.TeamRepository
	results      repository.ResultRepository
	clock        clock.Clock
}

func NewSettlementService(repos *repository.Repositories, clk clock.Clock) *SettlementService {
	return &SettlementService{
		sessions:     repos.Session,
		participants: repos.Participant,
		bids:         repos.Bid,
		tournaments:  repos.Tournament,
		teams:        repos.Team,
		results:      repos.Result,
		clock:        clk,
	}
}

type RecordResultInput struct {
	SessionID uuid.UUID
	ActorID   uuid.UUID
	TeamID    string
	RoundKey  string
	Result    domain.ResultOutcome
}

// RecordResult stores one (team, round) outcome for the session. Only its
// commissioner may enter results.
func (s *SettlementService) RecordResult(ctx context.Context, input RecordResultInput) (*domain.TournamentResult, error) {
	if !input.Result.IsValid() {
		return nil, domain.ErrInvalidResult
	}

	session, err := s.load(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	if session.CommissionerID != input.ActorID {
		return nil, domain.ErrNotCommissioner
	}
	if session.IndexOf(input.TeamID) < 0 {
		return nil, domain.ErrTeamNotFound
	}

	tournament, err := s.tournaments.GetByID(ctx, session.TournamentID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load tournament", Err: err}
	}
	if !containsRound(tournament.Rounds, input.RoundKey) {
		return nil, domain.ErrInvalidResult
	}

	result := &domain.TournamentResult{
		ID:        uuid.New(),
		SessionID: session.ID,
		TeamID:    input.TeamID,
		RoundKey:  input.RoundKey,
		Result:    input.Result,
		UpdatedAt: s.clock.Now(),
	}
	if err := s.results.Upsert(ctx, result); err != nil {
		return nil, &domain.PersistenceError{Op: "record result", Err: err}
	}
	return result, nil
}

// Results returns the outcomes recorded for the session.
func (s *SettlementService) Results(ctx context.Context, sessionID, userID uuid.UUID) ([]*domain.TournamentResult, error) {
	if _, err := s.loadForParticipant(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	results, err := s.results.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load results", Err: err}
	}
	return results, nil
}

// Settlement is the settle report plus when it was computed.
type Settlement struct {
	*settlement.Report
	ComputedAt time.Time `json:"computedAt"`
}

// Settle computes balances and payments from the winning bids and the
// results recorded so far. The pot is the sum of winning bids.
func (s *SettlementService) Settle(ctx context.Context, sessionID, userID uuid.UUID) (*Settlement, error) {
	session, err := s.loadForParticipant(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	var (
		participants []*domain.Participant
		winning      []*domain.Bid
		results      []*domain.TournamentResult
		tournament   *domain.Tournament
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		participants, err = s.participants.ListBySession(gctx, sessionID)
		return err
	})
	g.Go(func() (err error) {
		winning, err = s.bids.ListWinning(gctx, sessionID)
		return err
	})
	g.Go(func() (err error) {
		results, err = s.results.ListBySession(gctx, sessionID)
		return err
	})
	g.Go(func() (err error) {
		tournament, err = s.tournaments.GetByID(gctx, session.TournamentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, &domain.PersistenceError{Op: "load settlement inputs", Err: err}
	}

	names := make(map[uuid.UUID]string, len(participants))
	for _, p := range participants {
		names[p.UserID] = p.DisplayName
	}

	sales := make([]settlement.Sale, len(winning))
	for i, b := range winning {
		sales[i] = settlement.Sale{TeamID: b.TeamID, OwnerID: b.BidderID, Price: b.Amount}
	}

	byTeam := make(settlement.Results)
	for _, r := range results {
		if byTeam[r.TeamID] == nil {
			byTeam[r.TeamID] = make(map[string]domain.ResultOutcome)
		}
		byTeam[r.TeamID][r.RoundKey] = r.Result
	}

	report := settlement.Settle(settlement.Input{
		Sales:       sales,
		Results:     byTeam,
		Rounds:      tournament.Rounds,
		PayoutRules: domain.PayoutRules(session.PayoutRules),
		Names:       names,
	})
	return &Settlement{Report: report, ComputedAt: s.clock.Now()}, nil
}

func (s *SettlementService) load(ctx context.Context, sessionID uuid.UUID) (*domain.AuctionSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, &domain.PersistenceError{Op: "load session", Err: err}
	}
	return session, nil
}

func (s *SettlementService) loadForParticipant(ctx context.Context, sessionID, userID uuid.UUID) (*domain.AuctionSession, error) {
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
	return session, nil
}

func containsRound(rounds []string, round string) bool {
	for _, r := range rounds {
		if r == round {
			return true
		}
	}
	return false
}
