package service

import (
	"context"

	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/dom/calcutta-auction/internal/repository"
	"github.com/dom/calcutta-auction/internal/valuation"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/shopspring/decimal"
)

const maxCachedSessions = 128

// ValuationService serves fair values and profit ladders for a session.
// Profit ladders are memoized per session and dropped whenever the pot or
// payout table changes.
type ValuationService struct {
	sessions    repository.SessionRepository
	tournaments repository.TournamentRepository
	teams       repository.TeamRepository
	cacheSize   int
	calculators *lru.Cache
}

func NewValuationService(repos *repository.Repositories, cacheSize int) (*ValuationService, error) {
	calculators, err := lru.New(maxCachedSessions)
	if err != nil {
		return nil, err
	}
	return &ValuationService{
		sessions:    repos.Session,
		tournaments: repos.Tournament,
		teams:       repos.Team,
		cacheSize:   cacheSize,
		calculators: calculators,
	}, nil
}

// Valuations is the bidding guide for every team in a session.
type Valuations struct {
	Rounds   []string                  `json:"rounds"`
	Pot      decimal.Decimal           `json:"pot"`
	Strategy string                    `json:"strategy"`
	Teams    []valuation.TeamValuation `json:"teams"`
}

func (s *ValuationService) Valuations(ctx context.Context, sessionID uuid.UUID) (*Valuations, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	tournament, err := s.tournaments.GetByID(ctx, session.TournamentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrTournamentNotFound
		}
		return nil, &domain.PersistenceError{Op: "load tournament", Err: err}
	}

	strategy, err := valuation.ParseStrategy(string(tournament.Structure))
	if err != nil {
		return nil, err
	}

	baseTeams, err := s.teams.ListByTournament(ctx, tournament.ID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load teams", Err: err}
	}
	teams := make([]valuation.Team, len(baseTeams))
	for i, t := range baseTeams {
		teams[i] = valuation.Team{
			ID:     t.ID,
			Seed:   t.Seed,
			Region: t.Region,
			Odds:   t.Odds.Data(),
		}
	}

	rounds := []string(tournament.Rounds)
	values, err := valuation.Value(teams, rounds, valuation.Options{
		Strategy: strategy,
		Regions:  tournament.Regions,
		Cap:      session.Settings.Data().DevigCap,
	}, session.EstimatedPotSize, domain.PayoutRules(session.PayoutRules))
	if err != nil {
		return nil, err
	}

	return &Valuations{
		Rounds:   rounds,
		Pot:      session.EstimatedPotSize,
		Strategy: strategy.String(),
		Teams:    values,
	}, nil
}

// Profits returns the cumulative payout and profit after each round for a
// team bought at price.
func (s *ValuationService) Profits(ctx context.Context, sessionID uuid.UUID, price decimal.Decimal) ([]valuation.RoundProfit, error) {
	if price.IsNegative() {
		return nil, ErrInvalidInput
	}
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	calc, err := s.calculator(session)
	if err != nil {
		return nil, err
	}
	return calc.Profits(price), nil
}

// Invalidate drops the cached ladders of a session.
func (s *ValuationService) Invalidate(sessionID uuid.UUID) {
	s.calculators.Remove(sessionID)
}

func (s *ValuationService) calculator(session *domain.AuctionSession) (*valuation.ProfitCalculator, error) {
	rules := domain.PayoutRules(session.PayoutRules)
	if cached, ok := s.calculators.Get(session.ID); ok {
		calc := cached.(*valuation.ProfitCalculator)
		// The pot or payout table may have changed on another server instance.
		calc.SetPot(session.EstimatedPotSize)
		calc.SetPayoutRules(rules)
		return calc, nil
	}

	calc, err := valuation.NewProfitCalculator(session.EstimatedPotSize, rules, s.cacheSize)
	if err != nil {
		return nil, err
	}
	s.calculators.Add(session.ID, calc)
	return calc, nil
}

func (s *ValuationService) load(ctx context.Context, sessionID uuid.UUID) (*domain.AuctionSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, &domain.PersistenceError{Op: "load session", Err: err}
	}
	return session, nil
}
