package service

import (
	"github.com/dom/calcutta-auction/internal/common/clock"
	"github.com/dom/calcutta-auction/internal/config"
	"github.com/dom/calcutta-auction/internal/events"
	"github.com/dom/calcutta-auction/internal/repository"
)

type Services struct {
	Auth       *AuthService
	Auction    *AuctionService
	Session    *SessionService
	Valuation  *ValuationService
	Settlement *SettlementService
	Team       *TeamService
}

func NewServices(repos *repository.Repositories, publisher events.Publisher, clk clock.Clock, cfg *config.Config) (*Services, error) {
	valuations, err := NewValuationService(repos, cfg.ValuationCacheSize)
	if err != nil {
		return nil, err
	}
	return &Services{
		Auth:       NewAuthService(repos.User, repos.RefreshToken, cfg),
		Auction:    NewAuctionService(repos, publisher, clk),
		Session:    NewSessionService(repos, publisher, valuations, cfg),
		Valuation:  valuations,
		Settlement: NewSettlementService(repos, clk),
		Team:       NewTeamService(repos.Tournament, repos.Team),
	}, nil
}
