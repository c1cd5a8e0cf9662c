package repository

import (
	"context"
	"time"

	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByDisplayName(ctx context.Context, displayName string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.RefreshToken, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

// SessionCondition is the expected state a conditional session write is
// keyed on. Empty fields are not checked.
type SessionCondition struct {
	Status    []domain.SessionStatus
	Bidding   []domain.BiddingStatus
	ItemIndex *int
	// BidBelow requires current_highest_bid < the value.
	BidBelow *decimal.Decimal
	// TimerBefore requires the stored deadline to be unset or earlier.
	TimerBefore *time.Time
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.AuctionSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.AuctionSession, error)
	GetByJoinCode(ctx context.Context, code string) (*domain.AuctionSession, error)
	Update(ctx context.Context, session *domain.AuctionSession) error
	// UpdateIf applies changes only when the row still matches cond and
	// reports whether it did.
	UpdateIf(ctx context.Context, id uuid.UUID, cond SessionCondition, changes map[string]interface{}) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.AuctionSession, error)
}

type ParticipantRepository interface {
	Create(ctx context.Context, participant *domain.Participant) error
	Get(ctx context.Context, sessionID, userID uuid.UUID) (*domain.Participant, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.Participant, error)
}

type BidRepository interface {
	Create(ctx context.Context, bid *domain.Bid) error
	ListForTeam(ctx context.Context, sessionID uuid.UUID, teamID string) ([]*domain.Bid, error)
	ListWinning(ctx context.Context, sessionID uuid.UUID) ([]*domain.Bid, error)
	// MarkWinning flags the latest bid matching bidder and amount on the team.
	MarkWinning(ctx context.Context, sessionID uuid.UUID, teamID string, bidderID uuid.UUID, amount decimal.Decimal) (*domain.Bid, error)
	UnmarkWinning(ctx context.Context, sessionID uuid.UUID, teamID string) error
}

type TournamentRepository interface {
	Upsert(ctx context.Context, tournament *domain.Tournament) error
	GetByID(ctx context.Context, id string) (*domain.Tournament, error)
	List(ctx context.Context) ([]*domain.Tournament, error)
}

type TeamRepository interface {
	UpsertMany(ctx context.Context, teams []*domain.BaseTeam) error
	GetByID(ctx context.Context, id string) (*domain.BaseTeam, error)
	ListByTournament(ctx context.Context, tournamentID string) ([]*domain.BaseTeam, error)
}

type OwnershipRepository interface {
	CreateMany(ctx context.Context, ownerships []*domain.TeamOwnership) error
	SetOwner(ctx context.Context, sessionID uuid.UUID, teamID string, ownerID uuid.UUID, price decimal.Decimal, at time.Time) error
	Clear(ctx context.Context, sessionID uuid.UUID, teamID string) error
	MostRecentSale(ctx context.Context, sessionID uuid.UUID) (*domain.TeamOwnership, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.TeamOwnership, error)
}

type ResultRepository interface {
	Upsert(ctx context.Context, result *domain.TournamentResult) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.TournamentResult, error)
}

type Repositories struct {
	User         UserRepository
	RefreshToken RefreshTokenRepository
	Session      SessionRepository
	Participant  ParticipantRepository
	Bid          BidRepository
	Tournament   TournamentRepository
	Team         TeamRepository
	Ownership    OwnershipRepository
	Result       ResultRepository
}
