package postgres

import (
	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/dom/calcutta-auction/internal/repository"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewConnection(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates every table the server uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.RefreshToken{},
		&domain.Tournament{},
		&domain.BaseTeam{},
		&domain.AuctionSession{},
		&domain.Participant{},
		&domain.Bid{},
		&domain.TeamOwnership{},
		&domain.TournamentResult{},
	)
}

func NewRepositories(db *gorm.DB) *repository.Repositories {
	return &repository.Repositories{
		User:         NewUserRepository(db),
		RefreshToken: NewRefreshTokenRepository(db),
		Session:      NewSessionRepository(db),
		Participant:  NewParticipantRepository(db),
		Bid:          NewBidRepository(db),
		Tournament:   NewTournamentRepository(db),
		Team:         NewTeamRepository(db),
		Ownership:    NewOwnershipRepository(db),
		Result:       NewResultRepository(db),
	}
}
