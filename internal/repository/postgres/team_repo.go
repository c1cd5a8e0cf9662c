package postgres

import (
	"context"

	"github.com/dom/calcutta-auction/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type tournamentRepository struct {
	db *gorm.DB
}

func NewTournamentRepository(db *gorm.DB) *tournamentRepository {
	return &tournamentRepository{db: db}
}

func (r *tournamentRepository) Upsert(ctx context.Context, tournament *domain.Tournament) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(tournament).Error
}

func (r *tournamentRepository) GetByID(ctx context.Context, id string) (*domain.Tournament, error) {
	var tournament domain.Tournament
	err := r.db.WithContext(ctx).First(&tournament, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &tournament, nil
}

func (r *tournamentRepository) List(ctx context.Context) ([]*domain.Tournament, error) {
	var tournaments []*domain.Tournament
	err := r.db.WithContext(ctx).Order("name ASC").Find(&tournaments).Error
	if err != nil {
		return nil, err
	}
	return tournaments, nil
}

type teamRepository struct {
	db *gorm.DB
}

func NewTeamRepository(db *gorm.DB) *teamRepository {
	return &teamRepository{db: db}
}

func (r *teamRepository) UpsertMany(ctx context.Context, teams []*domain.BaseTeam) error {
	if len(teams) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(teams).Error
}

func (r *teamRepository) GetByID(ctx context.Context, id string) (*domain.BaseTeam, error) {
	var team domain.BaseTeam
	err := r.db.WithContext(ctx).First(&team, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *teamRepository) ListByTournament(ctx context.Context, tournamentID string) ([]*domain.BaseTeam, error) {
	var teams []*domain.BaseTeam
	err := r.db.WithContext(ctx).
		Where("tournament_id = ?", tournamentID).
		Order("region ASC, seed ASC, name ASC").
		Find(&teams).Error
	if err != nil {
		return nil, err
	}
	return teams, nil
}
