package postgres

import (
	"context"

	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type resultRepository struct {
	db *gorm.DB
}

func NewResultRepository(db *gorm.DB) *resultRepository {
	return &resultRepository{db: db}
}

func (r *resultRepository) Upsert(ctx context.Context, result *domain.TournamentResult) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "team_id"}, {Name: "round_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"result", "updated_at"}),
	}).Create(result).Error
}

func (r *resultRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.TournamentResult, error) {
	var results []*domain.TournamentResult
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("team_id ASC, round_key ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
