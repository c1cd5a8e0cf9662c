package postgres

import (
	"context"
	"time"

	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ownershipRepository struct {
	db *gorm.DB
}

func NewOwnershipRepository(db *gorm.DB) *ownershipRepository {
	return &ownershipRepository{db: db}
}

func (r *ownershipRepository) CreateMany(ctx context.Context, ownerships []*domain.TeamOwnership) error {
	if len(ownerships) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(ownerships).Error
}

func (r *ownershipRepository) SetOwner(ctx context.Context, sessionID uuid.UUID, teamID string, ownerID uuid.UUID, price decimal.Decimal, at time.Time) error {
	row := &domain.TeamOwnership{
		SessionID:     sessionID,
		TeamID:        teamID,
		OwnerID:       &ownerID,
		PurchasePrice: price,
		PurchasedAt:   &at,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "team_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner_id", "purchase_price", "purchased_at"}),
	}).Create(row).Error
}

func (r *ownershipRepository) Clear(ctx context.Context, sessionID uuid.UUID, teamID string) error {
	return r.db.WithContext(ctx).Model(&domain.TeamOwnership{}).
		Where("session_id = ? AND team_id = ?", sessionID, teamID).
		Updates(map[string]interface{}{
			"owner_id":       nil,
			"purchase_price": decimal.Zero,
			"purchased_at":   nil,
		}).Error
}

// MostRecentSale returns the owned row with the latest purchase time.
func (r *ownershipRepository) MostRecentSale(ctx context.Context, sessionID uuid.UUID) (*domain.TeamOwnership, error) {
	var ownership domain.TeamOwnership
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND owner_id IS NOT NULL AND purchased_at IS NOT NULL", sessionID).
		Order("purchased_at DESC").
		First(&ownership).Error
	if err != nil {
		return nil, err
	}
	return &ownership, nil
}

func (r *ownershipRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.TeamOwnership, error) {
	var ownerships []*domain.TeamOwnership
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("team_id ASC").
		Find(&ownerships).Error
	if err != nil {
		return nil, err
	}
	return ownerships, nil
}
