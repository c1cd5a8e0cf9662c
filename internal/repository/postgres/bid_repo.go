package postgres

import (
	"context"

	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type bidRepository struct {
	db *gorm.DB
}

func NewBidRepository(db *gorm.DB) *bidRepository {
	return &bidRepository{db: db}
}

func (r *bidRepository) Create(ctx context.Context, bid *domain.Bid) error {
	return r.db.WithContext(ctx).Create(bid).Error
}

// ListForTeam returns the bid history of one item, highest first.
func (r *bidRepository) ListForTeam(ctx context.Context, sessionID uuid.UUID, teamID string) ([]*domain.Bid, error) {
	var bids []*domain.Bid
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND team_id = ?", sessionID, teamID).
		Order("amount DESC, created_at ASC").
		Find(&bids).Error
	if err != nil {
		return nil, err
	}
	return bids, nil
}

func (r *bidRepository) ListWinning(ctx context.Context, sessionID uuid.UUID) ([]*domain.Bid, error) {
	var bids []*domain.Bid
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND is_winning_bid = ?", sessionID, true).
		Order("created_at ASC").
		Find(&bids).Error
	if err != nil {
		return nil, err
	}
	return bids, nil
}

func (r *bidRepository) MarkWinning(ctx context.Context, sessionID uuid.UUID, teamID string, bidderID uuid.UUID, amount decimal.Decimal) (*domain.Bid, error) {
	var bid domain.Bid
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("session_id = ? AND team_id = ? AND bidder_id = ? AND amount = ?", sessionID, teamID, bidderID, amount).
			Order("created_at DESC").
			First(&bid).Error
		if err != nil {
			return err
		}
		if err := tx.Model(&domain.Bid{}).
			Where("session_id = ? AND team_id = ? AND id <> ?", sessionID, teamID, bid.ID).
			Update("is_winning_bid", false).Error; err != nil {
			return err
		}
		bid.IsWinningBid = true
		return tx.Model(&bid).Update("is_winning_bid", true).Error
	})
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

func (r *bidRepository) UnmarkWinning(ctx context.Context, sessionID uuid.UUID, teamID string) error {
	return r.db.WithContext(ctx).Model(&domain.Bid{}).
		Where("session_id = ? AND team_id = ? AND is_winning_bid = ?", sessionID, teamID, true).
		Update("is_winning_bid", false).Error
}
