package postgres

import (
	"context"

	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/dom/calcutta-auction/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.AuctionSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.AuctionSession, error) {
	var session domain.AuctionSession
	err := r.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC")
		}).
		First(&session, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetByJoinCode only matches sessions that still hold their code.
func (r *sessionRepository) GetByJoinCode(ctx context.Context, code string) (*domain.AuctionSession, error) {
	var session domain.AuctionSession
	err := r.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC")
		}).
		Where("status <> ?", domain.SessionStatusCompleted).
		First(&session, "join_code = ?", code).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) Update(ctx context.Context, session *domain.AuctionSession) error {
	return r.db.WithContext(ctx).Omit("Participants").Save(session).Error
}

func (r *sessionRepository) UpdateIf(ctx context.Context, id uuid.UUID, cond repository.SessionCondition, changes map[string]interface{}) (bool, error) {
	q := r.db.WithContext(ctx).Model(&domain.AuctionSession{}).Where("id = ?", id)
	if len(cond.Status) > 0 {
		q = q.Where("status IN ?", cond.Status)
	}
	if len(cond.Bidding) > 0 {
		q = q.Where("bidding_status IN ?", cond.Bidding)
	}
	if cond.ItemIndex != nil {
		q = q.Where("current_item_index = ?", *cond.ItemIndex)
	}
	if cond.BidBelow != nil {
		q = q.Where("current_highest_bid < ?", *cond.BidBelow)
	}
	if cond.TimerBefore != nil {
		q = q.Where("(timer_ends_at IS NULL OR timer_ends_at < ?)", *cond.TimerBefore)
	}

	result := q.Updates(changes)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *sessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&domain.Bid{}, "session_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&domain.TeamOwnership{}, "session_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&domain.TournamentResult{}, "session_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&domain.Participant{}, "session_id = ?", id).Error; err != nil {
			return err
		}
		result := tx.Delete(&domain.AuctionSession{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *sessionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.AuctionSession, error) {
	var sessions []*domain.AuctionSession
	err := r.db.WithContext(ctx).
		Where("id IN (?)", r.db.Model(&domain.Participant{}).Select("session_id").Where("user_id = ?", userID)).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}
