package postgres

import (
	"context"

	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type participantRepository struct {
	db *gorm.DB
}

func NewParticipantRepository(db *gorm.DB) *participantRepository {
	return &participantRepository{db: db}
}

func (r *participantRepository) Create(ctx context.Context, participant *domain.Participant) error {
	return r.db.WithContext(ctx).Create(participant).Error
}

func (r *participantRepository) Get(ctx context.Context, sessionID, userID uuid.UUID) (*domain.Participant, error) {
	var participant domain.Participant
	err := r.db.WithContext(ctx).
		First(&participant, "session_id = ? AND user_id = ?", sessionID, userID).Error
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

func (r *participantRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.Participant, error) {
	var participants []*domain.Participant
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("joined_at ASC").
		Find(&participants).Error
	if err != nil {
		return nil, err
	}
	return participants, nil
}
