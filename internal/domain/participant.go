package domain

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a user's seat in an auction session.
type Participant struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SessionID      uuid.UUID `json:"sessionId" gorm:"type:uuid;not null;uniqueIndex:idx_participants_session_user"`
	UserID         uuid.UUID `json:"userId" gorm:"type:uuid;not null;uniqueIndex:idx_participants_session_user"`
	DisplayName    string    `json:"displayName" gorm:"type:varchar(100);not null"`
	IsCommissioner bool      `json:"isCommissioner" gorm:"not null;default:false"`
	JoinedAt       time.Time `json:"joinedAt" gorm:"autoCreateTime"`

	// Relations
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// TableName returns the table name for GORM
func (Participant) TableName() string {
	return "participants"
}
