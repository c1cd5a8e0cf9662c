package service

import (
	"errors"
	"log"

	"github.com/dom/calcutta-auction/internal/events"
	"github.com/google/uuid"
)

var ErrInvalidInput = errors.New("invalid input")

func logPublishError(origin string, t events.Type, sessionID uuid.UUID, err error) {
	log.Printf("ERROR [%s] publish %s session=%s: %v", origin, t, sessionID, err)
}
