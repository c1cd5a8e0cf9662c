package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/dom/calcutta-auction/internal/api/middleware"
	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/dom/calcutta-auction/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto status codes. Messages of typed domain
// errors go to the caller verbatim; store failures are only logged.
func writeError(w http.ResponseWriter, origin string, err error) {
	switch {
	case domain.IsAuthorization(err):
		http.Error(w, err.Error(), http.StatusForbidden)
	case domain.IsStateViolation(err), domain.IsBidTooLow(err), errors.Is(err, domain.ErrSessionLive):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrTeamNotFound),
		errors.Is(err, domain.ErrTournamentNotFound),
		errors.Is(err, service.ErrUserNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidBidAmount),
		errors.Is(err, domain.ErrInvalidTeamOrder),
		errors.Is(err, domain.ErrInvalidItemIndex),
		errors.Is(err, domain.ErrInvalidPayoutRules),
		errors.Is(err, domain.ErrInvalidResult):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("ERROR [handlers.%s] %v", origin, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// requireUser reads the authenticated user and writes 401 when it is missing.
func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}
	return userID, ok
}

// sessionID parses the {id} route parameter and writes 400 when it is malformed.
func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
