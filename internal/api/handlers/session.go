package handlers

import (
	"net/http"
	"strconv"

	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/dom/calcutta-auction/internal/service"
	"github.com/dom/calcutta-auction/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type SessionHandler struct {
	sessionService *service.SessionService
	hub            *websocket.Hub
}

func NewSessionHandler(sessionService *service.SessionService, hub *websocket.Hub) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		hub:            hub,
	}
}

type CreateSessionRequest struct {
	Name             string                  `json:"name"`
	TournamentID     string                  `json:"tournamentId"`
	DisplayName      string                  `json:"displayName"`
	Settings         *domain.SessionSettings `json:"settings"`
	PayoutRules      domain.PayoutRules      `json:"payoutRules"`
	EstimatedPotSize decimal.Decimal         `json:"estimatedPotSize"`
}

type JoinSessionRequest struct {
	DisplayName string `json:"displayName"`
}

type TeamOrderRequest struct {
	Order []string `json:"order"`
}

type AutoModeRequest struct {
	Enabled bool `json:"enabled"`
}

type PayoutRulesRequest struct {
	PayoutRules domain.PayoutRules `json:"payoutRules"`
}

type PotRequest struct {
	EstimatedPotSize decimal.Decimal `json:"estimatedPotSize"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" || req.TournamentID == "" {
		http.Error(w, "Name and tournament are required", http.StatusBadRequest)
		return
	}

	session, err := h.sessionService.Create(r.Context(), service.CreateSessionInput{
		Name:             req.Name,
		TournamentID:     req.TournamentID,
		CommissionerID:   userID,
		DisplayName:      req.DisplayName,
		Settings:         req.Settings,
		PayoutRules:      req.PayoutRules,
		EstimatedPotSize: req.EstimatedPotSize,
	})
	if err != nil {
		writeError(w, "SessionHandler.Create", err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	sessions, err := h.sessionService.ListMine(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, "SessionHandler.List", err)
		return
	}

	writeJSON(w, http.StatusOK, sessions)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	session, err := h.sessionService.Get(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeError(w, "SessionHandler.Get", err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req JoinSessionRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}

	participant, err := h.sessionService.Join(r.Context(), chi.URLParam(r, "id"), userID, req.DisplayName)
	if err != nil {
		writeError(w, "SessionHandler.Join", err)
		return
	}

	writeJSON(w, http.StatusOK, participant)
}

// State is the resync read a reconnecting client makes.
func (h *SessionHandler) State(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	snapshot, err := h.sessionService.Snapshot(r.Context(), id, userID)
	if err != nil {
		writeError(w, "SessionHandler.State", err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	if err := h.sessionService.Delete(r.Context(), id, userID); err != nil {
		writeError(w, "SessionHandler.Delete", err)
		return
	}
	h.hub.DeleteRoom(id)

	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) UpdateTeamOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req TeamOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := h.sessionService.UpdateTeamOrder(r.Context(), id, userID, req.Order)
	if err != nil {
		writeError(w, "SessionHandler.UpdateTeamOrder", err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) ToggleAutoMode(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req AutoModeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := h.sessionService.ToggleAutoMode(r.Context(), id, userID, req.Enabled)
	if err != nil {
		writeError(w, "SessionHandler.ToggleAutoMode", err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req domain.SessionSettings
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := h.sessionService.UpdateSettings(r.Context(), id, userID, req)
	if err != nil {
		writeError(w, "SessionHandler.UpdateSettings", err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) UpdatePayoutRules(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req PayoutRulesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := h.sessionService.UpdatePayoutRules(r.Context(), id, userID, req.PayoutRules)
	if err != nil {
		writeError(w, "SessionHandler.UpdatePayoutRules", err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) UpdatePot(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req PotRequest
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := h.sessionService.UpdateEstimatedPot(r.Context(), id, userID, req.EstimatedPotSize)
	if err != nil {
		writeError(w, "SessionHandler.UpdatePot", err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}
