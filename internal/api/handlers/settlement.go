package handlers

import (
	"net/http"

	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/dom/calcutta-auction/internal/service"
)

type SettlementHandler struct {
	settlementService *service.SettlementService
}

func NewSettlementHandler(settlementService *service.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlementService: settlementService}
}

type RecordResultRequest struct {
	TeamID   string               `json:"teamId"`
	RoundKey string               `json:"roundKey"`
	Result   domain.ResultOutcome `json:"result"`
}

func (h *SettlementHandler) RecordResult(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req RecordResultRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.settlementService.RecordResult(r.Context(), service.RecordResultInput{
		SessionID: id,
		ActorID:   userID,
		TeamID:    req.TeamID,
		RoundKey:  req.RoundKey,
		Result:    req.Result,
	})
	if err != nil {
		writeError(w, "SettlementHandler.RecordResult", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *SettlementHandler) Results(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	results, err := h.settlementService.Results(r.Context(), id, userID)
	if err != nil {
		writeError(w, "SettlementHandler.Results", err)
		return
	}

	writeJSON(w, http.StatusOK, results)
}

func (h *SettlementHandler) Settle(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	report, err := h.settlementService.Settle(r.Context(), id, userID)
	if err != nil {
		writeError(w, "SettlementHandler.Settle", err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}
