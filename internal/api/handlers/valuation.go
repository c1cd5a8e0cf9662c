package handlers

import (
	"net/http"

	"github.com/dom/calcutta-auction/internal/service"
	"github.com/shopspring/decimal"
)

type ValuationHandler struct {
	valuationService *service.ValuationService
}

func NewValuationHandler(valuationService *service.ValuationService) *ValuationHandler {
	return &ValuationHandler{valuationService: valuationService}
}

func (h *ValuationHandler) Valuations(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	valuations, err := h.valuationService.Valuations(r.Context(), id)
	if err != nil {
		writeError(w, "ValuationHandler.Valuations", err)
		return
	}

	writeJSON(w, http.StatusOK, valuations)
}

// Profits answers "what do I make per round if I buy at ?price".
func (h *ValuationHandler) Profits(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	price, err := decimal.NewFromString(r.URL.Query().Get("price"))
	if err != nil {
		http.Error(w, "Invalid price", http.StatusBadRequest)
		return
	}

	profits, err := h.valuationService.Profits(r.Context(), id, price)
	if err != nil {
		writeError(w, "ValuationHandler.Profits", err)
		return
	}

	writeJSON(w, http.StatusOK, profits)
}
