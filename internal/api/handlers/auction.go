package handlers

import (
	"context"
	"net/http"

	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/dom/calcutta-auction/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AuctionHandler struct {
	auctionService *service.AuctionService
}

func NewAuctionHandler(auctionService *service.AuctionService) *AuctionHandler {
	return &AuctionHandler{auctionService: auctionService}
}

type transitionFunc func(ctx context.Context, sessionID, actorID uuid.UUID) (*domain.AuctionSession, error)

type PresentRequest struct {
	Index int `json:"index"`
}

type PlaceBidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// transition serves one commissioner state-machine operation.
func (h *AuctionHandler) transition(origin string, op transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		id, ok := sessionID(w, r)
		if !ok {
			return
		}

		session, err := op(r.Context(), id, userID)
		if err != nil {
			writeError(w, origin, err)
			return
		}

		writeJSON(w, http.StatusOK, session)
	}
}

func (h *AuctionHandler) Start() http.HandlerFunc {
	return h.transition("AuctionHandler.Start", h.auctionService.Start)
}

func (h *AuctionHandler) Open() http.HandlerFunc {
	return h.transition("AuctionHandler.Open", h.auctionService.Open)
}

func (h *AuctionHandler) Close() http.HandlerFunc {
	return h.transition("AuctionHandler.Close", h.auctionService.Close)
}

func (h *AuctionHandler) Sell() http.HandlerFunc {
	return h.transition("AuctionHandler.Sell", h.auctionService.Sell)
}

func (h *AuctionHandler) Skip() http.HandlerFunc {
	return h.transition("AuctionHandler.Skip", h.auctionService.Skip)
}

func (h *AuctionHandler) Undo() http.HandlerFunc {
	return h.transition("AuctionHandler.Undo", h.auctionService.Undo)
}

func (h *AuctionHandler) Pause() http.HandlerFunc {
	return h.transition("AuctionHandler.Pause", h.auctionService.Pause)
}

func (h *AuctionHandler) Complete() http.HandlerFunc {
	return h.transition("AuctionHandler.Complete", h.auctionService.CompleteAuction)
}

func (h *AuctionHandler) AutoAdvance() http.HandlerFunc {
	return h.transition("AuctionHandler.AutoAdvance", h.auctionService.AutoAdvance)
}

func (h *AuctionHandler) Present(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req PresentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := h.auctionService.Present(r.Context(), id, userID, req.Index)
	if err != nil {
		writeError(w, "AuctionHandler.Present", err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

func (h *AuctionHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req PlaceBidRequest
	if !decodeBody(w, r, &req) {
		return
	}

	bid, err := h.auctionService.PlaceBid(r.Context(), id, userID, req.Amount)
	if err != nil {
		writeError(w, "AuctionHandler.PlaceBid", err)
		return
	}

	writeJSON(w, http.StatusCreated, bid)
}

func (h *AuctionHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	bids, err := h.auctionService.Bids(r.Context(), id, userID, r.URL.Query().Get("teamId"))
	if err != nil {
		writeError(w, "AuctionHandler.ListBids", err)
		return
	}

	writeJSON(w, http.StatusOK, bids)
}
