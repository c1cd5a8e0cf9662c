package handlers

import (
	"net/http"

	"github.com/dom/calcutta-auction/internal/service"
	"github.com/go-chi/chi/v5"
)

type TeamHandler struct {
	teamService *service.TeamService
}

func NewTeamHandler(teamService *service.TeamService) *TeamHandler {
	return &TeamHandler{teamService: teamService}
}

func (h *TeamHandler) ListTournaments(w http.ResponseWriter, r *http.Request) {
	tournaments, err := h.teamService.ListTournaments(r.Context())
	if err != nil {
		writeError(w, "TeamHandler.ListTournaments", err)
		return
	}
	writeJSON(w, http.StatusOK, tournaments)
}

func (h *TeamHandler) GetTournament(w http.ResponseWriter, r *http.Request) {
	tournament, err := h.teamService.GetTournament(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "TeamHandler.GetTournament", err)
		return
	}
	writeJSON(w, http.StatusOK, tournament)
}

// ListTeams returns the tournament's teams, fuzzy-filtered by ?q= when given.
func (h *TeamHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	tournamentID := chi.URLParam(r, "id")
	if _, err := h.teamService.GetTournament(r.Context(), tournamentID); err != nil {
		writeError(w, "TeamHandler.ListTeams", err)
		return
	}

	teams, err := h.teamService.Search(r.Context(), tournamentID, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, "TeamHandler.ListTeams", err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

func (h *TeamHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := h.teamService.Get(r.Context(), chi.URLParam(r, "teamId"))
	if err != nil {
		writeError(w, "TeamHandler.GetTeam", err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}
