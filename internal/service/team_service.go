package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/dom/calcutta-auction/internal/config"
	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/dom/calcutta-auction/internal/repository"
	"github.com/sahilm/fuzzy"
)

// teamSearchItems implements fuzzy.Source over team display names
type teamSearchItems []*domain.BaseTeam

func (items teamSearchItems) Len() int {
	return len(items)
}

func (items teamSearchItems) String(i int) string {
	return strings.ToLower(items[i].Name)
}

type TeamService struct {
	tournaments repository.TournamentRepository
	teams       repository.TeamRepository
}

func NewTeamService(tournaments repository.TournamentRepository, teams repository.TeamRepository) *TeamService {
	return &TeamService{
		tournaments: tournaments,
		teams:       teams,
	}
}

// Seed stores a tournament and its teams, replacing earlier copies.
func (s *TeamService) Seed(ctx context.Context, tf *config.TournamentFile) error {
	if err := tf.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	tournament, teams := tf.Domain()
	if err := s.tournaments.Upsert(ctx, tournament); err != nil {
		return &domain.PersistenceError{Op: "seed tournament", Err: err}
	}
	if err := s.teams.UpsertMany(ctx, teams); err != nil {
		return &domain.PersistenceError{Op: "seed teams", Err: err}
	}
	return nil
}

func (s *TeamService) ListTournaments(ctx context.Context) ([]*domain.Tournament, error) {
	return s.tournaments.List(ctx)
}

func (s *TeamService) GetTournament(ctx context.Context, id string) (*domain.Tournament, error) {
	tournament, err := s.tournaments.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrTournamentNotFound
		}
		return nil, err
	}
	return tournament, nil
}

func (s *TeamService) List(ctx context.Context, tournamentID string) ([]*domain.BaseTeam, error) {
	return s.teams.ListByTournament(ctx, tournamentID)
}

func (s *TeamService) Get(ctx context.Context, id string) (*domain.BaseTeam, error) {
	team, err := s.teams.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrTeamNotFound
		}
		return nil, err
	}
	return team, nil
}

// Search fuzzy-matches query against team names, best match first. An empty
// query returns every team.
func (s *TeamService) Search(ctx context.Context, tournamentID, query string) ([]*domain.BaseTeam, error) {
	teams, err := s.teams.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return teams, nil
	}

	items := teamSearchItems(teams)
	matches := fuzzy.FindFrom(query, items)

	results := make([]*domain.BaseTeam, len(matches))
	for i, match := range matches {
		results[i] = items[match.Index]
	}
	return results, nil
}
