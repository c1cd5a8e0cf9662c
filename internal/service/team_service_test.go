package service_test

import (
	"context"
	"testing"

	"github.com/dom/calcutta-auction/internal/config"
	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/dom/calcutta-auction/internal/repository/postgres"
	"github.com/dom/calcutta-auction/internal/service"
	"github.com/dom/calcutta-auction/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedFile() *config.TournamentFile {
	return &config.TournamentFile{
		ID:        "spring-cup",
		Name:      "Spring Cup",
		Structure: string(domain.StructureBracket),
		Regions:   []string{"North", "South"},
		Rounds:    []string{"R8", "F4"},
		PayoutRules: []domain.PayoutRule{
			{Round: "R8", Percent: 5},
			{Round: "F4", Percent: 10},
		},
		Teams: []config.TeamEntry{
			{ID: "n1", Name: "North Carolina", Seed: 1, Region: "North", Odds: map[string]int{"R8": -400}},
			{ID: "n2", Name: "Northwestern", Seed: 2, Region: "North"},
			{ID: "s1", Name: "South Carolina", Seed: 1, Region: "South"},
			{ID: "s2", Name: "Southern Miss", Seed: 2, Region: "South"},
		},
	}
}

func TestTeamService(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	teams := service.NewTeamService(repos.Tournament, repos.Team)
	ctx := context.Background()

	require.NoError(t, teams.Seed(ctx, seedFile()))

	t.Run("tournaments", func(t *testing.T) {
		list, err := teams.ListTournaments(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Spring Cup", list[0].Name)

		got, err := teams.GetTournament(ctx, "spring-cup")
		require.NoError(t, err)
		assert.Equal(t, []string{"R8", "F4"}, []string(got.Rounds))

		_, err = teams.GetTournament(ctx, "winter-cup")
		assert.ErrorIs(t, err, domain.ErrTournamentNotFound)
	})

	t.Run("get", func(t *testing.T) {
		team, err := teams.Get(ctx, "n1")
		require.NoError(t, err)
		assert.Equal(t, -400, team.Odds.Data()["R8"])

		_, err = teams.Get(ctx, "zz")
		assert.ErrorIs(t, err, domain.ErrTeamNotFound)
	})

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "empty query returns all", query: "  ", want: []string{"n1", "n2", "s1", "s2"}},
		{name: "case insensitive", query: "CAROLINA", want: []string{"n1", "s1"}},
		{name: "fuzzy subsequence", query: "smiss", want: []string{"s2"}},
		{name: "no match", query: "xyzzy", want: []string{}},
	}

	for _, tt := range tests {
		t.Run("search "+tt.name, func(t *testing.T) {
			found, err := teams.Search(ctx, "spring-cup", tt.query)
			require.NoError(t, err)
			ids := make([]string, len(found))
			for i, team := range found {
				ids[i] = team.ID
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}

	t.Run("rejects colliding seeds", func(t *testing.T) {
		tf := seedFile()
		tf.Teams[1].Seed = 1
		err := teams.Seed(ctx, tf)
		assert.ErrorIs(t, err, service.ErrInvalidInput)

		team, err := teams.Get(ctx, "n2")
		require.NoError(t, err)
		assert.Equal(t, 2, team.Seed)
	})

	t.Run("reseed replaces", func(t *testing.T) {
		tf := seedFile()
		tf.Name = "Spring Cup 2"
		tf.Teams[1].Name = "Northwestern State"
		require.NoError(t, teams.Seed(ctx, tf))

		got, err := teams.GetTournament(ctx, "spring-cup")
		require.NoError(t, err)
		assert.Equal(t, "Spring Cup 2", got.Name)

		list, err := teams.List(ctx, "spring-cup")
		require.NoError(t, err)
		assert.Len(t, list, 4)

		team, err := teams.Get(ctx, "n2")
		require.NoError(t, err)
		assert.Equal(t, "Northwestern State", team.Name)
	})
}
