package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/dom/calcutta-auction/internal/service"
	"github.com/dom/calcutta-auction/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doJSON(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func createSession(t *testing.T, ts *testutil.TestServer, token string) *domain.AuctionSession {
	t.Helper()

	settings := domain.DefaultSessionSettings()
	settings.TimerEnabled = false

	resp := doJSON(t, http.MethodPost, ts.APIURL("/sessions"), token, map[string]interface{}{
		"name":             "Office Pool",
		"tournamentId":     testutil.TestTournamentID,
		"settings":         settings,
		"estimatedPotSize": "1000",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var session domain.AuctionSession
	testutil.AssertJSONResponse(t, resp, &session)
	return &session
}

func TestSessionHandler_Create(t *testing.T) {
	ts := testutil.NewTestServer(t)
	ts.DB.Truncate(t)
	testutil.SeedTournament(t, ts.DB.DB)

	_, token := testutil.NewUserBuilder().WithDisplayName("commish").BuildAndAuthenticate(t, ts)

	tests := []struct {
		name           string
		request        map[string]interface{}
		token          string
		expectedStatus int
	}{
		{
			name:           "unknown tournament",
			request:        map[string]interface{}{"name": "Pool", "tournamentId": "nope"},
			token:          token,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "missing name",
			request:        map[string]interface{}{"tournamentId": testutil.TestTournamentID},
			token:          token,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "negative pot",
			request:        map[string]interface{}{"name": "Pool", "tournamentId": testutil.TestTournamentID, "estimatedPotSize": "-5"},
			token:          token,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unauthenticated",
			request:        map[string]interface{}{"name": "Pool", "tournamentId": testutil.TestTournamentID},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, ts.APIURL("/sessions"), tt.token, tt.request)
			testutil.AssertStatusCode(t, resp, tt.expectedStatus)
		})
	}

	t.Run("defaults", func(t *testing.T) {
		session := createSession(t, ts, token)

		assert.Equal(t, domain.SessionStatusLobby, session.Status)
		assert.Equal(t, domain.BiddingStatusWaiting, session.BiddingStatus)
		assert.Equal(t, []string{"east-1", "east-2", "west-1", "west-2"}, []string(session.TeamOrder))
		assert.Len(t, session.JoinCode, 6)
		assert.Equal(t, 0.5, domain.PayoutRules(session.PayoutRules).Percent("R32"))
	})
}

func TestAuctionHandler_Flow(t *testing.T) {
	ts := testutil.NewTestServer(t)
	ts.DB.Truncate(t)
	testutil.SeedTournament(t, ts.DB.DB)

	commish, commishToken := testutil.NewUserBuilder().WithDisplayName("commish").BuildAndAuthenticate(t, ts)
	bidder, bidderToken := testutil.NewUserBuilder().WithDisplayName("bidder").BuildAndAuthenticate(t, ts)

	session := createSession(t, ts, commishToken)
	url := func(path string) string {
		return ts.APIURL(fmt.Sprintf("/sessions/%s%s", session.ID, path))
	}

	// Join by code
	resp := doJSON(t, http.MethodPost, ts.APIURL("/sessions/"+session.JoinCode+"/join"), bidderToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var participant domain.Participant
	testutil.AssertJSONResponse(t, resp, &participant)
	assert.Equal(t, bidder.ID, participant.UserID)
	assert.False(t, participant.IsCommissioner)

	// Only the commissioner drives the state machine
	resp = doJSON(t, http.MethodPost, url("/start"), bidderToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, url("/start"), commishToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, url("/bids"), bidderToken, map[string]string{"amount": "100"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "bidding is not open yet")

	resp = doJSON(t, http.MethodPost, url("/open"), commishToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var opened domain.AuctionSession
	testutil.AssertJSONResponse(t, resp, &opened)
	testutil.AssertSessionState(t, &opened, domain.SessionStatusActive, domain.BiddingStatusOpen, 0)

	// $100 accepted, $90 rejected, $150 accepted
	resp = doJSON(t, http.MethodPost, url("/bids"), bidderToken, map[string]string{"amount": "100"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, url("/bids"), commishToken, map[string]string{"amount": "90"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, url("/bids"), commishToken, map[string]string{"amount": "150"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, url("/bids"), commishToken, map[string]string{"amount": "0"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, url("/bids"), bidderToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var bids []domain.Bid
	testutil.AssertJSONResponse(t, resp, &bids)
	require.Len(t, bids, 2)
	testutil.AssertDecimalEqual(t, decimal.NewFromInt(150), bids[0].Amount)
	assert.Equal(t, commish.ID, bids[0].BidderID)

	// Selling needs bidding closed
	resp = doJSON(t, http.MethodPost, url("/sell"), commishToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, url("/close"), commishToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, url("/sell"), commishToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sold domain.AuctionSession
	testutil.AssertJSONResponse(t, resp, &sold)
	testutil.AssertSessionState(t, &sold, domain.SessionStatusActive, domain.BiddingStatusWaiting, 1)

	resp = doJSON(t, http.MethodGet, url("/state"), bidderToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snapshot service.Snapshot
	testutil.AssertJSONResponse(t, resp, &snapshot)
	assert.Len(t, snapshot.Participants, 2)
	for _, o := range snapshot.Ownerships {
		if o.TeamID == "east-1" {
			require.NotNil(t, o.OwnerID)
			assert.Equal(t, commish.ID, *o.OwnerID)
			testutil.AssertDecimalEqual(t, decimal.NewFromInt(150), o.PurchasePrice)
		}
	}

	// Results are commissioner-only
	result := map[string]string{"teamId": "east-1", "roundKey": "R32", "result": "won"}
	resp = doJSON(t, http.MethodPut, url("/results"), bidderToken, result)
	testutil.AssertErrorResponse(t, resp, http.StatusForbidden, "only the commissioner")

	resp = doJSON(t, http.MethodPut, url("/results"), commishToken, map[string]string{"teamId": "east-1", "roundKey": "F4", "result": "won"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, url("/results"), commishToken, result)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, url("/settlement"), bidderToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report struct {
		Pot   decimal.Decimal `json:"pot"`
		Teams []struct {
			TeamID    string          `json:"teamId"`
			RoundsWon []string        `json:"roundsWon"`
			Earnings  decimal.Decimal `json:"earnings"`
		} `json:"teams"`
	}
	testutil.AssertJSONResponse(t, resp, &report)
	testutil.AssertDecimalEqual(t, decimal.NewFromInt(150), report.Pot)
	require.Len(t, report.Teams, 1)
	assert.Equal(t, []string{"R32"}, report.Teams[0].RoundsWon)
	testutil.AssertDecimalEqual(t, decimal.RequireFromString("0.75"), report.Teams[0].Earnings)

	// Undo restores the sold team to the block
	resp = doJSON(t, http.MethodPost, url("/undo"), commishToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var undone domain.AuctionSession
	testutil.AssertJSONResponse(t, resp, &undone)
	testutil.AssertSessionState(t, &undone, domain.SessionStatusActive, domain.BiddingStatusWaiting, 0)
}

func TestSessionHandler_Delete(t *testing.T) {
	ts := testutil.NewTestServer(t)
	ts.DB.Truncate(t)
	testutil.SeedTournament(t, ts.DB.DB)

	_, commishToken := testutil.NewUserBuilder().WithDisplayName("commish").BuildAndAuthenticate(t, ts)
	_, otherToken := testutil.NewUserBuilder().WithDisplayName("other").BuildAndAuthenticate(t, ts)

	session := createSession(t, ts, commishToken)
	url := ts.APIURL("/sessions/" + session.ID.String())

	resp := doJSON(t, http.MethodDelete, url, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	for _, path := range []string{"/results", "/settlement"} {
		resp = doJSON(t, http.MethodGet, url+path, otherToken, nil)
		testutil.AssertErrorResponse(t, resp, http.StatusForbidden, "not a participant")
	}

	resp = doJSON(t, http.MethodPost, url+"/start", commishToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, url, commishToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "live sessions cannot be deleted")

	resp = doJSON(t, http.MethodPost, url+"/pause", commishToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, url, commishToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, url, commishToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTeamHandler_ListTeams(t *testing.T) {
	ts := testutil.NewTestServer(t)
	ts.DB.Truncate(t)
	testutil.SeedTournament(t, ts.DB.DB)

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		expectedIDs    []string
	}{
		{
			name:           "all teams",
			path:           "/tournaments/" + testutil.TestTournamentID + "/teams",
			expectedStatus: http.StatusOK,
			expectedIDs:    []string{"east-1", "east-2", "west-1", "west-2"},
		},
		{
			name:           "fuzzy search",
			path:           "/tournaments/" + testutil.TestTournamentID + "/teams?q=gzga",
			expectedStatus: http.StatusOK,
			expectedIDs:    []string{"west-1"},
		},
		{
			name:           "unknown tournament",
			path:           "/tournaments/nope/teams",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodGet, ts.APIURL(tt.path), "", nil)
			require.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.expectedIDs == nil {
				return
			}

			var teams []domain.BaseTeam
			testutil.AssertJSONResponse(t, resp, &teams)
			ids := make([]string, len(teams))
			for i, team := range teams {
				ids[i] = team.ID
			}
			assert.ElementsMatch(t, tt.expectedIDs, ids)
		})
	}
}
