package websocket_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/dom/calcutta-auction/internal/events"
	"github.com/dom/calcutta-auction/internal/testutil"
	"github.com/dom/calcutta-auction/internal/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type auctionFixture struct {
	ts           *testutil.TestServer
	session      *domain.AuctionSession
	commish      *domain.User
	commishToken string
	bidder       *domain.User
	bidderToken  string
}

func newAuctionFixture(t *testing.T, ts *testutil.TestServer, settings domain.SessionSettings) *auctionFixture {
	t.Helper()

	ts.DB.Truncate(t)
	testutil.SeedTournament(t, ts.DB.DB)

	commish, commishToken := testutil.NewUserBuilder().WithDisplayName("commish").BuildAndAuthenticate(t, ts)
	bidder, bidderToken := testutil.NewUserBuilder().WithDisplayName("bidder").BuildAndAuthenticate(t, ts)

	session := testutil.NewSessionBuilder().
		WithCommissioner(commish).
		WithSettings(settings).
		WithBidders(bidder).
		Build(t, ts.DB.DB, ts.Services.Session)

	return &auctionFixture{
		ts:           ts,
		session:      session,
		commish:      commish,
		commishToken: commishToken,
		bidder:       bidder,
		bidderToken:  bidderToken,
	}
}

func (f *auctionFixture) connect(t *testing.T, token string) *testutil.WSClient {
	t.Helper()

	client := testutil.NewWSClient(t, f.ts.WebSocketURL(token))
	client.JoinSession(f.session.JoinCode)
	client.ExpectStateSync(defaultTimeout)
	return client
}

func (f *auctionFixture) startAndOpen(t *testing.T) {
	t.Helper()

	ctx := context.Background()
	_, err := f.ts.Services.Auction.Start(ctx, f.session.ID, f.commish.ID)
	require.NoError(t, err)
	_, err = f.ts.Services.Auction.Open(ctx, f.session.ID, f.commish.ID)
	require.NoError(t, err)
}

func untimedSettings() domain.SessionSettings {
	settings := domain.DefaultSessionSettings()
	settings.TimerEnabled = false
	return settings
}

func TestAuctionFlow_BiddingBroadcasts(t *testing.T) {
	ts := testutil.NewTestServer(t)
	f := newAuctionFixture(t, ts, untimedSettings())

	commishWS := f.connect(t, f.commishToken)
	bidderWS := f.connect(t, f.bidderToken)

	f.startAndOpen(t)
	commishWS.ExpectEvent(events.BiddingOpen, nil, defaultTimeout)
	bidderWS.ExpectEvent(events.BiddingOpen, nil, defaultTimeout)

	bidderWS.PlaceBid(decimal.NewFromInt(100))
	var first events.NewBidPayload
	commishWS.ExpectEvent(events.NewBid, &first, defaultTimeout)
	assert.Equal(t, "east-1", first.TeamID)
	assert.Equal(t, f.bidder.ID, first.BidderID)
	assert.Equal(t, "bidder", first.BidderName)
	testutil.AssertDecimalEqual(t, decimal.NewFromInt(100), first.Amount)
	bidderWS.ExpectEvent(events.NewBid, nil, defaultTimeout)

	commishWS.PlaceBid(decimal.NewFromInt(90))
	commishWS.ExpectErrorWithCode(websocket.ErrCodeBidTooLow, defaultTimeout)
	bidderWS.ExpectNoMessage(200 * time.Millisecond)

	commishWS.PlaceBid(decimal.NewFromInt(150))
	var second events.NewBidPayload
	bidderWS.ExpectEvent(events.NewBid, &second, defaultTimeout)
	testutil.AssertDecimalEqual(t, decimal.NewFromInt(150), second.Amount)

	// A reconnecting client sees the accepted high bid
	commishWS.DrainMessages()
	commishWS.SyncState()
	snapshot := commishWS.ExpectStateSync(defaultTimeout)
	testutil.AssertDecimalEqual(t, decimal.NewFromInt(150), snapshot.Session.CurrentHighestBid)
	require.NotNil(t, snapshot.Session.CurrentHighestBidderID)
	assert.Equal(t, f.commish.ID, *snapshot.Session.CurrentHighestBidderID)
}

func TestAuctionFlow_BidBeforeOpen(t *testing.T) {
	ts := testutil.NewTestServer(t)
	f := newAuctionFixture(t, ts, untimedSettings())

	bidderWS := f.connect(t, f.bidderToken)
	bidderWS.PlaceBid(decimal.NewFromInt(100))
	bidderWS.ExpectErrorWithCode(websocket.ErrCodeStateViolation, defaultTimeout)
}

func TestAuctionFlow_AntiSnipeExtendsTimer(t *testing.T) {
	ts := testutil.NewTestServer(t)
	settings := domain.DefaultSessionSettings()
	settings.TimerDurationSeconds = 3
	settings.TimerResetSeconds = 10
	f := newAuctionFixture(t, ts, settings)

	bidderWS := f.connect(t, f.bidderToken)
	f.startAndOpen(t)

	var start events.TimerPayload
	bidderWS.ExpectEvent(events.TimerStart, &start, defaultTimeout)
	assert.Equal(t, 3000, start.DurationMs)

	bidderWS.PlaceBid(decimal.NewFromInt(100))
	bidderWS.ExpectEvent(events.NewBid, nil, defaultTimeout)

	var reset events.TimerPayload
	bidderWS.ExpectEvent(events.TimerReset, &reset, defaultTimeout)
	assert.Equal(t, 10000, reset.DurationMs)
	assert.True(t, reset.EndsAt.After(start.EndsAt), "the deadline only moves forward")
}

func TestAuctionFlow_ServerAdvancesExpiredTimer(t *testing.T) {
	cfg := testutil.TestConfig()
	cfg.ServerAutoAdvance = true
	ts := testutil.NewTestServerWithConfig(t, cfg)

	settings := domain.DefaultSessionSettings()
	settings.TimerDurationSeconds = 1
	settings.TimerResetSeconds = 0
	f := newAuctionFixture(t, ts, settings)

	bidderWS := f.connect(t, f.bidderToken)
	f.startAndOpen(t)
	bidderWS.ExpectEvent(events.TimerStart, nil, defaultTimeout)

	bidderWS.PlaceBid(decimal.NewFromInt(40))
	bidderWS.ExpectEvent(events.NewBid, nil, defaultTimeout)

	bidderWS.ExpectEvent(events.BiddingClosed, nil, defaultTimeout)
	var sold events.TeamSoldPayload
	bidderWS.ExpectEvent(events.TeamSold, &sold, defaultTimeout)
	assert.Equal(t, "east-1", sold.ItemID)
	assert.Equal(t, f.bidder.ID, sold.WinnerID)
	testutil.AssertDecimalEqual(t, decimal.NewFromInt(40), sold.Amount)
	require.NotNil(t, sold.NextIndex)
	assert.Equal(t, 1, *sold.NextIndex)

	session, err := ts.Repos.Session.GetByID(context.Background(), f.session.ID)
	require.NoError(t, err)
	testutil.AssertSessionState(t, session, domain.SessionStatusActive, domain.BiddingStatusWaiting, 1)

	// Nobody bids on the next team once it is opened, so it is skipped
	_, err = ts.Services.Auction.Open(context.Background(), f.session.ID, f.commish.ID)
	require.NoError(t, err)

	var skipped events.TeamSkippedPayload
	bidderWS.ExpectEvent(events.TeamSkipped, &skipped, defaultTimeout)
	assert.Equal(t, "east-2", skipped.ItemID)
}

func TestAuctionFlow_AutoModeReopensNextTeam(t *testing.T) {
	cfg := testutil.TestConfig()
	cfg.ServerAutoAdvance = true
	ts := testutil.NewTestServerWithConfig(t, cfg)

	settings := domain.DefaultSessionSettings()
	settings.TimerDurationSeconds = 1
	settings.TimerResetSeconds = 0
	settings.AutoMode = true
	f := newAuctionFixture(t, ts, settings)

	bidderWS := f.connect(t, f.bidderToken)
	f.startAndOpen(t)
	bidderWS.ExpectEvent(events.TimerStart, nil, defaultTimeout)

	got := bidderWS.ExpectMessagesOfTypes([]websocket.MessageType{
		websocket.MessageType(events.TeamSkipped),
		websocket.MessageType(events.BiddingOpen),
		websocket.MessageType(events.TimerStart),
	}, defaultTimeout)
	assert.Less(t, got[websocket.MessageType(events.TeamSkipped)].Seq, got[websocket.MessageType(events.BiddingOpen)].Seq)

	session, err := ts.Repos.Session.GetByID(context.Background(), f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, session.CurrentItemIndex)
	assert.Equal(t, domain.BiddingStatusOpen, session.BiddingStatus)

	_, err = ts.Services.Auction.Pause(context.Background(), f.session.ID, f.commish.ID)
	require.NoError(t, err)
	bidderWS.ExpectEvent(events.AuctionPaused, nil, defaultTimeout)
}
