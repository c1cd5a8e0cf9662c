package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/dom/calcutta-auction/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	displayName string
	password    string
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	return &UserBuilder{
		displayName: fmt.Sprintf("testuser_%s", uuid.New().String()[:8]),
		password:    "testpassword123",
	}
}

// WithDisplayName sets the display name
func (b *UserBuilder) WithDisplayName(name string) *UserBuilder {
	b.displayName = name
	return b
}

// WithPassword sets the password
func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

// Build creates the user in the database and returns the user with the raw password
func (b *UserBuilder) Build(t *testing.T, db *gorm.DB) (*domain.User, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		DisplayName:  b.displayName,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user, b.password
}

// AuthResponse matches the API auth response
type AuthResponse struct {
	User struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
	} `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// BuildAndAuthenticate creates a user via API and returns the user and access token
func (b *UserBuilder) BuildAndAuthenticate(t *testing.T, ts *TestServer) (*domain.User, string) {
	t.Helper()

	reqBody := map[string]string{
		"displayName": b.displayName,
		"password":    b.password,
	}
	body, _ := json.Marshal(reqBody)

	resp, err := http.Post(ts.APIURL("/auth/register"), "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("failed to register user: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	userID, _ := uuid.Parse(authResp.User.ID)
	user := &domain.User{
		ID:          userID,
		DisplayName: authResp.User.DisplayName,
	}

	return user, authResp.AccessToken
}

// TestTournamentID is the id of the tournament SeedTournament creates
const TestTournamentID = "test-cup"

// TournamentBuilder creates a tournament and its teams
type TournamentBuilder struct {
	id        string
	structure domain.DevigStructure
	regions   []string
	rounds    []string
	rules     domain.PayoutRules
	teams     []*domain.BaseTeam
}

// NewTournamentBuilder creates a two-region, two-round tournament with no teams
func NewTournamentBuilder() *TournamentBuilder {
	return &TournamentBuilder{
		id:        TestTournamentID,
		structure: domain.StructureGlobal,
		regions:   []string{"East", "West"},
		rounds:    []string{"R32", "S16"},
		rules: domain.PayoutRules{
			{Round: "R32", Percent: 0.5},
			{Round: "S16", Percent: 1.0},
		},
	}
}

// WithID sets the tournament ID
func (b *TournamentBuilder) WithID(id string) *TournamentBuilder {
	b.id = id
	return b
}

// WithStructure sets the devig structure
func (b *TournamentBuilder) WithStructure(structure domain.DevigStructure) *TournamentBuilder {
	b.structure = structure
	return b
}

// WithRounds sets the rounds and their payout rules
func (b *TournamentBuilder) WithRounds(rules domain.PayoutRules) *TournamentBuilder {
	b.rules = rules
	b.rounds = rules.Rounds()
	return b
}

// WithTeam adds a team; odds are American odds per round
func (b *TournamentBuilder) WithTeam(id, name string, seed int, region string, odds map[string]int) *TournamentBuilder {
	b.teams = append(b.teams, &domain.BaseTeam{
		ID:           id,
		TournamentID: b.id,
		Name:         name,
		Seed:         seed,
		Region:       region,
		Odds:         datatypes.NewJSONType(odds),
	})
	return b
}

// Build creates the tournament and its teams in the database
func (b *TournamentBuilder) Build(t *testing.T, db *gorm.DB) (*domain.Tournament, []*domain.BaseTeam) {
	t.Helper()

	tournament := &domain.Tournament{
		ID:          b.id,
		Name:        "Test " + b.id,
		Structure:   b.structure,
		Regions:     datatypes.JSONSlice[string](b.regions),
		Rounds:      datatypes.JSONSlice[string](b.rounds),
		PayoutRules: datatypes.JSONSlice[domain.PayoutRule](b.rules),
	}
	if err := db.Create(tournament).Error; err != nil {
		t.Fatalf("failed to create tournament: %v", err)
	}

	for _, team := range b.teams {
		team.TournamentID = b.id
		if err := db.Create(team).Error; err != nil {
			t.Fatalf("failed to create team %s: %v", team.ID, err)
		}
	}

	return tournament, b.teams
}

// SeedTournament creates the standard four-team test tournament. Teams come
// back in auction order: region, then seed.
func SeedTournament(t *testing.T, db *gorm.DB) (*domain.Tournament, []*domain.BaseTeam) {
	t.Helper()

	return NewTournamentBuilder().
		WithTeam("east-1", "Duke", 1, "East", map[string]int{"R32": -2000, "S16": -300}).
		WithTeam("east-2", "Kentucky", 2, "East", map[string]int{"R32": -1000, "S16": 150}).
		WithTeam("west-1", "Gonzaga", 1, "West", map[string]int{"R32": -1500, "S16": -200}).
		WithTeam("west-2", "Arizona", 2, "West", map[string]int{"R32": -800, "S16": 200}).
		Build(t, db)
}

// SessionBuilder creates auction sessions through the session service
type SessionBuilder struct {
	commissioner *domain.User
	tournamentID string
	name         string
	settings     *domain.SessionSettings
	pot          decimal.Decimal
	bidders      []*domain.User
}

// NewSessionBuilder creates a new SessionBuilder with default values
func NewSessionBuilder() *SessionBuilder {
	return &SessionBuilder{
		tournamentID: TestTournamentID,
		name:         "Test Calcutta",
		pot:          decimal.NewFromInt(10000),
	}
}

// WithCommissioner sets the session creator
func (b *SessionBuilder) WithCommissioner(user *domain.User) *SessionBuilder {
	b.commissioner = user
	return b
}

// WithTournament sets the tournament ID
func (b *SessionBuilder) WithTournament(id string) *SessionBuilder {
	b.tournamentID = id
	return b
}

// WithSettings overrides the default session settings
func (b *SessionBuilder) WithSettings(settings domain.SessionSettings) *SessionBuilder {
	b.settings = &settings
	return b
}

// WithoutTimer turns the bidding timer off
func (b *SessionBuilder) WithoutTimer() *SessionBuilder {
	settings := domain.DefaultSessionSettings()
	settings.TimerEnabled = false
	b.settings = &settings
	return b
}

// WithEstimatedPot sets the estimated pot size
func (b *SessionBuilder) WithEstimatedPot(pot decimal.Decimal) *SessionBuilder {
	b.pot = pot
	return b
}

// WithBidders joins each user to the session after it is created
func (b *SessionBuilder) WithBidders(users ...*domain.User) *SessionBuilder {
	b.bidders = append(b.bidders, users...)
	return b
}

// Build creates the session; the tournament must already exist
func (b *SessionBuilder) Build(t *testing.T, db *gorm.DB, sessions *service.SessionService) *domain.AuctionSession {
	t.Helper()

	if b.commissioner == nil {
		user, _ := NewUserBuilder().Build(t, db)
		b.commissioner = user
	}

	ctx := context.Background()
	session, err := sessions.Create(ctx, service.CreateSessionInput{
		Name:             b.name,
		TournamentID:     b.tournamentID,
		CommissionerID:   b.commissioner.ID,
		DisplayName:      b.commissioner.DisplayName,
		Settings:         b.settings,
		EstimatedPotSize: b.pot,
	})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	for _, bidder := range b.bidders {
		if _, err := sessions.Join(ctx, session.ID.String(), bidder.ID, bidder.DisplayName); err != nil {
			t.Fatalf("failed to join %s: %v", bidder.DisplayName, err)
		}
	}

	return session
}

// CreateAuthenticatedRequest creates an HTTP request with auth token
func CreateAuthenticatedRequest(t *testing.T, method, url string, body interface{}, token string) *http.Request {
	t.Helper()

	var bodyReader *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	} else {
		bodyReader = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}
